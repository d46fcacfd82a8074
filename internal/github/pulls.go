package github

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/go-github/v66/github"

	"github.com/cexll/cpp-auto-formatter/internal/resolver"
)

// PullRequests fetches pull requests by API URL.
type PullRequests struct {
	client *github.Client
}

// NewPullRequests wraps an authenticated client.
func NewPullRequests(client *github.Client) *PullRequests {
	return &PullRequests{client: client}
}

// FetchPullRequest GETs the pull request at url, the value of
// issue.pull_request.url in an issue_comment payload.
func (p *PullRequests) FetchPullRequest(ctx context.Context, url string) (*resolver.PullRequestInfo, error) {
	req, err := p.client.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	var pr github.PullRequest
	if _, err := p.client.Do(ctx, req, &pr); err != nil {
		return nil, err
	}

	head := pr.GetHead()
	return &resolver.PullRequestInfo{
		HeadRef:                head.GetRef(),
		HeadRepositoryFullName: head.GetRepo().GetFullName(),
	}, nil
}
