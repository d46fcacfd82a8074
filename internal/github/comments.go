package github

import (
	"context"
	"fmt"

	"github.com/google/go-github/v66/github"
)

// Comments posts issue and pull request conversation comments.
type Comments struct {
	client *github.Client
}

// NewComments wraps an authenticated client.
func NewComments(client *github.Client) *Comments {
	return &Comments{client: client}
}

// PostComment adds a comment to issue or pull request number of repo.
func (c *Comments) PostComment(ctx context.Context, repo string, number int, body string) error {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return err
	}
	_, _, err = c.client.Issues.CreateComment(ctx, owner, name, number, &github.IssueComment{
		Body: github.String(body),
	})
	if err != nil {
		return fmt.Errorf("failed to comment on %s#%d: %w", repo, number, err)
	}
	return nil
}
