// Package resolver turns a webhook event into the concrete repository and
// branch a run checks out.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/cexll/cpp-auto-formatter/internal/webhook"
)

const branchRefPrefix = "refs/heads/"

// ErrNotAPullRequest is returned for comments on plain issues. The bot only
// operates on pull request comments.
var ErrNotAPullRequest = errors.New("this bot only operates on pull request comments")

// UpstreamError means the pull request could not be fetched or decoded.
type UpstreamError struct {
	URL string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("failed to fetch pull request %s: %v", e.URL, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// RefFormatError is returned for a ref that does not name a branch.
type RefFormatError struct {
	Ref string
}

func (e *RefFormatError) Error() string {
	return fmt.Sprintf("unexpected ref format %q: expected %s<branch>", e.Ref, branchRefPrefix)
}

// PullRequestInfo is the part of a pull request needed to check out its head.
type PullRequestInfo struct {
	HeadRef                string
	HeadRepositoryFullName string
}

// PullRequestFetcher performs an authenticated fetch of a pull request by its
// API URL.
type PullRequestFetcher interface {
	FetchPullRequest(ctx context.Context, url string) (*PullRequestInfo, error)
}

// FormatTarget is the checkout identity of one run.
type FormatTarget struct {
	Repository       string
	Branch           string
	WorkingDirectory string
	// Commit pins the checkout to the pushed head. Empty means the branch tip.
	Commit string
}

// Resolver builds FormatTargets rooted in a workspace directory.
type Resolver struct {
	workspace string
	now       func() time.Time
}

// New returns a Resolver that places checkouts under workspace. An empty
// workspace means the system temp directory.
func New(workspace string) *Resolver {
	if workspace == "" {
		workspace = os.TempDir()
	}
	return &Resolver{workspace: workspace, now: time.Now}
}

// ForComment resolves the head branch of the pull request a comment was made
// on. No request is made for comments on plain issues.
func (r *Resolver) ForComment(ctx context.Context, issue webhook.IssueRef, fetcher PullRequestFetcher) (*FormatTarget, error) {
	if !issue.IsPullRequest() {
		return nil, ErrNotAPullRequest
	}

	pr, err := fetcher.FetchPullRequest(ctx, issue.PullRequestURL)
	if err != nil {
		return nil, &UpstreamError{URL: issue.PullRequestURL, Err: err}
	}
	if pr.HeadRepositoryFullName == "" {
		return nil, &UpstreamError{URL: issue.PullRequestURL, Err: errors.New("pull request head repository is unavailable")}
	}

	// the pulls API reports head.ref as a bare branch name
	ref := pr.HeadRef
	if !strings.HasPrefix(ref, "refs/") && ref != "" {
		ref = branchRefPrefix + ref
	}
	branch, err := BranchFromRef(ref)
	if err != nil {
		return nil, err
	}
	return r.target(pr.HeadRepositoryFullName, branch), nil
}

// ForPush resolves the branch a push event updated, pinned to the pushed
// commit when the event names one. It makes no network call.
func (r *Resolver) ForPush(push *webhook.PushEvent) (*FormatTarget, error) {
	branch, err := BranchFromRef(push.Ref)
	if err != nil {
		return nil, err
	}
	target := r.target(push.Repo, branch)
	if isCommitHash(push.After) {
		target.Commit = push.After
	}
	return target, nil
}

// BranchFromRef strips the refs/heads/ prefix from a fully qualified ref.
func BranchFromRef(ref string) (string, error) {
	branch, ok := strings.CutPrefix(ref, branchRefPrefix)
	if !ok || branch == "" {
		return "", &RefFormatError{Ref: ref}
	}
	return branch, nil
}

func (r *Resolver) target(repo, branch string) *FormatTarget {
	return &FormatTarget{
		Repository:       repo,
		Branch:           branch,
		WorkingDirectory: checkoutDir(r.workspace, repo, branch, r.now()),
	}
}

var commitHash = regexp.MustCompile(`^[0-9a-f]{40}$`)

// isCommitHash reports whether s is a full object name other than the null
// hash GitHub sends when a ref is deleted.
func isCommitHash(s string) bool {
	return commitHash.MatchString(s) && strings.Trim(s, "0") != ""
}

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

func sanitizeToken(token string) string {
	token = strings.ToLower(token)
	token = nonAlphanumeric.ReplaceAllString(token, "-")
	token = strings.Trim(token, "-")
	if token == "" {
		return "unknown"
	}
	return token
}

// checkoutDir names a fresh directory so a rerun never clones into an
// existing checkout.
func checkoutDir(workspace, repo, branch string, ts time.Time) string {
	ownerSegment := "unknown"
	repoSegment := "repo"

	if parts := strings.Split(repo, "/"); len(parts) == 2 {
		ownerSegment = sanitizeToken(parts[0])
		repoSegment = sanitizeToken(parts[1])
	} else {
		ownerSegment = sanitizeToken(repo)
	}

	dirName := fmt.Sprintf("%s-%s-%s-%d", ownerSegment, repoSegment, sanitizeToken(branch), ts.UnixNano())
	return filepath.Join(workspace, ".cpp-auto-formatter", dirName)
}
