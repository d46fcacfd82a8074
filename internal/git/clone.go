package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/cexll/cpp-auto-formatter/internal/resolver"
)

// CloneOptions configures a Cloner.
type CloneOptions struct {
	// BaseURL is the web URL of the GitHub instance, e.g. https://github.com.
	BaseURL string
	// Token authenticates the clone and later pushes.
	Token string
}

// Cloner checks out FormatTargets.
type Cloner struct {
	baseURL string
	auth    transport.AuthMethod
}

// NewCloner returns a Cloner for the given instance and credential.
func NewCloner(opts CloneOptions) *Cloner {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = "https://github.com"
	}
	c := &Cloner{baseURL: base}
	if opts.Token != "" {
		// GitHub accepts any username with a token as the password
		c.auth = &githttp.BasicAuth{Username: "x-access-token", Password: opts.Token}
	}
	return c
}

// RemoteURL returns the clone URL of an "owner/name" repository.
func (c *Cloner) RemoteURL(repo string) string {
	return fmt.Sprintf("%s/%s.git", c.baseURL, repo)
}

// Checkout makes a shallow, single-branch clone of target into
// target.WorkingDirectory and moves to target.Commit when one is set. The
// directory must not exist yet.
func (c *Cloner) Checkout(ctx context.Context, target resolver.FormatTarget) (*Repository, error) {
	if _, err := os.Stat(target.WorkingDirectory); err == nil {
		return nil, &OpError{Op: "clone", Err: fmt.Errorf("destination %s already exists", target.WorkingDirectory)}
	}

	repo, err := gogit.PlainCloneContext(ctx, target.WorkingDirectory, false, &gogit.CloneOptions{
		URL:           c.RemoteURL(target.Repository),
		Auth:          c.auth,
		ReferenceName: plumbing.NewBranchReferenceName(target.Branch),
		SingleBranch:  true,
		Depth:         1,
		Tags:          gogit.NoTags,
	})
	if err != nil {
		_ = os.RemoveAll(target.WorkingDirectory)
		return nil, &OpError{Op: "clone", Err: fmt.Errorf("%s@%s: %w", target.Repository, target.Branch, err)}
	}

	r := &Repository{dir: target.WorkingDirectory, repo: repo, auth: c.auth}
	if target.Commit != "" {
		if err := r.checkoutCommit(ctx, target.Branch, target.Commit); err != nil {
			_ = os.RemoveAll(target.WorkingDirectory)
			return nil, err
		}
	}
	return r, nil
}

// pinnedFetchDepth bounds how far a shallow clone is deepened to reach a
// pinned commit that is no longer the branch tip.
const pinnedFetchDepth = 50

// checkoutCommit detaches the working tree at commit. When the shallow clone
// does not contain it, branch is fetched again with more history.
func (r *Repository) checkoutCommit(ctx context.Context, branch, commit string) error {
	hash := plumbing.NewHash(commit)
	head, err := r.repo.Head()
	if err != nil {
		return &OpError{Op: "checkout", Err: err}
	}
	if head.Hash() == hash {
		return nil
	}

	if _, err := r.repo.CommitObject(hash); errors.Is(err, plumbing.ErrObjectNotFound) {
		ref := plumbing.NewBranchReferenceName(branch)
		remoteRef := plumbing.NewRemoteReferenceName(gogit.DefaultRemoteName, branch)
		err := r.repo.FetchContext(ctx, &gogit.FetchOptions{
			RemoteName: gogit.DefaultRemoteName,
			RefSpecs:   []config.RefSpec{config.RefSpec(fmt.Sprintf("+%s:%s", ref, remoteRef))},
			Depth:      pinnedFetchDepth,
			Auth:       r.auth,
			Tags:       gogit.NoTags,
		})
		if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
			return &OpError{Op: "fetch", Err: fmt.Errorf("%s@%s: %w", branch, commit, err)}
		}
	} else if err != nil {
		return &OpError{Op: "checkout", Err: err}
	}

	wt, err := r.repo.Worktree()
	if err != nil {
		return &OpError{Op: "checkout", Err: err}
	}
	if err := wt.Checkout(&gogit.CheckoutOptions{Hash: hash}); err != nil {
		return &OpError{Op: "checkout", Err: fmt.Errorf("%s: %w", commit, err)}
	}
	return nil
}
