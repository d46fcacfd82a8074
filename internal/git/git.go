// Package git wraps the version-control operations a formatting run needs:
// a shallow single-branch clone, the tracked file list, change detection,
// commit and push.
package git

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
)

// OpError is a failed version-control operation.
type OpError struct {
	Op  string
	Err error
}

func (e *OpError) Error() string { return fmt.Sprintf("git %s failed: %v", e.Op, e.Err) }

func (e *OpError) Unwrap() error { return e.Err }

var nowFunc = time.Now

// Repository is an opened working tree.
type Repository struct {
	dir  string
	repo *gogit.Repository
	auth transport.AuthMethod
}

// Open opens the repository whose working tree is dir.
func Open(dir string) (*Repository, error) {
	repo, err := gogit.PlainOpenWithOptions(dir, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, &OpError{Op: "open", Err: err}
	}
	return &Repository{dir: dir, repo: repo}, nil
}

// Dir returns the working tree directory.
func (r *Repository) Dir() string { return r.dir }

// TrackedFiles lists the regular files of the HEAD tree, like
// `git ls-tree -r HEAD --name-only --full-tree`. Symlinks and submodules are
// skipped.
func (r *Repository) TrackedFiles() ([]string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return nil, &OpError{Op: "ls-tree", Err: err}
	}
	commit, err := r.repo.CommitObject(head.Hash())
	if err != nil {
		return nil, &OpError{Op: "ls-tree", Err: err}
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, &OpError{Op: "ls-tree", Err: err}
	}

	var files []string
	err = tree.Files().ForEach(func(f *object.File) error {
		if f.Mode == filemode.Symlink {
			return nil
		}
		files = append(files, f.Name)
		return nil
	})
	if err != nil {
		return nil, &OpError{Op: "ls-tree", Err: err}
	}
	sort.Strings(files)
	return files, nil
}

// ChangedFiles returns the tracked files whose working tree content differs
// from HEAD, like `git diff --name-only HEAD`. Untracked files are ignored.
func (r *Repository) ChangedFiles() ([]string, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return nil, &OpError{Op: "status", Err: err}
	}
	status, err := wt.Status()
	if err != nil {
		return nil, &OpError{Op: "status", Err: err}
	}

	var changed []string
	for path, s := range status {
		if s.Worktree == gogit.Untracked {
			continue
		}
		if s.Worktree != gogit.Unmodified || s.Staging != gogit.Unmodified {
			changed = append(changed, path)
		}
	}
	sort.Strings(changed)
	return changed, nil
}

// CommitAll commits every modified tracked file, like `git commit -am`, and
// returns the new commit hash.
func (r *Repository) CommitAll(message string, author Identity) (string, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return "", &OpError{Op: "commit", Err: err}
	}
	hash, err := wt.Commit(message, &gogit.CommitOptions{
		All:    true,
		Author: author.signature(nowFunc()),
	})
	if err != nil {
		return "", &OpError{Op: "commit", Err: err}
	}
	return hash.String(), nil
}

// Push updates branch on origin with the local branch.
func (r *Repository) Push(ctx context.Context, branch string) error {
	ref := plumbing.NewBranchReferenceName(branch)
	err := r.repo.PushContext(ctx, &gogit.PushOptions{
		RemoteName: gogit.DefaultRemoteName,
		RefSpecs:   []config.RefSpec{config.RefSpec(fmt.Sprintf("%s:%s", ref, ref))},
		Auth:       r.auth,
	})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return &OpError{Op: "push", Err: err}
	}
	return nil
}
