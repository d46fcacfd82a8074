// Package workflow runs one webhook event through the format flows: decode,
// resolve, check out, format, then commit and push (command) or report the
// diff (check).
package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/cexll/cpp-auto-formatter/internal/command"
	"github.com/cexll/cpp-auto-formatter/internal/formatter"
	"github.com/cexll/cpp-auto-formatter/internal/git"
	"github.com/cexll/cpp-auto-formatter/internal/glob"
	"github.com/cexll/cpp-auto-formatter/internal/resolver"
	"github.com/cexll/cpp-auto-formatter/internal/webhook"
)

// DefaultCommitMessage is the message of formatting commits.
const DefaultCommitMessage = "GitHub clang-format Action"

// WorkTree is a checked-out branch.
type WorkTree interface {
	Dir() string
	TrackedFiles() ([]string, error)
	ChangedFiles() ([]string, error)
	CommitAll(message string, author git.Identity) (string, error)
	Push(ctx context.Context, branch string) error
}

// CommentPoster replies on an issue or pull request conversation.
type CommentPoster interface {
	PostComment(ctx context.Context, repo string, number int, body string) error
}

// Remote bundles the authenticated collaborators for one repository.
type Remote struct {
	PullRequests resolver.PullRequestFetcher
	Comments     CommentPoster
	Checkout     func(ctx context.Context, target resolver.FormatTarget) (WorkTree, error)
}

// Connector authenticates against the repository an event belongs to.
type Connector func(ctx context.Context, repo string) (*Remote, error)

// Options configures an Orchestrator.
type Options struct {
	Rules     *glob.RuleSet
	Resolver  *resolver.Resolver
	Formatter formatter.FileFormatter
	Connect   Connector

	BotName       string
	CommitMessage string
	Identity      git.Identity
	Parallelism   int
	Logger        *slog.Logger
}

// RunResult is the outcome of one flow.
type RunResult struct {
	// FilesChanged is set when formatting modified at least one file.
	FilesChanged bool
	// ExitCode is the process exit code the flow asks for.
	ExitCode int
	// Ignored is set when the event needed no action. Reason says why.
	Ignored bool
	Reason  string

	Target  *resolver.FormatTarget
	Changed []string
	// Commit is the hash pushed by the command flow.
	Commit string
}

// Orchestrator runs the command and check flows.
type Orchestrator struct {
	rules         *glob.RuleSet
	resolver      *resolver.Resolver
	formatter     formatter.FileFormatter
	connect       Connector
	botName       string
	commitMessage string
	identity      git.Identity
	parallelism   int
	logger        *slog.Logger
}

// New returns an Orchestrator. Unset options take their defaults.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		rules:         opts.Rules,
		resolver:      opts.Resolver,
		formatter:     opts.Formatter,
		connect:       opts.Connect,
		botName:       opts.BotName,
		commitMessage: opts.CommitMessage,
		identity:      opts.Identity,
		parallelism:   opts.Parallelism,
		logger:        opts.Logger,
	}
	if o.rules == nil {
		o.rules = glob.MustCompile(glob.DefaultIncludes, nil)
	}
	if o.resolver == nil {
		o.resolver = resolver.New("")
	}
	if o.commitMessage == "" {
		o.commitMessage = DefaultCommitMessage
	}
	if o.identity.Name == "" {
		o.identity = git.BotIdentity(o.botName, o.identity.Email)
	}
	if o.parallelism <= 0 {
		o.parallelism = formatter.DefaultParallelism()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// Command runs the comment-triggered flow: format the head branch of the pull
// request the comment was made on and push the result.
func (o *Orchestrator) Command(ctx context.Context, raw []byte, kind string) (RunResult, error) {
	event, err := webhook.Decode(raw, kind)
	if err != nil {
		return failed(), err
	}

	comment, ok := event.(*webhook.IssueCommentEvent)
	if !ok {
		return o.ignore(fmt.Sprintf("%s events do not trigger the command flow", event.Kind())), nil
	}
	if comment.Action != webhook.ActionCreated {
		return o.ignore(fmt.Sprintf("comment action %q is not %q", comment.Action, webhook.ActionCreated)), nil
	}
	if comment.AuthorIsBot {
		return o.ignore(fmt.Sprintf("comment author %s is a bot", comment.CommentAuthor)), nil
	}

	cmd, err := command.Parse(comment.CommentBody, o.botName)
	if errors.Is(err, command.ErrNotAddressedToBot) {
		return o.ignore("comment is not addressed to @" + o.botName), nil
	}
	var unknown *command.UnknownCommandError
	if errors.As(err, &unknown) {
		o.replyUsage(ctx, comment)
		return o.ignore(unknown.Error()), nil
	}
	if err != nil {
		o.replyUsage(ctx, comment)
		return failed(), err
	}
	if cmd.Flags.Has(command.FlagSquash) {
		o.logger.Debug("--squash has no effect on the formatting commit")
	}

	if !comment.Issue.IsPullRequest() {
		return failed(), resolver.ErrNotAPullRequest
	}

	remote, err := o.remote(ctx, comment.Repo)
	if err != nil {
		return failed(), err
	}
	target, err := o.resolver.ForComment(ctx, comment.Issue, remote.PullRequests)
	if err != nil {
		return failed(), err
	}
	defer o.cleanup(target)
	o.logger.Info("formatting pull request branch", "repo", target.Repository, "branch", target.Branch, "pr", comment.Issue.Number)

	tree, changed, err := o.formatTarget(ctx, remote, target)
	if err != nil {
		return failed(), err
	}

	result := RunResult{Target: target, Changed: changed}
	if len(changed) == 0 {
		o.logger.Info("branch is already formatted", "repo", target.Repository, "branch", target.Branch)
		return result, nil
	}

	hash, err := tree.CommitAll(o.commitMessage, o.identity)
	if err != nil {
		return failed(), err
	}
	if err := tree.Push(ctx, target.Branch); err != nil {
		return failed(), err
	}
	o.logger.Info("pushed formatting commit", "repo", target.Repository, "branch", target.Branch, "commit", hash, "files", len(changed))

	result.FilesChanged = true
	result.Commit = hash
	return result, nil
}

// Check runs the push-triggered flow: format the pushed branch and fail when
// that changes anything.
func (o *Orchestrator) Check(ctx context.Context, raw []byte, kind string) (RunResult, error) {
	event, err := webhook.Decode(raw, kind)
	if err != nil {
		return failed(), err
	}

	push, ok := event.(*webhook.PushEvent)
	if !ok {
		return o.ignore(fmt.Sprintf("%s events do not trigger the check flow", event.Kind())), nil
	}
	if push.Deleted {
		return o.ignore(fmt.Sprintf("%s was deleted", push.Ref)), nil
	}

	target, err := o.resolver.ForPush(push)
	if err != nil {
		return failed(), err
	}
	defer o.cleanup(target)
	remote, err := o.remote(ctx, push.Repo)
	if err != nil {
		return failed(), err
	}
	o.logger.Info("checking branch formatting", "repo", target.Repository, "branch", target.Branch, "ref", push.Ref)

	_, changed, err := o.formatTarget(ctx, remote, target)
	if err != nil {
		return failed(), err
	}

	result := RunResult{Target: target, Changed: changed}
	if len(changed) > 0 {
		for _, f := range changed {
			o.logger.Warn("file is not formatted", "file", f)
		}
		result.FilesChanged = true
		result.ExitCode = 1
		return result, nil
	}
	o.logger.Info("branch is already formatted", "repo", target.Repository, "branch", target.Branch)
	return result, nil
}

// List writes the files rules select from lister, one per line.
func List(ctx context.Context, lister glob.Lister, rules *glob.RuleSet, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	files, err := glob.Select(lister, rules)
	if err != nil {
		return err
	}
	for _, f := range files {
		if _, err := fmt.Fprintln(w, f); err != nil {
			return err
		}
	}
	return nil
}

// formatTarget checks out target, formats the selected files and reports
// which tracked files changed. Change detection starts only after every
// formatter invocation has returned.
func (o *Orchestrator) formatTarget(ctx context.Context, remote *Remote, target *resolver.FormatTarget) (WorkTree, []string, error) {
	tree, err := remote.Checkout(ctx, *target)
	if err != nil {
		return nil, nil, err
	}

	files, err := glob.Select(tree, o.rules)
	if err != nil {
		return nil, nil, err
	}
	o.logger.Info("formatting files", "dir", tree.Dir(), "files", len(files))

	if err := formatter.FormatAll(ctx, o.formatter, tree.Dir(), files, o.parallelism, o.logger); err != nil {
		return nil, nil, err
	}

	changed, err := tree.ChangedFiles()
	if err != nil {
		return nil, nil, err
	}
	return tree, changed, nil
}

func (o *Orchestrator) remote(ctx context.Context, repo string) (*Remote, error) {
	if o.connect == nil {
		return nil, errors.New("no GitHub connection configured")
	}
	remote, err := o.connect(ctx, repo)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", repo, err)
	}
	return remote, nil
}

// replyUsage posts the usage text on the issue. A failed reply is only logged.
func (o *Orchestrator) replyUsage(ctx context.Context, comment *webhook.IssueCommentEvent) {
	remote, err := o.remote(ctx, comment.Repo)
	if err != nil {
		o.logger.Warn("failed to post usage", "repo", comment.Repo, "error", err)
		return
	}
	if remote.Comments == nil {
		return
	}
	if err := remote.Comments.PostComment(ctx, comment.Repo, comment.Issue.Number, command.Usage(o.botName)); err != nil {
		o.logger.Warn("failed to post usage", "repo", comment.Repo, "error", err)
	}
}

// cleanup removes the checkout of target.
func (o *Orchestrator) cleanup(target *resolver.FormatTarget) {
	if target.WorkingDirectory == "" {
		return
	}
	if err := os.RemoveAll(target.WorkingDirectory); err != nil {
		o.logger.Warn("failed to remove checkout", "dir", target.WorkingDirectory, "error", err)
	}
}

func (o *Orchestrator) ignore(reason string) RunResult {
	o.logger.Info("ignoring event", "reason", reason)
	return RunResult{Ignored: true, Reason: reason}
}

func failed() RunResult {
	return RunResult{ExitCode: 1}
}
