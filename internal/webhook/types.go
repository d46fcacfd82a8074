package webhook

// Kind is the out-of-band event discriminator GitHub sends as X-GitHub-Event
// (GITHUB_EVENT_NAME inside Actions).
type Kind string

const (
	KindIssueComment Kind = "issue_comment"
	KindPush         Kind = "push"
)

// ActionCreated is the only issue_comment action that carries a new command.
const ActionCreated = "created"

// Event is one decoded webhook payload. The set of implementations is closed:
// *IssueCommentEvent and *PushEvent.
type Event interface {
	Kind() Kind
	// Repository returns the "owner/name" of the repository the event belongs to.
	Repository() string

	isEvent()
}

// IssueCommentEvent is a comment on an issue or pull request conversation.
type IssueCommentEvent struct {
	Action        string
	CommentBody   string
	CommentAuthor string
	// AuthorIsBot is set when the comment user type is "Bot".
	AuthorIsBot bool
	Issue       IssueRef
	Repo        string
}

// IssueRef identifies the issue a comment was made on. PullRequestURL is the
// API URL of the pull request when the issue is one; empty otherwise.
type IssueRef struct {
	Number         int
	PullRequestURL string
}

// IsPullRequest reports whether the issue is a pull request conversation.
func (r IssueRef) IsPullRequest() bool { return r.PullRequestURL != "" }

// PushEvent is a push of one git ref.
type PushEvent struct {
	Ref     string
	After   string
	Deleted bool
	Repo    string
}

func (*IssueCommentEvent) Kind() Kind { return KindIssueComment }
func (e *IssueCommentEvent) Repository() string { return e.Repo }
func (*IssueCommentEvent) isEvent() {}

func (*PushEvent) Kind() Kind { return KindPush }
func (e *PushEvent) Repository() string { return e.Repo }
func (*PushEvent) isEvent() {}
