package webhook

import (
	"encoding/json"
	"errors"

	"github.com/google/go-github/v66/github"
)

var errMissing = errors.New("required field is missing")

// Decode parses raw as the event named by kind. It has no side effects.
func Decode(raw []byte, kind string) (Event, error) {
	switch Kind(kind) {
	case KindIssueComment:
		return decodeIssueComment(raw)
	case KindPush:
		return decodePush(raw)
	default:
		return nil, &UnsupportedEventKindError{Kind: kind}
	}
}

func decodeIssueComment(raw []byte) (*IssueCommentEvent, error) {
	var payload github.IssueCommentEvent
	if err := unmarshal(raw, &payload); err != nil {
		return nil, err
	}

	switch {
	case payload.Action == nil:
		return nil, missing("action")
	case payload.Comment == nil:
		return nil, missing("comment")
	case payload.Comment.Body == nil:
		return nil, missing("comment.body")
	case payload.Issue == nil:
		return nil, missing("issue")
	case payload.Issue.Number == nil:
		return nil, missing("issue.number")
	case payload.Repo == nil:
		return nil, missing("repository")
	case payload.Repo.FullName == nil:
		return nil, missing("repository.full_name")
	}

	event := &IssueCommentEvent{
		Action:      payload.GetAction(),
		CommentBody: payload.Comment.GetBody(),
		Issue:       IssueRef{Number: payload.Issue.GetNumber()},
		Repo:        payload.Repo.GetFullName(),
	}
	if user := payload.Comment.User; user != nil {
		event.CommentAuthor = user.GetLogin()
		event.AuthorIsBot = user.GetType() == "Bot"
	}
	if links := payload.Issue.PullRequestLinks; links != nil {
		if links.URL == nil {
			return nil, missing("issue.pull_request.url")
		}
		event.Issue.PullRequestURL = links.GetURL()
	}
	return event, nil
}

func decodePush(raw []byte) (*PushEvent, error) {
	var payload github.PushEvent
	if err := unmarshal(raw, &payload); err != nil {
		return nil, err
	}

	switch {
	case payload.Ref == nil:
		return nil, missing("ref")
	case payload.Repo == nil:
		return nil, missing("repository")
	case payload.Repo.FullName == nil:
		return nil, missing("repository.full_name")
	}

	return &PushEvent{
		Ref:     payload.GetRef(),
		After:   payload.GetAfter(),
		Deleted: payload.GetDeleted(),
		Repo:    payload.Repo.GetFullName(),
	}, nil
}

func unmarshal(raw []byte, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return &MalformedPayloadError{FieldPath: typeErr.Field, Err: err}
		}
		return &MalformedPayloadError{Err: err}
	}
	return nil
}

func missing(path string) error {
	return &MalformedPayloadError{FieldPath: path, Err: errMissing}
}
