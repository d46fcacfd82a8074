// Package command parses bot commands out of pull request comments.
//
// A command is the first line of a comment, addressed to the bot with a
// leading mention and split into words like a POSIX shell would:
//
//	@cpp-auto-formatter format --squash
package command

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/shlex"
)

// Subcommand is the action a command asks for.
type Subcommand string

const (
	SubcommandFormat Subcommand = "format"
)

// Flags is a set of command options.
type Flags uint8

const (
	// FlagSquash is accepted but currently has no effect on the commit.
	FlagSquash Flags = 1 << iota
)

// Has reports whether every flag in f is set.
func (fs Flags) Has(f Flags) bool { return fs&f == f }

var flagNames = map[string]Flags{
	"--squash": FlagSquash,
}

// BotCommand is a parsed, valid command.
type BotCommand struct {
	Mention    string
	Subcommand Subcommand
	Flags      Flags
}

// ErrNotAddressedToBot means the comment is not a command for this bot. It is
// the expected outcome for most comments and callers should ignore the event.
var ErrNotAddressedToBot = errors.New("comment is not addressed to the bot")

// SyntaxError is returned when the command line cannot be split into words,
// for example because of an unterminated quote.
type SyntaxError struct {
	Line string
	Err  error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid command syntax %q: %v", e.Line, e.Err)
}

func (e *SyntaxError) Unwrap() error { return e.Err }

// UnknownCommandError is returned when the words after the mention do not
// form a known command. The human should get a usage message.
type UnknownCommandError struct {
	Tokens []string
}

func (e *UnknownCommandError) Error() string {
	if len(e.Tokens) == 0 {
		return "missing command"
	}
	return fmt.Sprintf("unknown command %q", strings.Join(e.Tokens, " "))
}

// Parse extracts the command addressed to botName from a comment body.
func Parse(body, botName string) (*BotCommand, error) {
	line := firstLine(body)
	mention := "@" + botName

	rest, ok := strings.CutPrefix(line, mention)
	if !ok || botName == "" {
		return nil, ErrNotAddressedToBot
	}
	// "@cpp-auto-formatter-beta" is someone else
	if rest != "" && !unicode.IsSpace(rune(rest[0])) {
		return nil, ErrNotAddressedToBot
	}

	tokens, err := shlex.Split(rest)
	if err != nil {
		return nil, &SyntaxError{Line: line, Err: err}
	}

	cmd, err := match(tokens)
	if err != nil {
		return nil, err
	}
	cmd.Mention = botName
	return cmd, nil
}

// match applies the grammar `format [--squash]`.
func match(tokens []string) (*BotCommand, error) {
	if len(tokens) == 0 || Subcommand(tokens[0]) != SubcommandFormat {
		return nil, &UnknownCommandError{Tokens: tokens}
	}

	cmd := &BotCommand{Subcommand: SubcommandFormat}
	for _, tok := range tokens[1:] {
		flag, ok := flagNames[tok]
		if !ok {
			return nil, &UnknownCommandError{Tokens: tokens}
		}
		cmd.Flags |= flag
	}
	return cmd, nil
}

func firstLine(body string) string {
	body = strings.TrimLeftFunc(body, unicode.IsSpace)
	if i := strings.IndexAny(body, "\r\n"); i >= 0 {
		body = body[:i]
	}
	return strings.TrimRightFunc(body, unicode.IsSpace)
}

// Usage is the help text posted back when a command is not understood.
func Usage(botName string) string {
	return fmt.Sprintf("Usage: `@%s format [--squash]`\n\n"+
		"- `format`: run clang-format on the pull request branch and push the result\n"+
		"- `--squash`: accepted for compatibility; currently has no effect", botName)
}
