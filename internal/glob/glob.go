// Package glob decides which repository paths a formatting run touches.
//
// Patterns use shell-glob syntax: `*` matches within one path segment, `**`
// matches any number of segments, `?` and character classes match a single
// character. Paths are slash-separated and relative to the repository root.
package glob

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultIncludes covers the common C and C++ source and header extensions.
var DefaultIncludes = []string{
	"**/*.c", "**/*.h", "**/*.C", "**/*.H",
	"**/*.cpp", "**/*.hpp", "**/*.cxx", "**/*.hxx",
	"**/*.c++", "**/*.h++", "**/*.cc", "**/*.hh",
}

// PatternError reports a pattern that failed to compile.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("invalid glob pattern %q: %v", e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() error { return e.Err }

// RuleSet is a compiled include/exclude pair. A path is selected when it
// matches at least one include and no exclude.
type RuleSet struct {
	includes []string
	excludes []string
}

// Compile validates every pattern and returns the rule set. Empty entries
// (as produced by splitting "a,,b") are skipped.
func Compile(includes, excludes []string) (*RuleSet, error) {
	in, err := compileList(includes)
	if err != nil {
		return nil, err
	}
	ex, err := compileList(excludes)
	if err != nil {
		return nil, err
	}
	return &RuleSet{includes: in, excludes: ex}, nil
}

// MustCompile is Compile for static pattern lists.
func MustCompile(includes, excludes []string) *RuleSet {
	rs, err := Compile(includes, excludes)
	if err != nil {
		panic(err)
	}
	return rs
}

func compileList(patterns []string) ([]string, error) {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !doublestar.ValidatePattern(p) {
			return nil, &PatternError{Pattern: p, Err: doublestar.ErrBadPattern}
		}
		out = append(out, p)
	}
	return out, nil
}

// IsSelected reports whether path is part of the file set. Excludes always
// win over includes.
func (r *RuleSet) IsSelected(path string) bool {
	if r == nil {
		return false
	}
	path = strings.TrimPrefix(path, "./")
	if matchAny(r.excludes, path) {
		return false
	}
	return matchAny(r.includes, path)
}

// patterns were validated in Compile, so Match cannot fail here
func matchAny(patterns []string, path string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, path); ok {
			return true
		}
	}
	return false
}
