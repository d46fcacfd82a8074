// Package formatter drives the clang-format binary over a set of files.
package formatter

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"
)

// ToolError is a non-zero exit (or spawn failure) of the formatter on one file.
type ToolError struct {
	Path   string
	File   string
	Output string
	Err    error
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("%s failed on %s: %v", e.Path, e.File, e.Err)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + firstLine(out)
	}
	return msg
}

func (e *ToolError) Unwrap() error { return e.Err }

// FileFormatter rewrites one file in place.
type FileFormatter interface {
	FormatFile(ctx context.Context, dir, file string) error
}

// ClangFormat invokes `<Path> -i <file>` relative to the checkout directory.
type ClangFormat struct {
	Path   string
	Runner CommandRunner
}

// NewClangFormat returns a formatter backed by the binary at path.
func NewClangFormat(path string) *ClangFormat {
	return &ClangFormat{Path: path, Runner: ExecRunner{}}
}

// FormatFile formats file (relative to dir) in place.
func (c *ClangFormat) FormatFile(ctx context.Context, dir, file string) error {
	output, err := c.Runner.RunInDir(ctx, dir, c.Path, "-i", file)
	if err != nil {
		return &ToolError{Path: c.Path, File: file, Output: string(output), Err: err}
	}
	return nil
}

// DefaultParallelism is the number of formatter processes run at once.
func DefaultParallelism() int {
	return runtime.GOMAXPROCS(0)
}

// FormatAll formats files concurrently with at most parallelism invocations in
// flight. The first failure stops new invocations from starting and is
// returned once every started invocation has finished; FormatAll never
// returns while a formatter process is still running.
func FormatAll(ctx context.Context, f FileFormatter, dir string, files []string, parallelism int, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if parallelism <= 0 {
		parallelism = DefaultParallelism()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)

	for _, file := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			// a sibling may have failed while this task waited for a slot
			if gctx.Err() != nil {
				return nil
			}
			logger.Debug("formatting file", "file", file)
			return f.FormatFile(ctx, dir, file)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	// cancellation of the parent context with no task error
	return ctx.Err()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
