package formatter

import (
	"context"
	"os/exec"
	"sync"
)

// CommandRunner executes external commands. It exists so tests can replace
// the formatter binary.
type CommandRunner interface {
	// RunInDir executes a command in dir and returns its combined output.
	RunInDir(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

// ExecRunner is the production implementation using os/exec.
type ExecRunner struct{}

// RunInDir executes a command in a specific directory
func (ExecRunner) RunInDir(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// MockCommandRunner records invocations and delegates to RunInDirFunc. It is
// safe for concurrent use.
type MockCommandRunner struct {
	RunInDirFunc func(ctx context.Context, dir, name string, args ...string) ([]byte, error)

	mu    sync.Mutex
	calls []MockCall
}

// MockCall represents a single command invocation
type MockCall struct {
	Name string
	Args []string
	Dir  string
}

// RunInDir records the call and runs the mock function
func (m *MockCommandRunner) RunInDir(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Name: name, Args: args, Dir: dir})
	m.mu.Unlock()

	if m.RunInDirFunc != nil {
		return m.RunInDirFunc(ctx, dir, name, args...)
	}
	return nil, nil
}

// Calls returns a copy of the recorded invocations.
func (m *MockCommandRunner) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}
