package workflow

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cexll/cpp-auto-formatter/internal/git"
	"github.com/cexll/cpp-auto-formatter/internal/glob"
	"github.com/cexll/cpp-auto-formatter/internal/resolver"
)

// squeezeFormatter collapses runs of whitespace, a stand-in for clang-format
// that is deterministic and idempotent.
type squeezeFormatter struct{}

func (squeezeFormatter) FormatFile(_ context.Context, dir, file string) error {
	path := filepath.Join(dir, filepath.FromSlash(file))
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	formatted := strings.Join(strings.Fields(string(content)), " ") + "\n"
	if formatted == string(content) {
		return nil
	}
	return os.WriteFile(path, []byte(formatted), 0o644)
}

func initRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		_, err := wt.Add(name)
		require.NoError(t, err)
	}
	_, err = wt.Commit("initial", &gogit.CommitOptions{
		Author: &object.Signature{Name: "tester", Email: "tester@example.com", When: time.Unix(1700000000, 0)},
	})
	require.NoError(t, err)
	return dir
}

func newLocalOrchestrator(t *testing.T, dir string) (*Orchestrator, *[]resolver.FormatTarget) {
	t.Helper()
	var checkouts []resolver.FormatTarget
	orch := New(Options{
		Rules:     glob.MustCompile(glob.DefaultIncludes, nil),
		Resolver:  resolver.New(t.TempDir()),
		Formatter: squeezeFormatter{},
		Connect: func(context.Context, string) (*Remote, error) {
			return &Remote{
				Checkout: func(_ context.Context, target resolver.FormatTarget) (WorkTree, error) {
					checkouts = append(checkouts, target)
					repo, err := git.Open(dir)
					if err != nil {
						return nil, err
					}
					return repo, nil
				},
			}, nil
		},
		BotName:     "cpp-auto-formatter",
		Parallelism: 4,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return orch, &checkouts
}

func TestCheck_EndToEndUnformattedBranch(t *testing.T) {
	dir := initRepo(t, map[string]string{
		"src/clean.cpp": "int clean;\n",
		"src/messy.cpp": "int    messy ;\n",
		"README.md":     "#   not   selected\n",
	})
	orch, checkouts := newLocalOrchestrator(t, dir)

	result, err := orch.Check(context.Background(), []byte(pushMainEvent), "push")
	require.NoError(t, err)

	assert.Equal(t, 1, result.ExitCode)
	assert.True(t, result.FilesChanged)
	assert.Equal(t, []string{"src/messy.cpp"}, result.Changed)
	require.Len(t, *checkouts, 1)
	assert.Equal(t, "org/repo", (*checkouts)[0].Repository)
	assert.Equal(t, "main", (*checkouts)[0].Branch)

	readme, err := os.ReadFile(filepath.Join(dir, "README.md"))
	require.NoError(t, err)
	assert.Equal(t, "#   not   selected\n", string(readme))
}

func TestCheck_EndToEndIdempotent(t *testing.T) {
	dir := initRepo(t, map[string]string{
		"src/a.cpp":   "int a;\n",
		"include/a.h": "int a();\n",
	})
	orch, _ := newLocalOrchestrator(t, dir)

	for run := 0; run < 2; run++ {
		result, err := orch.Check(context.Background(), []byte(pushMainEvent), "push")
		require.NoError(t, err)
		assert.Equal(t, 0, result.ExitCode, "run %d", run)
		assert.False(t, result.FilesChanged, "run %d", run)
		assert.Empty(t, result.Changed, "run %d", run)
	}
}

func TestCheck_PassesAfterFormattingCommit(t *testing.T) {
	dir := initRepo(t, map[string]string{"src/messy.cpp": "int    messy ;\n"})
	repo, err := git.Open(dir)
	require.NoError(t, err)

	// what the command flow leaves behind, minus the push
	files, err := repo.TrackedFiles()
	require.NoError(t, err)
	require.NoError(t, squeezeFormatter{}.FormatFile(context.Background(), dir, files[0]))

	changed, err := repo.ChangedFiles()
	require.NoError(t, err)
	require.Equal(t, []string{"src/messy.cpp"}, changed)

	_, err = repo.CommitAll(DefaultCommitMessage, git.BotIdentity("cpp-auto-formatter", ""))
	require.NoError(t, err)

	orch, _ := newLocalOrchestrator(t, dir)
	result, err := orch.Check(context.Background(), []byte(pushMainEvent), "push")
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
}
