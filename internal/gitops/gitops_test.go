package gitops

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testAuthor = Author{Name: "Test Author", Email: "test@example.com"}

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
}

func gitOutput(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	require.NoError(t, err)
	return strings.TrimSpace(string(out))
}

func TestInit(t *testing.T) {
	requireGit(t)
	dir := t.TempDir()
	require.NoError(t, Init(context.Background(), dir))

	_, err := os.Stat(filepath.Join(dir, ".git"))
	require.NoError(t, err, ".git directory should exist")
}

func TestIsRepo(t *testing.T) {
	requireGit(t)
	dir := t.TempDir()
	assert.False(t, IsRepo(dir), "empty dir should not be a repo")

	require.NoError(t, Init(context.Background(), dir))
	assert.True(t, IsRepo(dir), "initialized dir should be a repo")
}

func TestCommitPaths(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, Init(ctx, dir))

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "logs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "logs", "audit-log.csv"), []byte("header\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scratch.txt"), []byte("not mine"), 0o644))

	hash, err := CommitPaths(ctx, dir, "import: canara_march.csv", testAuthor, "logs/audit-log.csv", "accounts/accounts.csv")
	require.NoError(t, err)
	assert.NotEmpty(t, hash)

	assert.Equal(t, "import: canara_march.csv", gitOutput(t, dir, "log", "--format=%s", "-1"))
	assert.Equal(t, "Test Author <test@example.com>", gitOutput(t, dir, "log", "--format=%an <%ae>", "-1"))
	assert.Equal(t, "logs/audit-log.csv", gitOutput(t, dir, "show", "--name-only", "--format=", "HEAD"))
	assert.Contains(t, gitOutput(t, dir, "status", "--porcelain"), "?? scratch.txt")
}

func TestCommitPathsNothingChanged(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, Init(ctx, dir))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tally.yaml"), []byte("owner: asha\n"), 0o644))

	_, err := CommitPaths(ctx, dir, "init", testAuthor, "tally.yaml")
	require.NoError(t, err)

	_, err = CommitPaths(ctx, dir, "again", testAuthor, "tally.yaml")
	assert.True(t, errors.Is(err, ErrNothingToCommit))

	_, err = CommitPaths(ctx, dir, "missing", testAuthor, "nope.csv")
	assert.True(t, errors.Is(err, ErrNothingToCommit))
}

func TestCommitPathsNotARepo(t *testing.T) {
	requireGit(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644))

	_, err := CommitPaths(context.Background(), dir, "msg", testAuthor, "a.txt")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNothingToCommit))
}
