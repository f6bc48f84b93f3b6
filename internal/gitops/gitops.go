// Package gitops records workspace changes in the workspace's git history.
package gitops

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrNothingToCommit is returned when none of the given paths changed.
var ErrNothingToCommit = errors.New("nothing to commit")

// Author identifies who a commit is made for.
type Author struct {
	Name  string
	Email string
}

func (a Author) String() string {
	return fmt.Sprintf("%s <%s>", a.Name, a.Email)
}

// Init initializes a new git repository at dir.
func Init(ctx context.Context, dir string) error {
	if _, err := run(ctx, dir, nil, "init", "--quiet"); err != nil {
		return fmt.Errorf("git init: %w", err)
	}
	return nil
}

// CommitPaths stages paths (relative to dir) and commits them. It returns
// the short hash of the new commit, or ErrNothingToCommit if the paths had
// no changes. Paths that do not exist are skipped.
func CommitPaths(ctx context.Context, dir, message string, author Author, paths ...string) (string, error) {
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(filepath.Join(dir, p)); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return "", ErrNothingToCommit
	}

	if _, err := run(ctx, dir, nil, append([]string{"add", "--"}, existing...)...); err != nil {
		return "", fmt.Errorf("git add: %w", err)
	}

	// diff --cached --quiet exits 1 when something is staged.
	if _, err := run(ctx, dir, nil, append([]string{"diff", "--cached", "--quiet", "--"}, existing...)...); err == nil {
		return "", ErrNothingToCommit
	} else if !isExitCode(err, 1) {
		return "", fmt.Errorf("git diff: %w", err)
	}

	env := []string{
		"GIT_AUTHOR_NAME=" + author.Name,
		"GIT_AUTHOR_EMAIL=" + author.Email,
		"GIT_COMMITTER_NAME=" + author.Name,
		"GIT_COMMITTER_EMAIL=" + author.Email,
	}
	if _, err := run(ctx, dir, env, append([]string{"commit", "--quiet", "-m", message, "--"}, existing...)...); err != nil {
		return "", fmt.Errorf("git commit: %w", err)
	}

	out, err := run(ctx, dir, nil, "rev-parse", "--short", "HEAD")
	if err != nil {
		return "", fmt.Errorf("git rev-parse: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// IsRepo reports whether dir is the root of a git repository.
func IsRepo(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}

type gitError struct {
	err    error
	output string
}

func (e *gitError) Error() string {
	if e.output == "" {
		return e.err.Error()
	}
	return fmt.Sprintf("%s: %s", e.output, e.err)
}

func (e *gitError) Unwrap() error { return e.err }

func run(ctx context.Context, dir string, env []string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return "", &gitError{err: err, output: strings.TrimSpace(out.String())}
	}
	return out.String(), nil
}

func isExitCode(err error, code int) bool {
	var ee *exec.ExitError
	return errors.As(err, &ee) && ee.ExitCode() == code
}
