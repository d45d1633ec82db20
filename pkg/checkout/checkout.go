// Package checkout retrieves named revisions of the package graph
// from a local git repository, materializing them as detached
// worktrees under the cache directory.
package checkout

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkgreview/pkgreview/pkg/logger"
)

// ErrUnknownRevision indicates a revision reference that does not
// exist in the repository. Whole-run fatal.
var ErrUnknownRevision = errors.New("unknown revision")

// GitSource implements interfaces.RevisionSource on top of the git
// CLI.
type GitSource struct {
	// RepoDir is the repository the revisions live in.
	RepoDir string
	// WorkDir is where worktrees are created.
	WorkDir string

	logger    logger.Logger
	mu        sync.Mutex
	worktrees []string
}

// NewGitSource creates a revision source for the repository at
// repoDir, placing checkouts under workDir.
func NewGitSource(repoDir, workDir string, log logger.Logger) *GitSource {
	return &GitSource{RepoDir: repoDir, WorkDir: workDir, logger: log}
}

// Verify resolves ref to a full commit hash, failing with
// ErrUnknownRevision when it does not exist.
func (g *GitSource) Verify(ctx context.Context, ref string) (string, error) {
	out, err := g.git(ctx, "rev-parse", "--verify", ref+"^{commit}")
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrUnknownRevision, ref)
	}
	return strings.TrimSpace(out), nil
}

// Fetch retrieves refspec from remote into the repository.
func (g *GitSource) Fetch(ctx context.Context, remote string, refspec string) error {
	if _, err := g.git(ctx, "fetch", "--force", remote, refspec); err != nil {
		return fmt.Errorf("failed to fetch %s from %s: %w", refspec, remote, err)
	}
	return nil
}

// Checkout materializes rev as a detached worktree and returns its
// path. Worktrees are tracked for Cleanup.
func (g *GitSource) Checkout(ctx context.Context, rev string) (string, error) {
	hash, err := g.Verify(ctx, rev)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(g.WorkDir, "checkout-"+hash[:12])
	if _, err := os.Stat(dir); err == nil {
		// Worktree already materialized for this commit.
		return dir, nil
	}

	if g.logger != nil {
		g.logger.Info("Checking out revision",
			logger.WithField("rev", hash[:12]),
			logger.WithField("dir", dir))
	}

	if _, err := g.git(ctx, "worktree", "add", "--detach", dir, hash); err != nil {
		return "", fmt.Errorf("failed to check out %s: %w", rev, err)
	}

	g.mu.Lock()
	g.worktrees = append(g.worktrees, dir)
	g.mu.Unlock()
	return dir, nil
}

// MergeBase returns the common ancestor of a and b.
func (g *GitSource) MergeBase(ctx context.Context, a, b string) (string, error) {
	out, err := g.git(ctx, "merge-base", a, b)
	if err != nil {
		return "", fmt.Errorf("no merge base between %s and %s: %w", a, b, err)
	}
	return strings.TrimSpace(out), nil
}

// Cleanup removes every worktree this source created.
func (g *GitSource) Cleanup() error {
	g.mu.Lock()
	worktrees := g.worktrees
	g.worktrees = nil
	g.mu.Unlock()

	var firstErr error
	for _, dir := range worktrees {
		if _, err := g.git(context.Background(), "worktree", "remove", "--force", dir); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			os.RemoveAll(dir)
		}
	}
	return firstErr
}

func (g *GitSource) git(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.RepoDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %v: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
