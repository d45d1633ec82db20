package checkout_test

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/pkgreview/pkgreview/pkg/checkout"
)

// initRepo creates a git repository with two commits and returns its
// path plus both commit hashes.
func initRepo(t *testing.T) (string, string, string) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	dir := t.TempDir()
	run := func(args ...string) string {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com")
		out, err := cmd.CombinedOutput()
		if err != nil {
			t.Fatalf("git %v failed: %v: %s", args, err, out)
		}
		return string(out)
	}

	run("init")
	if err := os.WriteFile(filepath.Join(dir, "default.nix"), []byte("{ a = 1; }\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	run("add", ".")
	run("commit", "-m", "first")
	first := run("rev-parse", "HEAD")

	if err := os.WriteFile(filepath.Join(dir, "default.nix"), []byte("{ a = 2; }\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	run("commit", "-am", "second")
	second := run("rev-parse", "HEAD")

	trim := func(s string) string {
		for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
			s = s[:len(s)-1]
		}
		return s
	}
	return dir, trim(first), trim(second)
}

func TestGitSource_Verify(t *testing.T) {
	repo, _, head := initRepo(t)
	src := checkout.NewGitSource(repo, t.TempDir(), nil)

	hash, err := src.Verify(context.Background(), "HEAD")
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if hash != head {
		t.Errorf("expected %s, got %s", head, hash)
	}
}

func TestGitSource_VerifyUnknownRevision(t *testing.T) {
	repo, _, _ := initRepo(t)
	src := checkout.NewGitSource(repo, t.TempDir(), nil)

	_, err := src.Verify(context.Background(), "does-not-exist")
	if !errors.Is(err, checkout.ErrUnknownRevision) {
		t.Fatalf("expected ErrUnknownRevision, got %v", err)
	}
}

func TestGitSource_CheckoutAndCleanup(t *testing.T) {
	repo, first, head := initRepo(t)
	src := checkout.NewGitSource(repo, t.TempDir(), nil)

	dir, err := src.Checkout(context.Background(), first)
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "default.nix"))
	if err != nil {
		t.Fatalf("checkout content missing: %v", err)
	}
	if string(data) != "{ a = 1; }\n" {
		t.Errorf("checkout holds the wrong revision: %q", data)
	}

	// A second checkout of the same revision reuses the worktree.
	again, err := src.Checkout(context.Background(), first)
	if err != nil {
		t.Fatalf("second checkout failed: %v", err)
	}
	if again != dir {
		t.Errorf("expected worktree reuse, got %s and %s", dir, again)
	}

	headDir, err := src.Checkout(context.Background(), head)
	if err != nil {
		t.Fatalf("head checkout failed: %v", err)
	}
	if headDir == dir {
		t.Error("distinct revisions must get distinct worktrees")
	}

	if err := src.Cleanup(); err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("worktree %s not removed", dir)
	}
}

func TestGitSource_FetchMakesRemoteRevisionVerifiable(t *testing.T) {
	origin, _, head := initRepo(t)

	local := t.TempDir()
	cmd := exec.Command("git", "init")
	cmd.Dir = local
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git init failed: %v: %s", err, out)
	}

	src := checkout.NewGitSource(local, t.TempDir(), nil)
	ctx := context.Background()

	if _, err := src.Verify(ctx, head); !errors.Is(err, checkout.ErrUnknownRevision) {
		t.Fatalf("remote-only revision must be unknown before the fetch, got %v", err)
	}

	if err := src.Fetch(ctx, origin, "HEAD"); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}

	hash, err := src.Verify(ctx, head)
	if err != nil {
		t.Fatalf("fetched revision must verify: %v", err)
	}
	if hash != head {
		t.Errorf("expected %s, got %s", head, hash)
	}
}

func TestGitSource_FetchUnknownRemote(t *testing.T) {
	repo, _, _ := initRepo(t)
	src := checkout.NewGitSource(repo, t.TempDir(), nil)

	if err := src.Fetch(context.Background(), filepath.Join(t.TempDir(), "nowhere"), "HEAD"); err == nil {
		t.Fatal("expected an error for an unreachable remote")
	}
}

func TestGitSource_MergeBase(t *testing.T) {
	repo, first, head := initRepo(t)
	src := checkout.NewGitSource(repo, t.TempDir(), nil)

	mb, err := src.MergeBase(context.Background(), first, head)
	if err != nil {
		t.Fatalf("merge-base failed: %v", err)
	}
	if mb != first {
		t.Errorf("expected %s, got %s", first, mb)
	}
}
