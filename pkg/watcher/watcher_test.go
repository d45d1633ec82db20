package watcher_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkgreview/pkgreview/pkg/watcher"
)

func TestWatcher_SettledCallback(t *testing.T) {
	root := t.TempDir()
	w, err := watcher.New(root, 50*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	defer w.Close()

	settled := make(chan struct{}, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx, func() {
			settled <- struct{}{}
		})
	}()

	// A burst of writes must collapse into a single callback.
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(filepath.Join(root, "default.nix"), []byte("{}"), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case <-settled:
	case <-time.After(3 * time.Second):
		t.Fatal("no callback after changes settled")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not stop on cancellation")
	}
}

func TestWatcher_IgnoresGitChurn(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}

	w, err := watcher.New(root, 50*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	defer w.Close()

	settled := make(chan struct{}, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx, func() { settled <- struct{}{} })

	if err := os.WriteFile(filepath.Join(root, ".git", "index.lock"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-settled:
		t.Fatal("git-internal churn must not trigger a re-run")
	case <-time.After(300 * time.Millisecond):
	}
}
