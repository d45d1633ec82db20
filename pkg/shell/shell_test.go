package shell_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkgreview/pkgreview/pkg/shell"
	"github.com/pkgreview/pkgreview/pkg/types"
)

func TestBuild_EmptyArtifacts(t *testing.T) {
	dir := t.TempDir()

	env, err := shell.Build(dir, nil)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	if env.ExprPath != "" {
		t.Errorf("expected no expression for an empty run, got %s", env.ExprPath)
	}
	if len(env.Paths()) != 0 {
		t.Errorf("expected no paths, got %v", env.Paths())
	}
}

func TestBuild_OrdersArtifactsByName(t *testing.T) {
	dir := t.TempDir()
	artifacts := []types.Artifact{
		{Name: "zlib", Path: "/store/zlib"},
		{Name: "acl", Path: "/store/acl"},
		{Name: "mpv", Path: "/store/mpv"},
	}

	env, err := shell.Build(dir, artifacts)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	want := []string{"/store/acl", "/store/mpv", "/store/zlib"}
	got := env.Paths()
	if len(got) != len(want) {
		t.Fatalf("expected %d paths, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("path %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestBuild_WritesExpression(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "run")

	env, err := shell.Build(dir, []types.Artifact{
		{Name: "hello", Path: "/store/hello"},
		{Name: "python3Packages.requests", Path: "/store/requests"},
	})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	if env.ExprPath != filepath.Join(dir, "shell.nix") {
		t.Fatalf("unexpected expression path: %s", env.ExprPath)
	}
	data, err := os.ReadFile(env.ExprPath)
	if err != nil {
		t.Fatalf("failed to read expression: %v", err)
	}
	expr := string(data)

	for _, want := range []string{
		"hello\n",
		`python3Packages."requests"`,
		"buildEnv",
		"builtins.length paths > 50",
	} {
		if !strings.Contains(expr, want) {
			t.Errorf("expression missing %q:\n%s", want, expr)
		}
	}
}
