// Package shell assembles the review environment: the ordered list of
// built artifacts exposed to an external interactive shell. It never
// builds anything itself.
package shell

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkgreview/pkgreview/pkg/types"
)

// Environment is the material handed to the interactive shell.
type Environment struct {
	// Artifacts are the succeeded targets, ordered by name for a
	// reproducible shell.
	Artifacts []types.Artifact
	// ExprPath is the shell expression written into the run directory,
	// empty when no artifact succeeded.
	ExprPath string
}

// Paths returns the artifact paths in name order.
func (e *Environment) Paths() []string {
	paths := make([]string, len(e.Artifacts))
	for i, a := range e.Artifacts {
		paths[i] = a.Path
	}
	return paths
}

// Build orders the artifacts and writes the shell expression into
// dir. The only side effect is that single file write.
func Build(dir string, artifacts []types.Artifact) (*Environment, error) {
	ordered := append([]types.Artifact(nil), artifacts...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Name < ordered[j].Name })

	env := &Environment{Artifacts: ordered}
	if len(ordered) == 0 {
		return env, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create review shell directory: %w", err)
	}
	exprPath := filepath.Join(dir, "shell.nix")
	if err := writeShellExpression(exprPath, ordered); err != nil {
		return nil, fmt.Errorf("failed to write review shell: %w", err)
	}
	env.ExprPath = exprPath
	return env, nil
}

// writeShellExpression emits a buildEnv wrapper over the reviewed
// targets. Large sets go through a single env derivation to keep the
// shell's input list short.
func writeShellExpression(path string, artifacts []types.Artifact) error {
	var b strings.Builder
	b.WriteString("{ pkgs ? import ./nixpkgs {} }:\nwith pkgs;\nlet\n  paths = [\n")
	for _, a := range artifacts {
		fmt.Fprintf(&b, "    %s\n", escapeAttr(a.Name))
	}
	b.WriteString(`  ];
  env = buildEnv {
    name = "env";
    inherit paths;
    ignoreCollisions = true;
  };
in stdenv.mkDerivation rec {
  name = "review-shell";
  buildInputs = if builtins.length paths > 50 then [ env ] else paths;
  unpackPhase = ":";
  installPhase = "touch $out";
}
`)
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// escapeAttr quotes the last attribute-path component so names like
// "python3Packages.2to3" stay valid expressions.
func escapeAttr(attr string) string {
	i := strings.LastIndexByte(attr, '.')
	if i < 0 {
		return attr
	}
	return fmt.Sprintf("%s.%q", attr[:i], attr[i+1:])
}
