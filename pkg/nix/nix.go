// Package nix provides the client for the external package evaluator
// and builder. The evaluator is treated as a black-box CLI process;
// this package only invokes it and interprets its output.
package nix

import (
	_ "embed"

	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/pkgreview/pkgreview/pkg/interfaces"
	"github.com/pkgreview/pkgreview/pkg/logger"
	"github.com/pkgreview/pkgreview/pkg/types"
)

// ErrEvaluation indicates the package graph could not be evaluated at
// a revision. It is whole-run fatal: no meaningful diff exists without
// both snapshots.
var ErrEvaluation = errors.New("package graph evaluation failed")

// Client invokes the external evaluator/builder CLI. It implements
// interfaces.Evaluator and interfaces.BuilderClient.
type Client struct {
	// Command is the evaluator binary, "nix" by default.
	Command string
	// ExtraArgs are appended to every build invocation.
	ExtraArgs []string
	// TailBytes bounds captured diagnostics per invocation.
	TailBytes int
	// KillGrace is how long a cancelled process gets after SIGTERM
	// before it is killed outright.
	KillGrace time.Duration

	logger logger.Logger
}

// NewClient creates an evaluator/builder client.
func NewClient(log logger.Logger, tailBytes int, extraArgs []string) *Client {
	return &Client{
		Command:   "nix",
		ExtraArgs: extraArgs,
		TailBytes: tailBytes,
		KillGrace: 5 * time.Second,
		logger:    log,
	}
}

// enumeratedTarget is one entry of the evaluator's JSON listing.
type enumeratedTarget struct {
	Exists   bool    `json:"exists"`
	Broken   bool    `json:"broken"`
	Path     *string `json:"path"`
	DrvPath  *string `json:"drvPath"`
	Position *string `json:"position"`
}

// Enumerate produces the full target mapping of the graph at path.
// The listing is deterministic for a fixed revision; any evaluator
// failure aborts with ErrEvaluation.
func (c *Client) Enumerate(ctx context.Context, path string, revision string) (*types.GraphSnapshot, error) {
	exprFile, err := writeEnumerateExpr()
	if err != nil {
		return nil, fmt.Errorf("%w at %s: %v", ErrEvaluation, revision, err)
	}
	defer os.Remove(exprFile)

	args := []string{
		"--experimental-features", "nix-command",
		"eval", "--json", "--impure",
		"--expr", fmt.Sprintf("(import %s { nixpkgs = %s; })", exprFile, path),
	}

	stderr := NewTailBuffer(c.TailBytes)
	cmd := c.command(ctx, args...)
	cmd.Stderr = stderr

	if c.logger != nil {
		c.logger.Debug("Enumerating package graph",
			logger.WithField("revision", revision),
			logger.WithField("path", path))
	}

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%w at %s: %v: %s", ErrEvaluation, revision, err, stderr.String())
	}

	var raw map[string]enumeratedTarget
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, fmt.Errorf("%w at %s: malformed listing: %v", ErrEvaluation, revision, err)
	}

	snapshot := &types.GraphSnapshot{
		Revision: revision,
		Targets:  make(map[string]types.BuildTarget, len(raw)),
	}
	for name, entry := range raw {
		target := types.BuildTarget{
			Name:   name,
			Exists: entry.Exists,
			Broken: entry.Broken,
		}
		switch {
		case entry.DrvPath != nil:
			target.Identity = *entry.DrvPath
		case entry.Path != nil:
			target.Identity = *entry.Path
		}
		if entry.Position != nil {
			target.Position = *entry.Position
		}
		snapshot.Targets[name] = target
	}

	collapseAliases(snapshot)
	return snapshot, nil
}

// Build realizes a single target. It first instantiates the target's
// derivation; an instantiation failure is an evaluation failure, not a
// build failure. Cancellation terminates the underlying process.
func (c *Client) Build(ctx context.Context, name string, path string) (*interfaces.BuildResult, error) {
	drvPath, evalDiag, err := c.instantiate(ctx, name, path)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return &interfaces.BuildResult{Diagnostics: evalDiag, EvalFailure: true},
			fmt.Errorf("target %s does not instantiate: %w", name, err)
	}

	stderr := NewTailBuffer(c.TailBytes)
	args := append([]string{
		"--experimental-features", "nix-command",
		"build", "--no-link", "--print-out-paths", drvPath + "^*",
	}, c.ExtraArgs...)
	cmd := c.command(ctx, args...)
	cmd.Stderr = stderr

	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return &interfaces.BuildResult{Diagnostics: stderr.String()},
			fmt.Errorf("build of %s failed: %w", name, err)
	}

	artifact := firstLine(string(out))
	if artifact == "" {
		return &interfaces.BuildResult{Diagnostics: stderr.String()},
			fmt.Errorf("build of %s produced no artifact path", name)
	}
	return &interfaces.BuildResult{ArtifactPath: artifact, Diagnostics: stderr.String()}, nil
}

func (c *Client) instantiate(ctx context.Context, name string, path string) (string, string, error) {
	stderr := NewTailBuffer(c.TailBytes)
	cmd := c.commandNamed(ctx, "nix-instantiate", path, "-A", name)
	cmd.Stderr = stderr

	out, err := cmd.Output()
	if err != nil {
		return "", stderr.String(), err
	}
	drv := firstLine(string(out))
	if drv == "" {
		return "", stderr.String(), fmt.Errorf("empty derivation path for %s", name)
	}
	return drv, stderr.String(), nil
}

func (c *Client) command(ctx context.Context, args ...string) *exec.Cmd {
	return c.commandNamed(ctx, c.Command, args...)
}

// commandNamed builds an exec.Cmd that terminates gracefully on
// cancellation: SIGTERM first, a kill after KillGrace.
func (c *Client) commandNamed(ctx context.Context, bin string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = c.KillGrace
	return cmd
}

// collapseAliases folds names sharing an identity into a single target
// carrying the shorter name, matching how package sets expose the same
// derivation under several attribute paths.
func collapseAliases(s *types.GraphSnapshot) {
	byIdentity := make(map[string]string, len(s.Targets))
	names := make([]string, 0, len(s.Targets))
	for name := range s.Targets {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		target := s.Targets[name]
		if target.Identity == "" {
			continue
		}
		canonical, ok := byIdentity[target.Identity]
		if !ok {
			byIdentity[target.Identity] = name
			continue
		}
		if len(name) < len(canonical) {
			// Shorter name wins the canonical slot.
			absorbed := s.Targets[canonical]
			target.Aliases = append(target.Aliases, absorbed.Aliases...)
			target.Aliases = append(target.Aliases, canonical)
			sort.Strings(target.Aliases)
			s.Targets[name] = target
			delete(s.Targets, canonical)
			byIdentity[target.Identity] = name
		} else {
			keeper := s.Targets[canonical]
			keeper.Aliases = append(keeper.Aliases, name)
			sort.Strings(keeper.Aliases)
			s.Targets[canonical] = keeper
			delete(s.Targets, name)
		}
	}
}

//go:embed enumerate.nix
var enumerateExpr string

// writeEnumerateExpr materializes the embedded enumeration expression
// so the evaluator can import it by path.
func writeEnumerateExpr() (string, error) {
	f, err := os.CreateTemp("", "pkgreview-enumerate-*.nix")
	if err != nil {
		return "", err
	}
	if _, err := f.WriteString(enumerateExpr); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
