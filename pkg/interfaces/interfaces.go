// Package interfaces provides abstractions for dependency injection and testability
package interfaces

import (
	"context"
	"time"

	"github.com/pkgreview/pkgreview/pkg/types"
)

// Evaluator enumerates the package graph at a checked-out revision.
// Enumeration must be deterministic for a fixed revision.
type Evaluator interface {
	Enumerate(ctx context.Context, path string, revision string) (*types.GraphSnapshot, error)
}

// BuildResult is the outcome of one external builder invocation.
type BuildResult struct {
	// ArtifactPath is set on success only.
	ArtifactPath string
	// Diagnostics holds a bounded tail of the builder's error stream.
	Diagnostics string
	// EvalFailure marks failures that occurred before any build step
	// started (the builder could not resolve the target).
	EvalFailure bool
}

// BuilderClient invokes the external builder for a single target.
// The implementation must honor context cancellation by terminating
// the underlying process.
type BuilderClient interface {
	Build(ctx context.Context, name string, path string) (*BuildResult, error)
}

// RevisionSource retrieves named revisions of the package graph.
type RevisionSource interface {
	// Fetch retrieves refspec from remote into the local repository so
	// revisions that only exist remotely become verifiable.
	Fetch(ctx context.Context, remote string, refspec string) error
	// Verify resolves a revision reference to a full commit hash.
	Verify(ctx context.Context, ref string) (string, error)
	// Checkout materializes the revision and returns a local path to
	// the graph sources.
	Checkout(ctx context.Context, rev string) (string, error)
	// MergeBase returns the common ancestor of two revisions.
	MergeBase(ctx context.Context, a, b string) (string, error)
	// Cleanup removes any checkouts created by this source.
	Cleanup() error
}

// PullRequest is review-request metadata from the hosting service.
type PullRequest struct {
	Number  int
	Title   string
	Author  string
	BaseRef string
	HeadSHA string
}

// ReviewHost supplies review-request metadata (base revision, proposed
// revision, description). Consumed only for revision selection and
// report headers.
type ReviewHost interface {
	PullRequest(ctx context.Context, number int) (*PullRequest, error)
}

// CIStatusSource reports which of the given targets were already
// failing upstream before the change under review. Best effort: a
// missing answer means unknown, never an error for the run.
type CIStatusSource interface {
	KnownFailures(ctx context.Context, names []string, system string, channel string) map[string]bool
}

// ReviewNotifier surfaces run completion to the user.
type ReviewNotifier interface {
	NotifyRunStart(runID string, targets int)
	NotifyRunFinished(report *types.Report, duration time.Duration)
}

// RunStore persists per-run state so a finished run can be re-rendered
// without rebuilding.
type RunStore interface {
	SaveRun(meta types.ReviewMeta, jobs map[string]*types.BuildJob, removed []string) error
	LoadRun(runID string) (*types.ReviewMeta, map[string]*types.BuildJob, []string, error)
	LatestRunID() (string, error)
	RunDir(runID string) string
}

// ProcessManager handles process lifecycle
type ProcessManager interface {
	RegisterShutdownHandler(handler func())
	Start(ctx context.Context)
	Stop()
	IsRunning() bool
}

// ReviewDependencies contains all injectable dependencies
type ReviewDependencies struct {
	Evaluator      Evaluator
	Builder        BuilderClient
	Revisions      RevisionSource
	Host           ReviewHost
	CIStatus       CIStatusSource
	Notifier       ReviewNotifier
	Store          RunStore
	ProcessManager ProcessManager
}
