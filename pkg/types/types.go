// Package types provides core types and configurations for pkgreview
package types

import (
	"fmt"
	"time"
)

// JobState represents the lifecycle state of a build job.
// Transitions are strictly monotonic: Pending -> Running -> terminal.
type JobState string

const (
	JobStatePending   JobState = "pending"
	JobStateRunning   JobState = "running"
	JobStateSucceeded JobState = "succeeded"
	JobStateFailed    JobState = "failed"
	JobStateTimedOut  JobState = "timed-out"
	JobStateSkipped   JobState = "skipped"
)

// IsTerminal reports whether the state is a final one.
func (s JobState) IsTerminal() bool {
	switch s {
	case JobStateSucceeded, JobStateFailed, JobStateTimedOut, JobStateSkipped:
		return true
	}
	return false
}

// OutcomeKind is the classified result of attempting to build a target.
type OutcomeKind string

const (
	OutcomeSuccess      OutcomeKind = "success"
	OutcomeBuildFailure OutcomeKind = "build-failure"
	OutcomeEvalFailure  OutcomeKind = "eval-failure"
	OutcomeTimeout      OutcomeKind = "timeout"
	OutcomeSkipped      OutcomeKind = "skipped"
)

// OutcomeKinds lists all kinds in report presentation order.
func OutcomeKinds() []OutcomeKind {
	return []OutcomeKind{
		OutcomeEvalFailure,
		OutcomeBuildFailure,
		OutcomeTimeout,
		OutcomeSkipped,
		OutcomeSuccess,
	}
}

// BuildTarget is a named, independently buildable unit in the package
// graph, as reported by the evaluator at a single revision. Immutable
// once produced.
type BuildTarget struct {
	Name string `json:"name"`
	// Identity is an opaque fingerprint of the target's build inputs.
	// Equal identities imply equivalent builds.
	Identity string `json:"identity"`
	// Exists is false when the target name is known to the evaluation
	// but absent from the checkout.
	Exists bool `json:"exists"`
	// Broken marks targets the collection itself declares unbuildable.
	Broken bool `json:"broken"`
	// Position is the source location defining the target, relative to
	// the checkout root, when the evaluator reports one.
	Position string `json:"position,omitempty"`
	// Aliases are other names evaluating to the same identity.
	Aliases []string `json:"aliases,omitempty"`
}

// GraphSnapshot is the full target mapping of the package graph at one
// revision. Immutable; one per revision queried.
type GraphSnapshot struct {
	Revision string                 `json:"revision"`
	Targets  map[string]BuildTarget `json:"targets"`
	// Deps optionally maps a target name to the names it depends on.
	// When nil, transitive rebuild detection is unavailable and diffing
	// degrades to direct-change detection.
	Deps map[string][]string `json:"deps,omitempty"`
}

// HasDeps reports whether the snapshot carries a dependency relation.
func (s *GraphSnapshot) HasDeps() bool { return s.Deps != nil }

// BuildJob is the mutable per-target record tracked by the scheduler.
// Each job is written only by the worker that owns it.
type BuildJob struct {
	Name         string    `json:"name"`
	State        JobState  `json:"state"`
	StartedAt    time.Time `json:"startedAt,omitempty"`
	FinishedAt   time.Time `json:"finishedAt,omitempty"`
	Diagnostics  string    `json:"diagnostics,omitempty"`
	ArtifactPath string    `json:"artifactPath,omitempty"`
	// EvalFailed marks failures that happened before any build step
	// started, e.g. the builder could not resolve the target.
	EvalFailed bool `json:"evalFailed,omitempty"`
	// SkipReason records why a Skipped job was not built.
	SkipReason string `json:"skipReason,omitempty"`
}

// Duration returns the wall time the job spent building.
func (j *BuildJob) Duration() time.Duration {
	if j.StartedAt.IsZero() || j.FinishedAt.IsZero() {
		return 0
	}
	return j.FinishedAt.Sub(j.StartedAt)
}

// ReviewMeta carries the revision pair and optional review-request
// metadata included in report headers.
type ReviewMeta struct {
	RunID       string    `json:"runId"`
	BaseRev     string    `json:"baseRev"`
	HeadRev     string    `json:"headRev"`
	PullRequest int       `json:"pullRequest,omitempty"`
	Title       string    `json:"title,omitempty"`
	Author      string    `json:"author,omitempty"`
	System      string    `json:"system"`
	StartedAt   time.Time `json:"startedAt"`
}

// ReportEntry is one target's row in the final report.
type ReportEntry struct {
	Name        string      `json:"name"`
	Outcome     OutcomeKind `json:"outcome"`
	Diagnostics string      `json:"diagnostics,omitempty"`
	Aliases     []string    `json:"aliases,omitempty"`
	// KnownFailure is set when upstream CI already failed this target
	// before the change under review.
	KnownFailure bool `json:"knownFailure,omitempty"`
}

// Report is the immutable, deterministically ordered summary of a
// review run. Entries are grouped by outcome kind and sorted by name
// within each group; Removed lists targets deleted by the change.
type Report struct {
	Meta    ReviewMeta                    `json:"meta"`
	Counts  map[OutcomeKind]int           `json:"counts"`
	Groups  map[OutcomeKind][]ReportEntry `json:"groups"`
	Removed []string                      `json:"removed,omitempty"`
}

// Succeeded reports whether the run should exit zero: every target
// succeeded or was skipped by choice, and none failed outright.
func (r *Report) Succeeded() bool {
	return r.Counts[OutcomeBuildFailure] == 0 &&
		r.Counts[OutcomeEvalFailure] == 0 &&
		r.Counts[OutcomeTimeout] == 0
}

// Artifact pairs a succeeded target with its artifact path for the
// review environment.
type Artifact struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// SchedulerOptions configures a build run.
type SchedulerOptions struct {
	Concurrency      int           `json:"concurrency" yaml:"concurrency"`
	PerTargetTimeout time.Duration `json:"perTargetTimeout" yaml:"perTargetTimeout"`
	// RunDeadline optionally bounds the whole run; zero means none.
	RunDeadline time.Duration `json:"runDeadline,omitempty" yaml:"runDeadline,omitempty"`
}

// Validate checks the options for obvious misconfiguration.
func (o SchedulerOptions) Validate() error {
	if o.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", o.Concurrency)
	}
	if o.PerTargetTimeout <= 0 {
		return fmt.Errorf("per-target timeout must be positive, got %s", o.PerTargetTimeout)
	}
	return nil
}
