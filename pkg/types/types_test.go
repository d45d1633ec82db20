package types_test

import (
	"testing"
	"time"

	"github.com/pkgreview/pkgreview/pkg/types"
)

func TestJobState_IsTerminal(t *testing.T) {
	tests := []struct {
		state types.JobState
		want  bool
	}{
		{types.JobStatePending, false},
		{types.JobStateRunning, false},
		{types.JobStateSucceeded, true},
		{types.JobStateFailed, true},
		{types.JobStateTimedOut, true},
		{types.JobStateSkipped, true},
	}

	for _, tt := range tests {
		if got := tt.state.IsTerminal(); got != tt.want {
			t.Errorf("%s: IsTerminal() = %v, want %v", tt.state, got, tt.want)
		}
	}
}

func TestOutcomeKinds_CoversEveryKind(t *testing.T) {
	kinds := types.OutcomeKinds()
	seen := make(map[types.OutcomeKind]bool, len(kinds))
	for _, kind := range kinds {
		if seen[kind] {
			t.Errorf("kind %s listed twice", kind)
		}
		seen[kind] = true
	}
	for _, kind := range []types.OutcomeKind{
		types.OutcomeSuccess,
		types.OutcomeBuildFailure,
		types.OutcomeEvalFailure,
		types.OutcomeTimeout,
		types.OutcomeSkipped,
	} {
		if !seen[kind] {
			t.Errorf("kind %s missing from presentation order", kind)
		}
	}
}

func TestBuildJob_Duration(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	job := &types.BuildJob{StartedAt: start, FinishedAt: start.Add(3 * time.Second)}
	if job.Duration() != 3*time.Second {
		t.Errorf("expected 3s, got %s", job.Duration())
	}

	unstarted := &types.BuildJob{}
	if unstarted.Duration() != 0 {
		t.Errorf("expected zero duration for an unstarted job, got %s", unstarted.Duration())
	}
}

func TestReport_Succeeded(t *testing.T) {
	tests := []struct {
		name   string
		counts map[types.OutcomeKind]int
		want   bool
	}{
		{"all built", map[types.OutcomeKind]int{types.OutcomeSuccess: 3}, true},
		{"skips allowed", map[types.OutcomeKind]int{types.OutcomeSuccess: 1, types.OutcomeSkipped: 2}, true},
		{"build failure", map[types.OutcomeKind]int{types.OutcomeBuildFailure: 1}, false},
		{"eval failure", map[types.OutcomeKind]int{types.OutcomeEvalFailure: 1}, false},
		{"timeout", map[types.OutcomeKind]int{types.OutcomeTimeout: 1}, false},
		{"empty run", map[types.OutcomeKind]int{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &types.Report{Counts: tt.counts}
			if got := r.Succeeded(); got != tt.want {
				t.Errorf("Succeeded() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSchedulerOptions_Validate(t *testing.T) {
	valid := types.SchedulerOptions{Concurrency: 1, PerTargetTimeout: time.Second}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid options rejected: %v", err)
	}

	if err := (types.SchedulerOptions{Concurrency: 0, PerTargetTimeout: time.Second}).Validate(); err == nil {
		t.Error("expected error for zero concurrency")
	}
	if err := (types.SchedulerOptions{Concurrency: 1}).Validate(); err == nil {
		t.Error("expected error for missing timeout")
	}
}

func TestGraphSnapshot_HasDeps(t *testing.T) {
	s := &types.GraphSnapshot{Targets: map[string]types.BuildTarget{}}
	if s.HasDeps() {
		t.Error("nil relation must disable transitive detection")
	}
	s.Deps = map[string][]string{}
	if !s.HasDeps() {
		t.Error("an empty relation still counts as supplied")
	}
}
