// Package report classifies build outcomes and assembles them into a
// stable, deterministically ordered review report.
package report

import (
	"fmt"
	"sort"

	"github.com/pkgreview/pkgreview/pkg/types"
)

// Classify maps a terminal build job to its outcome kind. It is pure
// and total over terminal states; a non-terminal state is a
// programming error and reported as such by Assemble.
func Classify(job *types.BuildJob) types.OutcomeKind {
	switch job.State {
	case types.JobStateSucceeded:
		return types.OutcomeSuccess
	case types.JobStateTimedOut:
		return types.OutcomeTimeout
	case types.JobStateSkipped:
		return types.OutcomeSkipped
	case types.JobStateFailed:
		if job.EvalFailed {
			// The builder never started a build step: the change
			// itself is structurally suspect, not this one target.
			return types.OutcomeEvalFailure
		}
		return types.OutcomeBuildFailure
	default:
		// Pending/Running; Assemble rejects these.
		return types.OutcomeSkipped
	}
}

// Assemble produces the immutable report for a finished run. Entries
// are grouped by outcome kind and sorted by name within each group,
// so permuting the input map yields a byte-identical report. Every
// supplied job lands in exactly one group; removed targets form their
// own un-built category.
func Assemble(meta types.ReviewMeta, jobs map[string]*types.BuildJob, removed []string) (*types.Report, error) {
	r := &types.Report{
		Meta:   meta,
		Counts: make(map[types.OutcomeKind]int),
		Groups: make(map[types.OutcomeKind][]types.ReportEntry),
	}

	names := make([]string, 0, len(jobs))
	for name := range jobs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		job := jobs[name]
		if !job.State.IsTerminal() {
			return nil, fmt.Errorf("job %s is not terminal (%s)", name, job.State)
		}
		kind := Classify(job)
		entry := types.ReportEntry{
			Name:    name,
			Outcome: kind,
		}
		switch kind {
		case types.OutcomeBuildFailure, types.OutcomeEvalFailure, types.OutcomeTimeout:
			entry.Diagnostics = job.Diagnostics
		case types.OutcomeSkipped:
			entry.Diagnostics = job.SkipReason
		}
		r.Groups[kind] = append(r.Groups[kind], entry)
		r.Counts[kind]++
	}

	r.Removed = append([]string(nil), removed...)
	sort.Strings(r.Removed)

	return r, nil
}

// MarkKnownFailures flags failed entries that upstream CI already
// reported failing before the change. The grouping and ordering of
// the report are unchanged.
func MarkKnownFailures(r *types.Report, known map[string]bool) {
	for _, kind := range []types.OutcomeKind{types.OutcomeBuildFailure, types.OutcomeTimeout} {
		entries := r.Groups[kind]
		for i := range entries {
			if known[entries[i].Name] {
				entries[i].KnownFailure = true
			}
		}
	}
}

// Artifacts returns the succeeded targets' artifacts ordered by name.
func Artifacts(jobs map[string]*types.BuildJob) []types.Artifact {
	artifacts := make([]types.Artifact, 0, len(jobs))
	for _, job := range jobs {
		if job.State == types.JobStateSucceeded {
			artifacts = append(artifacts, types.Artifact{Name: job.Name, Path: job.ArtifactPath})
		}
	}
	sort.Slice(artifacts, func(i, j int) bool { return artifacts[i].Name < artifacts[j].Name })
	return artifacts
}
