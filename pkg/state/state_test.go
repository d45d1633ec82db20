package state_test

import (
	"errors"
	"testing"
	"time"

	"github.com/pkgreview/pkgreview/pkg/state"
	"github.com/pkgreview/pkgreview/pkg/types"
)

func sampleMeta(runID string) types.ReviewMeta {
	return types.ReviewMeta{
		RunID:     runID,
		BaseRev:   "base-rev",
		HeadRev:   "head-rev",
		System:    "x86_64-linux",
		StartedAt: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestStore_SaveAndLoadRun(t *testing.T) {
	store := state.NewStore(t.TempDir())
	meta := sampleMeta("run-1")
	jobs := map[string]*types.BuildJob{
		"hello": {Name: "hello", State: types.JobStateSucceeded, ArtifactPath: "/store/hello"},
		"boom":  {Name: "boom", State: types.JobStateFailed, Diagnostics: "exploded"},
	}

	if err := store.SaveRun(meta, jobs, []string{"gone"}); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	gotMeta, gotJobs, gotRemoved, err := store.LoadRun("run-1")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if gotMeta.RunID != "run-1" || gotMeta.System != "x86_64-linux" {
		t.Errorf("meta not round-tripped: %+v", gotMeta)
	}
	if len(gotJobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(gotJobs))
	}
	if gotJobs["boom"].Diagnostics != "exploded" {
		t.Errorf("diagnostics not round-tripped: %+v", gotJobs["boom"])
	}
	if len(gotRemoved) != 1 || gotRemoved[0] != "gone" {
		t.Errorf("removed not round-tripped: %v", gotRemoved)
	}
}

func TestStore_LatestRunID(t *testing.T) {
	store := state.NewStore(t.TempDir())

	if _, err := store.LatestRunID(); !errors.Is(err, state.ErrNoRuns) {
		t.Fatalf("expected ErrNoRuns, got %v", err)
	}

	if err := store.SaveRun(sampleMeta("run-1"), nil, nil); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := store.SaveRun(sampleMeta("run-2"), nil, nil); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	latest, err := store.LatestRunID()
	if err != nil {
		t.Fatalf("latest failed: %v", err)
	}
	if latest != "run-2" {
		t.Errorf("expected run-2, got %s", latest)
	}
}

func TestStore_LoadMissingRun(t *testing.T) {
	store := state.NewStore(t.TempDir())

	if _, _, _, err := store.LoadRun("nope"); !errors.Is(err, state.ErrNoRuns) {
		t.Fatalf("expected ErrNoRuns, got %v", err)
	}
}
