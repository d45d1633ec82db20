package diff_test

import (
	"reflect"
	"testing"

	"github.com/pkgreview/pkgreview/pkg/diff"
	"github.com/pkgreview/pkgreview/pkg/types"
)

func snapshot(rev string, identities map[string]string) *types.GraphSnapshot {
	s := &types.GraphSnapshot{
		Revision: rev,
		Targets:  make(map[string]types.BuildTarget, len(identities)),
	}
	for name, id := range identities {
		s.Targets[name] = types.BuildTarget{Name: name, Identity: id, Exists: true}
	}
	return s
}

func TestDiff_IdenticalSnapshotsAreEmpty(t *testing.T) {
	s := snapshot("abc", map[string]string{"a": "1", "b": "2"})

	result := diff.Diff(s, s)

	if len(result.Rebuild) != 0 {
		t.Errorf("expected empty rebuild set, got %v", result.RebuildNames())
	}
	if len(result.Removed) != 0 {
		t.Errorf("expected no removed targets, got %v", result.Removed)
	}
}

func TestDiff_AddedTarget(t *testing.T) {
	base := snapshot("base", map[string]string{"a": "1"})
	changed := snapshot("head", map[string]string{"a": "1", "b": "2"})

	result := diff.Diff(base, changed)

	if got := result.RebuildNames(); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("expected rebuild set [b], got %v", got)
	}
}

func TestDiff_RemovedTarget(t *testing.T) {
	base := snapshot("base", map[string]string{"a": "1", "b": "2"})
	changed := snapshot("head", map[string]string{"a": "1"})

	result := diff.Diff(base, changed)

	if len(result.Rebuild) != 0 {
		t.Errorf("expected empty rebuild set, got %v", result.RebuildNames())
	}
	if !reflect.DeepEqual(result.Removed, []string{"b"}) {
		t.Errorf("expected removed [b], got %v", result.Removed)
	}
}

func TestDiff_ChangedIdentity(t *testing.T) {
	base := snapshot("base", map[string]string{"a": "1", "b": "1"})
	changed := snapshot("head", map[string]string{"a": "2", "b": "1", "c": "1"})

	result := diff.Diff(base, changed)

	want := []string{"a", "c"}
	if got := result.RebuildNames(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected rebuild set %v, got %v", want, got)
	}
	if len(result.Removed) != 0 {
		t.Errorf("expected no removed targets, got %v", result.Removed)
	}
}

func TestDiff_TransitivePropagation(t *testing.T) {
	base := snapshot("base", map[string]string{"lib": "1", "app": "5", "tool": "7", "other": "9"})
	changed := snapshot("head", map[string]string{"lib": "2", "app": "5", "tool": "7", "other": "9"})
	changed.Deps = map[string][]string{
		"app":  {"lib"},
		"tool": {"app"},
	}

	result := diff.Diff(base, changed)

	if !result.Transitive {
		t.Error("expected transitive propagation to be applied")
	}
	want := []string{"app", "lib", "tool"}
	if got := result.RebuildNames(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected rebuild set %v, got %v", want, got)
	}
}

func TestDiff_NoDepsDisablesPropagation(t *testing.T) {
	base := snapshot("base", map[string]string{"lib": "1", "app": "5"})
	changed := snapshot("head", map[string]string{"lib": "2", "app": "5"})

	result := diff.Diff(base, changed)

	if result.Transitive {
		t.Error("expected direct-change-only mode without a dependency relation")
	}
	if got := result.RebuildNames(); !reflect.DeepEqual(got, []string{"lib"}) {
		t.Errorf("expected rebuild set [lib], got %v", got)
	}
}

func TestDiff_PropagationIgnoresUnknownDependents(t *testing.T) {
	base := snapshot("base", map[string]string{"lib": "1"})
	changed := snapshot("head", map[string]string{"lib": "2"})
	// "ghost" appears in the relation but not in the target mapping.
	changed.Deps = map[string][]string{
		"ghost": {"lib"},
	}

	result := diff.Diff(base, changed)

	if got := result.RebuildNames(); !reflect.DeepEqual(got, []string{"lib"}) {
		t.Errorf("expected rebuild set [lib], got %v", got)
	}
}

func TestDiff_RemovedNamesAreSorted(t *testing.T) {
	base := snapshot("base", map[string]string{"z": "1", "a": "2", "m": "3"})
	changed := snapshot("head", map[string]string{})

	result := diff.Diff(base, changed)

	want := []string{"a", "m", "z"}
	if !reflect.DeepEqual(result.Removed, want) {
		t.Errorf("expected removed %v, got %v", want, result.Removed)
	}
}
