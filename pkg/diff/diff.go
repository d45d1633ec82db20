// Package diff computes the rebuild set between two package graph
// snapshots.
package diff

import (
	"sort"

	"github.com/pkgreview/pkgreview/pkg/types"
)

// Result is the outcome of comparing a base snapshot against a
// changed one.
type Result struct {
	// Rebuild holds names present in the changed snapshot that are
	// new, have a changed identity, or transitively depend on one
	// that does.
	Rebuild map[string]struct{}
	// Removed lists names present in base but absent from changed.
	// They are reported, never built.
	Removed []string
	// Transitive reports whether dependency-based propagation was
	// applied. False means the changed snapshot carried no dependency
	// relation and only direct changes were detected.
	Transitive bool
}

// RebuildNames returns the rebuild set sorted by name.
func (r *Result) RebuildNames() []string {
	names := make([]string, 0, len(r.Rebuild))
	for name := range r.Rebuild {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Diff compares two snapshots. A target is scheduled for rebuild when
// it is newly added, its identity differs, or, when the changed
// snapshot supplies a dependency relation, a dependency of it is in
// the rebuild set. Identical snapshots yield an empty result.
func Diff(base, changed *types.GraphSnapshot) *Result {
	result := &Result{
		Rebuild:    make(map[string]struct{}),
		Transitive: changed.HasDeps(),
	}

	for name, target := range changed.Targets {
		old, ok := base.Targets[name]
		if !ok {
			result.Rebuild[name] = struct{}{}
			continue
		}
		if old.Identity != target.Identity {
			result.Rebuild[name] = struct{}{}
		}
	}

	for name := range base.Targets {
		if _, ok := changed.Targets[name]; !ok {
			result.Removed = append(result.Removed, name)
		}
	}
	sort.Strings(result.Removed)

	if changed.HasDeps() {
		propagate(result.Rebuild, changed)
	}

	return result
}

// propagate closes the rebuild set over the reverse-dependency
// relation: any target depending on a rebuild-set member joins the
// set, repeatedly, until a fixed point.
func propagate(rebuild map[string]struct{}, changed *types.GraphSnapshot) {
	dependents := make(map[string][]string)
	for name, deps := range changed.Deps {
		if _, ok := changed.Targets[name]; !ok {
			continue
		}
		for _, dep := range deps {
			dependents[dep] = append(dependents[dep], name)
		}
	}

	queue := make([]string, 0, len(rebuild))
	for name := range rebuild {
		queue = append(queue, name)
	}

	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		for _, dependent := range dependents[name] {
			if _, seen := rebuild[dependent]; seen {
				continue
			}
			rebuild[dependent] = struct{}{}
			queue = append(queue, dependent)
		}
	}
}
