// Package mocks provides mock implementations of interfaces for testing.
package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkgreview/pkgreview/pkg/interfaces"
	"github.com/pkgreview/pkgreview/pkg/types"
)

// MockEvaluator serves pre-registered snapshots per revision.
type MockEvaluator struct {
	mu        sync.Mutex
	snapshots map[string]*types.GraphSnapshot
	err       error
	calls     []string
}

// NewMockEvaluator creates an empty mock evaluator.
func NewMockEvaluator() *MockEvaluator {
	return &MockEvaluator{snapshots: make(map[string]*types.GraphSnapshot)}
}

// SetSnapshot registers the snapshot returned for a revision.
func (m *MockEvaluator) SetSnapshot(revision string, s *types.GraphSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[revision] = s
}

// SetError makes every enumeration fail.
func (m *MockEvaluator) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns the revisions enumerated so far.
func (m *MockEvaluator) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *MockEvaluator) Enumerate(_ context.Context, _ string, revision string) (*types.GraphSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, revision)
	if m.err != nil {
		return nil, m.err
	}
	s, ok := m.snapshots[revision]
	if !ok {
		return nil, fmt.Errorf("no snapshot registered for %s", revision)
	}
	return s, nil
}

// BuildBehavior scripts one target's build in MockBuilder.
type BuildBehavior struct {
	// Delay is how long the build "runs" before finishing; it is cut
	// short by context cancellation.
	Delay time.Duration
	// Hang makes the build block until its context is cancelled.
	Hang bool
	// Fail makes the build return an error with these diagnostics.
	Fail        bool
	Diagnostics string
	// EvalFailure marks the failure as pre-build.
	EvalFailure bool
	// ArtifactPath overrides the default fake artifact path.
	ArtifactPath string
}

// MockBuilder is a scriptable builder client.
type MockBuilder struct {
	mu        sync.Mutex
	behaviors map[string]BuildBehavior
	running   int
	maxSeen   int
	built     []string
}

// NewMockBuilder creates a builder whose every build succeeds
// immediately unless scripted otherwise.
func NewMockBuilder() *MockBuilder {
	return &MockBuilder{behaviors: make(map[string]BuildBehavior)}
}

// SetBehavior scripts the build of one target.
func (m *MockBuilder) SetBehavior(name string, b BuildBehavior) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.behaviors[name] = b
}

// Built returns the targets whose build was invoked, in invocation
// order.
func (m *MockBuilder) Built() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.built...)
}

// MaxConcurrent returns the highest number of simultaneously running
// builds observed.
func (m *MockBuilder) MaxConcurrent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxSeen
}

func (m *MockBuilder) Build(ctx context.Context, name string, _ string) (*interfaces.BuildResult, error) {
	m.mu.Lock()
	behavior := m.behaviors[name]
	m.built = append(m.built, name)
	m.running++
	if m.running > m.maxSeen {
		m.maxSeen = m.running
	}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.running--
		m.mu.Unlock()
	}()

	if behavior.Hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if behavior.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(behavior.Delay):
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if behavior.Fail {
		return &interfaces.BuildResult{
			Diagnostics: behavior.Diagnostics,
			EvalFailure: behavior.EvalFailure,
		}, fmt.Errorf("build of %s failed", name)
	}

	artifact := behavior.ArtifactPath
	if artifact == "" {
		artifact = "/nix/store/fake-" + name
	}
	return &interfaces.BuildResult{ArtifactPath: artifact}, nil
}

// MockRevisionSource resolves every reference to itself.
type MockRevisionSource struct {
	mu       sync.Mutex
	unknown  map[string]bool
	checkout string
	cleaned  bool
	fetched  []string
}

// NewMockRevisionSource creates a revision source whose checkouts all
// land in dir.
func NewMockRevisionSource(dir string) *MockRevisionSource {
	return &MockRevisionSource{unknown: make(map[string]bool), checkout: dir}
}

// SetUnknown makes a reference fail verification.
func (m *MockRevisionSource) SetUnknown(ref string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unknown[ref] = true
}

// CleanedUp reports whether Cleanup ran.
func (m *MockRevisionSource) CleanedUp() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cleaned
}

// Fetched returns the "remote refspec" pairs fetched so far.
func (m *MockRevisionSource) Fetched() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.fetched...)
}

func (m *MockRevisionSource) Fetch(_ context.Context, remote string, refspec string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetched = append(m.fetched, remote+" "+refspec)
	return nil
}

func (m *MockRevisionSource) Verify(_ context.Context, ref string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unknown[ref] {
		return "", fmt.Errorf("unknown revision: %s", ref)
	}
	return ref, nil
}

func (m *MockRevisionSource) Checkout(_ context.Context, rev string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unknown[rev] {
		return "", fmt.Errorf("unknown revision: %s", rev)
	}
	return m.checkout, nil
}

func (m *MockRevisionSource) MergeBase(_ context.Context, a, _ string) (string, error) {
	return a, nil
}

func (m *MockRevisionSource) Cleanup() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleaned = true
	return nil
}

// MockHost serves a fixed pull request.
type MockHost struct {
	PR  *interfaces.PullRequest
	Err error
}

func (m *MockHost) PullRequest(_ context.Context, number int) (*interfaces.PullRequest, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.PR == nil {
		return nil, fmt.Errorf("no pull request %d", number)
	}
	return m.PR, nil
}

// MockCIStatus returns a fixed known-failure set.
type MockCIStatus struct {
	Known map[string]bool
}

func (m *MockCIStatus) KnownFailures(_ context.Context, _ []string, _ string, _ string) map[string]bool {
	return m.Known
}

// MockNotifier records notifications.
type MockNotifier struct {
	mu       sync.Mutex
	started  int
	finished []*types.Report
}

func (m *MockNotifier) NotifyRunStart(_ string, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started++
}

func (m *MockNotifier) NotifyRunFinished(report *types.Report, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished = append(m.finished, report)
}

// Finished returns the reports notified so far.
func (m *MockNotifier) Finished() []*types.Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*types.Report(nil), m.finished...)
}

// MockStore keeps run state in memory.
type MockStore struct {
	mu      sync.Mutex
	runs    map[string]savedRun
	latest  string
	saveErr error
}

type savedRun struct {
	meta    types.ReviewMeta
	jobs    map[string]*types.BuildJob
	removed []string
}

// NewMockStore creates an empty in-memory run store.
func NewMockStore() *MockStore {
	return &MockStore{runs: make(map[string]savedRun)}
}

// SetSaveError makes SaveRun fail.
func (m *MockStore) SetSaveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveErr = err
}

func (m *MockStore) SaveRun(meta types.ReviewMeta, jobs map[string]*types.BuildJob, removed []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.runs[meta.RunID] = savedRun{meta: meta, jobs: jobs, removed: removed}
	m.latest = meta.RunID
	return nil
}

func (m *MockStore) LoadRun(runID string) (*types.ReviewMeta, map[string]*types.BuildJob, []string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return nil, nil, nil, fmt.Errorf("no run %s", runID)
	}
	return &run.meta, run.jobs, run.removed, nil
}

func (m *MockStore) LatestRunID() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.latest == "" {
		return "", fmt.Errorf("no recorded runs")
	}
	return m.latest, nil
}

func (m *MockStore) RunDir(runID string) string {
	return "/tmp/mock-runs/" + runID
}
