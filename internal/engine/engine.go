// Package engine wires the review pipeline together: checkout both
// revisions, enumerate and diff the package graphs, build the rebuild
// set, classify outcomes and assemble the report.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pkgreview/pkgreview/pkg/config"
	"github.com/pkgreview/pkgreview/pkg/diff"
	"github.com/pkgreview/pkgreview/pkg/interfaces"
	"github.com/pkgreview/pkgreview/pkg/logger"
	"github.com/pkgreview/pkgreview/pkg/report"
	"github.com/pkgreview/pkgreview/pkg/scheduler"
	"github.com/pkgreview/pkgreview/pkg/shell"
	"github.com/pkgreview/pkgreview/pkg/types"
)

// Request selects what to review. Exactly one of PullRequest, HeadRev
// or WorkTree is set.
type Request struct {
	// PullRequest reviews a hosted review request by number.
	PullRequest int
	// HeadRev reviews a local revision against its merge base with
	// BaseRev.
	HeadRev string
	// WorkTree reviews the uncommitted state of a checkout against
	// BaseRev.
	WorkTree string
	// BaseRev overrides the base revision; defaults to the hosted
	// request's base branch or HEAD.
	BaseRev string
	// NoBuild computes the rebuild set and reports every member as
	// skipped by choice instead of building.
	NoBuild bool
	// Concurrency, Timeout and RunDeadline override the configured
	// scheduler bounds when set. Timeout is passed through as given,
	// not rounded to the config file's minute granularity.
	Concurrency int
	Timeout     time.Duration
	RunDeadline time.Duration
}

// Result is a finished review run.
type Result struct {
	Report      *types.Report
	Environment *shell.Environment
}

// Engine runs reviews.
type Engine struct {
	cfg    *config.Config
	deps   interfaces.ReviewDependencies
	logger logger.Logger
}

// New creates an engine from its dependencies.
func New(cfg *config.Config, deps interfaces.ReviewDependencies, log logger.Logger) *Engine {
	return &Engine{cfg: cfg, deps: deps, logger: log}
}

// Review executes one full review run. Fatal errors (checkout,
// evaluation) abort before any build is scheduled; per-target build
// failures are recorded in the report instead. Cancellation yields a
// partial report rather than an error.
func (e *Engine) Review(ctx context.Context, req Request) (*Result, error) {
	meta, basePath, headPath, err := e.resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	defer e.deps.Revisions.Cleanup()

	base, head, err := e.enumerate(ctx, basePath, headPath, meta)
	if err != nil {
		return nil, err
	}

	changes := diff.Diff(base, head)
	rebuild := changes.RebuildNames()
	e.logger.Info("Computed rebuild set",
		logger.WithField("targets", len(rebuild)),
		logger.WithField("removed", len(changes.Removed)),
		logger.WithField("transitive", changes.Transitive))

	skip := e.skipSet(head, rebuild, req.NoBuild)

	if e.deps.Notifier != nil {
		e.deps.Notifier.NotifyRunStart(meta.RunID, len(rebuild))
	}

	options := types.SchedulerOptions{
		Concurrency:      e.cfg.Build.Concurrency,
		PerTargetTimeout: e.cfg.Build.Timeout(),
		RunDeadline:      e.cfg.Build.RunDeadline(),
	}
	if req.Concurrency > 0 {
		options.Concurrency = req.Concurrency
	}
	if req.Timeout > 0 {
		options.PerTargetTimeout = req.Timeout
	}
	if req.RunDeadline > 0 {
		options.RunDeadline = req.RunDeadline
	}

	sched := scheduler.New(e.deps.Builder, e.logger)
	jobs, err := sched.Run(ctx, scheduler.Request{
		Targets: rebuild,
		Path:    headPath,
		Deps:    head.Deps,
		Skip:    skip,
		Options: options,
	})
	if err != nil {
		return nil, err
	}

	rep, err := report.Assemble(meta, jobs, changes.Removed)
	if err != nil {
		return nil, err
	}

	e.markKnownFailures(ctx, rep, meta)

	if e.deps.Store != nil {
		if err := e.deps.Store.SaveRun(meta, jobs, changes.Removed); err != nil {
			e.logger.Warn("Failed to persist run state", logger.WithField("error", err))
		}
	}

	env, err := e.buildEnvironment(meta, jobs)
	if err != nil {
		e.logger.Warn("Failed to assemble review shell", logger.WithField("error", err))
		env = &shell.Environment{}
	}

	if e.deps.Notifier != nil {
		e.deps.Notifier.NotifyRunFinished(rep, time.Since(meta.StartedAt))
	}

	return &Result{Report: rep, Environment: env}, nil
}

// resolve turns the request into a revision pair and two checkouts.
func (e *Engine) resolve(ctx context.Context, req Request) (types.ReviewMeta, string, string, error) {
	meta := types.ReviewMeta{
		RunID:     uuid.New().String(),
		System:    e.cfg.System,
		StartedAt: time.Now(),
	}

	var headRev string
	switch {
	case req.PullRequest > 0:
		if e.deps.Host == nil {
			return meta, "", "", fmt.Errorf("no review host configured for pull request %d", req.PullRequest)
		}
		pr, err := e.deps.Host.PullRequest(ctx, req.PullRequest)
		if err != nil {
			return meta, "", "", fmt.Errorf("failed to resolve pull request %d: %w", req.PullRequest, err)
		}
		meta.PullRequest = pr.Number
		meta.Title = pr.Title
		meta.Author = pr.Author
		headRev = pr.HeadSHA
		if req.BaseRev == "" {
			req.BaseRev = pr.BaseRef
		}

		// The head commit only exists remotely until the pull ref is
		// fetched; fetch the base branch alongside so the merge base
		// is current. Failures are not fatal here, Verify decides.
		for _, refspec := range []string{fmt.Sprintf("pull/%d/head", pr.Number), pr.BaseRef} {
			if refspec == "" {
				continue
			}
			if err := e.deps.Revisions.Fetch(ctx, e.cfg.Remote, refspec); err != nil {
				e.logger.Warn("Failed to fetch from remote",
					logger.WithField("refspec", refspec),
					logger.WithField("error", err))
			}
		}

	case req.HeadRev != "":
		headRev = req.HeadRev

	case req.WorkTree != "":
		headRev = "worktree"

	default:
		return meta, "", "", fmt.Errorf("nothing to review: no pull request, revision or worktree given")
	}

	if req.BaseRev == "" {
		req.BaseRev = "HEAD"
	}

	baseRev := req.BaseRev
	if req.WorkTree == "" {
		// Diff against the merge base so unrelated changes on the
		// base branch do not show up as rebuilds.
		mb, err := e.deps.Revisions.MergeBase(ctx, req.BaseRev, headRev)
		if err == nil {
			baseRev = mb
		}
	}

	baseHash, err := e.deps.Revisions.Verify(ctx, baseRev)
	if err != nil {
		return meta, "", "", err
	}
	meta.BaseRev = baseHash

	basePath, err := e.deps.Revisions.Checkout(ctx, baseHash)
	if err != nil {
		return meta, "", "", err
	}

	var headPath string
	if req.WorkTree != "" {
		meta.HeadRev = "worktree"
		headPath = req.WorkTree
	} else {
		headHash, err := e.deps.Revisions.Verify(ctx, headRev)
		if err != nil {
			return meta, "", "", err
		}
		meta.HeadRev = headHash
		headPath, err = e.deps.Revisions.Checkout(ctx, headHash)
		if err != nil {
			return meta, "", "", err
		}
	}

	return meta, basePath, headPath, nil
}

// enumerate evaluates both snapshots concurrently; either failure
// aborts the run since the diff needs both full sets.
func (e *Engine) enumerate(ctx context.Context, basePath, headPath string, meta types.ReviewMeta) (*types.GraphSnapshot, *types.GraphSnapshot, error) {
	var base, head *types.GraphSnapshot

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		base, err = e.deps.Evaluator.Enumerate(gctx, basePath, meta.BaseRev)
		return err
	})
	g.Go(func() error {
		var err error
		head, err = e.deps.Evaluator.Enumerate(gctx, headPath, meta.HeadRev)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return base, head, nil
}

// skipSet collects targets excluded from building, with reasons.
func (e *Engine) skipSet(head *types.GraphSnapshot, rebuild []string, noBuild bool) map[string]string {
	skip := make(map[string]string)
	for _, name := range rebuild {
		target := head.Targets[name]
		switch {
		case noBuild:
			skip[name] = "--no-build requested"
		case !target.Exists:
			skip[name] = "not found in the checkout"
		case target.Broken:
			skip[name] = "marked as broken"
		}
	}
	for _, name := range e.cfg.Skip.Targets {
		for _, candidate := range rebuild {
			if candidate == name {
				skip[name] = "skipped by configuration"
			}
		}
	}
	return skip
}

// markKnownFailures splits failures into new vs. already failing
// upstream, best effort.
func (e *Engine) markKnownFailures(ctx context.Context, rep *types.Report, meta types.ReviewMeta) {
	if e.deps.CIStatus == nil || !e.cfg.Skip.CheckUpstreamCI {
		return
	}
	var failed []string
	for _, kind := range []types.OutcomeKind{types.OutcomeBuildFailure, types.OutcomeTimeout} {
		for _, entry := range rep.Groups[kind] {
			failed = append(failed, entry.Name)
		}
	}
	if len(failed) == 0 {
		return
	}
	known := e.deps.CIStatus.KnownFailures(ctx, failed, meta.System, "")
	report.MarkKnownFailures(rep, known)
}

func (e *Engine) buildEnvironment(meta types.ReviewMeta, jobs map[string]*types.BuildJob) (*shell.Environment, error) {
	dir := ""
	if e.deps.Store != nil {
		dir = e.deps.Store.RunDir(meta.RunID)
	}
	if dir == "" {
		return &shell.Environment{Artifacts: report.Artifacts(jobs)}, nil
	}
	return shell.Build(dir, report.Artifacts(jobs))
}
