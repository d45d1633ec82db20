// Package scheduler drives bounded-concurrency build execution
// against the external builder, tracking per-target state, timeouts
// and cancellation.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pkgreview/pkgreview/pkg/interfaces"
	"github.com/pkgreview/pkgreview/pkg/logger"
	"github.com/pkgreview/pkgreview/pkg/types"
)

// SkipReasonCancelled marks jobs that never got a verdict because the
// run itself was cancelled, as opposed to targets skipped by choice.
const SkipReasonCancelled = "run cancelled"

// Request describes one build run.
type Request struct {
	// Targets are the names to build.
	Targets []string
	// Path is the checkout the builder operates on.
	Path string
	// Deps optionally maps a target to the names it depends on, used
	// to skip targets whose dependency already terminally failed.
	Deps map[string][]string
	// Skip maps target names to a reason for skipping them without
	// invocation (by choice: blacklisted, marked broken, prefiltered).
	Skip map[string]string
	// Options bound concurrency and time.
	Options types.SchedulerOptions
}

// Scheduler executes build runs with a fixed-size worker pool.
type Scheduler struct {
	builder interfaces.BuilderClient
	logger  logger.Logger
}

// New creates a scheduler backed by the given builder client.
func New(builder interfaces.BuilderClient, log logger.Logger) *Scheduler {
	return &Scheduler{builder: builder, logger: log}
}

// Run builds every requested target and returns the per-target job
// mapping. Every returned job is in a terminal state, including under
// cancellation or run deadline, in which case unfinished targets come
// back Skipped and the partial mapping is returned rather than an
// error. The only error case is an invalid request.
func (s *Scheduler) Run(ctx context.Context, req Request) (map[string]*types.BuildJob, error) {
	if err := req.Options.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scheduler options: %w", err)
	}

	// The jobs map is fully populated before any worker starts; after
	// that, each entry is written only by the worker owning it, and
	// the map itself is never mutated.
	jobs := make(map[string]*types.BuildJob, len(req.Targets))
	pending := make([]string, 0, len(req.Targets))
	for _, name := range req.Targets {
		job := &types.BuildJob{Name: name, State: types.JobStatePending}
		jobs[name] = job
		if reason, ok := req.Skip[name]; ok {
			job.State = types.JobStateSkipped
			job.SkipReason = reason
			continue
		}
		pending = append(pending, name)
	}
	sort.Strings(pending)

	if req.Options.RunDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Options.RunDeadline)
		defer cancel()
	}

	// failures tracks terminally failed targets for the dependency
	// skip optimization; it is the only cross-worker shared state.
	failures := &failureSet{names: make(map[string]struct{})}

	queue := make(chan string)
	sg, runCtx := NewSafeGroup(ctx, s.logger)

	for i := 0; i < req.Options.Concurrency; i++ {
		sg.Go(func() error {
			for {
				select {
				case <-runCtx.Done():
					return nil
				case name, ok := <-queue:
					if !ok {
						return nil
					}
					s.execute(runCtx, req, jobs[name], failures)
				}
			}
		})
	}

	sg.Go(func() error {
		defer close(queue)
		for _, name := range pending {
			select {
			case <-runCtx.Done():
				return nil
			case queue <- name:
			}
		}
		return nil
	})

	if err := sg.Wait(); err != nil && s.logger != nil {
		s.logger.Error("Build run finished with worker error", logger.WithField("error", err))
	}

	// Barrier passed: workers are joined, the mapping is safe to read.
	// Anything not picked up before cancellation is explicitly Skipped
	// so every job ends terminal.
	for _, job := range jobs {
		if !job.State.IsTerminal() {
			job.State = types.JobStateSkipped
			job.SkipReason = SkipReasonCancelled
		}
	}

	return jobs, nil
}

// execute runs one target's build. It is the single writer of job.
func (s *Scheduler) execute(ctx context.Context, req Request, job *types.BuildJob, failures *failureSet) {
	log := s.logger
	if log != nil {
		log = log.WithTarget(job.Name)
	}

	if dep, ok := failures.failedDependency(req.Deps[job.Name]); ok {
		job.State = types.JobStateSkipped
		job.SkipReason = fmt.Sprintf("dependency %s failed", dep)
		if log != nil {
			log.Warn("Skipping build", logger.WithField("reason", job.SkipReason))
		}
		return
	}

	job.State = types.JobStateRunning
	job.StartedAt = time.Now()
	if log != nil {
		log.Info("Building")
	}

	buildCtx, cancel := context.WithTimeout(ctx, req.Options.PerTargetTimeout)
	result, err := s.builder.Build(buildCtx, job.Name, req.Path)
	cancel()
	job.FinishedAt = time.Now()

	switch {
	case err == nil:
		job.State = types.JobStateSucceeded
		job.ArtifactPath = result.ArtifactPath
		if log != nil {
			log.Success(fmt.Sprintf("Built in %s", job.Duration().Round(time.Millisecond)))
		}

	case ctx.Err() != nil:
		// The run itself was cancelled while this build was in
		// flight; the builder process has been terminated.
		job.State = types.JobStateSkipped
		job.SkipReason = SkipReasonCancelled
		if log != nil {
			log.Warn("Build cancelled")
		}

	case errors.Is(err, context.DeadlineExceeded) || errors.Is(buildCtx.Err(), context.DeadlineExceeded):
		job.State = types.JobStateTimedOut
		job.Diagnostics = fmt.Sprintf("build timed out after %s", req.Options.PerTargetTimeout)
		failures.add(job.Name)
		if log != nil {
			log.Error("Build timed out", logger.WithField("timeout", req.Options.PerTargetTimeout))
		}

	default:
		job.State = types.JobStateFailed
		if result != nil {
			job.Diagnostics = result.Diagnostics
			job.EvalFailed = result.EvalFailure
		}
		failures.add(job.Name)
		if log != nil {
			log.Error("Build failed", logger.WithField("error", err))
		}
	}
}

// failureSet records terminally failed targets.
type failureSet struct {
	mu    sync.RWMutex
	names map[string]struct{}
}

func (f *failureSet) add(name string) {
	f.mu.Lock()
	f.names[name] = struct{}{}
	f.mu.Unlock()
}

// failedDependency returns the first declared dependency that already
// failed, if any.
func (f *failureSet) failedDependency(deps []string) (string, bool) {
	if len(deps) == 0 {
		return "", false
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, dep := range deps {
		if _, ok := f.names[dep]; ok {
			return dep, true
		}
	}
	return "", false
}
