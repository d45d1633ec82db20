package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"

	"golang.org/x/sync/errgroup"

	"github.com/pkgreview/pkgreview/pkg/logger"
)

// SafeGroup wraps errgroup.Group with panic recovery so a panicking
// worker cannot take down the run or leave jobs without a terminal
// state.
type SafeGroup struct {
	group  *errgroup.Group
	logger logger.Logger
}

// NewSafeGroup creates a new SafeGroup with panic recovery
func NewSafeGroup(ctx context.Context, log logger.Logger) (*SafeGroup, context.Context) {
	g, ctx := errgroup.WithContext(ctx)
	return &SafeGroup{group: g, logger: log}, ctx
}

// Go runs fn in a new goroutine. A panic is converted to an error and
// logged with its stack trace.
func (sg *SafeGroup) Go(fn func() error) {
	sg.group.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				if sg.logger != nil {
					sg.logger.Error("Worker panic recovered",
						logger.WithField("panic", r),
						logger.WithField("stack_trace", string(debug.Stack())))
				}
				err = fmt.Errorf("worker panic: %v", r)
			}
		}()
		return fn()
	})
}

// Wait blocks until all goroutines have completed and returns the
// first error encountered.
func (sg *SafeGroup) Wait() error {
	return sg.group.Wait()
}
