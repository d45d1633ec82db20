package process_test

import (
	"context"
	"testing"

	"github.com/pkgreview/pkgreview/pkg/process"
)

func TestManager_StartStop(t *testing.T) {
	m := process.NewManager(nil)
	if m.IsRunning() {
		t.Error("manager must not run before Start")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.Start(ctx)
	if !m.IsRunning() {
		t.Error("manager must report running after Start")
	}

	// Second start is a no-op.
	m.Start(ctx)

	m.Stop()
	if m.IsRunning() {
		t.Error("manager must stop on Stop")
	}
}

func TestManager_StopWithoutStart(t *testing.T) {
	m := process.NewManager(nil)
	m.Stop()
	if m.IsRunning() {
		t.Error("stopping an idle manager must be a no-op")
	}
}
