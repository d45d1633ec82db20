package scheduler_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/pkgreview/pkgreview/pkg/scheduler"
)

func TestSafeGroup_RecoversPanic(t *testing.T) {
	sg, _ := scheduler.NewSafeGroup(context.Background(), nil)

	sg.Go(func() error {
		panic("worker exploded")
	})

	err := sg.Wait()
	if err == nil {
		t.Fatal("expected the panic surfaced as an error")
	}
	if !strings.Contains(err.Error(), "worker exploded") {
		t.Errorf("panic value lost: %v", err)
	}
}

func TestSafeGroup_PropagatesError(t *testing.T) {
	sg, _ := scheduler.NewSafeGroup(context.Background(), nil)
	sentinel := errors.New("regular failure")

	sg.Go(func() error { return sentinel })
	sg.Go(func() error { return nil })

	if err := sg.Wait(); !errors.Is(err, sentinel) {
		t.Errorf("expected the worker error, got %v", err)
	}
}

func TestSafeGroup_CancelsContextOnFailure(t *testing.T) {
	sg, ctx := scheduler.NewSafeGroup(context.Background(), nil)

	sg.Go(func() error { return errors.New("fail fast") })
	sg.Go(func() error {
		<-ctx.Done()
		return nil
	})

	if err := sg.Wait(); err == nil {
		t.Fatal("expected an error")
	}
}
