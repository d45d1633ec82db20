package notifier_test

import (
	"testing"
	"time"

	"github.com/pkgreview/pkgreview/pkg/notifier"
	"github.com/pkgreview/pkgreview/pkg/types"
)

func TestNotifier_DisabledIsNoOp(t *testing.T) {
	n := notifier.New(false, nil)

	// Must not reach the desktop notification layer at all.
	n.NotifyRunStart("run-1", 10)
	n.NotifyRunFinished(&types.Report{
		Counts: map[types.OutcomeKind]int{types.OutcomeSuccess: 10},
	}, 3*time.Second)
}
