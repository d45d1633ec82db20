// Package notifier surfaces review-run completion to the desktop.
// Review runs of large changes take a while; a notification beats
// staring at the terminal.
package notifier

import (
	"fmt"
	"time"

	"github.com/gen2brain/beeep"

	"github.com/pkgreview/pkgreview/pkg/logger"
	"github.com/pkgreview/pkgreview/pkg/types"
)

// ReviewNotifier implements interfaces.ReviewNotifier with desktop
// notifications.
type ReviewNotifier struct {
	enabled bool
	logger  logger.Logger
}

// New creates a notifier; when disabled, every call is a no-op.
func New(enabled bool, log logger.Logger) *ReviewNotifier {
	return &ReviewNotifier{enabled: enabled, logger: log}
}

// NotifyRunStart announces the start of a review run.
func (n *ReviewNotifier) NotifyRunStart(runID string, targets int) {
	if !n.enabled {
		return
	}
	n.send("pkgreview", fmt.Sprintf("Reviewing %d targets", targets))
}

// NotifyRunFinished announces the outcome of a finished run.
func (n *ReviewNotifier) NotifyRunFinished(report *types.Report, duration time.Duration) {
	if !n.enabled {
		return
	}

	if report.Succeeded() {
		n.send("✅ Review passed", fmt.Sprintf("%d built in %s",
			report.Counts[types.OutcomeSuccess], duration.Round(time.Second)))
		return
	}

	failed := report.Counts[types.OutcomeBuildFailure] +
		report.Counts[types.OutcomeEvalFailure] +
		report.Counts[types.OutcomeTimeout]
	total := 0
	for _, count := range report.Counts {
		total += count
	}
	n.send("❌ Review failed", fmt.Sprintf("%d of %d targets failed", failed, total))
}

func (n *ReviewNotifier) send(title, message string) {
	if err := beeep.Notify(title, message, ""); err != nil && n.logger != nil {
		n.logger.Debug("Failed to send notification", logger.WithField("error", err))
	}
}
