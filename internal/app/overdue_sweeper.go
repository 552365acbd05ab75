// internal/app/overdue_sweeper.go
package app

import (
	"context"
	"fmt"
	"time"

	"payflow_billing/internal/domain/notification"
	"payflow_billing/internal/domain/payment"

	"github.com/sirupsen/logrus"
)

// OverdueMarker applies the PENDING -> OVERDUE transition.
type OverdueMarker interface {
	MarkOverdue(ctx context.Context, cycleID int64) (*payment.Cycle, error)
}

// OverdueAlerter sends the overdue notification for a cycle.
type OverdueAlerter interface {
	SendOverdue(ctx context.Context, c *payment.Cycle) Result
}

// OverdueSweeper ages PENDING cycles whose due date has passed into OVERDUE.
type OverdueSweeper struct {
	cycles  payment.Repository
	marker  OverdueMarker
	alerter OverdueAlerter
	logger  *logrus.Entry
}

func NewOverdueSweeper(cycles payment.Repository, marker OverdueMarker, alerter OverdueAlerter, logger *logrus.Entry) *OverdueSweeper {
	return &OverdueSweeper{cycles: cycles, marker: marker, alerter: alerter, logger: logger}
}

// Run processes every PENDING cycle due strictly before today. Each cycle is
// handled on its own; a failure is recorded in the report and the sweep goes on.
func (s *OverdueSweeper) Run(ctx context.Context, today time.Time) (Report, error) {
	today = payment.DateOf(today)
	report := Report{Job: "overdue_sweep", Date: today}

	stale, err := s.cycles.ListByStatusDueBefore(ctx, payment.StatusPending, today)
	if err != nil {
		return report, fmt.Errorf("failed to list pending cycles due before %s: %w", today.Format(time.DateOnly), err)
	}
	s.logger.WithField("candidates", len(stale)).Info("Overdue candidates selected.")

	for _, c := range stale {
		res := isolate(c.ID, notification.KindOverdue, func() Result {
			return s.sweepOne(ctx, c)
		})
		if res.Outcome == OutcomeTransitionFailed {
			s.logger.WithFields(logrus.Fields{
				"cycle_id":        c.ID,
				"subscription_id": c.SubscriptionID,
			}).WithError(res.Err).Error("Failed to mark cycle overdue.")
		}
		report.add(res)
	}

	s.logger.WithFields(logrus.Fields{
		"processed": len(report.Results),
		"failures":  report.Failures(),
	}).Info("Overdue sweep finished.")
	return report, nil
}

func (s *OverdueSweeper) sweepOne(ctx context.Context, c *payment.Cycle) Result {
	updated, err := s.marker.MarkOverdue(ctx, c.ID)
	if err != nil {
		return Result{CycleID: c.ID, Kind: notification.KindOverdue, Outcome: OutcomeTransitionFailed, Err: err}
	}

	res := s.alerter.SendOverdue(ctx, updated)
	res.Overdue = true
	return res
}
