// Package console "delivers" alerts by logging them. Used in development and
// with STORAGE=memory.
package console

import (
	"context"
	"time"

	"payflow_billing/internal/domain/notifier"

	"github.com/sirupsen/logrus"
)

type Notifier struct {
	logger *logrus.Entry
}

var _ notifier.Notifier = (*Notifier)(nil)

func NewNotifier(logger *logrus.Entry) *Notifier {
	return &Notifier{logger: logger}
}

func (n *Notifier) SendReminder(_ context.Context, r notifier.Reminder) error {
	n.logger.WithFields(logrus.Fields{
		"cycle_id":   r.CycleID,
		"recipient":  r.Recipient.Name,
		"due_date":   r.DueDate.Format(time.DateOnly),
		"days_ahead": r.DaysAhead,
	}).Info(r.Message)
	return nil
}

func (n *Notifier) SendOverdue(_ context.Context, o notifier.Overdue) error {
	n.logger.WithFields(logrus.Fields{
		"cycle_id":  o.CycleID,
		"recipient": o.Recipient.Name,
		"due_date":  o.DueDate.Format(time.DateOnly),
	}).Warn(o.Message)
	return nil
}
