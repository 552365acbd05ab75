// internal/app/reminder_dispatcher.go
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"payflow_billing/internal/clock"
	"payflow_billing/internal/domain/notification"
	"payflow_billing/internal/domain/notifier"
	"payflow_billing/internal/domain/payment"
	"payflow_billing/internal/domain/subscription"
	"payflow_billing/internal/domain/user"

	"github.com/sirupsen/logrus"
)

var ErrInvalidDaysAhead = errors.New("reminders are only sent 3 or 1 days ahead")

const defaultSendTimeout = 30 * time.Second

// ReminderDispatcher sends D-3 / D-1 reminders and overdue alerts, at most once
// per (cycle, kind). The notification row is written before the send so the
// slot is claimed even when delivery fails.
type ReminderDispatcher struct {
	cycles        payment.Repository
	notifications notification.Repository
	subs          subscription.Repository
	users         user.Repository
	notifier      notifier.Notifier
	clock         clock.Clock
	logger        *logrus.Entry
	sendTimeout   time.Duration
}

func NewReminderDispatcher(
	cycles payment.Repository,
	notifications notification.Repository,
	subs subscription.Repository,
	users user.Repository,
	n notifier.Notifier,
	clk clock.Clock,
	logger *logrus.Entry,
	sendTimeout time.Duration,
) *ReminderDispatcher {
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}
	return &ReminderDispatcher{
		cycles:        cycles,
		notifications: notifications,
		subs:          subs,
		users:         users,
		notifier:      n,
		clock:         clk,
		logger:        logger,
		sendTimeout:   sendTimeout,
	}
}

// SendReminders notifies every PENDING cycle due exactly daysAhead days after today.
// Per-cycle failures land in the report; only a failed candidate query is returned as error.
func (d *ReminderDispatcher) SendReminders(ctx context.Context, today time.Time, daysAhead int) (Report, error) {
	kind, ok := notification.ReminderKind(daysAhead)
	if !ok {
		return Report{}, fmt.Errorf("%w: got %d", ErrInvalidDaysAhead, daysAhead)
	}

	due := payment.DateOf(today).AddDate(0, 0, daysAhead)
	report := Report{Job: string(kind), Date: payment.DateOf(today)}
	log := d.logger.WithFields(logrus.Fields{"kind": kind, "due_date": due.Format(time.DateOnly)})

	candidates, err := d.cycles.ListByStatusDueOn(ctx, payment.StatusPending, due)
	if err != nil {
		return report, fmt.Errorf("failed to list cycles due on %s: %w", due.Format(time.DateOnly), err)
	}
	log.WithField("candidates", len(candidates)).Info("Reminder candidates selected.")

	for _, c := range candidates {
		res := isolate(c.ID, kind, func() Result {
			return d.remind(ctx, c, kind, daysAhead)
		})
		d.logResult(res)
		report.add(res)
	}
	return report, nil
}

func (d *ReminderDispatcher) remind(ctx context.Context, c *payment.Cycle, kind notification.Kind, daysAhead int) Result {
	sub, err := d.subs.GetByID(ctx, c.SubscriptionID)
	if err != nil {
		return failed(c, kind, fmt.Errorf("failed to get subscription %d: %w", c.SubscriptionID, err))
	}
	if !sub.Billing.ReminderEnabled(daysAhead) {
		return Result{CycleID: c.ID, Kind: kind, Outcome: OutcomeSkippedDisabled}
	}

	msg := reminderMessage(sub, c.DueDate, daysAhead)
	return d.dispatch(ctx, c, sub, kind, msg, func(ctx context.Context, to notifier.Recipient) error {
		return d.notifier.SendReminder(ctx, notifier.Reminder{
			CycleID:          c.ID,
			Recipient:        to,
			SubscriptionName: sub.Name,
			DueDate:          c.DueDate,
			DaysAhead:        daysAhead,
			Amount:           sub.Amount,
			Currency:         sub.Currency,
			Message:          msg,
		})
	})
}

// CountUnsent reports ledger rows whose delivery was never confirmed. They are
// never retried automatically, so the count only grows until someone looks.
func (d *ReminderDispatcher) CountUnsent(ctx context.Context) (int, error) {
	rows, err := d.notifications.ListUnsent(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list unsent notifications: %w", err)
	}
	return len(rows), nil
}

// SendOverdue alerts the owner of an overdue cycle. Same dedup protocol as reminders.
func (d *ReminderDispatcher) SendOverdue(ctx context.Context, c *payment.Cycle) Result {
	res := isolate(c.ID, notification.KindOverdue, func() Result {
		sub, err := d.subs.GetByID(ctx, c.SubscriptionID)
		if err != nil {
			return failed(c, notification.KindOverdue, fmt.Errorf("failed to get subscription %d: %w", c.SubscriptionID, err))
		}

		msg := overdueMessage(sub, c.DueDate)
		return d.dispatch(ctx, c, sub, notification.KindOverdue, msg, func(ctx context.Context, to notifier.Recipient) error {
			return d.notifier.SendOverdue(ctx, notifier.Overdue{
				CycleID:          c.ID,
				Recipient:        to,
				SubscriptionName: sub.Name,
				DueDate:          c.DueDate,
				Amount:           sub.Amount,
				Currency:         sub.Currency,
				Message:          msg,
			})
		})
	})
	d.logResult(res)
	return res
}

// dispatch is the shared dedup -> claim -> send -> confirm protocol.
func (d *ReminderDispatcher) dispatch(
	ctx context.Context,
	c *payment.Cycle,
	sub *subscription.Subscription,
	kind notification.Kind,
	msg string,
	send func(context.Context, notifier.Recipient) error,
) Result {
	exists, err := d.notifications.Exists(ctx, c.ID, kind)
	if err != nil {
		return failed(c, kind, fmt.Errorf("failed to check notification ledger: %w", err))
	}
	if exists {
		return Result{CycleID: c.ID, Kind: kind, Outcome: OutcomeSkippedDuplicate}
	}

	u, err := d.users.GetByID(ctx, sub.UserID)
	if err != nil {
		return failed(c, kind, fmt.Errorf("failed to get user %d: %w", sub.UserID, err))
	}

	n := &notification.Notification{
		UserID:  sub.UserID,
		CycleID: c.ID,
		Kind:    kind,
		Message: msg,
	}
	if err := d.notifications.Create(ctx, n); err != nil {
		if errors.Is(err, notification.ErrDuplicateNotification) {
			return Result{CycleID: c.ID, Kind: kind, Outcome: OutcomeSkippedDuplicate}
		}
		return failed(c, kind, fmt.Errorf("failed to record notification: %w", err))
	}

	if err := d.deliver(ctx, func(ctx context.Context) error { return send(ctx, recipientOf(u)) }); err != nil {
		return Result{CycleID: c.ID, Kind: kind, Outcome: OutcomeSendFailed, Err: err}
	}

	if err := d.notifications.MarkSent(ctx, n.ID, d.clock.Now()); err != nil {
		return Result{CycleID: c.ID, Kind: kind, Outcome: OutcomeSentUnrecorded, Err: fmt.Errorf("failed to mark notification %d sent: %w", n.ID, err)}
	}
	return Result{CycleID: c.ID, Kind: kind, Outcome: OutcomeSent}
}

// deliver bounds one send by sendTimeout and turns a notifier panic into an error,
// so a stuck channel cannot hold up the rest of the batch.
func (d *ReminderDispatcher) deliver(ctx context.Context, send func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("notifier panic: %v", r)
			}
		}()
		done <- send(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("notification send aborted: %w", ctx.Err())
	}
}

func (d *ReminderDispatcher) logResult(res Result) {
	entry := d.logger.WithFields(logrus.Fields{
		"cycle_id": res.CycleID,
		"kind":     res.Kind,
		"outcome":  res.Outcome,
	})
	switch {
	case res.Outcome.IsFailure():
		entry.WithError(res.Err).Error("Notification dispatch failed.")
	case res.Outcome == OutcomeSent:
		entry.Info("Notification sent.")
	default:
		entry.Debug("Notification skipped.")
	}
}

func failed(c *payment.Cycle, kind notification.Kind, err error) Result {
	return Result{CycleID: c.ID, Kind: kind, Outcome: OutcomeFailed, Err: err}
}

func recipientOf(u *user.User) notifier.Recipient {
	r := notifier.Recipient{Name: u.Name, Email: u.Email}
	if u.TelegramID.Valid {
		r.TelegramID = u.TelegramID.Int64
	}
	return r
}
