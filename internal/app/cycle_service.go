// internal/app/cycle_service.go
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"payflow_billing/internal/clock"
	"payflow_billing/internal/domain/payment"
	"payflow_billing/internal/domain/subscription"

	"github.com/sirupsen/logrus"
)

const DefaultMonthsAhead = 12

// CycleService generates payment cycles and applies their status transitions.
// It is the only writer of payment_cycles besides bulk cleanup.
type CycleService struct {
	cycles      payment.Repository
	subs        subscription.Repository
	locker      Locker
	clock       clock.Clock
	logger      *logrus.Entry
	monthsAhead int
	lockTTL     time.Duration
}

func NewCycleService(
	cycles payment.Repository,
	subs subscription.Repository,
	locker Locker,
	clk clock.Clock,
	logger *logrus.Entry,
	monthsAhead int, // used when Generate is called with monthsAhead <= 0
	lockTTL time.Duration,
) *CycleService {
	if monthsAhead <= 0 {
		monthsAhead = DefaultMonthsAhead
	}
	return &CycleService{
		cycles:      cycles,
		subs:        subs,
		locker:      locker,
		clock:       clk,
		logger:      logger,
		monthsAhead: monthsAhead,
		lockTTL:     lockTTL,
	}
}

// Generate materializes the subscription's due dates for the next monthsAhead
// months. It is all-or-nothing: while any PENDING cycle exists the call is a
// no-op that reports zero created.
func (s *CycleService) Generate(ctx context.Context, subscriptionID int64, monthsAhead int) (int, error) {
	if monthsAhead <= 0 {
		monthsAhead = s.monthsAhead
	}
	log := s.logger.WithFields(logrus.Fields{
		"subscription_id": subscriptionID,
		"months_ahead":    monthsAhead,
	})

	sub, err := s.subs.GetByID(ctx, subscriptionID)
	if err != nil {
		return 0, fmt.Errorf("failed to get subscription %d: %w", subscriptionID, err)
	}
	billing := sub.Billing // snapshot; never re-read during this call

	unlock, ok, err := s.locker.TryLock(ctx, generationLockKey(subscriptionID), s.lockTTL)
	if err != nil {
		return 0, fmt.Errorf("failed to lock generation for subscription %d: %w", subscriptionID, err)
	}
	if !ok {
		log.Warn("Cycle generation already running for subscription. Skipping.")
		return 0, nil
	}
	defer unlock()

	pending, err := s.cycles.ListBySubscriptionAndStatus(ctx, subscriptionID, payment.StatusPending)
	if err != nil {
		return 0, fmt.Errorf("failed to check pending cycles for subscription %d: %w", subscriptionID, err)
	}
	if len(pending) > 0 {
		log.WithField("pending_count", len(pending)).Info("Pending cycles already exist. Skipping generation.")
		return 0, nil
	}

	today := payment.DateOf(s.clock.Now())
	dates, err := payment.Schedule(today, billing, monthsAhead)
	if err != nil {
		return 0, fmt.Errorf("subscription %d: %w", subscriptionID, err)
	}

	cycles := make([]*payment.Cycle, 0, len(dates))
	for _, d := range dates {
		cycles = append(cycles, payment.NewPendingCycle(subscriptionID, d))
	}

	if err := s.cycles.CreateBatch(ctx, cycles); err != nil {
		if errors.Is(err, payment.ErrDuplicatePendingCycle) {
			log.WithError(err).Warn("Concurrent generation won the race. Nothing created.")
			return 0, nil
		}
		return 0, fmt.Errorf("failed to store cycles for subscription %d: %w", subscriptionID, err)
	}

	log.WithFields(logrus.Fields{
		"cycle_type": billing.Kind,
		"created":    len(cycles),
		"base_date":  today.Format(time.DateOnly),
	}).Info("Payment cycles generated.")
	return len(cycles), nil
}

// MarkPaid records a payment. paidAmount may be nil when the amount is unknown.
func (s *CycleService) MarkPaid(ctx context.Context, cycleID int64, paidAmount *int64) (*payment.Cycle, error) {
	return s.transition(ctx, cycleID, func(c *payment.Cycle, now time.Time) error {
		return c.MarkPaid(paidAmount, now)
	})
}

// MarkPaidByOwner is MarkPaid for a user-facing caller: a cycle of another
// user's subscription is reported as not found.
func (s *CycleService) MarkPaidByOwner(ctx context.Context, userID, cycleID int64, paidAmount *int64) (*payment.Cycle, error) {
	if err := s.checkOwner(ctx, userID, cycleID); err != nil {
		return nil, err
	}
	return s.MarkPaid(ctx, cycleID, paidAmount)
}

// MarkCancelledByOwner cancels one PENDING cycle on behalf of its owner.
func (s *CycleService) MarkCancelledByOwner(ctx context.Context, userID, cycleID int64) (*payment.Cycle, error) {
	if err := s.checkOwner(ctx, userID, cycleID); err != nil {
		return nil, err
	}
	return s.MarkCancelled(ctx, cycleID)
}

func (s *CycleService) checkOwner(ctx context.Context, userID, cycleID int64) error {
	c, err := s.cycles.GetByID(ctx, cycleID)
	if err != nil {
		return fmt.Errorf("failed to get payment cycle %d: %w", cycleID, err)
	}
	sub, err := s.subs.GetByID(ctx, c.SubscriptionID)
	if err != nil {
		return fmt.Errorf("failed to get subscription %d: %w", c.SubscriptionID, err)
	}
	if sub.UserID != userID {
		return fmt.Errorf("cycle %d for user %d: %w", cycleID, userID, payment.ErrCycleNotFound)
	}
	return nil
}

func (s *CycleService) MarkOverdue(ctx context.Context, cycleID int64) (*payment.Cycle, error) {
	return s.transition(ctx, cycleID, (*payment.Cycle).MarkOverdue)
}

func (s *CycleService) MarkCancelled(ctx context.Context, cycleID int64) (*payment.Cycle, error) {
	return s.transition(ctx, cycleID, (*payment.Cycle).MarkCancelled)
}

func (s *CycleService) transition(ctx context.Context, cycleID int64, apply func(*payment.Cycle, time.Time) error) (*payment.Cycle, error) {
	c, err := s.cycles.GetByID(ctx, cycleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment cycle %d: %w", cycleID, err)
	}

	from := c.Status
	if err := apply(c, s.clock.Now()); err != nil {
		return nil, err
	}
	if err := s.cycles.UpdateStatus(ctx, c, from); err != nil {
		return nil, fmt.Errorf("failed to update payment cycle %d: %w", cycleID, err)
	}

	s.logger.WithFields(logrus.Fields{
		"cycle_id":        c.ID,
		"subscription_id": c.SubscriptionID,
		"from":            from,
		"to":              c.Status,
	}).Info("Payment cycle status changed.")
	return c, nil
}

// Upcoming lists the user's PENDING cycles due between today and today+days, soonest first.
func (s *CycleService) Upcoming(ctx context.Context, userID int64, days int) ([]*payment.Cycle, error) {
	if days < 0 {
		return nil, fmt.Errorf("%w: negative window of %d days", payment.ErrInvalidRange, days)
	}
	today := payment.DateOf(s.clock.Now())
	cycles, err := s.cycles.ListUpcomingForUser(ctx, userID, today, today.AddDate(0, 0, days))
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming payments for user %d: %w", userID, err)
	}
	return cycles, nil
}

// History lists the user's cycles of any status due within [start, end], latest first.
func (s *CycleService) History(ctx context.Context, userID int64, start, end time.Time) ([]*payment.Cycle, error) {
	start, end = payment.DateOf(start), payment.DateOf(end)
	if start.After(end) {
		return nil, fmt.Errorf("%w: %s > %s", payment.ErrInvalidRange, start.Format(time.DateOnly), end.Format(time.DateOnly))
	}
	cycles, err := s.cycles.ListHistoryForUser(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment history for user %d: %w", userID, err)
	}
	return cycles, nil
}

// ForSubscription lists every cycle of one of the user's subscriptions, earliest first.
func (s *CycleService) ForSubscription(ctx context.Context, userID, subscriptionID int64) ([]*payment.Cycle, error) {
	sub, err := s.subs.GetByID(ctx, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription %d: %w", subscriptionID, err)
	}
	if sub.UserID != userID {
		return nil, fmt.Errorf("subscription %d for user %d: %w", subscriptionID, userID, subscription.ErrSubscriptionNotFound)
	}
	cycles, err := s.cycles.ListBySubscription(ctx, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cycles for subscription %d: %w", subscriptionID, err)
	}
	return cycles, nil
}

// GenerateMissing runs Generate for every ACTIVE subscription. Subscriptions
// that still have PENDING cycles are no-ops, so this only refills those whose
// horizon ran out or that were stored without going through Create.
// A failing subscription does not stop the rest; all failures are joined.
func (s *CycleService) GenerateMissing(ctx context.Context) (int, error) {
	subs, err := s.subs.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list active subscriptions: %w", err)
	}

	total := 0
	var errs []error
	for _, sub := range subs {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		created, err := s.Generate(ctx, sub.ID, 0)
		if err != nil {
			s.logger.WithError(err).WithField("subscription_id", sub.ID).Error("Cycle generation failed.")
			errs = append(errs, err)
			continue
		}
		total += created
	}

	s.logger.WithFields(logrus.Fields{
		"subscriptions": len(subs),
		"created":       total,
		"failures":      len(errs),
	}).Info("Cycle refill finished.")
	return total, errors.Join(errs...)
}

// DeleteAllForSubscription removes the subscription's cycles and their
// notifications. Called before the subscription row itself is deleted.
func (s *CycleService) DeleteAllForSubscription(ctx context.Context, subscriptionID int64) error {
	if err := s.cycles.DeleteBySubscription(ctx, subscriptionID); err != nil {
		return fmt.Errorf("failed to delete cycles for subscription %d: %w", subscriptionID, err)
	}
	s.logger.WithField("subscription_id", subscriptionID).Info("Payment cycles and notifications deleted.")
	return nil
}
