package app

import (
	"context"
	"fmt"

	"payflow_billing/internal/domain/payment"
	"payflow_billing/internal/domain/subscription"
	"payflow_billing/internal/domain/user"

	"github.com/sirupsen/logrus"
)

// CreateSubscriptionInput is what a caller supplies for a new subscription.
// Nil reminder flags default to enabled.
type CreateSubscriptionInput struct {
	Name       string
	Category   string
	Amount     int64
	Currency   string
	Billing    payment.BillingConfig
	ReminderD3 *bool
	ReminderD1 *bool
	BankName   string
	Memo       string
}

// SubscriptionService is the subscription collaborator: it owns the
// subscription rows and drives cycle generation and cleanup around them.
type SubscriptionService struct {
	subs   subscription.Repository
	users  user.Repository
	cycles *CycleService
	logger *logrus.Entry
}

func NewSubscriptionService(subs subscription.Repository, users user.Repository, cycles *CycleService, logger *logrus.Entry) *SubscriptionService {
	return &SubscriptionService{subs: subs, users: users, cycles: cycles, logger: logger}
}

// Create stores the subscription and generates its cycles. A failed generation
// is logged but does not undo the subscription; Generate can be retried later.
func (s *SubscriptionService) Create(ctx context.Context, userID int64, in CreateSubscriptionInput) (*subscription.Subscription, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}

	billing := in.Billing
	billing.ReminderD3 = in.ReminderD3 == nil || *in.ReminderD3
	billing.ReminderD1 = in.ReminderD1 == nil || *in.ReminderD1

	sub := subscription.Subscription{
		UserID:   userID,
		Name:     in.Name,
		Category: in.Category,
		Amount:   in.Amount,
		Currency: in.Currency,
		Billing:  billing,
		BankName: in.BankName,
		Memo:     in.Memo,
	}.WithDefaults()
	if err := sub.Validate(); err != nil {
		return nil, err
	}

	if err := s.subs.Create(ctx, &sub); err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}

	log := s.logger.WithFields(logrus.Fields{"user_id": userID, "subscription_id": sub.ID})
	if created, err := s.cycles.Generate(ctx, sub.ID, 0); err != nil {
		log.WithError(err).Error("Cycle generation failed for new subscription.")
	} else {
		log.WithField("created", created).Info("Subscription created.")
	}
	return &sub, nil
}

// Get returns the subscription if userID owns it. Another user's subscription
// is reported as not found.
func (s *SubscriptionService) Get(ctx context.Context, userID, subscriptionID int64) (*subscription.Subscription, error) {
	sub, err := s.subs.GetByID(ctx, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription %d: %w", subscriptionID, err)
	}
	if sub.UserID != userID {
		return nil, fmt.Errorf("subscription %d for user %d: %w", subscriptionID, userID, subscription.ErrSubscriptionNotFound)
	}
	return sub, nil
}

func (s *SubscriptionService) List(ctx context.Context, userID int64) ([]*subscription.Subscription, error) {
	subs, err := s.subs.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions for user %d: %w", userID, err)
	}
	return subs, nil
}

// Update applies a sparse patch. Existing cycles are left as generated.
func (s *SubscriptionService) Update(ctx context.Context, userID, subscriptionID int64, patch subscription.Patch) (*subscription.Subscription, error) {
	cur, err := s.Get(ctx, userID, subscriptionID)
	if err != nil {
		return nil, err
	}

	next := subscription.Merge(*cur, patch)
	if err := next.Validate(); err != nil {
		return nil, err
	}
	if err := s.subs.Update(ctx, &next); err != nil {
		return nil, fmt.Errorf("failed to update subscription %d: %w", subscriptionID, err)
	}
	return &next, nil
}

// Delete removes cycles and notifications first, then the subscription row.
func (s *SubscriptionService) Delete(ctx context.Context, userID, subscriptionID int64) error {
	if _, err := s.Get(ctx, userID, subscriptionID); err != nil {
		return err
	}
	if err := s.cycles.DeleteAllForSubscription(ctx, subscriptionID); err != nil {
		return err
	}
	if err := s.subs.Delete(ctx, subscriptionID); err != nil {
		return fmt.Errorf("failed to delete subscription %d: %w", subscriptionID, err)
	}
	s.logger.WithFields(logrus.Fields{"user_id": userID, "subscription_id": subscriptionID}).Info("Subscription deleted.")
	return nil
}
