package memstore

import (
	"context"
	"fmt"
	"sort"

	"payflow_billing/internal/domain/subscription"
	"payflow_billing/internal/domain/user"
)

var (
	_ subscription.Repository = (*SubscriptionRepository)(nil)
	_ user.Repository         = (*UserRepository)(nil)
)

type SubscriptionRepository struct {
	s *Store
}

func (r *SubscriptionRepository) Create(_ context.Context, sub *subscription.Subscription) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.nextSubscriptionID++
	now := r.s.clock.Now()
	sub.ID = r.s.nextSubscriptionID
	sub.CreatedAt, sub.UpdatedAt = now, now
	r.s.subscriptions[sub.ID] = *sub
	return nil
}

func (r *SubscriptionRepository) GetByID(_ context.Context, id int64) (*subscription.Subscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	sub, ok := r.s.subscriptions[id]
	if !ok {
		return nil, fmt.Errorf("subscription %d: %w", id, subscription.ErrSubscriptionNotFound)
	}
	return &sub, nil
}

func (r *SubscriptionRepository) ListByUser(_ context.Context, userID int64) ([]*subscription.Subscription, error) {
	return r.list(func(sub subscription.Subscription) bool { return sub.UserID == userID }), nil
}

func (r *SubscriptionRepository) ListActive(_ context.Context) ([]*subscription.Subscription, error) {
	return r.list(func(sub subscription.Subscription) bool { return sub.Status == subscription.StatusActive }), nil
}

func (r *SubscriptionRepository) list(keep func(subscription.Subscription) bool) []*subscription.Subscription {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]*subscription.Subscription, 0)
	for _, sub := range r.s.subscriptions {
		if keep(sub) {
			out = append(out, &sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *SubscriptionRepository) Update(_ context.Context, sub *subscription.Subscription) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.subscriptions[sub.ID]; !ok {
		return fmt.Errorf("subscription %d: %w", sub.ID, subscription.ErrSubscriptionNotFound)
	}
	sub.UpdatedAt = r.s.clock.Now()
	r.s.subscriptions[sub.ID] = *sub
	return nil
}

func (r *SubscriptionRepository) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.subscriptions[id]; !ok {
		return fmt.Errorf("subscription %d: %w", id, subscription.ErrSubscriptionNotFound)
	}
	delete(r.s.subscriptions, id)
	return nil
}

type UserRepository struct {
	s *Store
}

func (r *UserRepository) GetByID(_ context.Context, id int64) (*user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, user.ErrUserNotFound)
	}
	return &u, nil
}

func (r *UserRepository) GetByTelegramID(_ context.Context, telegramID int64) (*user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if u.TelegramID.Valid && u.TelegramID.Int64 == telegramID {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("telegram user %d: %w", telegramID, user.ErrUserNotFound)
}
