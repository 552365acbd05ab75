// Package memstore keeps every repository in process memory. It backs
// STORAGE=memory and the service tests, and enforces the same uniqueness
// rules as the Postgres schema.
package memstore

import (
	"sync"

	"payflow_billing/internal/clock"
	"payflow_billing/internal/domain/notification"
	"payflow_billing/internal/domain/payment"
	"payflow_billing/internal/domain/subscription"
	"payflow_billing/internal/domain/user"
)

// Store is the shared state behind the four repositories.
type Store struct {
	mu    sync.Mutex
	clock clock.Clock

	users         map[int64]user.User
	subscriptions map[int64]subscription.Subscription
	cycles        map[int64]payment.Cycle
	notifications map[int64]notification.Notification

	nextSubscriptionID int64
	nextCycleID        int64
	nextNotificationID int64
}

func New(clk clock.Clock) *Store {
	return &Store{
		clock:         clk,
		users:         make(map[int64]user.User),
		subscriptions: make(map[int64]subscription.Subscription),
		cycles:        make(map[int64]payment.Cycle),
		notifications: make(map[int64]notification.Notification),
	}
}

// AddUser seeds a user. Users are owned by another system, so there is no
// repository method for it.
func (s *Store) AddUser(u user.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *Store) Cycles() *CycleRepository {
	return &CycleRepository{s: s}
}

func (s *Store) Notifications() *NotificationRepository {
	return &NotificationRepository{s: s}
}

func (s *Store) Subscriptions() *SubscriptionRepository {
	return &SubscriptionRepository{s: s}
}

func (s *Store) Users() *UserRepository {
	return &UserRepository{s: s}
}
