// internal/domain/payment/repository.go
package payment

import (
	"context"
	"time"
)

// Repository is the cycle ledger.
type Repository interface {
	// CreateBatch inserts all cycles or none of them. A clash with an existing
	// PENDING (subscription_id, due_date) yields ErrDuplicatePendingCycle.
	CreateBatch(ctx context.Context, cycles []*Cycle) error
	GetByID(ctx context.Context, id int64) (*Cycle, error)
	ListBySubscription(ctx context.Context, subscriptionID int64) ([]*Cycle, error)
	ListBySubscriptionAndStatus(ctx context.Context, subscriptionID int64, status Status) ([]*Cycle, error)

	// ListByStatusDueBefore returns cycles in status whose due date is strictly before date.
	ListByStatusDueBefore(ctx context.Context, status Status, date time.Time) ([]*Cycle, error)
	ListByStatusDueOn(ctx context.Context, status Status, date time.Time) ([]*Cycle, error)

	// ListUpcomingForUser returns the user's PENDING cycles due in [from, to], ascending.
	ListUpcomingForUser(ctx context.Context, userID int64, from, to time.Time) ([]*Cycle, error)
	// ListHistoryForUser returns the user's cycles of any status due in [from, to], descending.
	ListHistoryForUser(ctx context.Context, userID int64, from, to time.Time) ([]*Cycle, error)

	// UpdateStatus persists c's status, paid amount and updated_at only if the
	// stored status still equals from. Returns ErrConflict when it does not.
	UpdateStatus(ctx context.Context, c *Cycle, from Status) error

	// DeleteBySubscription removes the subscription's cycles and every
	// notification referencing them, atomically.
	DeleteBySubscription(ctx context.Context, subscriptionID int64) error
}
