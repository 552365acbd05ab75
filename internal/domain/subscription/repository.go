package subscription

import "context"

// Repository defines persistence for subscriptions. The billing engine reads
// through GetByID and ListActive; the rest serves SubscriptionService.
type Repository interface {
	Create(ctx context.Context, s *Subscription) error
	GetByID(ctx context.Context, id int64) (*Subscription, error)
	ListByUser(ctx context.Context, userID int64) ([]*Subscription, error)
	// ListActive returns every ACTIVE subscription ordered by ID.
	ListActive(ctx context.Context) ([]*Subscription, error)
	Update(ctx context.Context, s *Subscription) error
	Delete(ctx context.Context, id int64) error
}
