// internal/domain/notification/repository.go
package notification

import (
	"context"
	"time"
)

// Repository is the notification ledger used for at-most-once dispatch.
type Repository interface {
	// Create claims the (cycle_id, kind) slot. Returns ErrDuplicateNotification
	// when another row already holds it.
	Create(ctx context.Context, n *Notification) error
	Exists(ctx context.Context, cycleID int64, kind Kind) (bool, error)
	MarkSent(ctx context.Context, id int64, sentAt time.Time) error

	ListByUser(ctx context.Context, userID int64) ([]*Notification, error)
	// ListUnsent returns rows whose delivery was never confirmed, oldest first.
	ListUnsent(ctx context.Context) ([]*Notification, error)
}
