// internal/domain/notification/notification.go
package notification

import (
	"database/sql"
	"errors"
	"time"
)

var (
	ErrNotificationNotFound  = errors.New("notification not found")
	ErrDuplicateNotification = errors.New("duplicate notification (cycle_id, kind)")
)

// Notification is one dispatched-or-attempted alert.
// Corresponds to the 'notifications' table; (cycle_id, kind) is unique.
type Notification struct {
	ID        int64        `db:"id"`
	UserID    int64        `db:"user_id"`
	CycleID   int64        `db:"cycle_id"`
	Kind      Kind         `db:"kind"`
	Message   string       `db:"message"`
	Sent      bool         `db:"sent"`
	SentAt    sql.NullTime `db:"sent_at"` // Set only on confirmed delivery
	CreatedAt time.Time    `db:"created_at"`
}

// MarkSent flips the row to delivered.
func (n *Notification) MarkSent(at time.Time) {
	n.Sent = true
	n.SentAt = sql.NullTime{Time: at, Valid: true}
}
