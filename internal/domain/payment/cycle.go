// internal/domain/payment/cycle.go
package payment

import (
	"database/sql"
	"time"
)

// Cycle is one expected billing event of a subscription.
// Corresponds to the 'payment_cycles' table.
type Cycle struct {
	ID             int64         `db:"id"`
	SubscriptionID int64         `db:"subscription_id"`
	DueDate        time.Time     `db:"due_date"`
	Status         Status        `db:"status"`
	PaidAmount     sql.NullInt64 `db:"paid_amount"` // Valid only once PAID with a known amount
	CreatedAt      time.Time     `db:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at"`
}

// NewPendingCycle builds an unsaved PENDING cycle.
func NewPendingCycle(subscriptionID int64, dueDate time.Time) *Cycle {
	return &Cycle{
		SubscriptionID: subscriptionID,
		DueDate:        DateOf(dueDate),
		Status:         StatusPending,
	}
}
