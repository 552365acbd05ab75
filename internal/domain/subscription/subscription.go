// internal/domain/subscription/subscription.go
package subscription

import (
	"errors"
	"fmt"
	"time"

	"payflow_billing/internal/domain/payment"
)

var ErrSubscriptionNotFound = errors.New("subscription not found")

// Status of the subscription itself, independent of its payment cycles.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusPaused   Status = "PAUSED"
	StatusCanceled Status = "CANCELED"
)

const DefaultCurrency = "KRW"

// Subscription is the record the billing engine reads its configuration from.
type Subscription struct {
	ID       int64
	UserID   int64
	Name     string
	Category string
	Amount   int64 // Minor units of Currency
	Currency string
	Billing  payment.BillingConfig
	Status   Status
	BankName string
	Memo     string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// WithDefaults fills the values a new subscription gets when the caller leaves them unset.
func (s Subscription) WithDefaults() Subscription {
	if s.Currency == "" {
		s.Currency = DefaultCurrency
	}
	if s.Status == "" {
		s.Status = StatusActive
	}
	return s
}

func (s Subscription) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: subscription name is required", payment.ErrInvalidConfiguration)
	}
	if s.Amount < 0 {
		return fmt.Errorf("%w: amount must not be negative", payment.ErrInvalidConfiguration)
	}
	return s.Billing.Validate()
}
