// internal/domain/payment/billing.go
package payment

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// CycleKind is the billing granularity of a subscription.
type CycleKind string

const (
	CycleMonthly CycleKind = "MONTHLY"
	CycleWeekly  CycleKind = "WEEKLY"
	CycleYearly  CycleKind = "YEARLY"
)

// BillingConfig is the recurrence snapshot read from a subscription.
// Only the fields relevant to Kind are required; the others are ignored.
type BillingConfig struct {
	Kind           CycleKind `validate:"required,oneof=MONTHLY WEEKLY YEARLY"`
	BillingDay     *int      `validate:"omitempty,min=1,max=31"` // MONTHLY
	BillingWeekday *int      `validate:"omitempty,min=1,max=7"`  // WEEKLY, 1=Monday..7=Sunday
	BillingMonth   *int      `validate:"omitempty,min=1,max=12"` // YEARLY
	BillingDate    *int      `validate:"omitempty,min=1,max=31"` // YEARLY
	ReminderD3     bool
	ReminderD1     bool
}

var validate = validator.New()

// Validate reports ErrInvalidConfiguration when a parameter required by Kind is
// missing or any configured parameter is out of range.
func (c BillingConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}

	switch c.Kind {
	case CycleMonthly:
		if c.BillingDay == nil {
			return fmt.Errorf("%w: monthly billing requires a billing day", ErrInvalidConfiguration)
		}
	case CycleWeekly:
		if c.BillingWeekday == nil {
			return fmt.Errorf("%w: weekly billing requires a billing weekday", ErrInvalidConfiguration)
		}
	case CycleYearly:
		if c.BillingMonth == nil || c.BillingDate == nil {
			return fmt.Errorf("%w: yearly billing requires a billing month and date", ErrInvalidConfiguration)
		}
	}
	return nil
}

// ReminderEnabled returns the subscription's flag for a D-daysAhead reminder.
func (c BillingConfig) ReminderEnabled(daysAhead int) bool {
	switch daysAhead {
	case 3:
		return c.ReminderD3
	case 1:
		return c.ReminderD1
	default:
		return false
	}
}

// Int returns a pointer to v. Handy for building configs.
func Int(v int) *int { return &v }
