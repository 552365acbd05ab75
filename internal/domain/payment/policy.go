// internal/domain/payment/policy.go
package payment

import (
	"fmt"
	"time"
)

// Occurrences is how many due dates a months-ahead horizon produces for kind.
// Weekly is approximated as four per month; yearly never drops below one.
func Occurrences(kind CycleKind, monthsAhead int) int {
	if monthsAhead <= 0 {
		return 0
	}
	switch kind {
	case CycleMonthly:
		return monthsAhead
	case CycleWeekly:
		return monthsAhead * 4
	case CycleYearly:
		return max(1, monthsAhead/12)
	default:
		return 0
	}
}

// DueDate returns the i-th (0-based) due date for cfg counted from base.
// cfg must have passed Validate.
func DueDate(base time.Time, cfg BillingConfig, i int) (time.Time, error) {
	base = DateOf(base)
	switch cfg.Kind {
	case CycleMonthly:
		if cfg.BillingDay == nil {
			return time.Time{}, fmt.Errorf("%w: missing billing day", ErrInvalidConfiguration)
		}
		return monthlyDueDate(base, *cfg.BillingDay, i), nil
	case CycleWeekly:
		if cfg.BillingWeekday == nil {
			return time.Time{}, fmt.Errorf("%w: missing billing weekday", ErrInvalidConfiguration)
		}
		return weeklyDueDate(base, *cfg.BillingWeekday, i), nil
	case CycleYearly:
		if cfg.BillingMonth == nil || cfg.BillingDate == nil {
			return time.Time{}, fmt.Errorf("%w: missing billing month or date", ErrInvalidConfiguration)
		}
		return yearlyDueDate(base, *cfg.BillingMonth, *cfg.BillingDate, i), nil
	default:
		return time.Time{}, fmt.Errorf("%w: unknown cycle kind %q", ErrInvalidConfiguration, cfg.Kind)
	}
}

// Schedule validates cfg and returns every due date for the horizon, in order.
func Schedule(base time.Time, cfg BillingConfig, monthsAhead int) ([]time.Time, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	n := Occurrences(cfg.Kind, monthsAhead)
	dates := make([]time.Time, 0, n)
	for i := 0; i < n; i++ {
		d, err := DueDate(base, cfg, i)
		if err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, nil
}

// monthlyDueDate steps whole calendar months from base's month, so a base of
// Jan 31 goes to February rather than overflowing into March.
func monthlyDueDate(base time.Time, day, i int) time.Time {
	first := Date(base.Year(), base.Month()+time.Month(i), 1)
	return clampedDate(first.Year(), first.Month(), day)
}

// weeklyDueDate is the first isoWeekday on or after base + i weeks.
func weeklyDueDate(base time.Time, isoWeekday, i int) time.Time {
	from := base.AddDate(0, 0, 7*i)
	target := time.Weekday(isoWeekday % 7)
	delta := (int(target) - int(from.Weekday()) + 7) % 7
	return from.AddDate(0, 0, delta)
}

// yearlyDueDate shifts the whole sequence by a year when this year's date has
// already passed, so offset 0 is never in the past and offsets never collide.
// Offsets >= 1 move too: bumping only offset 0 would make it equal offset 1.
func yearlyDueDate(base time.Time, month, day, i int) time.Time {
	if clampedDate(base.Year(), time.Month(month), day).Before(base) {
		i++
	}
	return clampedDate(base.Year()+i, time.Month(month), day)
}
