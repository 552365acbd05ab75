// internal/domain/payment/status.go
package payment

import (
	"database/sql"
	"fmt"
	"time"
)

// Status is the lifecycle state of a Cycle. PENDING is the only non-terminal state.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPaid      Status = "PAID"
	StatusOverdue   Status = "OVERDUE"
	StatusCancelled Status = "CANCELLED"
)

func (s Status) IsTerminal() bool {
	switch s {
	case StatusPaid, StatusOverdue, StatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether s -> to is an allowed edge.
func (s Status) CanTransitionTo(to Status) bool {
	return s == StatusPending && to.IsTerminal()
}

func (c *Cycle) transition(to Status, now time.Time) error {
	if !c.Status.CanTransitionTo(to) {
		return fmt.Errorf("%w: cycle %d is %s, cannot become %s", ErrConflict, c.ID, c.Status, to)
	}
	c.Status = to
	c.UpdatedAt = now
	return nil
}

// MarkPaid moves a PENDING cycle to PAID and records the amount, if given.
func (c *Cycle) MarkPaid(amount *int64, now time.Time) error {
	if err := c.transition(StatusPaid, now); err != nil {
		return err
	}
	if amount != nil {
		c.PaidAmount = sql.NullInt64{Int64: *amount, Valid: true}
	}
	return nil
}

func (c *Cycle) MarkOverdue(now time.Time) error {
	return c.transition(StatusOverdue, now)
}

func (c *Cycle) MarkCancelled(now time.Time) error {
	return c.transition(StatusCancelled, now)
}
