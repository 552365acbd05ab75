package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"payflow_billing/internal/domain/payment"
)

var _ payment.Repository = (*CycleRepository)(nil)

type CycleRepository struct {
	s *Store
}

func (r *CycleRepository) CreateBatch(_ context.Context, cycles []*payment.Cycle) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	type slot struct {
		sub int64
		due time.Time
	}
	taken := make(map[slot]bool)
	for _, c := range r.s.cycles {
		if c.Status == payment.StatusPending {
			taken[slot{c.SubscriptionID, c.DueDate}] = true
		}
	}
	for _, c := range cycles {
		k := slot{c.SubscriptionID, payment.DateOf(c.DueDate)}
		if c.Status == payment.StatusPending && taken[k] {
			return fmt.Errorf("%w: subscription %d on %s", payment.ErrDuplicatePendingCycle, c.SubscriptionID, k.due.Format(time.DateOnly))
		}
		taken[k] = true
	}

	now := r.s.clock.Now()
	for _, c := range cycles {
		r.s.nextCycleID++
		c.ID = r.s.nextCycleID
		c.DueDate = payment.DateOf(c.DueDate)
		c.CreatedAt, c.UpdatedAt = now, now
		r.s.cycles[c.ID] = *c
	}
	return nil
}

func (r *CycleRepository) GetByID(_ context.Context, id int64) (*payment.Cycle, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.cycles[id]
	if !ok {
		return nil, fmt.Errorf("cycle %d: %w", id, payment.ErrCycleNotFound)
	}
	return &c, nil
}

func (r *CycleRepository) ListBySubscription(_ context.Context, subscriptionID int64) ([]*payment.Cycle, error) {
	return r.filter(func(c payment.Cycle) bool {
		return c.SubscriptionID == subscriptionID
	}, ascending), nil
}

func (r *CycleRepository) ListBySubscriptionAndStatus(_ context.Context, subscriptionID int64, status payment.Status) ([]*payment.Cycle, error) {
	return r.filter(func(c payment.Cycle) bool {
		return c.SubscriptionID == subscriptionID && c.Status == status
	}, ascending), nil
}

func (r *CycleRepository) ListByStatusDueBefore(_ context.Context, status payment.Status, date time.Time) ([]*payment.Cycle, error) {
	date = payment.DateOf(date)
	return r.filter(func(c payment.Cycle) bool {
		return c.Status == status && c.DueDate.Before(date)
	}, ascending), nil
}

func (r *CycleRepository) ListByStatusDueOn(_ context.Context, status payment.Status, date time.Time) ([]*payment.Cycle, error) {
	date = payment.DateOf(date)
	return r.filter(func(c payment.Cycle) bool {
		return c.Status == status && c.DueDate.Equal(date)
	}, ascending), nil
}

func (r *CycleRepository) ListUpcomingForUser(_ context.Context, userID int64, from, to time.Time) ([]*payment.Cycle, error) {
	owned := r.ownedBy(userID)
	return r.filter(func(c payment.Cycle) bool {
		return owned[c.SubscriptionID] && c.Status == payment.StatusPending && within(c.DueDate, from, to)
	}, ascending), nil
}

func (r *CycleRepository) ListHistoryForUser(_ context.Context, userID int64, from, to time.Time) ([]*payment.Cycle, error) {
	owned := r.ownedBy(userID)
	return r.filter(func(c payment.Cycle) bool {
		return owned[c.SubscriptionID] && within(c.DueDate, from, to)
	}, descending), nil
}

func (r *CycleRepository) UpdateStatus(_ context.Context, c *payment.Cycle, from payment.Status) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.cycles[c.ID]
	if !ok {
		return fmt.Errorf("cycle %d: %w", c.ID, payment.ErrCycleNotFound)
	}
	if stored.Status != from {
		return fmt.Errorf("%w: cycle %d is %s, expected %s", payment.ErrConflict, c.ID, stored.Status, from)
	}
	stored.Status = c.Status
	stored.PaidAmount = c.PaidAmount
	stored.UpdatedAt = c.UpdatedAt
	r.s.cycles[c.ID] = stored
	return nil
}

func (r *CycleRepository) DeleteBySubscription(_ context.Context, subscriptionID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	removed := make(map[int64]bool)
	for id, c := range r.s.cycles {
		if c.SubscriptionID == subscriptionID {
			removed[id] = true
			delete(r.s.cycles, id)
		}
	}
	for id, n := range r.s.notifications {
		if removed[n.CycleID] {
			delete(r.s.notifications, id)
		}
	}
	return nil
}

func (r *CycleRepository) ownedBy(userID int64) map[int64]bool {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	owned := make(map[int64]bool)
	for id, sub := range r.s.subscriptions {
		if sub.UserID == userID {
			owned[id] = true
		}
	}
	return owned
}

type order int

const (
	ascending order = iota
	descending
)

func (r *CycleRepository) filter(keep func(payment.Cycle) bool, o order) []*payment.Cycle {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]*payment.Cycle, 0)
	for _, c := range r.s.cycles {
		if keep(c) {
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if o == descending {
			a, b = b, a
		}
		if !a.DueDate.Equal(b.DueDate) {
			return a.DueDate.Before(b.DueDate)
		}
		return a.ID < b.ID
	})
	return out
}

func within(d, from, to time.Time) bool {
	return !d.Before(payment.DateOf(from)) && !d.After(payment.DateOf(to))
}
