package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"payflow_billing/internal/domain/notification"
)

var _ notification.Repository = (*NotificationRepository)(nil)

type NotificationRepository struct {
	s *Store
}

func (r *NotificationRepository) Create(_ context.Context, n *notification.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.notifications {
		if existing.CycleID == n.CycleID && existing.Kind == n.Kind {
			return fmt.Errorf("%w: cycle %d %s", notification.ErrDuplicateNotification, n.CycleID, n.Kind)
		}
	}
	r.s.nextNotificationID++
	n.ID = r.s.nextNotificationID
	n.CreatedAt = r.s.clock.Now()
	r.s.notifications[n.ID] = *n
	return nil
}

func (r *NotificationRepository) Exists(_ context.Context, cycleID int64, kind notification.Kind) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, n := range r.s.notifications {
		if n.CycleID == cycleID && n.Kind == kind {
			return true, nil
		}
	}
	return false, nil
}

func (r *NotificationRepository) MarkSent(_ context.Context, id int64, sentAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n, ok := r.s.notifications[id]
	if !ok {
		return fmt.Errorf("notification %d: %w", id, notification.ErrNotificationNotFound)
	}
	n.MarkSent(sentAt)
	r.s.notifications[id] = n
	return nil
}

func (r *NotificationRepository) ListByUser(_ context.Context, userID int64) ([]*notification.Notification, error) {
	return r.list(func(n notification.Notification) bool { return n.UserID == userID }), nil
}

func (r *NotificationRepository) ListUnsent(_ context.Context) ([]*notification.Notification, error) {
	return r.list(func(n notification.Notification) bool { return !n.Sent }), nil
}

func (r *NotificationRepository) list(keep func(notification.Notification) bool) []*notification.Notification {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]*notification.Notification, 0)
	for _, n := range r.s.notifications {
		if keep(n) {
			out = append(out, &n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
