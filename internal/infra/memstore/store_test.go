package memstore

import (
	"context"
	"testing"
	"time"

	"payflow_billing/internal/clock"
	"payflow_billing/internal/domain/notification"
	"payflow_billing/internal/domain/payment"
	"payflow_billing/internal/domain/subscription"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore() *Store {
	return New(clock.NewFakeClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)))
}

func TestCycleRepository_CreateBatchRejectsDuplicatePending(t *testing.T) {
	ctx := context.Background()
	repo := newStore().Cycles()

	first := []*payment.Cycle{
		payment.NewPendingCycle(1, payment.Date(2025, 7, 1)),
		payment.NewPendingCycle(1, payment.Date(2025, 8, 1)),
	}
	require.NoError(t, repo.CreateBatch(ctx, first))
	assert.NotZero(t, first[0].ID)

	second := []*payment.Cycle{
		payment.NewPendingCycle(1, payment.Date(2025, 9, 1)),
		payment.NewPendingCycle(1, payment.Date(2025, 8, 1)),
	}
	err := repo.CreateBatch(ctx, second)
	require.ErrorIs(t, err, payment.ErrDuplicatePendingCycle)

	all, err := repo.ListBySubscription(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, all, 2, "a rejected batch stores nothing")

	// Same date on another subscription is fine.
	require.NoError(t, repo.CreateBatch(ctx, []*payment.Cycle{payment.NewPendingCycle(2, payment.Date(2025, 8, 1))}))
}

func TestCycleRepository_UpdateStatusCompareAndSet(t *testing.T) {
	ctx := context.Background()
	repo := newStore().Cycles()

	c := payment.NewPendingCycle(1, payment.Date(2025, 7, 1))
	require.NoError(t, repo.CreateBatch(ctx, []*payment.Cycle{c}))

	c.Status = payment.StatusPaid
	require.NoError(t, repo.UpdateStatus(ctx, c, payment.StatusPending))

	c.Status = payment.StatusOverdue
	assert.ErrorIs(t, repo.UpdateStatus(ctx, c, payment.StatusPending), payment.ErrConflict)

	stored, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPaid, stored.Status)

	_, err = repo.GetByID(ctx, 999)
	assert.ErrorIs(t, err, payment.ErrCycleNotFound)
}

func TestCycleRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := newStore().Cycles()

	c := payment.NewPendingCycle(1, payment.Date(2025, 7, 1))
	require.NoError(t, repo.CreateBatch(ctx, []*payment.Cycle{c}))

	got, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	got.Status = payment.StatusCancelled

	again, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPending, again.Status)
}

func TestCycleRepository_DueDateQueries(t *testing.T) {
	ctx := context.Background()
	repo := newStore().Cycles()

	require.NoError(t, repo.CreateBatch(ctx, []*payment.Cycle{
		payment.NewPendingCycle(1, payment.Date(2025, 5, 31)),
		payment.NewPendingCycle(1, payment.Date(2025, 6, 1)),
		payment.NewPendingCycle(1, payment.Date(2025, 6, 2)),
	}))

	before, err := repo.ListByStatusDueBefore(ctx, payment.StatusPending, payment.Date(2025, 6, 1))
	require.NoError(t, err)
	require.Len(t, before, 1)
	assert.Equal(t, payment.Date(2025, 5, 31), before[0].DueDate)

	on, err := repo.ListByStatusDueOn(ctx, payment.StatusPending, time.Date(2025, 6, 2, 23, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, on, 1)
	assert.Equal(t, payment.Date(2025, 6, 2), on[0].DueDate)
}

func TestCycleRepository_UserQueriesOrdering(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	subs := store.Subscriptions()
	repo := store.Cycles()

	mine := &subscription.Subscription{UserID: 7, Name: "Netflix"}
	theirs := &subscription.Subscription{UserID: 8, Name: "Spotify"}
	require.NoError(t, subs.Create(ctx, mine))
	require.NoError(t, subs.Create(ctx, theirs))

	paid := payment.NewPendingCycle(mine.ID, payment.Date(2025, 6, 5))
	require.NoError(t, repo.CreateBatch(ctx, []*payment.Cycle{
		payment.NewPendingCycle(mine.ID, payment.Date(2025, 6, 20)),
		paid,
		payment.NewPendingCycle(mine.ID, payment.Date(2025, 6, 10)),
		payment.NewPendingCycle(theirs.ID, payment.Date(2025, 6, 12)),
	}))
	paid.Status = payment.StatusPaid
	require.NoError(t, repo.UpdateStatus(ctx, paid, payment.StatusPending))

	upcoming, err := repo.ListUpcomingForUser(ctx, 7, payment.Date(2025, 6, 1), payment.Date(2025, 6, 30))
	require.NoError(t, err)
	require.Len(t, upcoming, 2)
	assert.Equal(t, payment.Date(2025, 6, 10), upcoming[0].DueDate)
	assert.Equal(t, payment.Date(2025, 6, 20), upcoming[1].DueDate)

	history, err := repo.ListHistoryForUser(ctx, 7, payment.Date(2025, 6, 1), payment.Date(2025, 6, 30))
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, payment.Date(2025, 6, 20), history[0].DueDate)
	assert.Equal(t, payment.Date(2025, 6, 5), history[2].DueDate)
}

func TestNotificationRepository_UniquePerCycleAndKind(t *testing.T) {
	ctx := context.Background()
	repo := newStore().Notifications()

	n := &notification.Notification{UserID: 1, CycleID: 10, Kind: notification.KindD3Reminder}
	require.NoError(t, repo.Create(ctx, n))

	dup := &notification.Notification{UserID: 1, CycleID: 10, Kind: notification.KindD3Reminder}
	assert.ErrorIs(t, repo.Create(ctx, dup), notification.ErrDuplicateNotification)

	other := &notification.Notification{UserID: 1, CycleID: 10, Kind: notification.KindD1Reminder}
	require.NoError(t, repo.Create(ctx, other))

	unsent, err := repo.ListUnsent(ctx)
	require.NoError(t, err)
	assert.Len(t, unsent, 2)

	require.NoError(t, repo.MarkSent(ctx, n.ID, time.Now()))
	unsent, err = repo.ListUnsent(ctx)
	require.NoError(t, err)
	require.Len(t, unsent, 1)
	assert.Equal(t, other.ID, unsent[0].ID)

	exists, err := repo.Exists(ctx, 10, notification.KindOverdue)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCycleRepository_DeleteBySubscriptionCascadesNotifications(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	cycles := store.Cycles()
	notes := store.Notifications()

	a := payment.NewPendingCycle(1, payment.Date(2025, 7, 1))
	b := payment.NewPendingCycle(2, payment.Date(2025, 7, 1))
	require.NoError(t, cycles.CreateBatch(ctx, []*payment.Cycle{a, b}))
	require.NoError(t, notes.Create(ctx, &notification.Notification{UserID: 1, CycleID: a.ID, Kind: notification.KindD3Reminder}))
	require.NoError(t, notes.Create(ctx, &notification.Notification{UserID: 2, CycleID: b.ID, Kind: notification.KindD3Reminder}))

	require.NoError(t, cycles.DeleteBySubscription(ctx, 1))

	left, err := cycles.ListBySubscription(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, left)

	exists, err := notes.Exists(ctx, a.ID, notification.KindD3Reminder)
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = notes.Exists(ctx, b.ID, notification.KindD3Reminder)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestSubscriptionRepository_ListActive(t *testing.T) {
	ctx := context.Background()
	subs := newStore().Subscriptions()

	second := &subscription.Subscription{UserID: 8, Name: "Spotify", Status: subscription.StatusActive}
	first := &subscription.Subscription{UserID: 7, Name: "Netflix", Status: subscription.StatusActive}
	paused := &subscription.Subscription{UserID: 7, Name: "Gym", Status: subscription.StatusPaused}
	require.NoError(t, subs.Create(ctx, first))
	require.NoError(t, subs.Create(ctx, paused))
	require.NoError(t, subs.Create(ctx, second))

	active, err := subs.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, first.ID, active[0].ID)
	assert.Equal(t, second.ID, active[1].ID)

	mine, err := subs.ListByUser(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, mine, 2)
}
