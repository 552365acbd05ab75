package app_test

import (
	"context"
	"testing"
	"time"

	"payflow_billing/internal/app"
	"payflow_billing/internal/domain/payment"
	"payflow_billing/internal/domain/subscription"
	"payflow_billing/internal/infra/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCycleService_GenerateMonthlyClampsShortMonths(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, time.Date(2024, 1, 10, 8, 30, 0, 0, time.UTC))
	sub := e.addSubscription(t, monthly(31))

	created, err := e.cycles.Generate(ctx, sub.ID, 12)
	require.NoError(t, err)
	assert.Equal(t, 12, created)

	cycles, err := e.store.Cycles().ListBySubscription(ctx, sub.ID)
	require.NoError(t, err)
	require.Len(t, cycles, 12)

	want := []time.Time{
		payment.Date(2024, 1, 31), payment.Date(2024, 2, 29), payment.Date(2024, 3, 31),
		payment.Date(2024, 4, 30), payment.Date(2024, 5, 31), payment.Date(2024, 6, 30),
		payment.Date(2024, 7, 31), payment.Date(2024, 8, 31), payment.Date(2024, 9, 30),
		payment.Date(2024, 10, 31), payment.Date(2024, 11, 30), payment.Date(2024, 12, 31),
	}
	for i, c := range cycles {
		assert.Equal(t, want[i], c.DueDate, "cycle %d", i)
		assert.Equal(t, payment.StatusPending, c.Status)
		assert.False(t, c.PaidAmount.Valid)
	}
}

func TestCycleService_GenerateIsNoopWhilePendingExists(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	sub := e.addSubscription(t, monthly(15))

	created, err := e.cycles.Generate(ctx, sub.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, app.DefaultMonthsAhead, created)

	created, err = e.cycles.Generate(ctx, sub.ID, 0)
	require.NoError(t, err)
	assert.Zero(t, created)

	cycles, err := e.store.Cycles().ListBySubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.Len(t, cycles, app.DefaultMonthsAhead)
}

func TestCycleService_GenerateAfterAllSettled(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	sub := e.addSubscription(t, monthly(15))
	existing := e.addCycles(t, sub.ID, payment.Date(2025, 5, 15))

	_, err := e.cycles.MarkPaid(ctx, existing[0].ID, nil)
	require.NoError(t, err)

	created, err := e.cycles.Generate(ctx, sub.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, created)
}

func TestCycleService_GenerateWeeklyAndYearlyCounts(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC))

	weekly := e.addSubscription(t, payment.BillingConfig{Kind: payment.CycleWeekly, BillingWeekday: payment.Int(1)})
	created, err := e.cycles.Generate(ctx, weekly.ID, 12)
	require.NoError(t, err)
	assert.Equal(t, 48, created)

	yearly := e.addSubscription(t, payment.BillingConfig{Kind: payment.CycleYearly, BillingMonth: payment.Int(2), BillingDate: payment.Int(29)})
	created, err = e.cycles.Generate(ctx, yearly.ID, 12)
	require.NoError(t, err)
	require.Equal(t, 1, created)

	cycles, err := e.store.Cycles().ListBySubscription(ctx, yearly.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.Date(2026, 2, 28), cycles[0].DueDate)
}

func TestCycleService_GenerateErrors(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))

	_, err := e.cycles.Generate(ctx, 404, 12)
	assert.ErrorIs(t, err, subscription.ErrSubscriptionNotFound)

	broken := e.addSubscription(t, payment.BillingConfig{Kind: payment.CycleMonthly})
	_, err = e.cycles.Generate(ctx, broken.ID, 12)
	assert.ErrorIs(t, err, payment.ErrInvalidConfiguration)

	cycles, err := e.store.Cycles().ListBySubscription(ctx, broken.ID)
	require.NoError(t, err)
	assert.Empty(t, cycles)
}

func TestCycleService_GenerateSkipsWhenLockHeld(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	sub := e.addSubscription(t, monthly(15))

	svc := app.NewCycleService(e.store.Cycles(), e.store.Subscriptions(), heldLocker{}, e.clock, logger.Discard(), 12, time.Minute)
	created, err := svc.Generate(ctx, sub.ID, 12)
	require.NoError(t, err)
	assert.Zero(t, created)
}

func TestCycleService_Transitions(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	sub := e.addSubscription(t, monthly(15))
	cs := e.addCycles(t, sub.ID, payment.Date(2025, 6, 15), payment.Date(2025, 7, 15), payment.Date(2025, 8, 15))

	amount := int64(17000)
	paid, err := e.cycles.MarkPaid(ctx, cs[0].ID, &amount)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPaid, paid.Status)
	assert.Equal(t, int64(17000), paid.PaidAmount.Int64)

	stored, err := e.store.Cycles().GetByID(ctx, cs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPaid, stored.Status)
	assert.True(t, stored.PaidAmount.Valid)

	_, err = e.cycles.MarkPaid(ctx, cs[0].ID, &amount)
	assert.ErrorIs(t, err, payment.ErrConflict)
	_, err = e.cycles.MarkOverdue(ctx, cs[0].ID)
	assert.ErrorIs(t, err, payment.ErrConflict)

	unknown, err := e.cycles.MarkPaid(ctx, cs[1].ID, nil)
	require.NoError(t, err)
	assert.False(t, unknown.PaidAmount.Valid)

	cancelled, err := e.cycles.MarkCancelled(ctx, cs[2].ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCancelled, cancelled.Status)

	_, err = e.cycles.MarkPaid(ctx, 9999, nil)
	assert.ErrorIs(t, err, payment.ErrCycleNotFound)
}

func TestCycleService_UpcomingAndHistory(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	sub := e.addSubscription(t, monthly(15))
	cs := e.addCycles(t, sub.ID,
		payment.Date(2025, 5, 20),
		payment.Date(2025, 6, 25),
		payment.Date(2025, 6, 3),
		payment.Date(2025, 7, 15),
	)
	_, err := e.cycles.MarkPaid(ctx, cs[0].ID, nil)
	require.NoError(t, err)

	upcoming, err := e.cycles.Upcoming(ctx, testUserID, 30)
	require.NoError(t, err)
	require.Len(t, upcoming, 2)
	assert.Equal(t, payment.Date(2025, 6, 3), upcoming[0].DueDate)
	assert.Equal(t, payment.Date(2025, 6, 25), upcoming[1].DueDate)

	today, err := e.cycles.Upcoming(ctx, testUserID, 0)
	require.NoError(t, err)
	assert.Empty(t, today)

	_, err = e.cycles.Upcoming(ctx, testUserID, -1)
	assert.ErrorIs(t, err, payment.ErrInvalidRange)

	history, err := e.cycles.History(ctx, testUserID, payment.Date(2025, 5, 1), payment.Date(2025, 6, 30))
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, payment.Date(2025, 6, 25), history[0].DueDate)
	assert.Equal(t, payment.Date(2025, 5, 20), history[2].DueDate)
	assert.Equal(t, payment.StatusPaid, history[2].Status)

	_, err = e.cycles.History(ctx, testUserID, payment.Date(2025, 7, 1), payment.Date(2025, 6, 1))
	assert.ErrorIs(t, err, payment.ErrInvalidRange)

	others, err := e.cycles.History(ctx, 8, payment.Date(2025, 1, 1), payment.Date(2025, 12, 31))
	require.NoError(t, err)
	assert.Empty(t, others)
}

func TestCycleService_MarkPaidByOwner(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	sub := e.addSubscription(t, monthly(15))
	cs := e.addCycles(t, sub.ID, payment.Date(2025, 6, 15))

	_, err := e.cycles.MarkPaidByOwner(ctx, 8, cs[0].ID, nil)
	assert.ErrorIs(t, err, payment.ErrCycleNotFound)

	paid, err := e.cycles.MarkPaidByOwner(ctx, testUserID, cs[0].ID, nil)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPaid, paid.Status)
}

func TestCycleService_MarkCancelledByOwner(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	sub := e.addSubscription(t, monthly(15))
	cs := e.addCycles(t, sub.ID, payment.Date(2025, 6, 15))

	_, err := e.cycles.MarkCancelledByOwner(ctx, 8, cs[0].ID)
	assert.ErrorIs(t, err, payment.ErrCycleNotFound)

	cancelled, err := e.cycles.MarkCancelledByOwner(ctx, testUserID, cs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCancelled, cancelled.Status)

	_, err = e.cycles.MarkCancelledByOwner(ctx, testUserID, cs[0].ID)
	assert.ErrorIs(t, err, payment.ErrConflict)
}

func TestCycleService_ForSubscription(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	sub := e.addSubscription(t, monthly(15))
	e.addCycles(t, sub.ID, payment.Date(2025, 7, 15), payment.Date(2025, 6, 15))

	cycles, err := e.cycles.ForSubscription(ctx, testUserID, sub.ID)
	require.NoError(t, err)
	require.Len(t, cycles, 2)
	assert.Equal(t, payment.Date(2025, 6, 15), cycles[0].DueDate)

	_, err = e.cycles.ForSubscription(ctx, 8, sub.ID)
	assert.ErrorIs(t, err, subscription.ErrSubscriptionNotFound)
	_, err = e.cycles.ForSubscription(ctx, testUserID, 999)
	assert.ErrorIs(t, err, subscription.ErrSubscriptionNotFound)
}

func TestCycleService_GenerateMissingRefillsActiveSubscriptions(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))

	broken := e.addSubscription(t, payment.BillingConfig{Kind: payment.CycleMonthly})
	empty := e.addSubscription(t, monthly(10))
	covered := e.addSubscription(t, monthly(20))
	e.addCycles(t, covered.ID, payment.Date(2025, 6, 20))
	paused := e.addSubscription(t, monthly(5))
	paused.Status = subscription.StatusPaused
	require.NoError(t, e.store.Subscriptions().Update(ctx, paused))

	created, err := e.cycles.GenerateMissing(ctx)
	assert.ErrorIs(t, err, payment.ErrInvalidConfiguration)
	assert.Equal(t, 12, created, "a broken subscription does not stop the rest")

	for id, want := range map[int64]int{broken.ID: 0, empty.ID: 12, covered.ID: 1, paused.ID: 0} {
		cycles, err := e.store.Cycles().ListBySubscription(ctx, id)
		require.NoError(t, err)
		assert.Len(t, cycles, want, "subscription %d", id)
	}

	created, err = e.cycles.GenerateMissing(ctx)
	assert.ErrorIs(t, err, payment.ErrInvalidConfiguration)
	assert.Zero(t, created, "second run finds every active subscription covered")
}
