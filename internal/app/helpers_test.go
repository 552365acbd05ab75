package app_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"payflow_billing/internal/app"
	"payflow_billing/internal/clock"
	"payflow_billing/internal/domain/notification"
	"payflow_billing/internal/domain/notifier"
	"payflow_billing/internal/domain/payment"
	"payflow_billing/internal/domain/subscription"
	"payflow_billing/internal/domain/user"
	"payflow_billing/internal/infra/lock"
	"payflow_billing/internal/infra/logger"
	"payflow_billing/internal/infra/memstore"

	"github.com/stretchr/testify/require"
)

const testUserID = 7

// recordingNotifier captures every delivery. fail, when set, decides per cycle
// whether the send errors out.
type recordingNotifier struct {
	mu        sync.Mutex
	reminders []notifier.Reminder
	overdues  []notifier.Overdue
	fail      func(cycleID int64) error
}

func (n *recordingNotifier) SendReminder(_ context.Context, r notifier.Reminder) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail != nil {
		if err := n.fail(r.CycleID); err != nil {
			return err
		}
	}
	n.reminders = append(n.reminders, r)
	return nil
}

func (n *recordingNotifier) SendOverdue(_ context.Context, o notifier.Overdue) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail != nil {
		if err := n.fail(o.CycleID); err != nil {
			return err
		}
	}
	n.overdues = append(n.overdues, o)
	return nil
}

type env struct {
	clock      *clock.FakeClock
	store      *memstore.Store
	notifier   *recordingNotifier
	cycles     *app.CycleService
	dispatcher *app.ReminderDispatcher
	sweeper    *app.OverdueSweeper
	subs       *app.SubscriptionService
}

func newEnv(t *testing.T, now time.Time) *env {
	t.Helper()

	clk := clock.NewFakeClock(now)
	store := memstore.New(clk)
	store.AddUser(user.User{
		ID:         testUserID,
		Name:       "Kim",
		Email:      "kim@example.com",
		TelegramID: sql.NullInt64{Int64: 42, Valid: true},
	})

	log := logger.Discard()
	n := &recordingNotifier{}
	cycles := app.NewCycleService(store.Cycles(), store.Subscriptions(), lock.NewMemory(), clk, log, 0, time.Minute)
	dispatcher := app.NewReminderDispatcher(store.Cycles(), store.Notifications(), store.Subscriptions(), store.Users(), n, clk, log, time.Second)

	return &env{
		clock:      clk,
		store:      store,
		notifier:   n,
		cycles:     cycles,
		dispatcher: dispatcher,
		sweeper:    app.NewOverdueSweeper(store.Cycles(), cycles, dispatcher, log),
		subs:       app.NewSubscriptionService(store.Subscriptions(), store.Users(), cycles, log),
	}
}

// addSubscription stores a subscription without generating cycles.
func (e *env) addSubscription(t *testing.T, billing payment.BillingConfig) *subscription.Subscription {
	t.Helper()
	sub := subscription.Subscription{
		UserID:  testUserID,
		Name:    "Netflix",
		Amount:  17000,
		Billing: billing,
	}.WithDefaults()
	require.NoError(t, e.store.Subscriptions().Create(context.Background(), &sub))
	return &sub
}

// addCycles stores PENDING cycles on the given dates.
func (e *env) addCycles(t *testing.T, subscriptionID int64, dates ...time.Time) []*payment.Cycle {
	t.Helper()
	cycles := make([]*payment.Cycle, 0, len(dates))
	for _, d := range dates {
		cycles = append(cycles, payment.NewPendingCycle(subscriptionID, d))
	}
	require.NoError(t, e.store.Cycles().CreateBatch(context.Background(), cycles))
	return cycles
}

// notificationFor returns the ledger row for (cycleID, kind), failing the test when absent.
func (e *env) notificationFor(t *testing.T, cycleID int64, kind notification.Kind) *notification.Notification {
	t.Helper()
	rows, err := e.store.Notifications().ListByUser(context.Background(), testUserID)
	require.NoError(t, err)
	for _, n := range rows {
		if n.CycleID == cycleID && n.Kind == kind {
			return n
		}
	}
	t.Fatalf("no %s notification for cycle %d", kind, cycleID)
	return nil
}

func monthly(day int) payment.BillingConfig {
	return payment.BillingConfig{
		Kind:       payment.CycleMonthly,
		BillingDay: payment.Int(day),
		ReminderD3: true,
		ReminderD1: true,
	}
}

var errChannelDown = errors.New("channel down")

// heldLocker reports every key as already taken.
type heldLocker struct{}

func (heldLocker) TryLock(context.Context, string, time.Duration) (func(), bool, error) {
	return nil, false, nil
}
