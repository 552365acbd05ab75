package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"payflow_billing/internal/app"
	"payflow_billing/internal/clock"
	"payflow_billing/internal/domain/payment"
	"payflow_billing/internal/infra/lock"
	"payflow_billing/internal/infra/logger"
	"payflow_billing/internal/infra/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReminders struct {
	mu        sync.Mutex
	calls     []int
	days      []time.Time
	err       error
	unsent    int
	unsentErr error
}

func (f *fakeReminders) CountUnsent(context.Context) (int, error) {
	return f.unsent, f.unsentErr
}

func (f *fakeReminders) SendReminders(_ context.Context, today time.Time, daysAhead int) (app.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, daysAhead)
	f.days = append(f.days, today)
	return app.Report{}, f.err
}

type fakeSweeper struct {
	runs []time.Time
}

func (f *fakeSweeper) Run(_ context.Context, today time.Time) (app.Report, error) {
	f.runs = append(f.runs, today)
	return app.Report{}, nil
}

type fakeGenerator struct {
	runs    int
	created int
	err     error
}

func (f *fakeGenerator) GenerateMissing(context.Context) (int, error) {
	f.runs++
	return f.created, f.err
}

func newTestScheduler(rem ReminderSender, sw OverdueRunner, locker app.Locker, now time.Time) *BillingScheduler {
	return NewBillingScheduler(&fakeGenerator{}, rem, sw, locker, clock.NewFakeClock(now), nil, logger.Discard(), Config{
		Location:          time.UTC,
		CronSpecGenerate:  "0 1 * * *",
		CronSpecReminders: "0 9 * * *",
		CronSpecOverdue:   "0 2 * * *",
		JobTimeout:        time.Minute,
	})
}

func TestBillingScheduler_RunRemindersSendsD3ThenD1(t *testing.T) {
	rem := &fakeReminders{}
	s := newTestScheduler(rem, &fakeSweeper{}, nil, time.Date(2025, 6, 1, 9, 0, 5, 0, time.UTC))

	require.NoError(t, s.RunReminders(context.Background()))
	assert.Equal(t, []int{3, 1}, rem.calls)
	assert.Equal(t, payment.Date(2025, 6, 1), rem.days[0])
}

func TestBillingScheduler_RunRemindersReportsBothErrors(t *testing.T) {
	boom := errors.New("db down")
	rem := &fakeReminders{err: boom}
	s := newTestScheduler(rem, &fakeSweeper{}, nil, time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))

	err := s.RunReminders(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []int{3, 1}, rem.calls, "D-1 still runs after D-3 fails")
}

func TestBillingScheduler_RunOverdueUsesClockDate(t *testing.T) {
	sw := &fakeSweeper{}
	s := newTestScheduler(&fakeReminders{}, sw, nil, time.Date(2025, 6, 2, 2, 0, 0, 0, time.UTC))

	require.NoError(t, s.RunOverdue(context.Background()))
	require.Len(t, sw.runs, 1)
	assert.Equal(t, payment.Date(2025, 6, 2), sw.runs[0])
}

func TestBillingScheduler_SkipsWhenJobLockHeld(t *testing.T) {
	ctx := context.Background()
	locker := lock.NewMemory()
	unlock, ok, err := locker.TryLock(ctx, "payflow:job:"+JobOverdue, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	sw := &fakeSweeper{}
	s := newTestScheduler(&fakeReminders{}, sw, locker, time.Date(2025, 6, 2, 2, 0, 0, 0, time.UTC))

	require.NoError(t, s.RunOverdue(ctx))
	assert.Empty(t, sw.runs)

	unlock()
	require.NoError(t, s.RunOverdue(ctx))
	assert.Len(t, sw.runs, 1)
}

func TestBillingScheduler_StartRejectsBadSpec(t *testing.T) {
	s := NewBillingScheduler(&fakeGenerator{}, &fakeReminders{}, &fakeSweeper{}, nil, clock.NewFakeClock(time.Now()), nil, logger.Discard(), Config{
		CronSpecGenerate:  "0 1 * * *",
		CronSpecReminders: "not a spec",
		CronSpecOverdue:   "0 2 * * *",
		JobTimeout:        time.Minute,
	})
	assert.Error(t, s.Start())
}

func TestBillingScheduler_RunGenerateRecordsCreatedCycles(t *testing.T) {
	reg := prometheus.NewRegistry()
	gen := &fakeGenerator{created: 12}
	s := NewBillingScheduler(gen, &fakeReminders{}, &fakeSweeper{}, nil, clock.NewFakeClock(time.Date(2025, 6, 1, 1, 0, 0, 0, time.UTC)),
		metrics.New(reg), logger.Discard(), Config{Location: time.UTC, JobTimeout: time.Minute})

	require.NoError(t, s.RunGenerate(context.Background()))
	assert.Equal(t, 1, gen.runs)
	assert.Equal(t, 12.0, counterValue(t, reg, "payflow_cycles_generated_total"))

	gen.err = errors.New("subscription 3: broken")
	assert.ErrorIs(t, s.RunGenerate(context.Background()), gen.err)
}

func TestBillingScheduler_RunRemindersPublishesUnsentCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	rem := &fakeReminders{unsent: 2}
	s := NewBillingScheduler(&fakeGenerator{}, rem, &fakeSweeper{}, nil, clock.NewFakeClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)),
		metrics.New(reg), logger.Discard(), Config{Location: time.UTC, JobTimeout: time.Minute})

	require.NoError(t, s.RunReminders(context.Background()))
	assert.Equal(t, 2.0, counterValue(t, reg, "payflow_notifications_unsent"))

	rem.unsentErr = errors.New("db down")
	require.NoError(t, s.RunReminders(context.Background()), "a failed count does not fail the job")
}

// counterValue reads a single unlabeled counter or gauge from reg.
func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		require.Len(t, f.GetMetric(), 1)
		m := f.GetMetric()[0]
		if m.GetCounter() != nil {
			return m.GetCounter().GetValue()
		}
		return m.GetGauge().GetValue()
	}
	t.Fatalf("metric %s not registered", name)
	return 0
}
