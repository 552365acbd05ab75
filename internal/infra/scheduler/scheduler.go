package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"payflow_billing/internal/app"
	"payflow_billing/internal/clock"
	"payflow_billing/internal/domain/payment"
	"payflow_billing/internal/infra/metrics"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	JobGenerate  = "generate_cycles"
	JobReminders = "reminders"
	JobOverdue   = "overdue_sweep"
)

// CycleGenerator is satisfied by app.CycleService.
type CycleGenerator interface {
	GenerateMissing(ctx context.Context) (int, error)
}

// ReminderSender is satisfied by app.ReminderDispatcher.
type ReminderSender interface {
	SendReminders(ctx context.Context, today time.Time, daysAhead int) (app.Report, error)
	CountUnsent(ctx context.Context) (int, error)
}

// OverdueRunner is satisfied by app.OverdueSweeper.
type OverdueRunner interface {
	Run(ctx context.Context, today time.Time) (app.Report, error)
}

type Config struct {
	Location          *time.Location
	CronSpecGenerate  string // e.g. "0 1 * * *"
	CronSpecReminders string // e.g. "0 9 * * *"
	CronSpecOverdue   string // e.g. "0 2 * * *"
	JobTimeout        time.Duration
}

// BillingScheduler runs the daily refill, reminder and overdue jobs.
type BillingScheduler struct {
	cronEngine *cron.Cron
	generator  CycleGenerator
	reminders  ReminderSender
	sweeper    OverdueRunner
	locker     app.Locker // nil runs jobs without cross-instance exclusion
	clock      clock.Clock
	metrics    *metrics.Metrics
	logger     *logrus.Entry
	cfg        Config
}

func NewBillingScheduler(
	generator CycleGenerator,
	reminders ReminderSender,
	sweeper OverdueRunner,
	locker app.Locker,
	clk clock.Clock,
	m *metrics.Metrics,
	logger *logrus.Entry,
	cfg Config,
) *BillingScheduler {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	cronLog := cronLogger{logger}
	return &BillingScheduler{
		cronEngine: cron.New(
			cron.WithLocation(cfg.Location),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		generator: generator,
		reminders: reminders,
		sweeper:   sweeper,
		locker:    locker,
		clock:     clk,
		metrics:   m,
		logger:    logger,
		cfg:       cfg,
	}
}

// Start registers the jobs and starts the cron engine.
func (s *BillingScheduler) Start() error {
	s.logger.Info("Starting billing scheduler...")

	if _, err := s.cronEngine.AddFunc(s.cfg.CronSpecGenerate, func() {
		s.logger.Info("Cron job triggered for cycle refill.")
		_ = s.RunGenerate(context.Background())
	}); err != nil {
		return fmt.Errorf("could not add generate cron job %q: %w", s.cfg.CronSpecGenerate, err)
	}

	if _, err := s.cronEngine.AddFunc(s.cfg.CronSpecReminders, func() {
		s.logger.Info("Cron job triggered for payment reminders.")
		_ = s.RunReminders(context.Background())
	}); err != nil {
		return fmt.Errorf("could not add reminder cron job %q: %w", s.cfg.CronSpecReminders, err)
	}

	if _, err := s.cronEngine.AddFunc(s.cfg.CronSpecOverdue, func() {
		s.logger.Info("Cron job triggered for overdue sweep.")
		_ = s.RunOverdue(context.Background())
	}); err != nil {
		return fmt.Errorf("could not add overdue cron job %q: %w", s.cfg.CronSpecOverdue, err)
	}

	s.cronEngine.Start()
	s.logger.WithFields(logrus.Fields{
		"generate":  s.cfg.CronSpecGenerate,
		"reminders": s.cfg.CronSpecReminders,
		"overdue":   s.cfg.CronSpecOverdue,
		"location":  s.cfg.Location.String(),
	}).Info("Billing scheduler started with jobs.")
	return nil
}

// RunGenerate refills cycles for active subscriptions that have none pending.
func (s *BillingScheduler) RunGenerate(ctx context.Context) error {
	return s.run(ctx, JobGenerate, func(ctx context.Context, _ time.Time, log *logrus.Entry) error {
		created, err := s.generator.GenerateMissing(ctx)
		s.metrics.AddGenerated(created)
		log.WithField("created", created).Info("Cycle refill batch finished.")
		return err
	})
}

// RunReminders sends today's D-3 reminders, then D-1, then reports how many
// notifications are still unconfirmed.
func (s *BillingScheduler) RunReminders(ctx context.Context) error {
	return s.run(ctx, JobReminders, func(ctx context.Context, today time.Time, log *logrus.Entry) error {
		var errs []error
		for _, days := range []int{3, 1} {
			report, err := s.reminders.SendReminders(ctx, today, days)
			s.metrics.ObserveReport(report)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			log.WithFields(logrus.Fields{
				"days_ahead": days,
				"sent":       report.Count(app.OutcomeSent),
				"failures":   report.Failures(),
			}).Info("Reminder batch finished.")
		}

		unsent, err := s.reminders.CountUnsent(ctx)
		if err != nil {
			log.WithError(err).Warn("Could not count unsent notifications.")
		} else {
			s.metrics.SetUnsent(unsent)
			if unsent > 0 {
				log.WithField("unsent", unsent).Warn("Some notifications were never confirmed as delivered.")
			}
		}
		return errors.Join(errs...)
	})
}

// RunOverdue sweeps PENDING cycles due before today.
func (s *BillingScheduler) RunOverdue(ctx context.Context) error {
	return s.run(ctx, JobOverdue, func(ctx context.Context, today time.Time, _ *logrus.Entry) error {
		report, err := s.sweeper.Run(ctx, today)
		s.metrics.ObserveReport(report)
		return err
	})
}

func (s *BillingScheduler) run(ctx context.Context, job string, fn func(context.Context, time.Time, *logrus.Entry) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.JobTimeout)
	defer cancel()

	today := payment.DateOf(s.clock.Now())
	log := s.logger.WithFields(logrus.Fields{
		"job":    job,
		"run_id": uuid.NewString(),
		"today":  today.Format(time.DateOnly),
	})

	if s.locker != nil {
		unlock, ok, err := s.locker.TryLock(ctx, "payflow:job:"+job, s.cfg.JobTimeout)
		if err != nil {
			log.WithError(err).Error("Failed to acquire job lock.")
			s.metrics.ObserveJob(job, metrics.ResultError, 0)
			return err
		}
		if !ok {
			log.Info("Job already running on another instance. Skipping.")
			s.metrics.ObserveJob(job, metrics.ResultSkipped, 0)
			return nil
		}
		defer unlock()
	}

	started := time.Now()
	err := fn(ctx, today, log)
	took := time.Since(started)

	log = log.WithField("duration", took.String())
	if err != nil {
		log.WithError(err).Error("Job failed.")
		s.metrics.ObserveJob(job, metrics.ResultError, took)
		return err
	}
	log.Info("Job finished.")
	s.metrics.ObserveJob(job, metrics.ResultOK, took)
	return nil
}

// Stop waits for running jobs to finish.
func (s *BillingScheduler) Stop() {
	s.logger.Info("Stopping billing scheduler...")
	ctx := s.cronEngine.Stop()
	<-ctx.Done()
	s.logger.Info("Billing scheduler gracefully stopped.")
}

// cronLogger routes robfig/cron's own messages through logrus.
type cronLogger struct {
	entry *logrus.Entry
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(fields(keysAndValues)).Debug("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(fields(keysAndValues)).WithError(err).Error("cron: " + msg)
}

func fields(kv []interface{}) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			f[k] = kv[i+1]
		}
	}
	return f
}
