package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"payflow_billing/internal/app"
	"payflow_billing/internal/clock"
	"payflow_billing/internal/domain/notification"
	"payflow_billing/internal/domain/notifier"
	"payflow_billing/internal/domain/payment"
	"payflow_billing/internal/domain/subscription"
	"payflow_billing/internal/domain/user"
	"payflow_billing/internal/infra/config"
	"payflow_billing/internal/infra/console"
	idb "payflow_billing/internal/infra/database"
	"payflow_billing/internal/infra/email"
	"payflow_billing/internal/infra/lock"
	"payflow_billing/internal/infra/logger"
	"payflow_billing/internal/infra/memstore"
	"payflow_billing/internal/infra/metrics"
	"payflow_billing/internal/infra/scheduler"
	"payflow_billing/internal/infra/telegram"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

type repositories struct {
	cycles        payment.Repository
	notifications notification.Repository
	subs          subscription.Repository
	users         user.Repository
	close         func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("FATAL: Could not load application configuration: %v", err)
	}
	logger.Init(cfg)
	log := logger.Component("main")

	log.WithFields(logrus.Fields{
		"storage":     cfg.Storage,
		"notifier":    cfg.Notifier,
		"environment": cfg.Environment,
		"timezone":    cfg.Location.String(),
	}).Info("PayFlow billing engine starting...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clk := clock.NewReal(cfg.Location)

	repos, err := openStorage(ctx, cfg, clk, log)
	if err != nil {
		log.WithError(err).Fatal("Could not initialize storage")
	}
	defer repos.close()

	var locker app.Locker = lock.NewMemory()
	var jobLocker app.Locker // jobs only need cross-instance exclusion when instances share redis
	if cfg.RedisURL != "" {
		client, err := lock.Connect(ctx, cfg.RedisURL)
		if err != nil {
			log.WithError(err).Fatal("Could not connect to redis")
		}
		defer client.Close()
		redisLock := lock.NewRedis(client, logger.Component("lock"))
		locker, jobLocker = redisLock, redisLock
		log.Info("Redis lock enabled.")
	}

	var bot *telebot.Bot
	if cfg.TelegramToken != "" {
		bot, err = telebot.NewBot(telebot.Settings{
			Token:  cfg.TelegramToken,
			Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
			OnError: func(err error, c telebot.Context) {
				entry := logger.Component("telebot").WithError(err)
				if c != nil && c.Sender() != nil {
					entry = entry.WithField("sender_id", c.Sender().ID)
				}
				entry.Error("Telegram handler error")
			},
		})
		if err != nil {
			log.WithError(err).Fatal("Could not create Telegram bot")
		}
	}

	var n notifier.Notifier
	switch cfg.Notifier {
	case config.NotifierEmail:
		n = email.NewNotifier(cfg.SMTP)
	case config.NotifierTelegram:
		n = telegram.NewNotifier(telegram.NewTelebotAdapter(bot))
	default:
		n = console.NewNotifier(logger.Component("console_notifier"))
	}

	cycleService := app.NewCycleService(repos.cycles, repos.subs, locker, clk,
		logger.Component("cycle_service"), cfg.MonthsAhead, cfg.LockTTL)
	dispatcher := app.NewReminderDispatcher(repos.cycles, repos.notifications, repos.subs, repos.users,
		n, clk, logger.Component("reminder_dispatcher"), cfg.NotifySendTimeout)
	sweeper := app.NewOverdueSweeper(repos.cycles, cycleService, dispatcher, logger.Component("overdue_sweeper"))
	subscriptionService := app.NewSubscriptionService(repos.subs, repos.users, cycleService, logger.Component("subscription_service"))

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr, registry, logger.Component("metrics")); err != nil {
				log.WithError(err).Error("Metrics endpoint stopped")
			}
		}()
	}

	billingScheduler := scheduler.NewBillingScheduler(cycleService, dispatcher, sweeper, jobLocker, clk, m,
		logger.Component("scheduler"), scheduler.Config{
			Location:          cfg.Location,
			CronSpecGenerate:  cfg.CronSpecGenerate,
			CronSpecReminders: cfg.CronSpecReminders,
			CronSpecOverdue:   cfg.CronSpecOverdue,
			JobTimeout:        cfg.JobTimeout,
		})
	if err := billingScheduler.Start(); err != nil {
		log.WithError(err).Fatal("Could not start scheduler")
	}

	if bot != nil {
		cmds := telegram.NewCommands(repos.users, cycleService, subscriptionService, repos.notifications, logger.Component("telegram"))
		telegram.RegisterHandlers(ctx, bot, cmds, logger.Component("telegram"))
		go bot.Start()
		log.Info("Telegram bot started.")
	}

	log.Info("Application setup complete.")
	<-ctx.Done()

	log.Info("Shutting down application...")
	if bot != nil {
		bot.Stop()
	}
	billingScheduler.Stop()
	log.Info("Application shut down gracefully.")
}

func openStorage(ctx context.Context, cfg *config.AppConfig, clk clock.Clock, log *logrus.Entry) (*repositories, error) {
	if cfg.Storage == config.StorageMemory {
		store := memstore.New(clk)
		// Users are managed outside the engine; seed one so the bot and
		// notifiers have someone to talk to.
		store.AddUser(demoUser(cfg, log))
		log.Warn("Using in-memory storage. Data is lost on exit.")
		return &repositories{
			cycles:        store.Cycles(),
			notifications: store.Notifications(),
			subs:          store.Subscriptions(),
			users:         store.Users(),
			close:         func() {},
		}, nil
	}

	db, err := idb.NewPostgresConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	log.Info("Database connection established successfully.")

	if cfg.AutoMigrate {
		if err := idb.Migrate(db); err != nil {
			db.Close()
			return nil, err
		}
		log.Info("Database migrations applied.")
	}

	return &repositories{
		cycles:        idb.NewPostgresCycleRepository(db),
		notifications: idb.NewPostgresNotificationRepository(db),
		subs:          idb.NewPostgresSubscriptionRepository(db),
		users:         idb.NewPostgresUserRepository(db),
		close:         func() { db.Close() },
	}, nil
}

// demoUser builds the in-memory user from DEMO_USER_* and warns when the
// selected notifier has no address to deliver to.
func demoUser(cfg *config.AppConfig, log *logrus.Entry) user.User {
	u := user.User{ID: 1, Name: "demo", Email: cfg.DemoUser.Email}
	if cfg.DemoUser.TelegramID != 0 {
		u.TelegramID = sql.NullInt64{Int64: cfg.DemoUser.TelegramID, Valid: true}
	}

	switch {
	case cfg.Notifier == config.NotifierEmail && u.Email == "":
		log.Warn("DEMO_USER_EMAIL is not set. Every email notification will fail.")
	case cfg.Notifier == config.NotifierTelegram && !u.TelegramID.Valid:
		log.Warn("DEMO_USER_TELEGRAM_ID is not set. Every Telegram notification will fail.")
	}
	if cfg.TelegramToken != "" && !u.TelegramID.Valid {
		log.Warn("DEMO_USER_TELEGRAM_ID is not set. Bot commands will not recognize anyone.")
	}
	return u
}
