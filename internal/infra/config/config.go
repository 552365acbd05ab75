package config

import (
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"

	"github.com/joho/godotenv"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"

	NotifierConsole  = "console"
	NotifierEmail    = "email"
	NotifierTelegram = "telegram"
)

// SMTPConfig holds outbound mail settings for the email notifier.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// DemoUserConfig is the contact seeded for the single user of in-memory storage.
type DemoUserConfig struct {
	Email      string
	TelegramID int64 // 0 when unset
}

// AppConfig holds all configuration for the application
type AppConfig struct {
	Storage     string
	DatabaseURL string
	AutoMigrate bool
	LogLevel    string
	Environment string
	Location    *time.Location
	DemoUser    DemoUserConfig // STORAGE=memory only

	CronSpecGenerate  string // Daily refill of subscriptions without PENDING cycles
	CronSpecReminders string // Daily D-3 / D-1 reminder dispatch
	CronSpecOverdue   string // Daily overdue sweep
	JobTimeout        time.Duration
	MonthsAhead       int

	Notifier          string
	NotifySendTimeout time.Duration
	SMTP              SMTPConfig
	TelegramToken     string

	RedisURL    string
	LockTTL     time.Duration
	MetricsAddr string
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.Storage = strings.ToLower(getenv("STORAGE", StoragePostgres))
	switch cfg.Storage {
	case StoragePostgres:
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is not set")
		}
	case StorageMemory:
		cfg.DemoUser.Email = os.Getenv("DEMO_USER_EMAIL")
		if v := os.Getenv("DEMO_USER_TELEGRAM_ID"); v != "" {
			if cfg.DemoUser.TelegramID, err = strconv.ParseInt(v, 10, 64); err != nil {
				return nil, fmt.Errorf("invalid DEMO_USER_TELEGRAM_ID: %w", err)
			}
		}
	default:
		return nil, fmt.Errorf("invalid STORAGE %q: want %s or %s", cfg.Storage, StoragePostgres, StorageMemory)
	}

	if cfg.AutoMigrate, err = parseBool("AUTO_MIGRATE", true); err != nil {
		return nil, err
	}

	cfg.LogLevel = strings.ToLower(getenv("LOG_LEVEL", "info"))
	cfg.Environment = strings.ToLower(getenv("ENVIRONMENT", "development"))

	cfg.Location, err = time.LoadLocation(getenv("APP_TIMEZONE", "Local"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_TIMEZONE: %w", err)
	}

	cfg.CronSpecGenerate = getenv("CRON_SPEC_GENERATE", "0 1 * * *")   // Default: 1 AM daily
	cfg.CronSpecReminders = getenv("CRON_SPEC_REMINDERS", "0 9 * * *") // Default: 9 AM daily
	cfg.CronSpecOverdue = getenv("CRON_SPEC_OVERDUE", "0 2 * * *")     // Default: 2 AM daily

	if cfg.JobTimeout, err = parseDuration("JOB_TIMEOUT", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.NotifySendTimeout, err = parseDuration("NOTIFY_SEND_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.LockTTL, err = parseDuration("LOCK_TTL", 30*time.Second); err != nil {
		return nil, err
	}

	monthsStr := getenv("CYCLE_MONTHS_AHEAD", "12")
	cfg.MonthsAhead, err = strconv.Atoi(monthsStr)
	if err != nil || cfg.MonthsAhead <= 0 {
		return nil, fmt.Errorf("invalid CYCLE_MONTHS_AHEAD %q", monthsStr)
	}

	cfg.Notifier = strings.ToLower(getenv("NOTIFIER", NotifierConsole))
	switch cfg.Notifier {
	case NotifierConsole:
	case NotifierEmail:
		if err := loadSMTP(cfg); err != nil {
			return nil, err
		}
	case NotifierTelegram:
		cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
		if cfg.TelegramToken == "" {
			return nil, fmt.Errorf("TELEGRAM_TOKEN is not set")
		}
	default:
		return nil, fmt.Errorf("invalid NOTIFIER %q", cfg.Notifier)
	}

	// The bot can run alongside any notifier.
	if cfg.TelegramToken == "" {
		cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	}

	cfg.RedisURL = os.Getenv("REDIS_URL")
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")

	return cfg, nil
}

func loadSMTP(cfg *AppConfig) error {
	cfg.SMTP.Host = os.Getenv("SMTP_HOST")
	if cfg.SMTP.Host == "" {
		return fmt.Errorf("SMTP_HOST is not set")
	}
	portStr := getenv("SMTP_PORT", "587")
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid SMTP_PORT: %w", err)
	}
	cfg.SMTP.Port = port
	cfg.SMTP.User = os.Getenv("SMTP_USER")
	cfg.SMTP.Password = os.Getenv("SMTP_PASSWORD")
	cfg.SMTP.From = os.Getenv("SMTP_FROM")
	if cfg.SMTP.From == "" {
		return fmt.Errorf("SMTP_FROM is not set")
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func parseDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q", key, v)
	}
	return d, nil
}
