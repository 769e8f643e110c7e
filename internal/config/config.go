package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr             string
	DatabaseURL          string
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	DebugRoutes          bool

	JWTSecret string

	LogLevel          slog.Level
	SentryDSN         string
	SentryEnvironment string

	Mail MailConfig

	JobsDriver         string // postgres, or memory to keep jobs in-process
	JobsKeepCompleted  bool
	PollInterval       time.Duration
	BatchSize          int
	StaleAfter         time.Duration
	WorkerID           string
	ReminderMaxRetries int
	ReminderRetryDelay time.Duration
	ReminderRearm      bool
	FailedSweepCron    string
}

type MailConfig struct {
	Driver string // smtp, resend or log

	From string

	SMTPHost               string
	SMTPPort               int
	SMTPSecure             bool
	SMTPUser               string
	SMTPPass               string
	SMTPRejectUnauthorized bool

	ResendAPIKey string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	var errs []error
	p := parser{errs: &errs}

	cfg := Config{
		HTTPAddr:             getenv("HTTP_ADDR", ":8080"),
		DatabaseURL:          getenv("DATABASE_URL", ""),
		CORSAllowCredentials: p.bool("CORS_ALLOW_CREDENTIALS", false),
		DebugRoutes:          p.bool("DEBUG_ROUTES", false),
		JWTSecret:            getenv("JWT_SECRET", ""),
		SentryDSN:            getenv("SENTRY_DSN", ""),
		SentryEnvironment:    getenv("SENTRY_ENVIRONMENT", "production"),

		JobsDriver:         strings.ToLower(getenv("JOBS_DRIVER", "postgres")),
		JobsKeepCompleted:  p.bool("JOBS_KEEP_COMPLETED", false),
		PollInterval:       p.duration("SCHEDULER_POLL_INTERVAL", time.Second),
		BatchSize:          p.int("SCHEDULER_BATCH_SIZE", 20),
		StaleAfter:         p.duration("SCHEDULER_STALE_AFTER", 5*time.Minute),
		WorkerID:           getenv("SCHEDULER_WORKER_ID", ""),
		ReminderMaxRetries: p.int("REMINDER_MAX_RETRIES", 3),
		ReminderRetryDelay: p.duration("REMINDER_RETRY_DELAY", 60*time.Second),
		ReminderRearm:      p.bool("REMINDER_REARM", false),
		FailedSweepCron:    getenv("FAILED_SWEEP_CRON", ""),
	}

	origins := strings.Split(getenv("CORS_ALLOWED_ORIGINS", ""), ",")
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
		}
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getenv("LOG_LEVEL", "info"))); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}

	cfg.Mail = MailConfig{
		From:                   getenv("SMTP_FROM", getenv("RESEND_FROM", "")),
		SMTPHost:               getenv("SMTP_HOST", ""),
		SMTPPort:               p.int("SMTP_PORT", 587),
		SMTPSecure:             p.bool("SMTP_SECURE", false),
		SMTPUser:               getenv("SMTP_USER", ""),
		SMTPPass:               getenv("SMTP_PASS", ""),
		SMTPRejectUnauthorized: p.bool("SMTP_REJECT_UNAUTHORIZED", true),
		ResendAPIKey:           getenv("RESEND_API_KEY", ""),
	}
	cfg.Mail.Driver = strings.ToLower(getenv("MAIL_DRIVER", cfg.Mail.detectDriver()))

	errs = append(errs, cfg.validate()...)
	if len(errs) > 0 {
		return cfg, errors.Join(errs...)
	}
	return cfg, nil
}

// detectDriver picks a transport from whichever credentials are present.
// SMTP needs a user, as an anonymous relay is never assumed.
func (m MailConfig) detectDriver() string {
	switch {
	case m.ResendAPIKey != "":
		return "resend"
	case m.SMTPHost != "" && m.SMTPUser != "":
		return "smtp"
	default:
		return "log"
	}
}

func (c Config) validate() []error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("missing env: JWT_SECRET"))
	}
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("missing env: DATABASE_URL"))
	}
	switch c.JobsDriver {
	case "postgres", "memory":
	default:
		errs = append(errs, fmt.Errorf("JOBS_DRIVER: unknown driver %q", c.JobsDriver))
	}
	switch c.Mail.Driver {
	case "log":
	case "smtp":
		if c.Mail.SMTPHost == "" {
			errs = append(errs, errors.New("missing env: SMTP_HOST"))
		}
	case "resend":
		if c.Mail.ResendAPIKey == "" {
			errs = append(errs, errors.New("missing env: RESEND_API_KEY"))
		}
	default:
		errs = append(errs, fmt.Errorf("MAIL_DRIVER: unknown driver %q", c.Mail.Driver))
	}
	if c.ReminderMaxRetries < 0 {
		errs = append(errs, errors.New("REMINDER_MAX_RETRIES: must not be negative"))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("SCHEDULER_POLL_INTERVAL: must be positive"))
	}
	return errs
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

// parser collects conversion errors so Load reports all of them at once.
type parser struct {
	errs *[]error
}

func (p parser) bool(key string, def bool) bool {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*p.errs = append(*p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

func (p parser) int(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*p.errs = append(*p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (p parser) duration(key string, def time.Duration) time.Duration {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*p.errs = append(*p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}
