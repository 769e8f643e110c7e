package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"taskmanager/internal/auth"
	"taskmanager/internal/config"
	"taskmanager/internal/db"
	httpx "taskmanager/internal/http"
	"taskmanager/internal/jobs"
	"taskmanager/internal/logger"
	"taskmanager/internal/mailer"
	"taskmanager/internal/mailer/resend"
	"taskmanager/internal/mailer/smtp"
	"taskmanager/internal/reminder"
	"taskmanager/internal/task"
)

func main() {
	if err := run(); err != nil {
		slog.Error("taskmanager exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log := logger.New(logger.Config{
		Level:             cfg.LogLevel,
		SentryDSN:         cfg.SentryDSN,
		SentryEnvironment: cfg.SentryEnvironment,
	}, logger.RequestID)
	defer logger.Flush()
	slog.SetDefault(log)

	gdb, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	if err := db.AutoMigrateAndIndexes(gdb); err != nil {
		return fmt.Errorf("db migrate: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sender := newSender(cfg.Mail, log)
	if v, ok := sender.(mailer.Verifier); ok {
		vctx, vcancel := context.WithTimeout(ctx, 15*time.Second)
		if err := v.Verify(vctx); err != nil {
			log.Error("mail transport verification failed", slog.String("error", err.Error()))
		} else {
			log.Info("mail transport verified", slog.String("driver", cfg.Mail.Driver))
		}
		vcancel()
	}

	store := newJobStore(cfg, gdb)
	workerID := cfg.WorkerID
	if workerID == "" {
		workerID = "scheduler-" + uuid.NewString()[:8]
	}
	scheduler := jobs.NewScheduler(store,
		jobs.WithWorkerID(workerID),
		jobs.WithPollInterval(cfg.PollInterval),
		jobs.WithBatchSize(cfg.BatchSize),
		jobs.WithStaleAfter(cfg.StaleAfter),
		jobs.WithLogger(log.With(slog.String("component", "scheduler"))),
	)

	reminders := reminder.NewService(store,
		reminder.WithWaker(scheduler),
		reminder.WithRetryDelay(cfg.ReminderRetryDelay),
		reminder.WithServiceLogger(log.With(slog.String("component", "reminders"))),
	)

	taskRepo := &task.Repo{DB: gdb}
	scheduler.Register(jobs.NameSendTaskReminder, &reminder.Handler{
		Tasks:      taskRepo,
		Sender:     sender,
		Service:    reminders,
		From:       cfg.Mail.From,
		MaxRetries: cfg.ReminderMaxRetries,
		Logger:     log.With(slog.String("component", "reminder-handler")),
	})

	if err := scheduler.Start(ctx); err != nil {
		return err
	}

	if cfg.FailedSweepCron != "" {
		sweep, err := reminder.NewSweep(cfg.FailedSweepCron, reminders, log)
		if err != nil {
			return err
		}
		sweep.Start()
		defer func() { <-sweep.Stop().Done() }()
	}

	r := httpx.NewRouter(httpx.Deps{
		Config: cfg,
		DB:     gdb,
		JWT:    auth.NewJWT(cfg.JWTSecret),
		Tasks: &task.Service{
			Store:     taskRepo,
			Reminders: reminders,
			Rearm:     cfg.ReminderRearm,
		},
		Reminders: reminders,
		Scheduler: scheduler,
		TaskStore: taskRepo,
		Mailer:    sender,
		Logger:    log,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", slog.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// graceful shutdown
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-ch:
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	if err := scheduler.Stop(shutdownCtx); err != nil {
		log.Error("scheduler stop", slog.String("error", err.Error()))
	}
	return nil
}

func newSender(cfg config.MailConfig, log *slog.Logger) mailer.Sender {
	switch cfg.Driver {
	case "smtp":
		return smtp.New(smtp.Config{
			Host:               cfg.SMTPHost,
			Port:               cfg.SMTPPort,
			Secure:             cfg.SMTPSecure,
			User:               cfg.SMTPUser,
			Pass:               cfg.SMTPPass,
			From:               cfg.From,
			InsecureSkipVerify: !cfg.SMTPRejectUnauthorized,
		})
	case "resend":
		return resend.New(resend.Config{APIKey: cfg.ResendAPIKey, From: cfg.From})
	default:
		log.Warn("mail transport not configured, reminders will be logged only")
		return &mailer.LogSender{Logger: log}
	}
}

func newJobStore(cfg config.Config, gdb *gorm.DB) jobs.Store {
	if cfg.JobsDriver == "memory" {
		s := jobs.NewMemStore()
		s.KeepCompleted = cfg.JobsKeepCompleted
		return s
	}
	return &jobs.Repo{DB: gdb, KeepCompleted: cfg.JobsKeepCompleted}
}
