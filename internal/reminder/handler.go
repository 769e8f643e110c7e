package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"taskmanager/internal/jobs"
	"taskmanager/internal/logger"
	"taskmanager/internal/mailer"
)

// TaskStore is what the handler needs from the task records.
type TaskStore interface {
	// FindForReminder loads the task and its owner in one read.
	// It returns ErrTaskNotFound when the task does not exist.
	FindForReminder(ctx context.Context, taskID string) (Target, error)
	MarkReminderSent(ctx context.Context, taskID string) error
}

// Handler runs jobs.NameSendTaskReminder.
type Handler struct {
	Tasks   TaskStore
	Sender  mailer.Sender // nil: reminders are logged, not sent
	Service *Service
	From    string
	// MaxRetries caps replacement jobs for transient failures. Zero disables retries.
	MaxRetries int
	Logger     *slog.Logger
}

func (h *Handler) log() *slog.Logger {
	if h.Logger == nil {
		return logger.NewNope()
	}
	return h.Logger
}

func (h *Handler) Handle(ctx context.Context, job *jobs.Job) error {
	p, err := jobs.DecodeReminder(job)
	if err != nil {
		return err
	}
	log := h.log().With(slog.String("task_id", p.TaskID), slog.Uint64("job_id", job.ID))

	t, err := h.Tasks.FindForReminder(ctx, p.TaskID)
	if errors.Is(err, ErrTaskNotFound) {
		log.InfoContext(ctx, "reminder skipped, task gone")
		return nil
	}
	if err != nil {
		return fmt.Errorf("reminder: load task: %w", err)
	}
	if t.ReminderSent {
		log.InfoContext(ctx, "reminder skipped", slog.String("reason", ErrAlreadySent.Error()))
		return nil
	}

	msg, err := Compose(t, h.From)
	if err != nil {
		return err
	}

	if msg.To == "" || h.Sender == nil {
		log.WarnContext(ctx, "reminder not delivered, no recipient or mail transport",
			slog.String("to", msg.To),
		)
		return h.markSent(ctx, p.TaskID)
	}

	d, err := h.Sender.Send(ctx, msg)
	if err != nil {
		return h.fail(ctx, log, job, p.TaskID, err)
	}
	log.InfoContext(ctx, "reminder sent",
		slog.String("to", msg.To),
		slog.String("message_id", d.MessageID),
		slog.String("transport", d.Transport),
	)
	return h.markSent(ctx, p.TaskID)
}

// markSent runs after delivery, so it must not be cut short by shutdown.
func (h *Handler) markSent(ctx context.Context, taskID string) error {
	if err := h.Tasks.MarkReminderSent(context.WithoutCancel(ctx), taskID); err != nil {
		return fmt.Errorf("reminder: mark sent: %w", err)
	}
	return nil
}

// fail applies the retry policy. The returned error always fails the current job.
func (h *Handler) fail(ctx context.Context, log *slog.Logger, job *jobs.Job, taskID string, err error) error {
	log.ErrorContext(ctx, "failed to send reminder", slog.String("error", err.Error()))

	if !mailer.IsTransient(err) {
		return fmt.Errorf("%w: %w", ErrTerminalDelivery, err)
	}
	if job.FailCount >= h.MaxRetries {
		return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, job.FailCount+1, err)
	}

	at, rerr := h.Service.retry(context.WithoutCancel(ctx), taskID, job.FailCount+1)
	if rerr != nil {
		log.ErrorContext(ctx, "retry scheduling failed", slog.String("error", rerr.Error()))
	} else {
		log.InfoContext(ctx, "scheduled reminder retry",
			slog.Time("run_at", at),
			slog.Int("fail_count", job.FailCount+1),
		)
	}
	return fmt.Errorf("%w: %w", ErrTransientDelivery, err)
}
