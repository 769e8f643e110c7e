// Package reminder schedules and delivers task reminder emails.
//
// Service is the scheduling API called by task mutations. It keeps at most
// one active job per task by cancelling before every schedule. Handler is
// the job handler registered under jobs.NameSendTaskReminder.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"taskmanager/internal/jobs"
	"taskmanager/internal/logger"
)

const (
	// RescheduleDelay is the horizon of Reschedule without an explicit time
	// and of RescheduleFailed.
	RescheduleDelay = 60 * time.Second
	// DefaultRetryDelay separates a transient failure from its replacement job.
	DefaultRetryDelay = 60 * time.Second
	// DefaultMaxRetries is the number of replacement jobs scheduled for transient failures.
	DefaultMaxRetries = 3
)

// TaskState is the part of a task the scheduling API looks at.
type TaskState struct {
	ID           string
	ReminderAt   *time.Time
	ReminderSent bool
}

// Waker is notified when a job is inserted that is already due.
type Waker interface {
	Wake()
}

// Rescheduled reports one rescheduled task.
type Rescheduled struct {
	TaskID string    `json:"task_id"`
	RunAt  time.Time `json:"next_run_at"`
}

type ServiceOption func(*Service)

func WithWaker(w Waker) ServiceOption {
	return func(s *Service) { s.waker = w }
}

// WithRetryDelay sets how long after a transient failure the replacement job runs.
func WithRetryDelay(d time.Duration) ServiceOption {
	return func(s *Service) { s.retryDelay = d }
}

func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

func WithNow(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

type Service struct {
	store      jobs.Store
	waker      Waker
	retryDelay time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

func NewService(store jobs.Store, opts ...ServiceOption) *Service {
	s := &Service{
		store:      store,
		retryDelay: DefaultRetryDelay,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.NewNope()
	}
	if s.retryDelay <= 0 {
		s.retryDelay = DefaultRetryDelay
	}
	return s
}

func (s *Service) inFuture(at *time.Time) bool {
	return at != nil && at.After(s.now())
}

// OnTaskCreated schedules a reminder when the task has a future reminder time.
func (s *Service) OnTaskCreated(ctx context.Context, t TaskState) error {
	if !s.inFuture(t.ReminderAt) {
		return nil
	}
	if err := s.replace(ctx, t.ID, *t.ReminderAt, 0); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "scheduled reminder",
		slog.String("task_id", t.ID),
		slog.Time("run_at", *t.ReminderAt),
	)
	return nil
}

// OnTaskUpdated drops every job of the task, then schedules a fresh one when
// the reminder is in the future and has not been sent.
func (s *Service) OnTaskUpdated(ctx context.Context, t TaskState) error {
	if _, err := s.store.CancelByTask(ctx, t.ID); err != nil {
		return fmt.Errorf("reminder: cancel jobs: %w", err)
	}
	if !s.inFuture(t.ReminderAt) || t.ReminderSent {
		return nil
	}
	if err := s.schedule(ctx, t.ID, *t.ReminderAt, 0); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "rescheduled reminder",
		slog.String("task_id", t.ID),
		slog.Time("run_at", *t.ReminderAt),
	)
	return nil
}

// OnTaskDeleted must run before the task row is deleted.
func (s *Service) OnTaskDeleted(ctx context.Context, taskID string) error {
	n, err := s.store.CancelByTask(ctx, taskID)
	if err != nil {
		return fmt.Errorf("reminder: cancel jobs: %w", err)
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "cancelled reminder jobs",
			slog.String("task_id", taskID),
			slog.Int64("count", n),
		)
	}
	return nil
}

// Reschedule replaces the task's jobs with one due at when, or after
// RescheduleDelay when nil.
func (s *Service) Reschedule(ctx context.Context, taskID string, when *time.Time) (time.Time, error) {
	at := s.now().Add(RescheduleDelay)
	if when != nil {
		at = *when
	}
	if err := s.replace(ctx, taskID, at, 0); err != nil {
		return time.Time{}, err
	}
	s.logger.InfoContext(ctx, "rescheduled reminder",
		slog.String("task_id", taskID),
		slog.Time("run_at", at),
	)
	return at, nil
}

// RescheduleFailed reschedules the task of every job that has failed at
// least once. Failures are logged and skipped.
func (s *Service) RescheduleFailed(ctx context.Context) ([]Rescheduled, error) {
	failed, err := s.store.List(ctx, jobs.Filter{FailedOnly: true})
	if err != nil {
		return nil, err
	}

	out := []Rescheduled{}
	seen := map[string]struct{}{}
	for i := range failed {
		p, err := jobs.DecodeReminder(&failed[i])
		if err != nil {
			s.logger.WarnContext(ctx, "skip failed job with bad payload",
				slog.Uint64("job_id", failed[i].ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if _, ok := seen[p.TaskID]; ok {
			continue
		}
		seen[p.TaskID] = struct{}{}

		at, err := s.Reschedule(ctx, p.TaskID, nil)
		if err != nil {
			s.logger.ErrorContext(ctx, "reschedule failed job",
				slog.String("task_id", p.TaskID),
				slog.String("error", err.Error()),
			)
			continue
		}
		out = append(out, Rescheduled{TaskID: p.TaskID, RunAt: at})
	}
	return out, nil
}

func (s *Service) ListJobs(ctx context.Context) ([]jobs.Job, error) {
	return s.store.List(ctx, jobs.Filter{})
}

func (s *Service) ListFailed(ctx context.Context) ([]jobs.Job, error) {
	return s.store.List(ctx, jobs.Filter{FailedOnly: true})
}

// retry replaces the task's jobs with one due after the retry delay, carrying failCount.
func (s *Service) retry(ctx context.Context, taskID string, failCount int) (time.Time, error) {
	at := s.now().Add(s.retryDelay)
	return at, s.replace(ctx, taskID, at, failCount)
}

func (s *Service) replace(ctx context.Context, taskID string, at time.Time, failCount int) error {
	job, err := jobs.NewJob(jobs.ReminderPayload{TaskID: taskID}, at, failCount)
	if err != nil {
		return err
	}
	if _, err := s.store.CancelByTask(ctx, taskID); err != nil {
		return fmt.Errorf("reminder: cancel jobs: %w", err)
	}
	return s.insert(ctx, job)
}

func (s *Service) schedule(ctx context.Context, taskID string, at time.Time, failCount int) error {
	job, err := jobs.NewJob(jobs.ReminderPayload{TaskID: taskID}, at, failCount)
	if err != nil {
		return err
	}
	return s.insert(ctx, job)
}

func (s *Service) insert(ctx context.Context, job *jobs.Job) error {
	if err := s.store.Insert(ctx, job); err != nil {
		return fmt.Errorf("reminder: insert job: %w", err)
	}
	if s.waker != nil && !job.RunAt.After(s.now()) {
		s.waker.Wake()
	}
	return nil
}
