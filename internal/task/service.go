package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskmanager/internal/reminder"
)

var (
	ErrNotFound     = errors.New("task not found")
	ErrForbidden    = errors.New("task belongs to another user")
	ErrInvalidInput = errors.New("description of task not found")
)

// Store is the task persistence used by Service.
type Store interface {
	Create(ctx context.Context, t *Task) error
	Get(ctx context.Context, id string) (*Task, error)
	ListByUser(ctx context.Context, userID uint64, tag string) ([]Task, error)
	Save(ctx context.Context, t *Task) error
	Delete(ctx context.Context, id string) error
}

// Reminders is the scheduling API invoked on every mutation.
type Reminders interface {
	OnTaskCreated(ctx context.Context, t reminder.TaskState) error
	OnTaskUpdated(ctx context.Context, t reminder.TaskState) error
	OnTaskDeleted(ctx context.Context, taskID string) error
}

type Input struct {
	Description string
	ReminderAt  *time.Time
}

type Service struct {
	Store     Store
	Reminders Reminders
	// Rearm resets ReminderSent when an update moves the reminder to a
	// different future time. Off by default: reminders fire once per task.
	Rearm bool
	Now   func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func normalize(in Input) (Input, error) {
	in.Description = strings.TrimSpace(in.Description)
	if in.Description == "" {
		return in, ErrInvalidInput
	}
	return in, nil
}

func (s *Service) Create(ctx context.Context, userID uint64, in Input) (*Task, error) {
	in, err := normalize(in)
	if err != nil {
		return nil, err
	}

	t := &Task{
		UserID:      userID,
		Description: in.Description,
		ReminderAt:  in.ReminderAt,
		Tags:        ExtractTags(in.Description),
	}
	if err := s.Store.Create(ctx, t); err != nil {
		return nil, err
	}
	if err := s.Reminders.OnTaskCreated(ctx, t.reminderState()); err != nil {
		return t, fmt.Errorf("schedule reminder: %w", err)
	}
	return t, nil
}

// Get returns the task only to its owner.
func (s *Service) Get(ctx context.Context, userID uint64, id string) (*Task, error) {
	t, err := s.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.UserID != userID {
		return nil, ErrNotFound
	}
	return t, nil
}

func (s *Service) List(ctx context.Context, userID uint64, tag string) ([]Task, error) {
	return s.Store.ListByUser(ctx, userID, strings.ToLower(strings.TrimSpace(tag)))
}

func (s *Service) owned(ctx context.Context, userID uint64, id string) (*Task, error) {
	t, err := s.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.UserID != userID {
		return nil, ErrForbidden
	}
	return t, nil
}

func (s *Service) Update(ctx context.Context, userID uint64, id string, in Input) (*Task, error) {
	in, err := normalize(in)
	if err != nil {
		return nil, err
	}
	t, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	moved := !sameTime(t.ReminderAt, in.ReminderAt)
	t.Description = in.Description
	t.ReminderAt = in.ReminderAt
	t.Tags = ExtractTags(in.Description)
	if s.Rearm && moved && t.ReminderAt != nil && t.ReminderAt.After(s.now()) {
		t.ReminderSent = false
	}

	if err := s.Store.Save(ctx, t); err != nil {
		return nil, err
	}
	if err := s.Reminders.OnTaskUpdated(ctx, t.reminderState()); err != nil {
		return t, fmt.Errorf("reschedule reminder: %w", err)
	}
	return t, nil
}

// Delete cancels the task's reminder jobs before removing the task.
func (s *Service) Delete(ctx context.Context, userID uint64, id string) error {
	t, err := s.owned(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.Reminders.OnTaskDeleted(ctx, t.ID); err != nil {
		return fmt.Errorf("cancel reminder: %w", err)
	}
	return s.Store.Delete(ctx, t.ID)
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
