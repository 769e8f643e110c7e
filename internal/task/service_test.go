package task

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskmanager/internal/jobs"
	"taskmanager/internal/reminder"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func ptr(t time.Time) *time.Time { return &t }

type memTasks struct {
	mu    sync.Mutex
	tasks map[string]Task
}

func newMemTasks() *memTasks { return &memTasks{tasks: map[string]Task{}} }

func (m *memTasks) Create(_ context.Context, t *Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = uuid.NewString()
	m.tasks[t.ID] = *t
	return nil
}

func (m *memTasks) Get(_ context.Context, id string) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (m *memTasks) ListByUser(_ context.Context, userID uint64, tag string) ([]Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Task{}
	for _, t := range m.tasks {
		if t.UserID != userID {
			continue
		}
		if tag != "" && !contains(t.Tags, tag) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func contains(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func (m *memTasks) Save(_ context.Context, t *Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[t.ID]; !ok {
		return ErrNotFound
	}
	m.tasks[t.ID] = *t
	return nil
}

func (m *memTasks) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, id)
	return nil
}

type env struct {
	jobs  *jobs.MemStore
	tasks *memTasks
	svc   *Service
}

func newEnv() *env {
	store := jobs.NewMemStore()
	tasks := newMemTasks()
	return &env{
		jobs:  store,
		tasks: tasks,
		svc: &Service{
			Store:     tasks,
			Reminders: reminder.NewService(store, reminder.WithNow(func() time.Time { return now })),
			Now:       func() time.Time { return now },
		},
	}
}

func (e *env) jobsFor(t *testing.T, taskID string) []jobs.Job {
	t.Helper()
	out, err := e.jobs.List(context.Background(), jobs.Filter{TaskID: taskID})
	require.NoError(t, err)
	return out
}

func TestService_Create(t *testing.T) {
	e := newEnv()
	at := now.Add(5 * time.Minute)

	tk, err := e.svc.Create(context.Background(), 1, Input{Description: "  Buy milk #Shopping ", ReminderAt: &at})
	require.NoError(t, err)
	assert.Equal(t, "Buy milk #Shopping", tk.Description)
	assert.Equal(t, []string{"shopping"}, []string(tk.Tags))

	got := e.jobsFor(t, tk.ID)
	require.Len(t, got, 1)
	assert.True(t, at.Equal(got[0].RunAt))
}

func TestService_CreateInvalid(t *testing.T) {
	e := newEnv()
	_, err := e.svc.Create(context.Background(), 1, Input{Description: "   "})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestService_CreateSchedulingFailure(t *testing.T) {
	e := newEnv()
	e.jobs.Err = errors.New("down")

	tk, err := e.svc.Create(context.Background(), 1, Input{Description: "x", ReminderAt: ptr(now.Add(time.Hour))})
	assert.ErrorIs(t, err, jobs.ErrStoreUnavailable)
	require.NotNil(t, tk)
}

func TestService_UpdateClearsReminder(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	tk, err := e.svc.Create(ctx, 1, Input{Description: "x", ReminderAt: ptr(now.Add(5 * time.Minute))})
	require.NoError(t, err)

	_, err = e.svc.Update(ctx, 1, tk.ID, Input{Description: "x"})
	require.NoError(t, err)
	assert.Empty(t, e.jobsFor(t, tk.ID))
}

func TestService_UpdateAfterSent(t *testing.T) {
	tests := []struct {
		name     string
		rearm    bool
		wantJobs int
		wantSent bool
	}{
		{"flag guards rescheduling", false, 0, true},
		{"rearm resets flag", true, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			e := newEnv()
			e.svc.Rearm = tt.rearm

			tk, err := e.svc.Create(ctx, 1, Input{Description: "x", ReminderAt: ptr(now.Add(time.Minute))})
			require.NoError(t, err)
			stored := e.tasks.tasks[tk.ID]
			stored.ReminderSent = true
			e.tasks.tasks[tk.ID] = stored
			_, err = e.jobs.CancelByTask(ctx, tk.ID)
			require.NoError(t, err)

			updated, err := e.svc.Update(ctx, 1, tk.ID, Input{Description: "x", ReminderAt: ptr(now.Add(time.Hour))})
			require.NoError(t, err)
			assert.Equal(t, tt.wantSent, updated.ReminderSent)
			assert.Len(t, e.jobsFor(t, tk.ID), tt.wantJobs)
		})
	}
}

func TestService_RearmNeedsMovedReminder(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	e.svc.Rearm = true
	at := now.Add(time.Hour)

	tk, err := e.svc.Create(ctx, 1, Input{Description: "x", ReminderAt: &at})
	require.NoError(t, err)
	stored := e.tasks.tasks[tk.ID]
	stored.ReminderSent = true
	e.tasks.tasks[tk.ID] = stored

	updated, err := e.svc.Update(ctx, 1, tk.ID, Input{Description: "renamed", ReminderAt: ptr(at)})
	require.NoError(t, err)
	assert.True(t, updated.ReminderSent)
	assert.Empty(t, e.jobsFor(t, tk.ID))
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	tk, err := e.svc.Create(ctx, 1, Input{Description: "x", ReminderAt: ptr(now.Add(time.Hour))})
	require.NoError(t, err)

	require.NoError(t, e.svc.Delete(ctx, 1, tk.ID))
	assert.Empty(t, e.jobsFor(t, tk.ID))
	_, err = e.tasks.Get(ctx, tk.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_DeleteKeepsTaskWhenCancelFails(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	tk, err := e.svc.Create(ctx, 1, Input{Description: "x"})
	require.NoError(t, err)

	e.jobs.Err = errors.New("down")
	assert.ErrorIs(t, e.svc.Delete(ctx, 1, tk.ID), jobs.ErrStoreUnavailable)

	_, err = e.tasks.Get(ctx, tk.ID)
	assert.NoError(t, err)
}

func TestService_Ownership(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	tk, err := e.svc.Create(ctx, 1, Input{Description: "mine"})
	require.NoError(t, err)

	_, err = e.svc.Get(ctx, 2, tk.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = e.svc.Update(ctx, 2, tk.ID, Input{Description: "theirs"})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.ErrorIs(t, e.svc.Delete(ctx, 2, tk.ID), ErrForbidden)
	_, err = e.svc.Update(ctx, 1, "missing", Input{Description: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_ListByTag(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	_, err := e.svc.Create(ctx, 1, Input{Description: "a #work"})
	require.NoError(t, err)
	_, err = e.svc.Create(ctx, 1, Input{Description: "b #home"})
	require.NoError(t, err)

	out, err := e.svc.List(ctx, 1, " WORK ")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "a #work", out[0].Description)

	out, err = e.svc.List(ctx, 1, "")
	require.NoError(t, err)
	assert.Len(t, out, 2)
}
