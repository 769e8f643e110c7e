package reminder

import (
	"context"
	"sync"
	"time"

	"taskmanager/internal/mailer"
)

type fakeTasks struct {
	mu      sync.Mutex
	targets map[string]Target
	sent    []string
	findErr error
}

func newFakeTasks(ts ...Target) *fakeTasks {
	f := &fakeTasks{targets: map[string]Target{}}
	for _, t := range ts {
		f.targets[t.TaskID] = t
	}
	return f
}

func (f *fakeTasks) FindForReminder(_ context.Context, id string) (Target, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return Target{}, f.findErr
	}
	t, ok := f.targets[id]
	if !ok {
		return Target{}, ErrTaskNotFound
	}
	return t, nil
}

// MarkReminderSent fails on a done context the way a gorm WithContext write does.
func (f *fakeTasks) MarkReminderSent(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, id)
	if t, ok := f.targets[id]; ok {
		t.ReminderSent = true
		f.targets[id] = t
	}
	return nil
}

type fakeSender struct {
	SendFunc func(ctx context.Context, msg *mailer.Message) (mailer.Delivery, error)

	mu   sync.Mutex
	sent []*mailer.Message
}

func (f *fakeSender) Send(ctx context.Context, msg *mailer.Message) (mailer.Delivery, error) {
	f.mu.Lock()
	f.sent = append(f.sent, msg)
	f.mu.Unlock()
	if f.SendFunc != nil {
		return f.SendFunc(ctx, msg)
	}
	return mailer.Delivery{MessageID: "<1@test>", Transport: "fake"}, nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type countingWaker struct {
	mu sync.Mutex
	n  int
}

func (w *countingWaker) Wake() {
	w.mu.Lock()
	w.n++
	w.mu.Unlock()
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
