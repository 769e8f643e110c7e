package jobs

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"time"
)

// MemStore is an in-process Store for tests and database-less local runs.
type MemStore struct {
	KeepCompleted bool

	mu    sync.Mutex
	jobs  map[uint64]*Job
	idSeq uint64
	// Err, when set, is returned (wrapped) by every operation.
	Err error
}

func NewMemStore() *MemStore {
	return &MemStore{jobs: make(map[uint64]*Job)}
}

func (m *MemStore) fail() error {
	if m.Err != nil {
		return unavailable(m.Err)
	}
	return nil
}

func (m *MemStore) Insert(_ context.Context, j *Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return err
	}

	m.idSeq++
	now := time.Now()
	j.ID = m.idSeq
	if j.Status == "" {
		j.Status = StatusPending
	}
	j.CreatedAt, j.UpdatedAt = now, now
	cp := *j
	m.jobs[j.ID] = &cp
	return nil
}

func taskIDOf(j *Job) string {
	var p struct {
		TaskID string `json:"task_id"`
	}
	_ = json.Unmarshal(j.Payload, &p)
	return p.TaskID
}

func (m *MemStore) CancelByTask(_ context.Context, taskID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return 0, err
	}

	var n int64
	for id, j := range m.jobs {
		if j.Name == NameSendTaskReminder && taskIDOf(j) == taskID {
			delete(m.jobs, id)
			n++
		}
	}
	return n, nil
}

func (m *MemStore) ClaimDue(_ context.Context, workerID string, now time.Time, limit int) ([]Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 1
	}

	var due []*Job
	for _, j := range m.jobs {
		if j.Status == StatusPending && !j.RunAt.After(now) {
			due = append(due, j)
		}
	}
	slices.SortFunc(due, func(a, b *Job) int {
		if c := a.RunAt.Compare(b.RunAt); c != 0 {
			return c
		}
		return int(a.ID) - int(b.ID)
	})
	if len(due) > limit {
		due = due[:limit]
	}

	out := make([]Job, 0, len(due))
	for _, j := range due {
		by, at := workerID, now
		j.Status = StatusRunning
		j.LockedBy, j.LockedAt = &by, &at
		j.UpdatedAt = now
		out = append(out, *j)
	}
	return out, nil
}

func (m *MemStore) MarkRan(_ context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return err
	}

	j, ok := m.jobs[id]
	if !ok {
		return nil
	}
	if !m.KeepCompleted {
		delete(m.jobs, id)
		return nil
	}
	now := time.Now()
	j.Status = StatusDone
	j.RunCount++
	j.LastRunAt = &now
	j.LockedBy, j.LockedAt = nil, nil
	j.UpdatedAt = now
	return nil
}

func (m *MemStore) IncrementFail(_ context.Context, id uint64, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return err
	}

	j, ok := m.jobs[id]
	if !ok {
		return nil
	}
	now := time.Now()
	j.Status = StatusFailed
	j.FailCount++
	j.RunCount++
	j.LastRunAt = &now
	j.LockedBy, j.LockedAt = nil, nil
	j.LastError = &errMsg
	j.UpdatedAt = now
	return nil
}

func (m *MemStore) ReleaseStale(_ context.Context, lockedBefore time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return 0, err
	}

	var n int64
	for _, j := range m.jobs {
		if j.Status == StatusRunning && j.LockedAt != nil && j.LockedAt.Before(lockedBefore) {
			j.Status = StatusPending
			j.LockedBy, j.LockedAt = nil, nil
			n++
		}
	}
	return n, nil
}

func (m *MemStore) List(_ context.Context, f Filter) ([]Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return nil, err
	}

	out := []Job{}
	for _, j := range m.jobs {
		if f.TaskID != "" && taskIDOf(j) != f.TaskID {
			continue
		}
		if f.Status != "" && j.Status != f.Status {
			continue
		}
		if f.FailedOnly && j.FailCount == 0 {
			continue
		}
		out = append(out, *j)
	}
	slices.SortFunc(out, func(a, b Job) int {
		if c := a.RunAt.Compare(b.RunAt); c != 0 {
			return c
		}
		return int(a.ID) - int(b.ID)
	})
	return out, nil
}
