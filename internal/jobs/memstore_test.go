package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reminderJob(t *testing.T, taskID string, at time.Time) *Job {
	t.Helper()
	j, err := NewJob(ReminderPayload{TaskID: taskID}, at, 0)
	require.NoError(t, err)
	return j
}

func TestMemStore_InsertAndList(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	now := time.Now()

	require.NoError(t, s.Insert(ctx, reminderJob(t, "b", now.Add(time.Hour))))
	require.NoError(t, s.Insert(ctx, reminderJob(t, "a", now)))

	all, err := s.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", taskIDOf(&all[0]))
	assert.Equal(t, "b", taskIDOf(&all[1]))

	byTask, err := s.List(ctx, Filter{TaskID: "b"})
	require.NoError(t, err)
	assert.Len(t, byTask, 1)
}

func TestMemStore_ListEmpty(t *testing.T) {
	out, err := NewMemStore().List(context.Background(), Filter{})
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestMemStore_CancelByTask(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	now := time.Now()

	require.NoError(t, s.Insert(ctx, reminderJob(t, "a", now)))
	require.NoError(t, s.Insert(ctx, reminderJob(t, "a", now.Add(time.Minute))))
	require.NoError(t, s.Insert(ctx, reminderJob(t, "b", now)))

	n, err := s.CancelByTask(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = s.CancelByTask(ctx, "missing")
	require.NoError(t, err)
	assert.Zero(t, n)

	left, err := s.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "b", taskIDOf(&left[0]))
}

func TestMemStore_ClaimDue(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	now := time.Now()

	require.NoError(t, s.Insert(ctx, reminderJob(t, "later", now.Add(time.Hour))))
	require.NoError(t, s.Insert(ctx, reminderJob(t, "due-2", now.Add(-time.Second))))
	require.NoError(t, s.Insert(ctx, reminderJob(t, "due-1", now.Add(-time.Minute))))

	claimed, err := s.ClaimDue(ctx, "w1", now, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	assert.Equal(t, "due-1", taskIDOf(&claimed[0]))
	assert.Equal(t, StatusRunning, claimed[0].Status)
	require.NotNil(t, claimed[0].LockedBy)
	assert.Equal(t, "w1", *claimed[0].LockedBy)

	again, err := s.ClaimDue(ctx, "w2", now, 10)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestMemStore_ClaimDueLimit(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	now := time.Now()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Insert(ctx, reminderJob(t, id, now.Add(-time.Second))))
	}

	claimed, err := s.ClaimDue(ctx, "w", now, 2)
	require.NoError(t, err)
	assert.Len(t, claimed, 2)
}

func TestMemStore_MarkRan(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	s := NewMemStore()
	j := reminderJob(t, "a", now)
	require.NoError(t, s.Insert(ctx, j))
	require.NoError(t, s.MarkRan(ctx, j.ID))
	left, _ := s.List(ctx, Filter{})
	assert.Empty(t, left)

	keep := NewMemStore()
	keep.KeepCompleted = true
	j = reminderJob(t, "a", now)
	require.NoError(t, keep.Insert(ctx, j))
	require.NoError(t, keep.MarkRan(ctx, j.ID))
	left, _ = keep.List(ctx, Filter{})
	require.Len(t, left, 1)
	assert.Equal(t, StatusDone, left[0].Status)
	assert.Equal(t, 1, left[0].RunCount)

	assert.NoError(t, s.MarkRan(ctx, 999))
}

func TestMemStore_IncrementFail(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	j := reminderJob(t, "a", time.Now())
	require.NoError(t, s.Insert(ctx, j))

	require.NoError(t, s.IncrementFail(ctx, j.ID, "boom"))

	failed, err := s.List(ctx, Filter{FailedOnly: true})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, StatusFailed, failed[0].Status)
	assert.Equal(t, 1, failed[0].FailCount)
	require.NotNil(t, failed[0].LastError)
	assert.Equal(t, "boom", *failed[0].LastError)
	assert.Nil(t, failed[0].LockedBy)
}

func TestMemStore_ReleaseStale(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	now := time.Now()
	require.NoError(t, s.Insert(ctx, reminderJob(t, "a", now.Add(-time.Hour))))

	_, err := s.ClaimDue(ctx, "w", now.Add(-10*time.Minute), 1)
	require.NoError(t, err)

	n, err := s.ReleaseStale(ctx, now.Add(-5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	pending, err := s.List(ctx, Filter{Status: StatusPending})
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestMemStore_Unavailable(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	s.Err = errors.New("connection refused")

	assert.ErrorIs(t, s.Insert(ctx, reminderJob(t, "a", time.Now())), ErrStoreUnavailable)
	_, err := s.CancelByTask(ctx, "a")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	_, err = s.List(ctx, Filter{})
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}
