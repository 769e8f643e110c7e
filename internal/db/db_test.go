package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"taskmanager/internal/auth"
	"taskmanager/internal/jobs"
	"taskmanager/internal/reminder"
	"taskmanager/internal/task"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	gdb, err := Connect(dsn)
	require.NoError(t, err)
	require.NoError(t, AutoMigrateAndIndexes(gdb))
	return gdb
}

func TestPostgresStores(t *testing.T) {
	gdb := testDB(t)
	ctx := context.Background()

	user := &auth.User{Name: "Ada", Email: uuid.NewString() + "@example.com", PasswordHash: "x"}
	require.NoError(t, gdb.Create(user).Error)

	tasks := &task.Repo{DB: gdb}
	store := &jobs.Repo{DB: gdb}
	t.Cleanup(func() {
		gdb.Exec(`delete from jobs`)
		gdb.Exec(`delete from tasks where user_id = ?`, user.ID)
		gdb.Delete(user)
	})

	at := time.Now().Add(-time.Second)
	tk := &task.Task{UserID: user.ID, Description: "call #mom", ReminderAt: &at, Tags: task.ExtractTags("call #mom")}
	require.NoError(t, tasks.Create(ctx, tk))

	svc := reminder.NewService(store)
	_, err := svc.Reschedule(ctx, tk.ID, &at)
	require.NoError(t, err)
	_, err = svc.Reschedule(ctx, tk.ID, &at)
	require.NoError(t, err)

	listed, err := store.List(ctx, jobs.Filter{TaskID: tk.ID})
	require.NoError(t, err)
	require.Len(t, listed, 1)

	claimed, err := store.ClaimDue(ctx, "w1", time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, jobs.StatusRunning, claimed[0].Status)

	again, err := store.ClaimDue(ctx, "w2", time.Now(), 10)
	require.NoError(t, err)
	assert.Empty(t, again)

	require.NoError(t, store.IncrementFail(ctx, claimed[0].ID, "boom"))
	failed, err := store.List(ctx, jobs.Filter{FailedOnly: true, TaskID: tk.ID})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, 1, failed[0].FailCount)

	target, err := tasks.FindForReminder(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", target.OwnerName)
	assert.False(t, target.ReminderSent)

	require.NoError(t, tasks.MarkReminderSent(ctx, tk.ID))
	target, err = tasks.FindForReminder(ctx, tk.ID)
	require.NoError(t, err)
	assert.True(t, target.ReminderSent)

	byTag, err := tasks.ListByUser(ctx, user.ID, "mom")
	require.NoError(t, err)
	assert.Len(t, byTag, 1)

	require.NoError(t, svc.OnTaskDeleted(ctx, tk.ID))
	require.NoError(t, tasks.Delete(ctx, tk.ID))
	left, err := store.List(ctx, jobs.Filter{TaskID: tk.ID})
	require.NoError(t, err)
	assert.Empty(t, left)

	_, err = tasks.FindForReminder(ctx, tk.ID)
	assert.ErrorIs(t, err, reminder.ErrTaskNotFound)
}
