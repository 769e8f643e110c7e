package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"taskmanager/internal/jobs"
	"taskmanager/internal/reminder"
)

// Repo stores tasks in Postgres. It also serves the reminder handler's reads.
type Repo struct {
	DB *gorm.DB
}

func storeErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %w", jobs.ErrStoreUnavailable, err)
}

func (r *Repo) Create(ctx context.Context, t *Task) error {
	return storeErr(r.DB.WithContext(ctx).Create(t).Error)
}

func (r *Repo) Get(ctx context.Context, id string) (*Task, error) {
	var t Task
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, storeErr(err)
	}
	return &t, nil
}

func (r *Repo) ListByUser(ctx context.Context, userID uint64, tag string) ([]Task, error) {
	q := r.DB.WithContext(ctx).Where("user_id = ?", userID)
	if tag != "" {
		q = q.Where("? = any(tags)", tag)
	}
	out := []Task{}
	if err := q.Order("created_at desc").Find(&out).Error; err != nil {
		return nil, storeErr(err)
	}
	return out, nil
}

func (r *Repo) Save(ctx context.Context, t *Task) error {
	res := r.DB.WithContext(ctx).Model(&Task{}).Where("id = ?", t.ID).Updates(map[string]any{
		"description":   t.Description,
		"reminder_at":   t.ReminderAt,
		"reminder_sent": t.ReminderSent,
		"tags":          t.Tags,
		"updated_at":    time.Now(),
	})
	if res.Error != nil {
		return storeErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) Delete(ctx context.Context, id string) error {
	return storeErr(r.DB.WithContext(ctx).Where("id = ?", id).Delete(&Task{}).Error)
}

type reminderRow struct {
	ID           string     `gorm:"column:id"`
	Description  string     `gorm:"column:description"`
	ReminderAt   *time.Time `gorm:"column:reminder_at"`
	ReminderSent bool       `gorm:"column:reminder_sent"`
	Name         *string    `gorm:"column:name"`
	Email        *string    `gorm:"column:email"`
}

// FindForReminder implements reminder.TaskStore.
func (r *Repo) FindForReminder(ctx context.Context, taskID string) (reminder.Target, error) {
	var row reminderRow
	err := r.DB.WithContext(ctx).
		Table("tasks").
		Select("tasks.id, tasks.description, tasks.reminder_at, tasks.reminder_sent, users.name, users.email").
		Joins("left join users on users.id = tasks.user_id").
		Where("tasks.id = ?", taskID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return reminder.Target{}, reminder.ErrTaskNotFound
	}
	if err != nil {
		return reminder.Target{}, storeErr(err)
	}

	t := reminder.Target{
		TaskID:       row.ID,
		Description:  row.Description,
		ReminderAt:   row.ReminderAt,
		ReminderSent: row.ReminderSent,
	}
	if row.Name != nil {
		t.OwnerName = *row.Name
	}
	if row.Email != nil {
		t.OwnerEmail = *row.Email
	}
	return t, nil
}

// MarkReminderSent implements reminder.TaskStore. A missing task is not an error.
func (r *Repo) MarkReminderSent(ctx context.Context, taskID string) error {
	err := r.DB.WithContext(ctx).Exec(
		`update tasks set reminder_sent = true, updated_at = now() where id = ?`, taskID,
	).Error
	return storeErr(err)
}
