package task

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"taskmanager/internal/reminder"
)

type Task struct {
	ID          string `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uint64 `gorm:"index;not null" json:"user_id"`
	Description string `gorm:"type:text;not null" json:"description"`

	ReminderAt   *time.Time `gorm:"type:timestamptz" json:"reminder_at"`
	ReminderSent bool       `gorm:"not null;default:false" json:"reminder_sent"`

	Tags pq.StringArray `gorm:"type:text[];not null;default:'{}'" json:"tags"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (t *Task) BeforeCreate(*gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

func (t *Task) reminderState() reminder.TaskState {
	return reminder.TaskState{
		ID:           t.ID,
		ReminderAt:   t.ReminderAt,
		ReminderSent: t.ReminderSent,
	}
}
