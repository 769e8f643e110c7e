package jobs

import "time"

const (
	StatusPending = "PENDING"
	StatusRunning = "RUNNING"
	StatusDone    = "DONE"
	StatusFailed  = "FAILED"
)

// Job is one scheduled run of a named handler.
// FailCount is the only attempt counter; replacement rows inherit it.
type Job struct {
	ID uint64 `gorm:"primaryKey" json:"id"`

	Name    string `gorm:"type:text;not null" json:"name"` // send task reminder
	Payload []byte `gorm:"type:jsonb;not null;default:'{}'::jsonb" json:"payload"`

	RunAt  time.Time `gorm:"index;not null" json:"run_at"`
	Status string    `gorm:"index;not null;default:'PENDING'" json:"status"` // PENDING/RUNNING/DONE/FAILED

	RunCount  int        `gorm:"not null;default:0" json:"run_count"`
	FailCount int        `gorm:"not null;default:0" json:"fail_count"`
	LastRunAt *time.Time `gorm:"type:timestamptz" json:"last_run_at,omitempty"`

	LockedBy *string    `gorm:"type:text" json:"locked_by,omitempty"`
	LockedAt *time.Time `gorm:"type:timestamptz" json:"locked_at,omitempty"`

	LastError *string `gorm:"type:text" json:"last_error,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	TaskID     string
	Status     string
	FailedOnly bool
}
