package jobs

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// NameSendTaskReminder is the only job name this system schedules.
const NameSendTaskReminder = "send task reminder"

var validate = validator.New(validator.WithRequiredStructEnabled())

// Payload is implemented by every job payload type. Each type belongs to
// exactly one job name.
type Payload interface {
	JobName() string
}

// ReminderPayload is the payload of NameSendTaskReminder.
type ReminderPayload struct {
	TaskID string `json:"task_id" validate:"required,max=64"`
}

func (ReminderPayload) JobName() string { return NameSendTaskReminder }

// NewJob validates p and builds a pending job due at runAt.
// failCount seeds the counter of a replacement row.
func NewJob(p Payload, runAt time.Time, failCount int) (*Job, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil payload", ErrInvalidPayload)
	}
	if err := validate.Struct(p); err != nil {
		return nil, errors.Join(ErrInvalidPayload, err)
	}
	if runAt.IsZero() {
		return nil, fmt.Errorf("%w: zero run time", ErrInvalidPayload)
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, errors.Join(ErrInvalidPayload, err)
	}
	return &Job{
		Name:      p.JobName(),
		Payload:   raw,
		RunAt:     runAt,
		Status:    StatusPending,
		FailCount: failCount,
	}, nil
}

// DecodeReminder extracts the reminder payload of j.
func DecodeReminder(j *Job) (ReminderPayload, error) {
	var p ReminderPayload
	if j.Name != NameSendTaskReminder {
		return p, fmt.Errorf("%w: job %q is not a reminder", ErrInvalidPayload, j.Name)
	}
	if err := json.Unmarshal(j.Payload, &p); err != nil {
		return p, errors.Join(ErrInvalidPayload, err)
	}
	if err := validate.Struct(p); err != nil {
		return p, errors.Join(ErrInvalidPayload, err)
	}
	return p, nil
}
