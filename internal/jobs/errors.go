package jobs

import "errors"

var (
	// ErrStoreUnavailable wraps any failure of the backing job store.
	ErrStoreUnavailable = errors.New("jobs: store unavailable")

	// ErrInvalidPayload is returned when a payload fails validation or decoding.
	ErrInvalidPayload = errors.New("jobs: invalid payload")

	// ErrUnknownJob is recorded when no handler is registered for a job name.
	ErrUnknownJob = errors.New("jobs: unknown job")

	ErrAlreadyStarted = errors.New("jobs: scheduler already started")
	ErrNotStarted     = errors.New("jobs: scheduler not started")
)
