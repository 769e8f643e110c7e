package reminder

import "errors"

var (
	// ErrTaskNotFound is returned by TaskStore when the task is gone.
	// The handler treats it as success.
	ErrTaskNotFound = errors.New("reminder: task not found")

	// ErrAlreadySent marks a task whose reminder went out already.
	ErrAlreadySent = errors.New("reminder: already sent")

	ErrTransientDelivery = errors.New("reminder: transient delivery failure")
	ErrTerminalDelivery  = errors.New("reminder: delivery failed")
	ErrRetriesExhausted  = errors.New("reminder: retries exhausted")
)
