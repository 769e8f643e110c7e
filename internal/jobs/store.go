package jobs

import (
	"context"
	"time"
)

// Store persists scheduled jobs. Implementations wrap backend failures
// in ErrStoreUnavailable.
type Store interface {
	Insert(ctx context.Context, j *Job) error
	// CancelByTask deletes every job whose payload references taskID.
	// Cancelling nothing is not an error.
	CancelByTask(ctx context.Context, taskID string) (int64, error)
	// ClaimDue moves up to limit pending jobs with RunAt <= now to RUNNING
	// and returns them. A job is never handed to two callers.
	ClaimDue(ctx context.Context, workerID string, now time.Time, limit int) ([]Job, error)
	MarkRan(ctx context.Context, id uint64) error
	IncrementFail(ctx context.Context, id uint64, errMsg string) error
	ReleaseStale(ctx context.Context, lockedBefore time.Time) (int64, error)
	List(ctx context.Context, f Filter) ([]Job, error)
}
