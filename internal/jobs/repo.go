package jobs

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Repo is the Postgres Store.
type Repo struct {
	DB *gorm.DB
	// KeepCompleted keeps successful rows as DONE instead of deleting them.
	KeepCompleted bool
}

func unavailable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

func (r *Repo) Insert(ctx context.Context, j *Job) error {
	if j.Status == "" {
		j.Status = StatusPending
	}
	return unavailable(r.DB.WithContext(ctx).Create(j).Error)
}

func (r *Repo) CancelByTask(ctx context.Context, taskID string) (int64, error) {
	res := r.DB.WithContext(ctx).Exec(`
delete from jobs
where name = ?
  and payload->>'task_id' = ?
`, NameSendTaskReminder, taskID)
	if res.Error != nil {
		return 0, unavailable(res.Error)
	}
	return res.RowsAffected, nil
}

// ClaimDue claims due jobs atomically using SKIP LOCKED.
func (r *Repo) ClaimDue(ctx context.Context, workerID string, now time.Time, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 1
	}
	var claimed []Job
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// FOR UPDATE SKIP LOCKED ensures no double-claim
		return tx.Raw(`
with cte as (
  select id
  from jobs
  where status='PENDING' and run_at <= ?
  order by run_at asc
  for update skip locked
  limit ?
)
update jobs
set status='RUNNING', locked_by=?, locked_at=?, updated_at=now()
where id in (select id from cte)
returning *;
`, now, limit, workerID, now).Scan(&claimed).Error
	})
	if err != nil {
		return nil, unavailable(err)
	}
	return claimed, nil
}

func (r *Repo) MarkRan(ctx context.Context, id uint64) error {
	if !r.KeepCompleted {
		return unavailable(r.DB.WithContext(ctx).Exec(`delete from jobs where id=?`, id).Error)
	}
	return unavailable(r.DB.WithContext(ctx).Exec(`
update jobs
set status='DONE',
    run_count=run_count+1,
    last_run_at=now(),
    locked_by=null,
    locked_at=null,
    updated_at=now()
where id=?`, id).Error)
}

func (r *Repo) IncrementFail(ctx context.Context, id uint64, errMsg string) error {
	return unavailable(r.DB.WithContext(ctx).Exec(`
update jobs
set status='FAILED',
    fail_count=fail_count+1,
    run_count=run_count+1,
    last_run_at=now(),
    locked_by=null,
    locked_at=null,
    last_error=?,
    updated_at=now()
where id=?`, errMsg, id).Error)
}

// ReleaseStale requeues RUNNING jobs whose claim is older than lockedBefore.
func (r *Repo) ReleaseStale(ctx context.Context, lockedBefore time.Time) (int64, error) {
	res := r.DB.WithContext(ctx).Exec(`
update jobs
set status='PENDING', locked_by=null, locked_at=null, updated_at=now()
where status='RUNNING' and locked_at is not null and locked_at < ?
`, lockedBefore)
	if res.Error != nil {
		return 0, unavailable(res.Error)
	}
	return res.RowsAffected, nil
}

func (r *Repo) List(ctx context.Context, f Filter) ([]Job, error) {
	q := r.DB.WithContext(ctx).Model(&Job{})
	if f.TaskID != "" {
		q = q.Where("payload->>'task_id' = ?", f.TaskID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.FailedOnly {
		q = q.Where("fail_count > 0")
	}

	var out []Job
	if err := q.Order("run_at asc, id asc").Find(&out).Error; err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}
