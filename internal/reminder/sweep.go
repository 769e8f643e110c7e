package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const sweepTimeout = time.Minute

// NewSweep returns a cron runner that calls RescheduleFailed on schedule, a
// standard five-field expression or a descriptor such as "@every 10m".
// The caller starts and stops it.
func NewSweep(schedule string, svc *Service, logger *slog.Logger) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()

		out, err := svc.RescheduleFailed(ctx)
		if err != nil {
			logger.Error("failed job sweep", slog.String("error", err.Error()))
			return
		}
		if len(out) > 0 {
			logger.Info("failed job sweep rescheduled reminders", slog.Int("count", len(out)))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("reminder: invalid sweep schedule %q: %w", schedule, err)
	}
	return c, nil
}
