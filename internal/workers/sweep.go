package workers

import (
	"context"
	"time"

	"github.com/BKHilton/Ember/internal/core"
	"go.uber.org/zap"
)

// SweepJob promotes overdue tasks to past-due on every tick.
func SweepJob(svc *core.Service, interval time.Duration, logger *zap.Logger) Job {
	if logger == nil {
		logger = zap.NewNop()
	}
	return Job{
		Name:     "past_due_sweep",
		Interval: interval,
		Run: func(ctx context.Context) error {
			changed, err := svc.SweepPastDue(ctx)
			if err != nil {
				return err
			}
			if len(changed) > 0 {
				logger.Info("tasks marked past due", zap.Int("count", len(changed)))
			}
			return nil
		},
	}
}
