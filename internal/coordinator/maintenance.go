package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roadan/incubator-amaterasu/internal/launcher"
	"github.com/roadan/incubator-amaterasu/internal/repository"
)

const reapMessage = "marked as failed by maintenance cleanup (no status report)"

// ReapStale marks dispatched or running actions that have not reported since
// olderThan as errored. When a launcher is configured the worker is
// cancelled first; if cancelling fails the record is left untouched so the
// next run retries it. A worker the launcher no longer knows counts as
// cancelled.
func (c *Coordinator) ReapStale(ctx context.Context, olderThan time.Time, limit int) (int, error) {
	stale, err := c.repo.ListStale(ctx, olderThan, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to get stale actions: %w", err)
	}

	count := 0
	for _, rec := range stale {
		if !c.cancelLaunch(ctx, rec) {
			continue
		}

		if err := c.repo.UpdateStatus(ctx, rec.JobID, rec.Action, repository.StatusError, reapMessage); err != nil {
			c.logger.Error("failed to update action status", "job_id", rec.JobID, "action", rec.Action, "error", err)
			continue
		}

		c.broadcast(rec.JobID, rec.Action, rec.ExecutorID, repository.StatusError, reapMessage)
		count++
	}

	return count, nil
}

func (c *Coordinator) cancelLaunch(ctx context.Context, rec *repository.ActionRecord) bool {
	if c.launcher == nil || rec.DispatchID == "" || rec.Launcher != c.launcher.Kind() {
		return true
	}

	err := c.launcher.Cancel(ctx, rec.DispatchID)
	if errors.Is(err, launcher.ErrNotRunning) {
		c.logger.Debug("stale worker already gone", "job_id", rec.JobID, "action", rec.Action, "dispatch_id", rec.DispatchID)
		return true
	}
	if err != nil {
		c.logger.Error("failed to cancel stale worker", "job_id", rec.JobID, "action", rec.Action, "dispatch_id", rec.DispatchID, "error", err)
		return false
	}
	return true
}
