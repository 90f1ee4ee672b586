package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/edgard/streambot/internal/config"
)

// newSQLMaintenanceTask compacts the settings database. The store logs each
// step and the scheduler logs failures, so only the outcome is recorded here.
func newSQLMaintenanceTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", config.TaskSQLMaintenance)

	return func(ctx context.Context) error {
		started := time.Now()
		if err := deps.Store.RunSQLMaintenance(ctx); err != nil {
			return fmt.Errorf("database maintenance aborted after %s: %w", time.Since(started).Round(time.Millisecond), err)
		}
		log.DebugContext(ctx, "Settings database compacted", "took", time.Since(started).Round(time.Millisecond))
		return nil
	}
}
