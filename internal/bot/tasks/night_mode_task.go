package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/edgard/streambot/internal/nightmode"
)

// newNightModeTask creates the periodic night mode evaluation. A missing
// group is not a task failure; the service already logged it.
func newNightModeTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "night_mode")

	return func(ctx context.Context) error {
		transition, err := deps.NightMode.Tick(ctx)
		if errors.Is(err, nightmode.ErrNoGroup) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("night mode tick failed: %w", err)
		}
		if transition != nightmode.NoTransition {
			log.InfoContext(ctx, "Night mode transition applied", "transition", transition)
		}
		return nil
	}
}
