// Package tasks implements the scheduled tasks of streambot.
// It includes task definitions, dependencies, and registration mechanisms.
package tasks

import (
	"context"
	"log/slog"

	"github.com/edgard/streambot/internal/database"
	"github.com/edgard/streambot/internal/nightmode"
)

// NightModeTicker evaluates the night mode window.
type NightModeTicker interface {
	Tick(ctx context.Context) (nightmode.Transition, error)
}

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger    *slog.Logger
	Store     database.Store
	NightMode NightModeTicker
}
