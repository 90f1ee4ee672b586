package handlers

import (
	"log/slog"

	"github.com/edgard/streambot/internal/config"
	"github.com/edgard/streambot/internal/database"
	"github.com/edgard/streambot/internal/media"
	"github.com/edgard/streambot/internal/moderation"
	"github.com/edgard/streambot/internal/nightmode"
)

// HandlerDeps provides dependencies for Telegram command handlers.
type HandlerDeps struct {
	Logger    *slog.Logger
	Config    *config.Config
	Store     database.Store
	NightMode *nightmode.Service
	Gate      *moderation.Gate
	Roles     moderation.Privileges
	Workflow  *media.Workflow
}
