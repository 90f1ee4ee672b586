package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/streambot/internal/nightmode"
)

// NewEnableNightModeHandler returns a handler for /enable_night_mode.
func NewEnableNightModeHandler(deps HandlerDeps) bot.HandlerFunc {
	return nightModeSwitchHandler{deps: deps, enable: true}.Handle
}

// NewDisableNightModeHandler returns a handler for /disable_night_mode.
func NewDisableNightModeHandler(deps HandlerDeps) bot.HandlerFunc {
	return nightModeSwitchHandler{deps: deps, enable: false}.Handle
}

// nightModeSwitchHandler overrides the schedule. The next scheduled tick
// re-aligns the state with the window.
type nightModeSwitchHandler struct {
	deps   HandlerDeps
	enable bool
}

func (h nightModeSwitchHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.handle(ctx, b, update)
}

func (h nightModeSwitchHandler) handle(ctx context.Context, c Client, update *models.Update) {
	msg := update.Message
	msgs := h.deps.Config.Messages
	log := h.deps.Logger.With("handler", "night_mode_switch", "enable", h.enable, "user_id", senderID(msg))

	var err error
	if h.enable {
		err = h.deps.NightMode.Enable(ctx)
	} else {
		err = h.deps.NightMode.Disable(ctx)
	}

	switch {
	case err == nil:
		log.InfoContext(ctx, "Night mode switched manually")
		if h.enable {
			replyText(ctx, c, h.deps, msg, msgs.NightModeEnabled)
		} else {
			replyText(ctx, c, h.deps, msg, msgs.NightModeDisabled)
		}
	case errors.Is(err, nightmode.ErrAlreadyActive):
		replyText(ctx, c, h.deps, msg, msgs.AlreadyActive)
	case errors.Is(err, nightmode.ErrAlreadyInactive):
		replyText(ctx, c, h.deps, msg, msgs.AlreadyInactive)
	case errors.Is(err, nightmode.ErrNoGroup):
		replyText(ctx, c, h.deps, msg, msgs.NoGroup)
	default:
		log.ErrorContext(ctx, "Manual night mode switch failed", "error", err)
		replyText(ctx, c, h.deps, msg, msgs.GeneralError)
	}
}

// NewNightModeStatusHandler returns a handler for /night_mode.
func NewNightModeStatusHandler(deps HandlerDeps) bot.HandlerFunc {
	return nightModeStatusHandler{deps}.Handle
}

type nightModeStatusHandler struct {
	deps HandlerDeps
}

func (h nightModeStatusHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.handle(ctx, b, update)
}

func (h nightModeStatusHandler) handle(ctx context.Context, c Client, update *models.Update) {
	msg := update.Message
	if msg == nil {
		return
	}
	msgs := h.deps.Config.Messages

	status, err := h.deps.NightMode.Status(ctx)
	if err != nil {
		h.deps.Logger.ErrorContext(ctx, "Failed to read night mode status", "handler", "night_mode", "error", err)
		replyText(ctx, c, h.deps, msg, msgs.GeneralError)
		return
	}
	replyText(ctx, c, h.deps, msg, formatStatus(msgs.NightModeStatusFmt, msgs.NightModeOn, msgs.NightModeOff, status))
}

func formatStatus(format, on, off string, status nightmode.Status) string {
	state := off
	if status.Active {
		state = on
	}
	return fmt.Sprintf(format, status.Window.Start, status.Window.End, status.Location, state)
}
