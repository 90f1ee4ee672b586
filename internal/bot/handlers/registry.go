package handlers

import (
	tgbot "github.com/go-telegram/bot"

	"github.com/edgard/streambot/internal/media"
)

// RegisteredHandler represents a command handler with its description and middleware.
// It encapsulates all information needed to register and document a command.
// Handlers with a MatchFunc are registered by predicate instead of pattern.
type RegisteredHandler struct {
	HandlerType tgbot.HandlerType
	Pattern     string
	Handler     tgbot.HandlerFunc
	Middleware  []tgbot.Middleware
	MatchType   tgbot.MatchType
	MatchFunc   tgbot.MatchFunc
	// Description is published in the bot's command list when set.
	Description string
}

// RegisterAllCommands initializes and returns a map of all available bot commands.
// It configures each command with appropriate handlers and middleware.
func RegisterAllCommands(deps HandlerDeps) map[string]RegisteredHandler {
	handlers := make(map[string]RegisteredHandler)

	command := func(name, description string, h tgbot.HandlerFunc, mw ...tgbot.Middleware) {
		handlers["/"+name] = RegisteredHandler{
			HandlerType: tgbot.HandlerTypeMessageText,
			Pattern:     name,
			Handler:     h,
			MatchType:   tgbot.MatchTypeCommandStartOnly,
			Middleware:  mw,
			Description: description,
		}
	}

	command("start", "Begrüßung", NewStartHandler(deps))
	command("help", "Verfügbare Befehle", NewHelpHandler(deps))
	command("search", "Film oder Serie anfragen", NewSearchHandler(deps))
	command("night_mode", "Status des Nachtmodus", NewNightModeStatusHandler(deps))

	groupAdmin := []tgbot.Middleware{GroupOnly(deps), AdminOnly(deps)}
	command("set_group_id", "Gruppe festlegen (Admin)", NewSetGroupHandler(deps), groupAdmin...)

	admin := AdminOnly(deps)
	command("set_language", "Sprache festlegen (Admin)", NewSetLanguageHandler(deps), admin)
	command("enable_night_mode", "Nachtmodus starten (Admin)", NewEnableNightModeHandler(deps), admin)
	command("disable_night_mode", "Nachtmodus beenden (Admin)", NewDisableNightModeHandler(deps), admin)
	command("announce", "Mitteilung in ein Topic senden (Admin)", NewAnnounceHandler(deps), admin)

	handlers["media_callback"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeCallbackQueryData,
		Pattern:     media.CallbackPrefix,
		Handler:     NewMediaCallbackHandler(deps),
		MatchType:   tgbot.MatchTypePrefix,
	}
	handlers["welcome"] = RegisteredHandler{
		Handler:   NewWelcomeHandler(deps),
		MatchFunc: HasNewMembers,
	}

	return handlers
}
