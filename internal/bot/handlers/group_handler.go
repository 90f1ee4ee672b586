package handlers

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"golang.org/x/text/language"

	"github.com/edgard/streambot/internal/database"
)

// NewSetGroupHandler returns a handler for /set_group_id. It stores the chat
// the command was sent in as the managed group.
func NewSetGroupHandler(deps HandlerDeps) bot.HandlerFunc {
	return setGroupHandler{deps}.Handle
}

type setGroupHandler struct {
	deps HandlerDeps
}

func (h setGroupHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.handle(ctx, b, update)
}

func (h setGroupHandler) handle(ctx context.Context, c Client, update *models.Update) {
	msg := update.Message
	log := h.deps.Logger.With("handler", "set_group_id", "chat_id", msg.Chat.ID)

	_, err := h.deps.Store.UpdateGroupSettings(ctx, func(s *database.GroupSettings) error {
		s.SetGroup(msg.Chat.ID, msg.Chat.Title)
		return nil
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to store group chat id", "error", err)
		replyText(ctx, c, h.deps, msg, h.deps.Config.Messages.GeneralError)
		return
	}

	log.InfoContext(ctx, "Group chat configured", "group_name", msg.Chat.Title, "user_id", senderID(msg))
	replyText(ctx, c, h.deps, msg, fmt.Sprintf(h.deps.Config.Messages.GroupSetFmt, msg.Chat.ID))
}

// NewSetLanguageHandler returns a handler for /set_language <code>.
func NewSetLanguageHandler(deps HandlerDeps) bot.HandlerFunc {
	return setLanguageHandler{deps}.Handle
}

type setLanguageHandler struct {
	deps HandlerDeps
}

func (h setLanguageHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.handle(ctx, b, update)
}

func (h setLanguageHandler) handle(ctx context.Context, c Client, update *models.Update) {
	msg := update.Message
	msgs := h.deps.Config.Messages
	log := h.deps.Logger.With("handler", "set_language", "chat_id", msg.Chat.ID)

	arg := commandArgs(msg.Text)
	if arg == "" {
		replyText(ctx, c, h.deps, msg, msgs.LanguageMissing)
		return
	}
	code, ok := parseLanguageCode(arg)
	if !ok {
		log.InfoContext(ctx, "Rejected language code", "code", arg)
		replyText(ctx, c, h.deps, msg, msgs.LanguageInvalid)
		return
	}

	_, err := h.deps.Store.UpdateGroupSettings(ctx, func(s *database.GroupSettings) error {
		s.Language = code
		return nil
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to store language", "error", err)
		replyText(ctx, c, h.deps, msg, msgs.GeneralError)
		return
	}

	log.InfoContext(ctx, "Language updated", "language", code)
	replyText(ctx, c, h.deps, msg, fmt.Sprintf(msgs.LanguageSetFmt, html.EscapeString(code)))
}

// parseLanguageCode accepts a two-letter ISO 639-1 code known to
// x/text/language and returns it in lower case.
func parseLanguageCode(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 2 {
		return "", false
	}
	base, err := language.ParseBase(s)
	if err != nil || base.String() != s {
		return "", false
	}
	return s, true
}
