package handlers

import (
	"context"
	"errors"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/streambot/internal/media"
)

// NewSearchHandler returns a handler for /search <title>.
func NewSearchHandler(deps HandlerDeps) bot.HandlerFunc {
	return searchHandler{deps}.Handle
}

type searchHandler struct {
	deps HandlerDeps
}

func (h searchHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.handle(ctx, b, update)
}

func (h searchHandler) handle(ctx context.Context, c Client, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	log := h.deps.Logger.With("handler", "search", "chat_id", msg.Chat.ID, "user_id", msg.From.ID)

	title := commandArgs(msg.Text)
	if title == "" {
		replyText(ctx, c, h.deps, msg, h.deps.Config.Messages.SearchUsage)
		return
	}

	stop := keepTyping(ctx, c, log, msg.Chat.ID, threadOf(msg))
	replies := h.deps.Workflow.Search(ctx, media.Key{ChatID: msg.Chat.ID, UserID: msg.From.ID}, title)
	stop()

	if err := sendReplies(ctx, c, msg.Chat.ID, threadOf(msg), replies); err != nil {
		log.ErrorContext(ctx, "Failed to send search replies", "error", err)
	}
}

// NewMediaCallbackHandler returns the handler for media inline buttons.
func NewMediaCallbackHandler(deps HandlerDeps) bot.HandlerFunc {
	return mediaCallbackHandler{deps}.Handle
}

type mediaCallbackHandler struct {
	deps HandlerDeps
}

func (h mediaCallbackHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.handle(ctx, b, update)
}

func (h mediaCallbackHandler) handle(ctx context.Context, c Client, update *models.Update) {
	query := update.CallbackQuery
	if query == nil {
		return
	}
	log := h.deps.Logger.With("handler", "media_callback", "user_id", query.From.ID)

	msg := query.Message.Message
	if msg == nil {
		log.DebugContext(ctx, "Callback for inaccessible message", "data", query.Data)
		h.answer(ctx, c, query.ID, h.deps.Config.Messages.SessionExpired)
		return
	}
	key := media.Key{ChatID: msg.Chat.ID, UserID: query.From.ID}

	stop := keepTyping(ctx, c, log, msg.Chat.ID, threadOf(msg))
	replies, err := h.deps.Workflow.HandleCallback(ctx, key, query.Data)
	stop()

	if err != nil {
		if !errors.Is(err, media.ErrStaleSession) && !errors.Is(err, media.ErrNoSession) {
			log.ErrorContext(ctx, "Media callback failed", "error", err)
		}
		h.answer(ctx, c, query.ID, h.deps.Config.Messages.SessionExpired)
		return
	}
	h.answer(ctx, c, query.ID, "")

	// Drop the keyboard of the answered prompt so it cannot be pressed twice.
	_, editErr := c.EditMessageReplyMarkup(ctx, &bot.EditMessageReplyMarkupParams{
		ChatID:      msg.Chat.ID,
		MessageID:   msg.ID,
		ReplyMarkup: &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{}},
	})
	if editErr != nil {
		log.DebugContext(ctx, "Failed to remove inline keyboard", "error", editErr)
	}

	if err := sendReplies(ctx, c, msg.Chat.ID, threadOf(msg), replies); err != nil {
		log.ErrorContext(ctx, "Failed to send media replies", "error", err)
	}
}

func (h mediaCallbackHandler) answer(ctx context.Context, c Client, queryID, text string) {
	_, err := c.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: queryID,
		Text:            text,
	})
	if err != nil {
		h.deps.Logger.WarnContext(ctx, "Failed to answer callback query", "error", err)
	}
}
