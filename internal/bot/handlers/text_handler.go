package handlers

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/streambot/internal/media"
	"github.com/edgard/streambot/internal/moderation"
)

// NewTextHandler returns the default handler. Plain text first continues a
// pending media request of its sender; everything else in a group passes
// the night mode gate.
func NewTextHandler(deps HandlerDeps) bot.HandlerFunc {
	return textHandler{deps}.Handle
}

type textHandler struct {
	deps HandlerDeps
}

func (h textHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.handle(ctx, b, update)
}

func (h textHandler) handle(ctx context.Context, c Client, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Text == "" {
		return
	}
	if strings.HasPrefix(msg.Text, "/") {
		return
	}
	log := h.deps.Logger.With("handler", "text", "chat_id", msg.Chat.ID, "user_id", msg.From.ID)

	key := media.Key{ChatID: msg.Chat.ID, UserID: msg.From.ID}
	if replies, ok := h.deps.Workflow.HandleText(ctx, key, msg.Text); ok {
		if err := sendReplies(ctx, c, msg.Chat.ID, threadOf(msg), replies); err != nil {
			log.ErrorContext(ctx, "Failed to send media replies", "error", err)
		}
		return
	}

	if !isGroupChat(msg.Chat) || msg.SenderChat != nil {
		return
	}
	decision := h.deps.Gate.Evaluate(ctx, moderation.Message{
		ChatID:    msg.Chat.ID,
		ThreadID:  threadOf(msg),
		UserID:    msg.From.ID,
		MessageID: msg.ID,
	})
	log.DebugContext(ctx, "Night mode gate evaluated", "decision", decision)
}
