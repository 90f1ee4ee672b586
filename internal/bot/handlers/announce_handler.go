package handlers

import (
	"context"
	"fmt"
	"html"
	"strings"
	"unicode"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewAnnounceHandler returns a handler for /announce <topic> <text>, which
// posts text into a configured forum topic and optionally pins it.
func NewAnnounceHandler(deps HandlerDeps) bot.HandlerFunc {
	return announceHandler{deps}.Handle
}

type announceHandler struct {
	deps HandlerDeps
}

func (h announceHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.handle(ctx, b, update)
}

func (h announceHandler) handle(ctx context.Context, c Client, update *models.Update) {
	msg := update.Message
	msgs := h.deps.Config.Messages
	log := h.deps.Logger.With("handler", "announce", "chat_id", msg.Chat.ID, "user_id", senderID(msg))

	name, text := splitAnnouncement(commandArgs(msg.Text))
	if name == "" || text == "" {
		replyText(ctx, c, h.deps, msg, msgs.AnnounceUsage)
		return
	}
	topic, ok := h.deps.Config.Topics[strings.ToLower(name)]
	if !ok {
		replyText(ctx, c, h.deps, msg, fmt.Sprintf(msgs.AnnounceUnknownFmt, html.EscapeString(name)))
		return
	}

	// The text is forwarded as written, admins may use HTML formatting.
	posted, err := c.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:          topic.ChatID,
		MessageThreadID: topic.MessageThreadID,
		Text:            text,
		ParseMode:       models.ParseModeHTML,
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to post announcement", "topic", name, "error", err)
		replyText(ctx, c, h.deps, msg, msgs.GeneralError)
		return
	}
	log.InfoContext(ctx, "Announcement posted", "topic", name, "message_id", posted.ID)

	if topic.Pin {
		_, err := c.PinChatMessage(ctx, &bot.PinChatMessageParams{
			ChatID:              topic.ChatID,
			MessageID:           posted.ID,
			DisableNotification: true,
		})
		if err != nil {
			log.WarnContext(ctx, "Failed to pin announcement", "topic", name, "error", err)
		}
	}

	replyText(ctx, c, h.deps, msg, fmt.Sprintf(msgs.AnnounceSentFmt, html.EscapeString(name)))
}

// splitAnnouncement separates the topic name from the text. Line breaks in
// the text are kept.
func splitAnnouncement(args string) (topic, text string) {
	i := strings.IndexFunc(args, unicode.IsSpace)
	if i < 0 {
		return args, ""
	}
	return args[:i], strings.TrimSpace(args[i:])
}
