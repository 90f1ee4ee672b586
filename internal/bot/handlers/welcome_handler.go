package handlers

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// joinTimeLayout is the German date format used in the welcome text.
const joinTimeLayout = "02.01.2006 15:04:05"

// HasNewMembers matches service messages announcing joined members.
func HasNewMembers(update *models.Update) bool {
	return update.Message != nil && len(update.Message.NewChatMembers) > 0
}

// NewWelcomeHandler returns the handler greeting new group members.
func NewWelcomeHandler(deps HandlerDeps) bot.HandlerFunc {
	return welcomeHandler{deps}.Handle
}

type welcomeHandler struct {
	deps HandlerDeps
}

func (h welcomeHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.handle(ctx, b, update)
}

func (h welcomeHandler) handle(ctx context.Context, c Client, update *models.Update) {
	msg := update.Message
	cfg := h.deps.Config.Welcome
	if msg == nil || !cfg.Enabled {
		return
	}
	log := h.deps.Logger.With("handler", "welcome", "chat_id", msg.Chat.ID)

	joined := time.Unix(int64(msg.Date), 0).In(h.location())
	for _, member := range msg.NewChatMembers {
		if member.IsBot {
			continue
		}
		log.InfoContext(ctx, "New member joined the group", "user_id", member.ID)
		if err := h.send(ctx, c, msg, h.welcomeText(member, joined)); err != nil {
			log.ErrorContext(ctx, "Failed to send welcome message", "user_id", member.ID, "error", err)
		}
	}
}

func (h welcomeHandler) welcomeText(member models.User, joined time.Time) string {
	name := fullName(member)
	username := name
	if member.Username != "" {
		username = "@" + member.Username
	}
	return fmt.Sprintf(h.deps.Config.Messages.WelcomeFmt,
		html.EscapeString(name),
		html.EscapeString(username),
		joined.Format(joinTimeLayout),
	)
}

// send posts the welcome, as photo caption when an image is configured, with
// the optional URL button.
func (h welcomeHandler) send(ctx context.Context, c Client, msg *models.Message, text string) error {
	cfg := h.deps.Config.Welcome
	var markup models.ReplyMarkup
	if cfg.ButtonURL != "" {
		markup = &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{{
			{Text: cfg.ButtonText, URL: cfg.ButtonURL},
		}}}
	}

	if cfg.ImageURL != "" {
		_, err := c.SendPhoto(ctx, &bot.SendPhotoParams{
			ChatID:          msg.Chat.ID,
			MessageThreadID: threadOf(msg),
			Photo:           &models.InputFileString{Data: cfg.ImageURL},
			Caption:         text,
			ParseMode:       models.ParseModeHTML,
			ReplyMarkup:     markup,
		})
		if err == nil {
			return nil
		}
		h.deps.Logger.WarnContext(ctx, "Failed to send welcome photo, falling back to text", "error", err)
	}

	_, err := c.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:          msg.Chat.ID,
		MessageThreadID: threadOf(msg),
		Text:            text,
		ParseMode:       models.ParseModeHTML,
		ReplyMarkup:     markup,
	})
	return err
}

func (h welcomeHandler) location() *time.Location {
	if loc := h.deps.Config.NightMode.Location; loc != nil {
		return loc
	}
	return time.UTC
}

func fullName(u models.User) string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
