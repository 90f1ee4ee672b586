package handlers

import (
	"context"
	"strings"
	"unicode"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/streambot/internal/media"
)

// Sender is the part of the Telegram client used to answer users.
type Sender interface {
	SendMessage(ctx context.Context, params *tgbot.SendMessageParams) (*models.Message, error)
	SendPhoto(ctx context.Context, params *tgbot.SendPhotoParams) (*models.Message, error)
}

// Client is the Telegram surface used by the handlers. *bot.Bot
// implements it.
type Client interface {
	Sender
	ChatActionSender
	EditMessageReplyMarkup(ctx context.Context, params *tgbot.EditMessageReplyMarkupParams) (*models.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *tgbot.AnswerCallbackQueryParams) (bool, error)
	PinChatMessage(ctx context.Context, params *tgbot.PinChatMessageParams) (bool, error)
}

// threadOf returns the forum topic msg was posted in, or 0.
func threadOf(msg *models.Message) int {
	if msg == nil || !msg.IsTopicMessage {
		return 0
	}
	return msg.MessageThreadID
}

// replyText answers msg in its chat and topic. Failures are logged.
func replyText(ctx context.Context, s Sender, deps HandlerDeps, msg *models.Message, text string) {
	_, err := s.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID:          msg.Chat.ID,
		MessageThreadID: threadOf(msg),
		Text:            text,
		ParseMode:       models.ParseModeHTML,
	})
	if err != nil {
		deps.Logger.ErrorContext(ctx, "Failed to send reply", "error", err, "chat_id", msg.Chat.ID)
	}
}

// sendReplies delivers workflow replies in order. A reply with a photo whose
// upload fails is sent again as plain text.
func sendReplies(ctx context.Context, s Sender, chatID int64, threadID int, replies []media.Reply) error {
	for _, r := range replies {
		markup := keyboard(r.Buttons)
		if r.PhotoURL != "" {
			_, err := s.SendPhoto(ctx, &tgbot.SendPhotoParams{
				ChatID:          chatID,
				MessageThreadID: threadID,
				Photo:           &models.InputFileString{Data: r.PhotoURL},
				Caption:         r.Text,
				ParseMode:       models.ParseModeHTML,
				ReplyMarkup:     markup,
			})
			if err == nil {
				continue
			}
		}
		_, err := s.SendMessage(ctx, &tgbot.SendMessageParams{
			ChatID:          chatID,
			MessageThreadID: threadID,
			Text:            r.Text,
			ParseMode:       models.ParseModeHTML,
			ReplyMarkup:     markup,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// keyboard converts workflow buttons to an inline keyboard. It returns a nil
// interface when there are no buttons.
func keyboard(rows [][]media.Button) models.ReplyMarkup {
	if len(rows) == 0 {
		return nil
	}
	markup := &models.InlineKeyboardMarkup{InlineKeyboard: make([][]models.InlineKeyboardButton, 0, len(rows))}
	for _, row := range rows {
		buttons := make([]models.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, models.InlineKeyboardButton{Text: b.Text, CallbackData: b.Data})
		}
		markup.InlineKeyboard = append(markup.InlineKeyboard, buttons)
	}
	return markup
}

// commandArgs returns the text following the command word, e.g. "Dune" for
// "/search@streambot Dune".
func commandArgs(text string) string {
	i := strings.IndexFunc(text, unicode.IsSpace)
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(text[i:])
}
