package handlers

import (
	"context"
	"log/slog"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// typingInterval stays below the five seconds a chat action is shown for.
const typingInterval = 4 * time.Second

// ChatActionSender sends chat actions such as "typing".
type ChatActionSender interface {
	SendChatAction(ctx context.Context, params *tgbot.SendChatActionParams) (bool, error)
}

// keepTyping shows the typing indicator in chatID until the returned stop
// function is called.
func keepTyping(ctx context.Context, s ChatActionSender, log *slog.Logger, chatID int64, threadID int) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	send := func() error {
		_, err := s.SendChatAction(ctx, &tgbot.SendChatActionParams{
			ChatID:          chatID,
			MessageThreadID: threadID,
			Action:          models.ChatActionTyping,
		})
		return err
	}

	go func() {
		defer close(done)
		if err := send(); err != nil {
			log.DebugContext(ctx, "Typing action failed", "error", err, "chat_id", chatID)
			return
		}

		ticker := time.NewTicker(typingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := send(); err != nil && ctx.Err() == nil {
					log.DebugContext(ctx, "Typing action failed", "error", err, "chat_id", chatID)
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}
