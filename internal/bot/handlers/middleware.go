// Package handlers contains Telegram bot command and message handlers,
// along with their registration logic and middleware.
package handlers

import (
	"context"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// AdminOnly creates a middleware that lets only owners and administrators of
// the group through. In the group itself the sender's role in that chat is
// checked; in a private chat the role in the configured group is used.
// Anonymous admins posting as the group are always allowed.
func AdminOnly(deps HandlerDeps) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, bot *tgbot.Bot, update *models.Update) {
			msg := update.Message
			if msg == nil {
				return
			}
			log := deps.Logger.With("middleware", "AdminOnly", "chat_id", msg.Chat.ID)

			allowed, reply := authorize(ctx, deps, msg)
			if !allowed {
				log.WarnContext(ctx, "Unauthorized command attempt", "user_id", senderID(msg))
				replyText(ctx, bot, deps, msg, reply)
				return
			}

			next(ctx, bot, update)
		}
	}
}

// authorize decides whether msg comes from a privileged member. The string
// is the reply for a refused sender.
func authorize(ctx context.Context, deps HandlerDeps, msg *models.Message) (bool, string) {
	msgs := deps.Config.Messages
	if msg.SenderChat != nil && msg.SenderChat.ID == msg.Chat.ID {
		return true, ""
	}
	if msg.From == nil {
		return false, msgs.NotAdmin
	}

	chatID := msg.Chat.ID
	if msg.Chat.Type == models.ChatTypePrivate {
		settings, err := deps.Store.LoadGroupSettings(ctx)
		if err != nil {
			deps.Logger.ErrorContext(ctx, "Failed to load group settings for admin check", "error", err)
			return false, msgs.GeneralError
		}
		if !settings.HasGroup() {
			return false, msgs.NoGroup
		}
		chatID = settings.GroupChatID.Int64
	}

	privileged, err := deps.Roles.IsPrivileged(ctx, chatID, msg.From.ID)
	if err != nil {
		deps.Logger.WarnContext(ctx, "Role lookup failed, refusing admin command", "user_id", msg.From.ID, "error", err)
		return false, msgs.GeneralError
	}
	if !privileged {
		return false, msgs.NotAdmin
	}
	return true, ""
}

// GroupOnly rejects commands sent outside of a group or supergroup.
func GroupOnly(deps HandlerDeps) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, bot *tgbot.Bot, update *models.Update) {
			msg := update.Message
			if msg == nil {
				return
			}
			if !isGroupChat(msg.Chat) {
				replyText(ctx, bot, deps, msg, deps.Config.Messages.GroupOnly)
				return
			}
			next(ctx, bot, update)
		}
	}
}

func isGroupChat(chat models.Chat) bool {
	return chat.Type == models.ChatTypeGroup || chat.Type == models.ChatTypeSupergroup
}

func senderID(msg *models.Message) int64 {
	if msg.From == nil {
		return 0
	}
	return msg.From.ID
}
