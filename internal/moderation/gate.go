package moderation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/streambot/internal/database"
)

var errDeleteRefused = errors.New("telegram refused to delete the message")

// Decision is what the gate did with a message.
type Decision int

const (
	// Allow means night mode did not apply to the message.
	Allow Decision = iota
	// AllowPrivileged means night mode is active but the sender is exempt.
	AllowPrivileged
	// Deleted means the message was removed and the sender warned.
	Deleted
	// Skipped means enforcement was abandoned after a failed lookup or delete.
	Skipped
)

func (d Decision) String() string {
	switch d {
	case AllowPrivileged:
		return "allow_privileged"
	case Deleted:
		return "deleted"
	case Skipped:
		return "skipped"
	default:
		return "allow"
	}
}

// Message identifies an inbound group message.
type Message struct {
	ChatID    int64
	ThreadID  int
	UserID    int64
	MessageID int
}

// Messenger is the part of the Telegram client used to enforce night mode.
type Messenger interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	DeleteMessage(ctx context.Context, params *bot.DeleteMessageParams) (bool, error)
}

// SettingsLoader reads the persisted night mode state.
type SettingsLoader interface {
	LoadGroupSettings(ctx context.Context) (*database.GroupSettings, error)
}

// Privileges resolves sender roles.
type Privileges interface {
	IsPrivileged(ctx context.Context, chatID, userID int64) (bool, error)
}

// Gate deletes messages of regular members while night mode is active.
type Gate struct {
	store     SettingsLoader
	roles     Privileges
	messenger Messenger
	warning   string
	timeout   time.Duration
	logger    *slog.Logger
}

// GateOptions configure a Gate.
type GateOptions struct {
	// WarningText is sent as a reply after a message was deleted.
	WarningText    string
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

// NewGate creates a moderation gate.
func NewGate(store SettingsLoader, roles Privileges, messenger Messenger, opts GateOptions) *Gate {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Gate{
		store:     store,
		roles:     roles,
		messenger: messenger,
		warning:   opts.WarningText,
		timeout:   opts.RequestTimeout,
		logger:    logger.With("component", "moderation_gate"),
	}
}

// Evaluate applies night mode to msg. Failures are logged and never
// returned; the decision reports what happened.
func (g *Gate) Evaluate(ctx context.Context, msg Message) Decision {
	log := g.logger.With("chat_id", msg.ChatID, "user_id", msg.UserID, "message_id", msg.MessageID)

	settings, err := g.store.LoadGroupSettings(ctx)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load night mode state", "error", err)
		return Skipped
	}
	if !settings.NightModeActive {
		return Allow
	}
	if !settings.HasGroup() {
		log.WarnContext(ctx, "Night mode active but no group chat configured")
		return Allow
	}
	if settings.GroupChatID.Int64 != msg.ChatID {
		return Allow
	}

	privileged, err := g.roles.IsPrivileged(ctx, msg.ChatID, msg.UserID)
	if err != nil {
		log.WarnContext(ctx, "Role lookup failed, leaving message alone", "error", err)
		return Skipped
	}
	if privileged {
		log.DebugContext(ctx, "Privileged sender during night mode")
		return AllowPrivileged
	}

	if err := g.delete(ctx, msg); err != nil {
		log.WarnContext(ctx, "Failed to delete message during night mode", "error", err)
		return Skipped
	}

	if err := g.warn(ctx, msg); err != nil {
		log.WarnContext(ctx, "Failed to send night mode warning", "error", err)
	}
	log.InfoContext(ctx, "Deleted message from regular member due to night mode")
	return Deleted
}

func (g *Gate) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, g.timeout)
}

func (g *Gate) delete(ctx context.Context, msg Message) error {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	ok, err := g.messenger.DeleteMessage(ctx, &bot.DeleteMessageParams{ChatID: msg.ChatID, MessageID: msg.MessageID})
	if err != nil {
		return err
	}
	if !ok {
		return errDeleteRefused
	}
	return nil
}

func (g *Gate) warn(ctx context.Context, msg Message) error {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	_, err := g.messenger.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:          msg.ChatID,
		MessageThreadID: msg.ThreadID,
		Text:            g.warning,
		ReplyParameters: &models.ReplyParameters{
			MessageID:                msg.MessageID,
			AllowSendingWithoutReply: true,
		},
	})
	return err
}
