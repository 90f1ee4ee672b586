// Package nightmode owns the daily night mode state machine: it decides when
// the group enters and leaves the restricted window, posts the announcements
// and persists the phase in the group settings store.
package nightmode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/streambot/internal/database"
)

var (
	// ErrNoGroup is returned when no group chat has been configured yet.
	ErrNoGroup = errors.New("no group chat configured")
	// ErrAlreadyActive is returned by Enable when night mode is already on.
	ErrAlreadyActive = errors.New("night mode already active")
	// ErrAlreadyInactive is returned by Disable when night mode is already off.
	ErrAlreadyInactive = errors.New("night mode already inactive")
)

// Messenger is the part of the Telegram client used for announcements.
type Messenger interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	DeleteMessage(ctx context.Context, params *bot.DeleteMessageParams) (bool, error)
}

// SettingsStore reads and atomically updates the persisted night mode phase.
type SettingsStore interface {
	LoadGroupSettings(ctx context.Context) (*database.GroupSettings, error)
	UpdateGroupSettings(ctx context.Context, fn func(*database.GroupSettings) error) (*database.GroupSettings, error)
}

// Transition is the outcome of an evaluation.
type Transition int

const (
	NoTransition Transition = iota
	Activated
	Deactivated
)

func (t Transition) String() string {
	switch t {
	case Activated:
		return "activated"
	case Deactivated:
		return "deactivated"
	default:
		return "none"
	}
}

// Options configure a Service.
type Options struct {
	Window   Window
	Location *time.Location
	// ThreadID, when set, posts announcements into that forum topic.
	ThreadID int

	StartedText string
	EndedText   string

	// RequestTimeout bounds each Telegram call.
	RequestTimeout time.Duration
	Now            func() time.Time
	Logger         *slog.Logger
}

// Status is a snapshot for the status command.
type Status struct {
	Active       bool
	InsideWindow bool
	Window       Window
	Location     *time.Location
	GroupChatID  int64
}

// Service runs night mode transitions. All transitions, scheduled or
// manual, are serialised by one mutex and go through the same routine.
type Service struct {
	mu        sync.Mutex
	store     SettingsStore
	messenger Messenger
	opts      Options
	logger    *slog.Logger
}

// NewService creates a night mode service.
func NewService(store SettingsStore, messenger Messenger, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		store:     store,
		messenger: messenger,
		opts:      opts,
		logger:    logger.With("component", "night_mode"),
	}
}

// Window returns the configured window.
func (s *Service) Window() Window {
	return s.opts.Window
}

// Location returns the timezone the window is evaluated in.
func (s *Service) Location() *time.Location {
	return s.opts.Location
}

// IsActive reports the persisted night mode phase.
func (s *Service) IsActive(ctx context.Context) (bool, error) {
	settings, err := s.store.LoadGroupSettings(ctx)
	if err != nil {
		return false, err
	}
	return settings.NightModeActive, nil
}

// Tick evaluates the window at the current time.
func (s *Service) Tick(ctx context.Context) (Transition, error) {
	return s.Evaluate(ctx, s.opts.Now())
}

// Evaluate compares the window at now with the persisted phase and runs
// the transition when they disagree. Agreeing state is a no-op.
func (s *Service) Evaluate(ctx context.Context, now time.Time) (Transition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings, err := s.loadWithGroup(ctx)
	if err != nil {
		return NoTransition, err
	}

	inside := s.opts.Window.ContainsTime(now, s.opts.Location)
	s.logger.DebugContext(ctx, "Evaluating night mode",
		"local_time", now.In(s.opts.Location).Format(time.DateTime),
		"window", s.opts.Window.String(),
		"inside", inside,
		"active", settings.NightModeActive,
	)

	switch {
	case inside && !settings.NightModeActive:
		return Activated, s.transition(ctx, settings, true)
	case !inside && settings.NightModeActive:
		return Deactivated, s.transition(ctx, settings, false)
	default:
		return NoTransition, nil
	}
}

// Enable activates night mode immediately.
func (s *Service) Enable(ctx context.Context) error {
	return s.force(ctx, true)
}

// Disable deactivates night mode immediately.
func (s *Service) Disable(ctx context.Context) error {
	return s.force(ctx, false)
}

func (s *Service) force(ctx context.Context, activate bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings, err := s.loadWithGroup(ctx)
	if err != nil {
		return err
	}
	if settings.NightModeActive == activate {
		if activate {
			return ErrAlreadyActive
		}
		return ErrAlreadyInactive
	}
	return s.transition(ctx, settings, activate)
}

// Status returns the persisted phase together with the window evaluation
// at the current time.
func (s *Service) Status(ctx context.Context) (Status, error) {
	settings, err := s.store.LoadGroupSettings(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{
		Active:       settings.NightModeActive,
		InsideWindow: s.opts.Window.ContainsTime(s.opts.Now(), s.opts.Location),
		Window:       s.opts.Window,
		Location:     s.opts.Location,
		GroupChatID:  settings.GroupChatID.Int64,
	}, nil
}

func (s *Service) loadWithGroup(ctx context.Context) (*database.GroupSettings, error) {
	settings, err := s.store.LoadGroupSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load group settings: %w", err)
	}
	if !settings.HasGroup() {
		s.logger.WarnContext(ctx, "No group chat configured, skipping night mode evaluation")
		return nil, ErrNoGroup
	}
	return settings, nil
}

// transition performs one phase change. The previous announcement is only
// removed when night mode ends; a failed delete does not stop the
// transition. A failed send leaves the persisted state untouched.
func (s *Service) transition(ctx context.Context, settings *database.GroupSettings, activate bool) error {
	chatID := settings.GroupChatID.Int64
	log := s.logger.With("chat_id", chatID, "activate", activate)

	if !activate {
		if prev := settings.AnnouncementID(); prev != 0 {
			if err := s.deleteMessage(ctx, chatID, prev); err != nil {
				log.WarnContext(ctx, "Failed to delete previous night mode announcement", "message_id", prev, "error", err)
			}
		}
	}

	text := s.opts.EndedText
	if activate {
		text = s.opts.StartedText
	}

	sent, err := s.sendMessage(ctx, chatID, text)
	if err != nil {
		log.ErrorContext(ctx, "Failed to send night mode announcement, state unchanged", "error", err)
		return fmt.Errorf("failed to send night mode announcement: %w", err)
	}

	_, err = s.store.UpdateGroupSettings(ctx, func(g *database.GroupSettings) error {
		g.SetNightMode(activate, sent.ID)
		return nil
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to persist night mode transition", "message_id", sent.ID, "error", err)
		return fmt.Errorf("failed to persist night mode transition: %w", err)
	}

	log.InfoContext(ctx, "Night mode transition completed", "message_id", sent.ID)
	return nil
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.RequestTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opts.RequestTimeout)
}

func (s *Service) sendMessage(ctx context.Context, chatID int64, text string) (*models.Message, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	msg, err := s.messenger.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:          chatID,
		MessageThreadID: s.opts.ThreadID,
		Text:            text,
	})
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, errors.New("telegram returned no message")
	}
	return msg, nil
}

func (s *Service) deleteMessage(ctx context.Context, chatID int64, messageID int) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	ok, err := s.messenger.DeleteMessage(ctx, &bot.DeleteMessageParams{ChatID: chatID, MessageID: messageID})
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("telegram refused to delete the message")
	}
	return nil
}
