package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store defines the interface for database operations.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// LoadGroupSettings returns the stored settings, or the defaults when
	// nothing has been written yet.
	LoadGroupSettings(ctx context.Context) (*GroupSettings, error)

	// UpdateGroupSettings loads the settings, lets fn mutate them and writes
	// the result back in one transaction. If fn returns an error nothing is
	// written and the error is returned unchanged.
	UpdateGroupSettings(ctx context.Context, fn func(*GroupSettings) error) (*GroupSettings, error)

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db              *sqlx.DB
	logger          *slog.Logger
	defaultLanguage string
}

// NewStore creates a new Store backed by sqlx. defaultLanguage is reported
// until a language has been stored.
func NewStore(db *sqlx.DB, logger *slog.Logger, defaultLanguage string) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:              db,
		logger:          logger.With("component", "store"),
		defaultLanguage: defaultLanguage,
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const selectGroupSettings = `
    SELECT id, group_chat_id, group_name, language, night_mode_active, night_mode_message_id, created_at, updated_at
    FROM group_settings
    WHERE id = ?;
`

func (s *sqlxStore) defaults() *GroupSettings {
	return &GroupSettings{ID: GroupSettingsID, Language: s.defaultLanguage}
}

// LoadGroupSettings returns the singleton settings row or the defaults.
func (s *sqlxStore) LoadGroupSettings(ctx context.Context) (*GroupSettings, error) {
	settings, err := s.load(ctx, s.db)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error loading group settings", "error", err)
		return nil, err
	}
	return settings, nil
}

func (s *sqlxStore) load(ctx context.Context, q sqlx.QueryerContext) (*GroupSettings, error) {
	var settings GroupSettings
	err := sqlx.GetContext(ctx, q, &settings, selectGroupSettings, GroupSettingsID)
	if errors.Is(err, sql.ErrNoRows) {
		return s.defaults(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load group settings: %w", err)
	}
	return &settings, nil
}

// UpdateGroupSettings performs a read-modify-write of the singleton row.
func (s *sqlxStore) UpdateGroupSettings(ctx context.Context, fn func(*GroupSettings) error) (*GroupSettings, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for group settings update", "error", err)
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
			}
		}
	}()

	settings, err := s.load(ctx, tx)
	if err != nil {
		return nil, err
	}

	if err := fn(settings); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if settings.CreatedAt.IsZero() {
		settings.CreatedAt = now
	}
	settings.UpdatedAt = now
	settings.ID = GroupSettingsID

	query := `
        INSERT INTO group_settings (id, group_chat_id, group_name, language, night_mode_active, night_mode_message_id, created_at, updated_at)
        VALUES (:id, :group_chat_id, :group_name, :language, :night_mode_active, :night_mode_message_id, :created_at, :updated_at)
        ON CONFLICT(id) DO UPDATE SET
            group_chat_id = excluded.group_chat_id,
            group_name = excluded.group_name,
            language = excluded.language,
            night_mode_active = excluded.night_mode_active,
            night_mode_message_id = excluded.night_mode_message_id,
            updated_at = excluded.updated_at;
    `
	if _, err := tx.NamedExecContext(ctx, query, settings); err != nil {
		s.logger.ErrorContext(ctx, "Error saving group settings", "error", err)
		return nil, fmt.Errorf("failed to save group settings: %w", err)
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit group settings update", "error", err)
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	tx = nil

	s.logger.DebugContext(ctx, "Group settings updated",
		"group_chat_id", settings.GroupChatID.Int64,
		"language", settings.Language,
		"night_mode_active", settings.NightModeActive,
		"night_mode_message_id", settings.AnnouncementID(),
	)
	return settings, nil
}

// RunSQLMaintenance refreshes the query planner statistics and compacts the
// database file.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting maintenance", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (optimize + VACUUM)...")

	if _, err := s.db.ExecContext(ctx, "PRAGMA optimize;"); err != nil {
		s.logger.WarnContext(ctx, "PRAGMA optimize failed", "error", err)
	}

	// VACUUM must run outside a transaction in SQLite.
	_, err := s.db.ExecContext(ctx, "VACUUM;")
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)
	case err != nil:
		s.logger.ErrorContext(ctx, "Error running VACUUM", "error", err)
		return fmt.Errorf("failed to run VACUUM: %w", err)
	}

	s.logger.InfoContext(ctx, "Database maintenance completed successfully.")
	return nil
}
