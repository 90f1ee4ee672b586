package database

import (
	"database/sql"
	"time"
)

// GroupSettingsID is the primary key of the only group_settings row.
const GroupSettingsID = 1

// GroupSettings is the persisted configuration of the managed group together
// with the night mode state. There is at most one row.
type GroupSettings struct {
	ID        int       `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`

	GroupChatID sql.NullInt64 `db:"group_chat_id"`
	GroupName   string        `db:"group_name"` // chat title, informational only
	Language    string        `db:"language"`

	// NightModeActive and NightModeMessageID always change together.
	NightModeActive    bool          `db:"night_mode_active"`
	NightModeMessageID sql.NullInt64 `db:"night_mode_message_id"`
}

// HasGroup reports whether a group chat has been configured.
func (g *GroupSettings) HasGroup() bool {
	return g.GroupChatID.Valid && g.GroupChatID.Int64 != 0
}

// SetGroup records the managed group chat.
func (g *GroupSettings) SetGroup(chatID int64, name string) {
	g.GroupChatID = sql.NullInt64{Int64: chatID, Valid: true}
	g.GroupName = name
}

// SetNightMode records a night mode transition and the announcement that
// was sent for it.
func (g *GroupSettings) SetNightMode(active bool, messageID int) {
	g.NightModeActive = active
	g.NightModeMessageID = sql.NullInt64{Int64: int64(messageID), Valid: messageID != 0}
}

// AnnouncementID returns the id of the last night mode announcement, or 0.
func (g *GroupSettings) AnnouncementID() int {
	if !g.NightModeMessageID.Valid {
		return 0
	}
	return int(g.NightModeMessageID.Int64)
}
