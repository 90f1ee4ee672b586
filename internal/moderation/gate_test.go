package moderation_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/streambot/internal/database"
	"github.com/edgard/streambot/internal/moderation"
	"github.com/edgard/streambot/internal/telegram/telegramtest"
)

const (
	groupID  int64 = -100555
	adminID  int64 = 1
	ownerID  int64 = 2
	memberID int64 = 3
)

func newStore(t *testing.T, active, withGroup bool) database.Store {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "gate.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.CloseDB(db) })

	store := database.NewStore(db, nil, "de")
	_, err = store.UpdateGroupSettings(context.Background(), func(s *database.GroupSettings) error {
		if withGroup {
			s.SetGroup(groupID, "group")
		}
		s.SetNightMode(active, 10)
		return nil
	})
	require.NoError(t, err)
	return store
}

func newGate(store database.Store, messenger *telegramtest.Messenger) *moderation.Gate {
	roles := moderation.NewRoleResolver(messenger, 0)
	return moderation.NewGate(store, roles, messenger, moderation.GateOptions{WarningText: "nachtmodus 00:00 - 07:00"})
}

func newMessenger() *telegramtest.Messenger {
	return &telegramtest.Messenger{Roles: map[int64]models.ChatMemberType{
		adminID: models.ChatMemberTypeAdministrator,
		ownerID: models.ChatMemberTypeOwner,
	}}
}

func TestGateDuringNightMode(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name     string
		userID   int64
		decision moderation.Decision
		deletes  int
		warnings int
	}{
		{name: "administrator is never restricted", userID: adminID, decision: moderation.AllowPrivileged},
		{name: "owner is never restricted", userID: ownerID, decision: moderation.AllowPrivileged},
		{name: "member is deleted and warned once", userID: memberID, decision: moderation.Deleted, deletes: 1, warnings: 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			messenger := newMessenger()
			gate := newGate(newStore(t, true, true), messenger)

			got := gate.Evaluate(ctx, moderation.Message{ChatID: groupID, ThreadID: 7, UserID: tc.userID, MessageID: 55})
			assert.Equal(t, tc.decision, got)
			assert.Len(t, messenger.Deleted(), tc.deletes)
			assert.Len(t, messenger.Sent(), tc.warnings)
			assert.Equal(t, 1, messenger.MemberCalls())

			if tc.warnings > 0 {
				warning := messenger.Sent()[0]
				assert.Equal(t, "nachtmodus 00:00 - 07:00", warning.Text)
				assert.Equal(t, 7, warning.MessageThreadID)
				require.NotNil(t, warning.ReplyParameters)
				assert.Equal(t, 55, warning.ReplyParameters.MessageID)
				assert.Equal(t, 55, messenger.Deleted()[0].MessageID)
			}
		})
	}
}

func TestGateAllowsWithoutEnforcement(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("night mode inactive", func(t *testing.T) {
		t.Parallel()
		messenger := newMessenger()
		gate := newGate(newStore(t, false, true), messenger)

		assert.Equal(t, moderation.Allow, gate.Evaluate(ctx, moderation.Message{ChatID: groupID, UserID: memberID, MessageID: 1}))
		assert.Zero(t, messenger.MemberCalls())
	})

	t.Run("no group configured", func(t *testing.T) {
		t.Parallel()
		messenger := newMessenger()
		gate := newGate(newStore(t, true, false), messenger)

		assert.Equal(t, moderation.Allow, gate.Evaluate(ctx, moderation.Message{ChatID: groupID, UserID: memberID, MessageID: 1}))
		assert.Empty(t, messenger.Deleted())
	})

	t.Run("other chat", func(t *testing.T) {
		t.Parallel()
		messenger := newMessenger()
		gate := newGate(newStore(t, true, true), messenger)

		assert.Equal(t, moderation.Allow, gate.Evaluate(ctx, moderation.Message{ChatID: -1, UserID: memberID, MessageID: 1}))
		assert.Empty(t, messenger.Deleted())
	})
}

func TestGateFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("role lookup failure leaves message", func(t *testing.T) {
		t.Parallel()
		messenger := newMessenger()
		messenger.MemberErr = errors.New("timeout")
		gate := newGate(newStore(t, true, true), messenger)

		assert.Equal(t, moderation.Skipped, gate.Evaluate(ctx, moderation.Message{ChatID: groupID, UserID: memberID, MessageID: 1}))
		assert.Empty(t, messenger.Deleted())
		assert.Empty(t, messenger.Sent())
	})

	t.Run("delete failure sends no warning", func(t *testing.T) {
		t.Parallel()
		messenger := newMessenger()
		messenger.DeleteErr = errors.New("not enough rights")
		gate := newGate(newStore(t, true, true), messenger)

		assert.Equal(t, moderation.Skipped, gate.Evaluate(ctx, moderation.Message{ChatID: groupID, UserID: memberID, MessageID: 1}))
		assert.Empty(t, messenger.Sent())
	})
}

func TestIsPrivilegedMember(t *testing.T) {
	t.Parallel()

	assert.True(t, moderation.IsPrivilegedMember(&models.ChatMember{Type: models.ChatMemberTypeOwner}))
	assert.True(t, moderation.IsPrivilegedMember(&models.ChatMember{Type: models.ChatMemberTypeAdministrator}))
	assert.False(t, moderation.IsPrivilegedMember(&models.ChatMember{Type: models.ChatMemberTypeMember}))
	assert.False(t, moderation.IsPrivilegedMember(&models.ChatMember{Type: models.ChatMemberTypeRestricted}))
	assert.False(t, moderation.IsPrivilegedMember(nil))
}
