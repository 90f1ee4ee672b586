// Package moderation enforces night mode on group messages and resolves the
// chat roles that exempt senders from it.
package moderation

import (
	"context"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// MemberGetter is the Telegram membership lookup.
type MemberGetter interface {
	GetChatMember(ctx context.Context, params *bot.GetChatMemberParams) (*models.ChatMember, error)
}

// RoleResolver answers whether a user is privileged in a chat. Every call
// performs one live lookup; roles are never cached.
type RoleResolver struct {
	members MemberGetter
	timeout time.Duration
}

// NewRoleResolver creates a resolver. timeout bounds each lookup when > 0.
func NewRoleResolver(members MemberGetter, timeout time.Duration) *RoleResolver {
	return &RoleResolver{members: members, timeout: timeout}
}

// IsPrivileged reports whether userID is the owner or an administrator of
// chatID.
func (r *RoleResolver) IsPrivileged(ctx context.Context, chatID, userID int64) (bool, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	member, err := r.members.GetChatMember(ctx, &bot.GetChatMemberParams{ChatID: chatID, UserID: userID})
	if err != nil {
		return false, fmt.Errorf("failed to get chat member %d in %d: %w", userID, chatID, err)
	}
	return IsPrivilegedMember(member), nil
}

// IsPrivilegedMember reports whether member is an owner or administrator.
func IsPrivilegedMember(member *models.ChatMember) bool {
	if member == nil {
		return false
	}
	switch member.Type {
	case models.ChatMemberTypeOwner, models.ChatMemberTypeAdministrator:
		return true
	default:
		return false
	}
}
