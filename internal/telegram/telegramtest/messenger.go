// Package telegramtest provides an in-memory stand-in for the Telegram
// client used by package tests.
package telegramtest

import (
	"context"
	"sync"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// Messenger records outbound calls and answers member lookups from Roles.
// The zero value is ready to use; unknown users are regular members.
type Messenger struct {
	mu     sync.Mutex
	nextID int

	Roles map[int64]models.ChatMemberType

	SendErr   error
	DeleteErr error
	MemberErr error
	// DeleteRefused makes DeleteMessage report false without an error.
	DeleteRefused bool

	sent        []bot.SendMessageParams
	photos      []bot.SendPhotoParams
	deleted     []bot.DeleteMessageParams
	edited      []bot.EditMessageReplyMarkupParams
	pinned      []bot.PinChatMessageParams
	answered    []bot.AnswerCallbackQueryParams
	actions     []bot.SendChatActionParams
	memberCalls int
}

func (m *Messenger) newMessage(chatID any, threadID int, text string) *models.Message {
	m.nextID++
	id, _ := chatID.(int64)
	return &models.Message{
		ID:              1000 + m.nextID,
		Chat:            models.Chat{ID: id},
		MessageThreadID: threadID,
		Text:            text,
	}
}

func (m *Messenger) SendMessage(_ context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return nil, m.SendErr
	}
	m.sent = append(m.sent, *params)
	return m.newMessage(params.ChatID, params.MessageThreadID, params.Text), nil
}

func (m *Messenger) SendPhoto(_ context.Context, params *bot.SendPhotoParams) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return nil, m.SendErr
	}
	m.photos = append(m.photos, *params)
	return m.newMessage(params.ChatID, params.MessageThreadID, params.Caption), nil
}

func (m *Messenger) DeleteMessage(_ context.Context, params *bot.DeleteMessageParams) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, *params)
	if m.DeleteErr != nil {
		return false, m.DeleteErr
	}
	return !m.DeleteRefused, nil
}

func (m *Messenger) EditMessageReplyMarkup(_ context.Context, params *bot.EditMessageReplyMarkupParams) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edited = append(m.edited, *params)
	return &models.Message{ID: params.MessageID}, nil
}

func (m *Messenger) PinChatMessage(_ context.Context, params *bot.PinChatMessageParams) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pinned = append(m.pinned, *params)
	return true, nil
}

func (m *Messenger) AnswerCallbackQuery(_ context.Context, params *bot.AnswerCallbackQueryParams) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answered = append(m.answered, *params)
	return true, nil
}

func (m *Messenger) SendChatAction(_ context.Context, params *bot.SendChatActionParams) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions = append(m.actions, *params)
	return true, nil
}

func (m *Messenger) GetChatMember(_ context.Context, params *bot.GetChatMemberParams) (*models.ChatMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.memberCalls++
	if m.MemberErr != nil {
		return nil, m.MemberErr
	}
	role, ok := m.Roles[params.UserID]
	if !ok {
		role = models.ChatMemberTypeMember
	}
	return &models.ChatMember{Type: role}, nil
}

// Sent returns the text messages sent so far.
func (m *Messenger) Sent() []bot.SendMessageParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]bot.SendMessageParams(nil), m.sent...)
}

// Photos returns the photos sent so far.
func (m *Messenger) Photos() []bot.SendPhotoParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]bot.SendPhotoParams(nil), m.photos...)
}

// Deleted returns every delete attempt, including failed ones.
func (m *Messenger) Deleted() []bot.DeleteMessageParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]bot.DeleteMessageParams(nil), m.deleted...)
}

// Edited returns the reply markup edits.
func (m *Messenger) Edited() []bot.EditMessageReplyMarkupParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]bot.EditMessageReplyMarkupParams(nil), m.edited...)
}

// Pinned returns the pinned messages.
func (m *Messenger) Pinned() []bot.PinChatMessageParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]bot.PinChatMessageParams(nil), m.pinned...)
}

// Answered returns the answered callback queries.
func (m *Messenger) Answered() []bot.AnswerCallbackQueryParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]bot.AnswerCallbackQueryParams(nil), m.answered...)
}

// Actions returns the chat actions sent.
func (m *Messenger) Actions() []bot.SendChatActionParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]bot.SendChatActionParams(nil), m.actions...)
}

// MemberCalls counts GetChatMember calls.
func (m *Messenger) MemberCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.memberCalls
}

// LastMessageID returns the id of the most recently sent message.
func (m *Messenger) LastMessageID() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return 1000 + m.nextID
}
