package handlers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/streambot/internal/arr"
	"github.com/edgard/streambot/internal/config"
	"github.com/edgard/streambot/internal/database"
	"github.com/edgard/streambot/internal/media"
	"github.com/edgard/streambot/internal/moderation"
	"github.com/edgard/streambot/internal/nightmode"
	"github.com/edgard/streambot/internal/telegram/telegramtest"
	"github.com/edgard/streambot/internal/tmdb"
)

const groupID int64 = -100777

type stubCatalog struct {
	results []tmdb.SearchResult
}

func (c stubCatalog) SearchMulti(context.Context, string, string) ([]tmdb.SearchResult, error) {
	return c.results, nil
}

func (c stubCatalog) Details(_ context.Context, _ tmdb.MediaType, id int, _ string) (*tmdb.Details, error) {
	for _, r := range c.results {
		if r.ID == id {
			return &tmdb.Details{ID: id, Title: r.Title, ReleaseDate: r.ReleaseDate}, nil
		}
	}
	return &tmdb.Details{ID: id}, nil
}

func (c stubCatalog) ExternalIDs(context.Context, int) (*tmdb.ExternalIDs, error) {
	return &tmdb.ExternalIDs{TVDBID: 1}, nil
}

func (c stubCatalog) PosterURL(string) string { return "" }

type stubLibrary struct{}

func (stubLibrary) Exists(context.Context, int) (bool, error) { return false, nil }

func (stubLibrary) Add(context.Context, string, int) (*arr.AddResult, error) {
	return &arr.AddResult{ID: 1}, nil
}

type fixture struct {
	deps      HandlerDeps
	messenger *telegramtest.Messenger
	store     database.Store
}

func newFixture(t *testing.T, results ...tmdb.SearchResult) *fixture {
	t.Helper()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.CloseDB(db) })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := database.NewStore(db, log, "de")
	messenger := &telegramtest.Messenger{Roles: map[int64]models.ChatMemberType{
		1: models.ChatMemberTypeOwner,
		2: models.ChatMemberTypeAdministrator,
	}}

	cfg := config.Default()
	cfg.NightMode.Location = time.UTC
	cfg.Topics = map[string]config.TopicConfig{
		"news": {ChatID: groupID, MessageThreadID: 7, Pin: true},
		"chat": {ChatID: groupID, MessageThreadID: 9},
	}

	window, err := nightmode.ParseWindow("00:00", "07:00")
	require.NoError(t, err)
	roles := moderation.NewRoleResolver(messenger, 0)

	return &fixture{
		messenger: messenger,
		store:     store,
		deps: HandlerDeps{
			Logger: log,
			Config: cfg,
			Store:  store,
			NightMode: nightmode.NewService(store, messenger, nightmode.Options{
				Window:      window,
				StartedText: "started",
				EndedText:   "ended",
			}),
			Gate:  moderation.NewGate(store, roles, messenger, moderation.GateOptions{WarningText: "warn"}),
			Roles: roles,
			Workflow: media.NewWorkflow(media.Options{
				Catalog:  stubCatalog{results: results},
				Series:   stubLibrary{},
				Movies:   stubLibrary{},
				Sessions: media.NewSessionStore(time.Minute),
				Settings: store,
				Messages: config.DefaultMessages,
			}),
		},
	}
}

func (f *fixture) configureGroup(t *testing.T, nightModeActive bool) {
	t.Helper()
	_, err := f.store.UpdateGroupSettings(context.Background(), func(s *database.GroupSettings) error {
		s.SetGroup(groupID, "StreamNet TV")
		s.SetNightMode(nightModeActive, 0)
		return nil
	})
	require.NoError(t, err)
}

func groupMessage(userID int64, text string) *models.Update {
	return &models.Update{Message: &models.Message{
		ID:   55,
		Chat: models.Chat{ID: groupID, Type: models.ChatTypeSupergroup, Title: "StreamNet TV"},
		From: &models.User{ID: userID, FirstName: "Max"},
		Text: text,
	}}
}

func privateMessage(userID int64, text string) *models.Update {
	return &models.Update{Message: &models.Message{
		ID:   56,
		Chat: models.Chat{ID: userID, Type: models.ChatTypePrivate},
		From: &models.User{ID: userID, FirstName: "Max"},
		Text: text,
	}}
}

func lastText(t *testing.T, m *telegramtest.Messenger) string {
	t.Helper()
	sent := m.Sent()
	require.NotEmpty(t, sent)
	return sent[len(sent)-1].Text
}

func TestCommandArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "/search Dune", want: "Dune"},
		{in: "/search@streambot   The Matrix  ", want: "The Matrix"},
		{in: "/search", want: ""},
		{in: "/announce news\nline one", want: "news\nline one"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, commandArgs(tc.in), tc.in)
	}
}

func TestSplitAnnouncement(t *testing.T) {
	t.Parallel()

	topic, text := splitAnnouncement("news Hallo\nzusammen")
	assert.Equal(t, "news", topic)
	assert.Equal(t, "Hallo\nzusammen", text)

	topic, text = splitAnnouncement("news")
	assert.Equal(t, "news", topic)
	assert.Empty(t, text)
}

func TestParseLanguageCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{in: "de", want: "de", ok: true},
		{in: " EN ", want: "en", ok: true},
		{in: "deu", ok: false},
		{in: "d1", ok: false},
		{in: "english", ok: false},
		{in: "", ok: false},
	}
	for _, tc := range tests {
		got, ok := parseLanguageCode(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestKeyboard(t *testing.T) {
	t.Parallel()

	assert.Nil(t, keyboard(nil))

	markup, ok := keyboard([][]media.Button{{{Text: "Ja", Data: "media:yes:t"}, {Text: "Nein", Data: "media:no:t"}}}).(*models.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, markup.InlineKeyboard, 1)
	assert.Equal(t, "media:no:t", markup.InlineKeyboard[0][1].CallbackData)
}

func TestAuthorize(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("group roles", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		ok, _ := authorize(ctx, f.deps, groupMessage(1, "/x").Message)
		assert.True(t, ok, "owner")
		ok, _ = authorize(ctx, f.deps, groupMessage(2, "/x").Message)
		assert.True(t, ok, "administrator")
		ok, reply := authorize(ctx, f.deps, groupMessage(3, "/x").Message)
		assert.False(t, ok)
		assert.Equal(t, config.DefaultMessages.NotAdmin, reply)
	})

	t.Run("anonymous admin", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		msg := groupMessage(1087968824, "/x").Message
		msg.SenderChat = &models.Chat{ID: groupID}
		ok, _ := authorize(ctx, f.deps, msg)
		assert.True(t, ok)
		assert.Zero(t, f.messenger.MemberCalls())
	})

	t.Run("private chat needs configured group", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		ok, reply := authorize(ctx, f.deps, privateMessage(1, "/x").Message)
		assert.False(t, ok)
		assert.Equal(t, config.DefaultMessages.NoGroup, reply)

		f.configureGroup(t, false)
		ok, _ = authorize(ctx, f.deps, privateMessage(1, "/x").Message)
		assert.True(t, ok)
	})
}

func TestSetGroupAndLanguage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	setGroupHandler{f.deps}.handle(ctx, f.messenger, groupMessage(1, "/set_group_id"))
	settings, err := f.store.LoadGroupSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, groupID, settings.GroupChatID.Int64)
	assert.Equal(t, "StreamNet TV", settings.GroupName)
	assert.Equal(t, "Group chat ID set to: -100777", lastText(t, f.messenger))

	setLanguageHandler{f.deps}.handle(ctx, f.messenger, groupMessage(1, "/set_language xyz"))
	assert.Equal(t, config.DefaultMessages.LanguageInvalid, lastText(t, f.messenger))

	setLanguageHandler{f.deps}.handle(ctx, f.messenger, groupMessage(1, "/set_language"))
	assert.Equal(t, config.DefaultMessages.LanguageMissing, lastText(t, f.messenger))

	setLanguageHandler{f.deps}.handle(ctx, f.messenger, groupMessage(1, "/set_language EN"))
	settings, err = f.store.LoadGroupSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "en", settings.Language)
}

func TestNightModeCommands(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	enable := nightModeSwitchHandler{deps: f.deps, enable: true}
	disable := nightModeSwitchHandler{deps: f.deps, enable: false}

	enable.handle(ctx, f.messenger, groupMessage(1, "/enable_night_mode"))
	assert.Equal(t, config.DefaultMessages.NoGroup, lastText(t, f.messenger))

	f.configureGroup(t, false)
	disable.handle(ctx, f.messenger, groupMessage(1, "/disable_night_mode"))
	assert.Equal(t, config.DefaultMessages.AlreadyInactive, lastText(t, f.messenger))

	enable.handle(ctx, f.messenger, groupMessage(1, "/enable_night_mode"))
	assert.Equal(t, config.DefaultMessages.NightModeEnabled, lastText(t, f.messenger))
	enable.handle(ctx, f.messenger, groupMessage(1, "/enable_night_mode"))
	assert.Equal(t, config.DefaultMessages.AlreadyActive, lastText(t, f.messenger))

	nightModeStatusHandler{f.deps}.handle(ctx, f.messenger, groupMessage(3, "/night_mode"))
	assert.Equal(t, "🌙 Nachtmodus: 00:00 - 07:00 Uhr (UTC)\nStatus: aktiv", lastText(t, f.messenger))
}

func TestTextHandler(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("member message deleted during night mode", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.configureGroup(t, true)

		textHandler{f.deps}.handle(ctx, f.messenger, groupMessage(3, "hallo"))

		deleted := f.messenger.Deleted()
		require.Len(t, deleted, 1)
		assert.Equal(t, 55, deleted[0].MessageID)
		assert.Equal(t, "warn", lastText(t, f.messenger))
	})

	t.Run("admin message kept", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.configureGroup(t, true)

		textHandler{f.deps}.handle(ctx, f.messenger, groupMessage(2, "hallo"))
		assert.Empty(t, f.messenger.Deleted())
	})

	t.Run("commands and private chats are not gated", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.configureGroup(t, true)

		textHandler{f.deps}.handle(ctx, f.messenger, groupMessage(3, "/unknown"))
		textHandler{f.deps}.handle(ctx, f.messenger, privateMessage(3, "hallo"))
		assert.Empty(t, f.messenger.Deleted())
		assert.Zero(t, f.messenger.MemberCalls())
	})

	t.Run("pending media request takes the reply", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t,
			tmdb.SearchResult{ID: 1, MediaType: tmdb.MediaMovie, Title: "Alien", ReleaseDate: "1979-05-25"},
			tmdb.SearchResult{ID: 2, MediaType: tmdb.MediaMovie, Title: "Aliens", ReleaseDate: "1986-07-18"},
		)

		searchHandler{f.deps}.handle(ctx, f.messenger, privateMessage(3, "/search alien"))
		assert.Equal(t, config.DefaultMessages.ChooseResult, lastText(t, f.messenger))
		assert.NotEmpty(t, f.messenger.Actions())

		textHandler{f.deps}.handle(ctx, f.messenger, privateMessage(3, "Aliens (1986)"))
		assert.Contains(t, lastText(t, f.messenger), "Aliens")
	})
}

func TestMediaCallbackHandler(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, tmdb.SearchResult{ID: 9, MediaType: tmdb.MediaMovie, Title: "Heat", ReleaseDate: "1995-12-15"})

	searchHandler{f.deps}.handle(ctx, f.messenger, privateMessage(3, "/search heat"))
	sent := f.messenger.Sent()
	require.Len(t, sent, 2)
	markup, ok := sent[1].ReplyMarkup.(*models.InlineKeyboardMarkup)
	require.True(t, ok)
	yes := markup.InlineKeyboard[0][0].CallbackData

	press := func(data string) {
		mediaCallbackHandler{f.deps}.handle(ctx, f.messenger, &models.Update{CallbackQuery: &models.CallbackQuery{
			ID:   "q",
			From: models.User{ID: 3},
			Data: data,
			Message: models.MaybeInaccessibleMessage{
				Type:    models.MaybeInaccessibleMessageTypeMessage,
				Message: &models.Message{ID: 77, Chat: models.Chat{ID: 3, Type: models.ChatTypePrivate}, Text: "Willst du Heat anfragen?"},
			},
		}})
	}

	press(yes)
	assert.Contains(t, lastText(t, f.messenger), "wurde angefragt")
	require.Len(t, f.messenger.Edited(), 1)
	edit := f.messenger.Edited()[0]
	assert.Equal(t, 77, edit.MessageID)
	stripped, ok := edit.ReplyMarkup.(*models.InlineKeyboardMarkup)
	require.True(t, ok)
	assert.Empty(t, stripped.InlineKeyboard)

	press(yes)
	answered := f.messenger.Answered()
	require.Len(t, answered, 2)
	assert.Empty(t, answered[0].Text)
	assert.Equal(t, config.DefaultMessages.SessionExpired, answered[1].Text)
}

func TestWelcomeHandler(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	f.deps.Config.Welcome = config.WelcomeConfig{
		Enabled:    true,
		ImageURL:   "https://example.com/w.jpg",
		ButtonText: "Store",
		ButtonURL:  "https://example.com/store",
	}

	update := &models.Update{Message: &models.Message{
		Chat: models.Chat{ID: groupID, Type: models.ChatTypeSupergroup},
		Date: int(time.Date(2024, 3, 1, 18, 30, 5, 0, time.UTC).Unix()),
		NewChatMembers: []models.User{
			{ID: 10, FirstName: "Anna", LastName: "<B>", Username: "anna"},
			{ID: 11, FirstName: "Helper", IsBot: true},
		},
	}}
	require.True(t, HasNewMembers(update))

	welcomeHandler{f.deps}.handle(ctx, f.messenger, update)

	photos := f.messenger.Photos()
	require.Len(t, photos, 1)
	assert.Contains(t, photos[0].Caption, "Howdy, Anna &lt;B&gt;!")
	assert.Contains(t, photos[0].Caption, "Username: @anna")
	assert.Contains(t, photos[0].Caption, "Beitritt: 01.03.2024 18:30:05")
	markup, ok := photos[0].ReplyMarkup.(*models.InlineKeyboardMarkup)
	require.True(t, ok)
	assert.Equal(t, "https://example.com/store", markup.InlineKeyboard[0][0].URL)
}

func TestAnnounceHandler(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	announceHandler{f.deps}.handle(ctx, f.messenger, privateMessage(1, "/announce News <b>Neu</b> im Store"))

	sent := f.messenger.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, groupID, sent[0].ChatID)
	assert.Equal(t, 7, sent[0].MessageThreadID)
	assert.Equal(t, "<b>Neu</b> im Store", sent[0].Text)
	require.Len(t, f.messenger.Pinned(), 1)
	assert.Equal(t, fmt.Sprintf(config.DefaultMessages.AnnounceSentFmt, "News"), sent[1].Text)

	announceHandler{f.deps}.handle(ctx, f.messenger, privateMessage(1, "/announce sport Tor!"))
	assert.Equal(t, fmt.Sprintf(config.DefaultMessages.AnnounceUnknownFmt, "sport"), lastText(t, f.messenger))

	announceHandler{f.deps}.handle(ctx, f.messenger, privateMessage(1, "/announce chat"))
	assert.Equal(t, config.DefaultMessages.AnnounceUsage, lastText(t, f.messenger))
	assert.Len(t, f.messenger.Pinned(), 1)
}
