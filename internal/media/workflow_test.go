package media_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/streambot/internal/arr"
	"github.com/edgard/streambot/internal/config"
	"github.com/edgard/streambot/internal/database"
	"github.com/edgard/streambot/internal/media"
	"github.com/edgard/streambot/internal/tmdb"
	"github.com/edgard/streambot/internal/upstream"
)

type fakeCatalog struct {
	results   []tmdb.SearchResult
	searchErr error
	details   map[int]*tmdb.Details
	tvdbIDs   map[int]int
	languages []string
}

func (c *fakeCatalog) SearchMulti(_ context.Context, _ string, language string) ([]tmdb.SearchResult, error) {
	c.languages = append(c.languages, language)
	return c.results, c.searchErr
}

func (c *fakeCatalog) Details(_ context.Context, _ tmdb.MediaType, id int, _ string) (*tmdb.Details, error) {
	d, ok := c.details[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return d, nil
}

func (c *fakeCatalog) ExternalIDs(_ context.Context, id int) (*tmdb.ExternalIDs, error) {
	return &tmdb.ExternalIDs{TVDBID: c.tvdbIDs[id]}, nil
}

func (c *fakeCatalog) PosterURL(path string) string {
	if path == "" {
		return ""
	}
	return "https://img" + path
}

type fakeLibrary struct {
	mu       sync.Mutex
	existing map[int]bool
	addErr   error
	search   arr.SearchMode
	exists   []int
	added    []int
}

func (l *fakeLibrary) Exists(_ context.Context, id int) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.exists = append(l.exists, id)
	return l.existing[id], nil
}

func (l *fakeLibrary) Add(_ context.Context, _ string, id int) (*arr.AddResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.addErr != nil {
		return nil, l.addErr
	}
	l.added = append(l.added, id)
	return &arr.AddResult{ID: 1, Search: l.search}, nil
}

func (l *fakeLibrary) calls() (exists, added int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.exists), len(l.added)
}

type staticSettings struct{ language string }

func (s staticSettings) LoadGroupSettings(context.Context) (*database.GroupSettings, error) {
	return &database.GroupSettings{Language: s.language}, nil
}

type harness struct {
	catalog  *fakeCatalog
	series   *fakeLibrary
	movies   *fakeLibrary
	workflow *media.Workflow
	key      media.Key
}

func newHarness(results ...tmdb.SearchResult) *harness {
	h := &harness{
		catalog: &fakeCatalog{
			results: results,
			details: map[int]*tmdb.Details{},
			tvdbIDs: map[int]int{},
		},
		series: &fakeLibrary{existing: map[int]bool{}},
		movies: &fakeLibrary{existing: map[int]bool{}},
		key:    media.Key{ChatID: -100, UserID: 42},
	}
	for _, r := range results {
		h.catalog.details[r.ID] = &tmdb.Details{
			ID: r.ID, Title: r.Title, Name: r.Name, ReleaseDate: r.ReleaseDate,
			FirstAirDate: r.FirstAirDate, VoteAverage: 7.5, PosterPath: "/p.jpg", Overview: "Plot & <more>",
		}
	}
	h.workflow = media.NewWorkflow(media.Options{
		Catalog:  h.catalog,
		Series:   h.series,
		Movies:   h.movies,
		Sessions: media.NewSessionStore(time.Minute),
		Settings: staticSettings{language: "de"},
		Messages: config.DefaultMessages,
	})
	return h
}

func movie(id int, title, date string) tmdb.SearchResult {
	return tmdb.SearchResult{ID: id, MediaType: tmdb.MediaMovie, Title: title, ReleaseDate: date}
}

func series(id int, name, date string) tmdb.SearchResult {
	return tmdb.SearchResult{ID: id, MediaType: tmdb.MediaTV, Name: name, FirstAirDate: date}
}

func lastButtons(t *testing.T, replies []media.Reply) [][]media.Button {
	t.Helper()
	require.NotEmpty(t, replies)
	buttons := replies[len(replies)-1].Buttons
	require.NotEmpty(t, buttons)
	return buttons
}

func TestSearchSingleResultGoesToConfirmation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(movie(27205, "Inception", "2010-07-15"))

	replies := h.workflow.Search(ctx, h.key, "Inception")

	require.Len(t, replies, 2)
	assert.Contains(t, replies[0].Text, "<b>Inception</b> (2010)")
	assert.Contains(t, replies[0].Text, "Plot &amp; &lt;more&gt;")
	assert.Equal(t, "https://img/p.jpg", replies[0].PhotoURL)
	assert.Contains(t, replies[1].Text, "Inception")
	assert.Equal(t, []string{"de"}, h.catalog.languages)

	exists, added := h.movies.calls()
	assert.Equal(t, 1, exists)
	assert.Zero(t, added)
	assert.True(t, h.workflow.Pending(h.key))

	yes := lastButtons(t, replies)[0][0]
	replies, err := h.workflow.HandleCallback(ctx, h.key, yes.Data)
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, fmt.Sprintf(config.DefaultMessages.RequestedFmt, "Inception"), replies[0].Text)

	_, added = h.movies.calls()
	assert.Equal(t, 1, added)
	assert.False(t, h.workflow.Pending(h.key))
}

func TestSearchMultipleResultsWaitsForSelection(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(
		movie(438631, "Dune", "2021-09-15"),
		movie(841, "Dune", "1984-12-14"),
		series(90228, "Dune: Prophecy", "2024-11-17"),
	)
	h.catalog.tvdbIDs[90228] = 411789

	replies := h.workflow.Search(ctx, h.key, "Dune")

	require.Len(t, replies, 1)
	buttons := lastButtons(t, replies)
	require.Len(t, buttons, 3)
	assert.Equal(t, "Dune (1984)", buttons[1][0].Text)

	seriesExists, _ := h.series.calls()
	moviesExists, _ := h.movies.calls()
	assert.Zero(t, seriesExists+moviesExists, "no library call before a selection")

	replies, ok := h.workflow.HandleText(ctx, h.key, "dune: prophecy (2024)")
	require.True(t, ok)
	require.Len(t, replies, 2)

	seriesExists, _ = h.series.calls()
	assert.Equal(t, 1, seriesExists)
	assert.Equal(t, []int{411789}, h.series.exists)

	replies, ok = h.workflow.HandleText(ctx, h.key, "nein")
	require.True(t, ok)
	assert.Equal(t, fmt.Sprintf(config.DefaultMessages.CancelledFmt, "Dune: Prophecy"), replies[0].Text)
	assert.False(t, h.workflow.Pending(h.key))
}

func TestSelectionByButtonAndStaleTokens(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(movie(1, "Alien", "1979-05-25"), movie(2, "Aliens", "1986-07-18"))

	first := lastButtons(t, h.workflow.Search(ctx, h.key, "Alien"))
	second := lastButtons(t, h.workflow.Search(ctx, h.key, "Alien"))

	_, err := h.workflow.HandleCallback(ctx, h.key, first[1][0].Data)
	require.ErrorIs(t, err, media.ErrStaleSession)

	replies, err := h.workflow.HandleCallback(ctx, h.key, second[1][0].Data)
	require.NoError(t, err)
	assert.Contains(t, replies[0].Text, "Aliens")

	_, err = h.workflow.HandleCallback(ctx, media.Key{ChatID: -100, UserID: 7}, second[0][0].Data)
	require.ErrorIs(t, err, media.ErrStaleSession)
}

func TestAlreadyAvailable(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(movie(603, "The Matrix", "1999-03-30"))
	h.movies.existing[603] = true

	replies := h.workflow.Search(ctx, h.key, "matrix")

	require.Len(t, replies, 2)
	assert.Equal(t, fmt.Sprintf(config.DefaultMessages.AlreadyMovieFmt, "The Matrix"), replies[1].Text)
	assert.False(t, h.workflow.Pending(h.key))
}

func TestSeriesWithoutTVDBID(t *testing.T) {
	t.Parallel()
	h := newHarness(series(5, "Obscure", "2001-01-01"))

	replies := h.workflow.Search(context.Background(), h.key, "obscure")

	require.Len(t, replies, 2)
	assert.Equal(t, fmt.Sprintf(config.DefaultMessages.NoTVDBIDFmt, "Obscure"), replies[1].Text)
	exists, _ := h.series.calls()
	assert.Zero(t, exists)
}

func TestSearchOutcomes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("no results", func(t *testing.T) {
		t.Parallel()
		h := newHarness()
		replies := h.workflow.Search(ctx, h.key, "<none>")
		assert.Equal(t, fmt.Sprintf(config.DefaultMessages.NoResultsFmt, "&lt;none&gt;"), replies[0].Text)
	})

	t.Run("empty query", func(t *testing.T) {
		t.Parallel()
		h := newHarness()
		replies := h.workflow.Search(ctx, h.key, "  ")
		assert.Equal(t, config.DefaultMessages.SearchUsage, replies[0].Text)
		assert.Empty(t, h.catalog.languages)
	})

	t.Run("upstream failure", func(t *testing.T) {
		t.Parallel()
		h := newHarness()
		h.catalog.searchErr = errors.New("boom")
		replies := h.workflow.Search(ctx, h.key, "x")
		assert.Equal(t, config.DefaultMessages.GeneralError, replies[0].Text)
	})
}

func TestConfirmOutcomes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name   string
		addErr error
		search arr.SearchMode
		want   string
	}{
		{name: "manual search", search: arr.SearchManual, want: fmt.Sprintf(config.DefaultMessages.RequestedManualFmt, "Heat")},
		{name: "search failed", search: arr.SearchFailed, want: fmt.Sprintf(config.DefaultMessages.SearchFailedFmt, "Heat")},
		{
			name:   "rejected",
			addErr: &upstream.StatusError{StatusCode: http.StatusBadRequest},
			want:   fmt.Sprintf(config.DefaultMessages.RequestFailedFmt, "Heat", http.StatusBadRequest),
		},
		{name: "profile missing", addErr: arr.ErrQualityProfileNotFound, want: config.DefaultMessages.QualityProfileErr},
		{name: "transport failure", addErr: errors.New("dial tcp"), want: config.DefaultMessages.GeneralError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(movie(949, "Heat", "1995-12-15"))
			h.movies.addErr = tc.addErr
			h.movies.search = tc.search

			h.workflow.Search(ctx, h.key, "heat")
			replies, ok := h.workflow.HandleText(ctx, h.key, "Ja")
			require.True(t, ok)
			require.Len(t, replies, 1)
			assert.Equal(t, tc.want, replies[0].Text)
			assert.False(t, h.workflow.Pending(h.key))
		})
	}
}

func TestHandleTextWithoutSession(t *testing.T) {
	t.Parallel()
	h := newHarness()

	_, ok := h.workflow.HandleText(context.Background(), h.key, "ja")
	assert.False(t, ok)

	_, err := h.workflow.Confirm(context.Background(), h.key, "", true)
	require.ErrorIs(t, err, media.ErrNoSession)
}

func TestInvalidTypedSelectionKeepsSession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(movie(1, "Up", "2009-05-28"), movie(2, "Up", "1984-01-01"))

	h.workflow.Search(ctx, h.key, "Up")
	replies, ok := h.workflow.HandleText(ctx, h.key, "Down (2000)")
	require.True(t, ok)
	assert.Equal(t, config.DefaultMessages.InvalidChoice, replies[0].Text)
	assert.True(t, h.workflow.Pending(h.key))

	replies, ok = h.workflow.HandleText(ctx, h.key, "2")
	require.True(t, ok)
	assert.Contains(t, replies[0].Text, "(1984)")
}

func TestParseAnswer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		yes, ok bool
	}{
		{in: "yes", yes: true, ok: true},
		{in: " Ja ", yes: true, ok: true},
		{in: "NO", yes: false, ok: true},
		{in: "nein", yes: false, ok: true},
		{in: "maybe", yes: false, ok: false},
	}
	for _, tc := range tests {
		yes, ok := media.ParseAnswer(tc.in)
		assert.Equal(t, tc.yes, yes, tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
	}
}
