// Package media runs the media request conversation: search TMDb, let the
// user pick a result, confirm it and file it with Sonarr or Radarr.
package media

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/edgard/streambot/internal/arr"
	"github.com/edgard/streambot/internal/config"
	"github.com/edgard/streambot/internal/database"
	"github.com/edgard/streambot/internal/tmdb"
	"github.com/edgard/streambot/internal/upstream"
)

// Callback data prefixes of the inline buttons.
const (
	CallbackPrefix = "media:"
	selectPrefix   = CallbackPrefix + "sel:"
	yesPrefix      = CallbackPrefix + "yes:"
	noPrefix       = CallbackPrefix + "no:"
)

// maxOverview keeps the details caption below Telegram's 1024 character
// caption limit.
const maxOverview = 700

var yearPattern = regexp.MustCompile(`\((\d{4})`)

// Button is an inline keyboard button carrying callback data.
type Button struct {
	Text string
	Data string
}

// Reply is one message to send back to the user. PhotoURL turns the
// message into a photo with Text as caption.
type Reply struct {
	Text     string
	PhotoURL string
	Buttons  [][]Button
}

func textReply(format string, args ...any) Reply {
	return Reply{Text: fmt.Sprintf(format, args...)}
}

// Catalog is the TMDb lookup surface.
type Catalog interface {
	SearchMulti(ctx context.Context, query, language string) ([]tmdb.SearchResult, error)
	Details(ctx context.Context, mediaType tmdb.MediaType, id int, language string) (*tmdb.Details, error)
	ExternalIDs(ctx context.Context, tvID int) (*tmdb.ExternalIDs, error)
	PosterURL(posterPath string) string
}

// Library is a Sonarr or Radarr instance.
type Library interface {
	Exists(ctx context.Context, externalID int) (bool, error)
	Add(ctx context.Context, title string, externalID int) (*arr.AddResult, error)
}

// LanguageSource provides the TMDb language stored for the group.
type LanguageSource interface {
	LoadGroupSettings(ctx context.Context) (*database.GroupSettings, error)
}

// Options configure a Workflow.
type Options struct {
	Catalog       Catalog
	Series        Library
	Movies        Library
	Sessions      *SessionStore
	Settings      LanguageSource
	Messages      config.MessagesConfig
	MaxCandidates int
	Logger        *slog.Logger
}

// Workflow implements the media request conversation.
type Workflow struct {
	catalog       Catalog
	series        Library
	movies        Library
	sessions      *SessionStore
	settings      LanguageSource
	msgs          config.MessagesConfig
	maxCandidates int
	logger        *slog.Logger
}

// NewWorkflow creates a workflow from opts.
func NewWorkflow(opts Options) *Workflow {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	maxCandidates := opts.MaxCandidates
	if maxCandidates <= 0 {
		maxCandidates = config.DefaultMediaMaxCandidates
	}
	return &Workflow{
		catalog:       opts.Catalog,
		series:        opts.Series,
		movies:        opts.Movies,
		sessions:      opts.Sessions,
		settings:      opts.Settings,
		msgs:          opts.Messages,
		maxCandidates: maxCandidates,
		logger:        logger.With("component", "media_workflow"),
	}
}

// Pending reports whether key has a conversation waiting for input.
func (w *Workflow) Pending(key Key) bool {
	return w.sessions.Pending(key)
}

// Search looks up title. A single hit goes straight to selection, several
// hits are offered as buttons.
func (w *Workflow) Search(ctx context.Context, key Key, title string) []Reply {
	log := w.logger.With("chat_id", key.ChatID, "user_id", key.UserID)
	title = strings.TrimSpace(title)
	if title == "" {
		return []Reply{{Text: w.msgs.SearchUsage}}
	}

	// A new search always abandons the previous conversation.
	w.sessions.Reset(key)

	results, err := w.catalog.SearchMulti(ctx, title, w.language(ctx))
	if err != nil {
		log.ErrorContext(ctx, "TMDb search failed", "query", title, "error", err)
		return []Reply{{Text: w.msgs.GeneralError}}
	}
	log.InfoContext(ctx, "TMDb search finished", "query", title, "results", len(results))

	switch len(results) {
	case 0:
		return []Reply{textReply(w.msgs.NoResultsFmt, html.EscapeString(title))}
	case 1:
		return w.selectCandidate(ctx, key, results[0])
	}

	if len(results) > w.maxCandidates {
		results = results[:w.maxCandidates]
	}
	session := w.sessions.StartSelection(key, results)

	buttons := make([][]Button, 0, len(results))
	for i, r := range results {
		buttons = append(buttons, []Button{{
			Text: r.Label(),
			Data: selectPrefix + session.Token + ":" + strconv.Itoa(i),
		}})
	}
	return []Reply{{Text: w.msgs.ChooseResult, Buttons: buttons}}
}

// Select picks a candidate by its typed label, e.g. "Dune (2021)", or by
// its 1-based position in the list.
func (w *Workflow) Select(ctx context.Context, key Key, choice string) ([]Reply, error) {
	session, err := w.sessions.Peek(key, AwaitingSelection, "")
	if err != nil {
		return nil, err
	}
	candidate, ok := matchCandidate(session.Candidates, choice)
	if !ok {
		return []Reply{{Text: w.msgs.InvalidChoice}}, nil
	}
	return w.selectCandidate(ctx, key, candidate), nil
}

// SelectIndex picks a candidate from a button press.
func (w *Workflow) SelectIndex(ctx context.Context, key Key, token string, index int) ([]Reply, error) {
	session, err := w.sessions.Peek(key, AwaitingSelection, token)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(session.Candidates) {
		return []Reply{{Text: w.msgs.InvalidChoice}}, nil
	}
	return w.selectCandidate(ctx, key, session.Candidates[index]), nil
}

// Confirm answers the yes/no question of the current request. The
// conversation ends in every case.
func (w *Workflow) Confirm(ctx context.Context, key Key, token string, yes bool) ([]Reply, error) {
	session, err := w.sessions.Take(key, AwaitingConfirmation, token)
	if err != nil {
		return nil, err
	}
	d := session.Descriptor
	title := html.EscapeString(d.Title)
	log := w.logger.With("chat_id", key.ChatID, "user_id", key.UserID, "media_type", d.MediaType, "tmdb_id", d.TMDbID)

	if !yes {
		log.InfoContext(ctx, "Media request cancelled by user")
		return []Reply{textReply(w.msgs.CancelledFmt, title)}, nil
	}

	library := w.library(d.MediaType)
	exists, err := library.Exists(ctx, d.ExternalID)
	if err != nil {
		log.ErrorContext(ctx, "Existence check before add failed", "error", err)
		return []Reply{{Text: w.msgs.GeneralError}}, nil
	}
	if exists {
		return []Reply{w.alreadyAvailable(d.MediaType, title)}, nil
	}

	result, err := library.Add(ctx, d.Title, d.ExternalID)
	switch {
	case errors.Is(err, arr.ErrQualityProfileNotFound):
		log.ErrorContext(ctx, "Quality profile missing", "error", err)
		return []Reply{{Text: w.msgs.QualityProfileErr}}, nil
	case upstream.StatusCode(err) != 0:
		log.ErrorContext(ctx, "Media request rejected", "status", upstream.StatusCode(err), "error", err)
		return []Reply{textReply(w.msgs.RequestFailedFmt, title, upstream.StatusCode(err))}, nil
	case err != nil:
		log.ErrorContext(ctx, "Media request failed", "error", err)
		return []Reply{{Text: w.msgs.GeneralError}}, nil
	}

	log.InfoContext(ctx, "Media requested", "library_id", result.ID, "search", result.Search)
	switch result.Search {
	case arr.SearchManual:
		return []Reply{textReply(w.msgs.RequestedManualFmt, title)}, nil
	case arr.SearchFailed:
		log.WarnContext(ctx, "Search command failed after add", "error", result.SearchErr)
		return []Reply{textReply(w.msgs.SearchFailedFmt, title)}, nil
	default:
		return []Reply{textReply(w.msgs.RequestedFmt, title)}, nil
	}
}

// HandleText routes a free text reply to the pending conversation. The
// boolean is false when key has nothing pending.
func (w *Workflow) HandleText(ctx context.Context, key Key, text string) ([]Reply, bool) {
	session, found := w.sessions.Get(key)
	if !found {
		return nil, false
	}

	switch session.State {
	case AwaitingSelection:
		replies, err := w.Select(ctx, key, text)
		if err != nil {
			return []Reply{{Text: w.msgs.SessionExpired}}, true
		}
		return replies, true
	case AwaitingConfirmation:
		yes, valid := ParseAnswer(text)
		if !valid {
			return []Reply{{Text: w.msgs.ConfirmHint}}, true
		}
		replies, err := w.Confirm(ctx, key, "", yes)
		if err != nil {
			return []Reply{{Text: w.msgs.SessionExpired}}, true
		}
		return replies, true
	default:
		return nil, false
	}
}

// HandleCallback dispatches the data of a media button press.
func (w *Workflow) HandleCallback(ctx context.Context, key Key, data string) ([]Reply, error) {
	switch {
	case strings.HasPrefix(data, selectPrefix):
		token, rawIndex, found := strings.Cut(strings.TrimPrefix(data, selectPrefix), ":")
		index, err := strconv.Atoi(rawIndex)
		if !found || err != nil {
			return nil, ErrStaleSession
		}
		return w.SelectIndex(ctx, key, token, index)
	case strings.HasPrefix(data, yesPrefix):
		return w.Confirm(ctx, key, strings.TrimPrefix(data, yesPrefix), true)
	case strings.HasPrefix(data, noPrefix):
		return w.Confirm(ctx, key, strings.TrimPrefix(data, noPrefix), false)
	default:
		return nil, ErrStaleSession
	}
}

// selectCandidate shows the details of candidate and, unless it is already
// available, asks for confirmation.
func (w *Workflow) selectCandidate(ctx context.Context, key Key, candidate tmdb.SearchResult) []Reply {
	log := w.logger.With("chat_id", key.ChatID, "user_id", key.UserID, "media_type", candidate.MediaType, "tmdb_id", candidate.ID)

	details, err := w.catalog.Details(ctx, candidate.MediaType, candidate.ID, w.language(ctx))
	if err != nil {
		log.ErrorContext(ctx, "Failed to fetch media details", "error", err)
		w.sessions.Reset(key)
		return []Reply{{Text: w.msgs.DetailsError}}
	}

	title := details.DisplayTitle()
	if title == "" {
		title = candidate.DisplayTitle()
	}
	replies := []Reply{w.detailsReply(details, title)}

	externalID := candidate.ID
	if candidate.MediaType == tmdb.MediaTV {
		ids, err := w.catalog.ExternalIDs(ctx, candidate.ID)
		if err != nil || ids.TVDBID == 0 {
			if err != nil {
				log.ErrorContext(ctx, "Failed to resolve TVDB id", "error", err)
			}
			w.sessions.Reset(key)
			return append(replies, textReply(w.msgs.NoTVDBIDFmt, html.EscapeString(title)))
		}
		externalID = ids.TVDBID
	}

	exists, err := w.library(candidate.MediaType).Exists(ctx, externalID)
	if err != nil {
		log.ErrorContext(ctx, "Existence check failed", "error", err)
		w.sessions.Reset(key)
		return append(replies, Reply{Text: w.msgs.GeneralError})
	}
	if exists {
		log.InfoContext(ctx, "Media already available")
		w.sessions.Reset(key)
		return append(replies, w.alreadyAvailable(candidate.MediaType, html.EscapeString(title)))
	}

	session := w.sessions.AwaitConfirmation(key, Descriptor{
		MediaType:  candidate.MediaType,
		TMDbID:     candidate.ID,
		ExternalID: externalID,
		Title:      title,
		Year:       details.Year(),
	})
	return append(replies, Reply{
		Text: fmt.Sprintf(w.msgs.ConfirmFmt, html.EscapeString(title)),
		Buttons: [][]Button{{
			{Text: w.msgs.ConfirmYes, Data: yesPrefix + session.Token},
			{Text: w.msgs.ConfirmNo, Data: noPrefix + session.Token},
		}},
	})
}

func (w *Workflow) detailsReply(details *tmdb.Details, title string) Reply {
	overview := truncateRunes(details.Overview, maxOverview)
	if overview == "" {
		overview = w.msgs.NoOverview
	}
	return Reply{
		Text: fmt.Sprintf(w.msgs.DetailsFmt,
			html.EscapeString(title),
			details.Year(),
			tmdb.Stars(details.VoteAverage),
			details.VoteAverage,
			html.EscapeString(overview),
		),
		PhotoURL: w.catalog.PosterURL(details.PosterPath),
	}
}

func (w *Workflow) alreadyAvailable(mediaType tmdb.MediaType, escapedTitle string) Reply {
	if mediaType == tmdb.MediaTV {
		return textReply(w.msgs.AlreadySeriesFmt, escapedTitle)
	}
	return textReply(w.msgs.AlreadyMovieFmt, escapedTitle)
}

func (w *Workflow) library(mediaType tmdb.MediaType) Library {
	if mediaType == tmdb.MediaTV {
		return w.series
	}
	return w.movies
}

func (w *Workflow) language(ctx context.Context) string {
	settings, err := w.settings.LoadGroupSettings(ctx)
	if err != nil {
		w.logger.WarnContext(ctx, "Failed to load language, searching without it", "error", err)
		return ""
	}
	return settings.Language
}

// matchCandidate finds the candidate named by choice: its exact label, its
// title with the year in parentheses, or its position.
func matchCandidate(candidates []tmdb.SearchResult, choice string) (tmdb.SearchResult, bool) {
	choice = strings.TrimSpace(choice)
	if n, err := strconv.Atoi(choice); err == nil && n >= 1 && n <= len(candidates) {
		return candidates[n-1], true
	}

	for _, c := range candidates {
		if strings.EqualFold(c.Label(), choice) {
			return c, true
		}
	}

	year := ""
	if m := yearPattern.FindStringSubmatch(choice); m != nil {
		year = m[1]
	}
	title := choice
	if i := strings.LastIndex(choice, "("); i > 0 {
		title = strings.TrimSpace(choice[:i])
	}
	for _, c := range candidates {
		if strings.EqualFold(c.DisplayTitle(), title) && (year == "" || c.Year() == year) {
			return c, true
		}
	}
	return tmdb.SearchResult{}, false
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimSpace(string(runes[:n])) + "…"
}

// ParseAnswer interprets a typed yes/no reply in English or German.
func ParseAnswer(text string) (yes, ok bool) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "yes", "ja", "y", "j":
		return true, true
	case "no", "nein", "n":
		return false, true
	default:
		return false, false
	}
}
