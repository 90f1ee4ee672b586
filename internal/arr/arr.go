// Package arr files media requests with Sonarr (series) and Radarr (movies)
// through their v3 APIs.
package arr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"

	"github.com/edgard/streambot/internal/upstream"
)

// ErrQualityProfileNotFound is returned when the configured profile name
// does not exist on the server.
var ErrQualityProfileNotFound = errors.New("quality profile not found")

// Kind selects the server flavour.
type Kind string

const (
	Sonarr Kind = "sonarr"
	Radarr Kind = "radarr"
)

// SearchMode tells how the search for a newly added item was started.
type SearchMode int

const (
	// SearchAutomatic means the server started the search from addOptions.
	SearchAutomatic SearchMode = iota
	// SearchManual means a search command had to be issued.
	SearchManual
	// SearchFailed means the item was added but the search command failed.
	SearchFailed
)

// AddResult describes a successfully added item.
type AddResult struct {
	ID     int
	Search SearchMode
	// SearchErr is set when Search is SearchFailed.
	SearchErr error
}

// Settings are the per-server request defaults.
type Settings struct {
	QualityProfileName string
	RootFolderPath     string
}

type qualityProfile struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type addOptions struct {
	SearchForMissingEpisodes bool `json:"searchForMissingEpisodes,omitempty"`
	SearchForMovie           bool `json:"searchForMovie,omitempty"`
}

type addRequest struct {
	Title            string     `json:"title"`
	QualityProfileID int        `json:"qualityProfileId"`
	RootFolderPath   string     `json:"rootFolderPath"`
	TVDBID           int        `json:"tvdbId,omitempty"`
	TMDBID           int        `json:"tmdbId,omitempty"`
	SeasonFolder     bool       `json:"seasonFolder,omitempty"`
	Monitored        bool       `json:"monitored"`
	AddOptions       addOptions `json:"addOptions"`
}

type addResponse struct {
	ID         int         `json:"id"`
	AddOptions *addOptions `json:"addOptions"`
}

type searchCommand struct {
	Name     string `json:"name"`
	SeriesID int    `json:"seriesId,omitempty"`
	MovieIDs []int  `json:"movieIds,omitempty"`
}

type item struct {
	ID     int `json:"id"`
	TVDBID int `json:"tvdbId"`
	TMDbID int `json:"tmdbId"`
}

func (c *Client) externalID(it item) int {
	if c.kind == Sonarr {
		return it.TVDBID
	}
	return it.TMDbID
}

// Client is a Sonarr or Radarr API client.
type Client struct {
	kind     Kind
	api      *upstream.Client
	settings Settings
}

// NewClient wraps api, which must already send the X-Api-Key header.
func NewClient(kind Kind, api *upstream.Client, settings Settings) *Client {
	return &Client{kind: kind, api: api, settings: settings}
}

// Kind returns the server flavour.
func (c *Client) Kind() Kind {
	return c.kind
}

func (c *Client) resource() string {
	if c.kind == Sonarr {
		return "series"
	}
	return "movie"
}

func (c *Client) idParam() string {
	if c.kind == Sonarr {
		return "tvdbId"
	}
	return "tmdbId"
}

// Exists reports whether the item with the external id (TVDB for Sonarr,
// TMDb for Radarr) is already present. The id filter is only a hint to the
// server; the returned list is matched against externalID.
func (c *Client) Exists(ctx context.Context, externalID int) (bool, error) {
	var items []item
	query := url.Values{c.idParam(): {strconv.Itoa(externalID)}}
	if err := c.api.GetJSON(ctx, "/api/v3/"+c.resource(), query, &items); err != nil {
		return false, fmt.Errorf("%s lookup %d: %w", c.kind, externalID, err)
	}
	return slices.ContainsFunc(items, func(it item) bool {
		return c.externalID(it) == externalID
	}), nil
}

// QualityProfileID resolves the configured quality profile name.
func (c *Client) QualityProfileID(ctx context.Context) (int, error) {
	var profiles []qualityProfile
	if err := c.api.GetJSON(ctx, "/api/v3/qualityprofile", nil, &profiles); err != nil {
		return 0, fmt.Errorf("%s quality profiles: %w", c.kind, err)
	}
	for _, p := range profiles {
		if p.Name == c.settings.QualityProfileName {
			return p.ID, nil
		}
	}
	return 0, fmt.Errorf("%s %q: %w", c.kind, c.settings.QualityProfileName, ErrQualityProfileNotFound)
}

// Add files the item and makes sure a search is running for it. Any status
// other than 201 is returned as *upstream.StatusError.
func (c *Client) Add(ctx context.Context, title string, externalID int) (*AddResult, error) {
	profileID, err := c.QualityProfileID(ctx)
	if err != nil {
		return nil, err
	}

	req := addRequest{
		Title:            title,
		QualityProfileID: profileID,
		RootFolderPath:   c.settings.RootFolderPath,
		Monitored:        true,
	}
	if c.kind == Sonarr {
		req.TVDBID = externalID
		req.SeasonFolder = true
		req.AddOptions.SearchForMissingEpisodes = true
	} else {
		req.TMDBID = externalID
		req.AddOptions.SearchForMovie = true
	}

	var resp addResponse
	if _, err := c.api.PostJSON(ctx, "/api/v3/"+c.resource(), req, &resp, http.StatusCreated); err != nil {
		return nil, fmt.Errorf("%s add %q: %w", c.kind, title, err)
	}

	result := &AddResult{ID: resp.ID, Search: SearchAutomatic}
	if c.searchStarted(resp) {
		return result, nil
	}

	cmd := searchCommand{Name: "MoviesSearch", MovieIDs: []int{resp.ID}}
	if c.kind == Sonarr {
		cmd = searchCommand{Name: "SeriesSearch", SeriesID: resp.ID}
	}
	if _, err := c.api.PostJSON(ctx, "/api/v3/command", cmd, nil, http.StatusCreated); err != nil {
		result.Search = SearchFailed
		result.SearchErr = fmt.Errorf("%s search command for %d: %w", c.kind, resp.ID, err)
		return result, nil
	}
	result.Search = SearchManual
	return result, nil
}

func (c *Client) searchStarted(resp addResponse) bool {
	if resp.AddOptions == nil {
		return false
	}
	if c.kind == Sonarr {
		return resp.AddOptions.SearchForMissingEpisodes
	}
	return resp.AddOptions.SearchForMovie
}
