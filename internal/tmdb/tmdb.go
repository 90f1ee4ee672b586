// Package tmdb is a small client for The Movie Database API covering search,
// details and external ids.
package tmdb

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/edgard/streambot/internal/upstream"
)

// MediaType distinguishes movies from TV series.
type MediaType string

const (
	MediaMovie MediaType = "movie"
	MediaTV    MediaType = "tv"
)

// SearchResult is one movie or series returned by a multi search.
type SearchResult struct {
	ID           int       `json:"id"`
	MediaType    MediaType `json:"media_type"`
	Title        string    `json:"title"`
	Name         string    `json:"name"`
	ReleaseDate  string    `json:"release_date"`
	FirstAirDate string    `json:"first_air_date"`
}

// DisplayTitle returns the movie title or the series name.
func (r SearchResult) DisplayTitle() string {
	if r.Title != "" {
		return r.Title
	}
	return r.Name
}

// Year returns the four digit release year or "N/A".
func (r SearchResult) Year() string {
	return yearOf(r.ReleaseDate, r.FirstAirDate)
}

// Label renders the result as "Title (Year)".
func (r SearchResult) Label() string {
	return fmt.Sprintf("%s (%s)", r.DisplayTitle(), r.Year())
}

// Details holds the fields shown to the user before a request is filed.
type Details struct {
	ID           int     `json:"id"`
	Title        string  `json:"title"`
	Name         string  `json:"name"`
	Overview     string  `json:"overview"`
	VoteAverage  float64 `json:"vote_average"`
	PosterPath   string  `json:"poster_path"`
	ReleaseDate  string  `json:"release_date"`
	FirstAirDate string  `json:"first_air_date"`
}

// DisplayTitle returns the movie title or the series name.
func (d Details) DisplayTitle() string {
	if d.Title != "" {
		return d.Title
	}
	return d.Name
}

// Year returns the four digit release year or "N/A".
func (d Details) Year() string {
	return yearOf(d.ReleaseDate, d.FirstAirDate)
}

// ExternalIDs lists the ids of a series in other databases.
type ExternalIDs struct {
	TVDBID int    `json:"tvdb_id"`
	IMDBID string `json:"imdb_id"`
}

type searchResponse struct {
	Results []SearchResult `json:"results"`
}

// Client talks to TMDb through the shared upstream client.
type Client struct {
	api          *upstream.Client
	imageBaseURL string
}

// NewClient wraps api, which must already carry the api_key query parameter.
func NewClient(api *upstream.Client, imageBaseURL string) *Client {
	return &Client{api: api, imageBaseURL: strings.TrimRight(imageBaseURL, "/")}
}

// SearchMulti searches movies and series. People and other result kinds
// are dropped.
func (c *Client) SearchMulti(ctx context.Context, query, language string) ([]SearchResult, error) {
	params := url.Values{"query": {query}}
	if language != "" {
		params.Set("language", language)
	}

	var resp searchResponse
	if err := c.api.GetJSON(ctx, "/search/multi", params, &resp); err != nil {
		return nil, fmt.Errorf("tmdb search %q: %w", query, err)
	}

	results := make([]SearchResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.MediaType == MediaMovie || r.MediaType == MediaTV {
			results = append(results, r)
		}
	}
	return results, nil
}

// Details fetches the full record of a movie or series.
func (c *Client) Details(ctx context.Context, mediaType MediaType, id int, language string) (*Details, error) {
	var params url.Values
	if language != "" {
		params = url.Values{"language": {language}}
	}

	var details Details
	path := "/" + string(mediaType) + "/" + strconv.Itoa(id)
	if err := c.api.GetJSON(ctx, path, params, &details); err != nil {
		return nil, fmt.Errorf("tmdb details %s/%d: %w", mediaType, id, err)
	}
	return &details, nil
}

// ExternalIDs resolves the external ids of a series.
func (c *Client) ExternalIDs(ctx context.Context, tvID int) (*ExternalIDs, error) {
	var ids ExternalIDs
	if err := c.api.GetJSON(ctx, "/tv/"+strconv.Itoa(tvID)+"/external_ids", nil, &ids); err != nil {
		return nil, fmt.Errorf("tmdb external ids tv/%d: %w", tvID, err)
	}
	return &ids, nil
}

// PosterURL returns the full image URL of posterPath, or "" when unset.
func (c *Client) PosterURL(posterPath string) string {
	if posterPath == "" {
		return ""
	}
	return c.imageBaseURL + "/" + strings.TrimLeft(posterPath, "/")
}

// Stars renders a 0-10 rating as ten stars: one per point, a sparkle for a
// remaining half point and hollow stars for the rest.
func Stars(rating float64) string {
	rating = min(max(rating, 0), 10)
	full := int(rating)
	half := 0
	if rating-float64(full) >= 0.5 {
		half = 1
	}
	return strings.Repeat("⭐", full) + strings.Repeat("✨", half) + strings.Repeat("★", 10-full-half)
}

func yearOf(dates ...string) string {
	for _, d := range dates {
		if len(d) >= 4 {
			return d[:4]
		}
	}
	return "N/A"
}
