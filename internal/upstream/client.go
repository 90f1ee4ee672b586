// Package upstream is the shared HTTP client for the TMDb, Sonarr and Radarr
// APIs. Every call is rate limited, bounded by a timeout and retried when the
// server answers with 429 or with a 503 carrying Retry-After.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/time/rate"
)

const maxErrorBody = 512

// StatusError is returned when the server answers with an unexpected status.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
	// RetryAfter is the raw Retry-After header of the response.
	RetryAfter string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.StatusCode)
}

// StatusCode extracts the HTTP status from err, or 0 if err is not a
// StatusError.
func StatusCode(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}

// Options configure a Client.
type Options struct {
	BaseURL string
	// Query is added to every request, e.g. an api_key parameter.
	Query url.Values
	// Header is added to every request, e.g. X-Api-Key.
	Header http.Header

	Timeout   time.Duration
	RateLimit float64
	Burst     int
	Retry     RetryPolicy

	HTTPClient *http.Client
	Logger     *slog.Logger
	// Timer replaces the wall clock between retries.
	Timer Timer
}

// Client performs JSON requests against one upstream API.
type Client struct {
	baseURL *url.URL
	query   url.Values
	header  http.Header
	timeout time.Duration
	limiter *rate.Limiter
	retry   RetryPolicy
	http    *http.Client
	logger  *slog.Logger
	timer   Timer
}

// New creates a Client for the API rooted at opts.BaseURL.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", opts.BaseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q: scheme and host required", opts.BaseURL)
	}

	c := &Client{
		baseURL: base,
		query:   opts.Query,
		header:  opts.Header,
		timeout: opts.Timeout,
		retry:   opts.Retry.withDefaults(),
		http:    opts.HTTPClient,
		logger:  opts.Logger,
		timer:   opts.Timer,
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("component", "upstream", "host", base.Host)
	if opts.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), max(opts.Burst, 1))
	}
	return c, nil
}

// GetJSON fetches path with the extra query parameters and decodes the JSON
// response into out.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	_, err := c.do(ctx, http.MethodGet, path, query, nil, out, http.StatusOK)
	return err
}

// PostJSON sends body as JSON and decodes the response into out when out is
// not nil. Any status in accept counts as success and is returned.
func (c *Client) PostJSON(ctx context.Context, path string, body, out any, accept ...int) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("failed to encode request body: %w", err)
	}
	if len(accept) == 0 {
		accept = []int{http.StatusOK, http.StatusCreated}
	}
	return c.do(ctx, http.MethodPost, path, nil, payload, out, accept...)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload []byte, out any, accept ...int) (int, error) {
	target := c.resolve(path, query)

	opts := append(c.retry.options(),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			c.logger.WarnContext(ctx, "Upstream rate limited, retrying",
				"status", StatusCode(err), "path", path, "attempt", n+1, "max_attempts", c.retry.MaxAttempts)
		}),
	)
	if c.timer != nil {
		opts = append(opts, retry.WithTimer(c.timer))
	}

	var status int
	err := retry.Do(func() error {
		status = 0
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("rate limiter: %w", err)
			}
		}

		resp, body, err := c.once(ctx, method, target, payload)
		if err != nil {
			return err
		}
		status = resp.StatusCode

		if !slices.Contains(accept, resp.StatusCode) {
			return &StatusError{
				Method:     method,
				URL:        redact(target),
				StatusCode: resp.StatusCode,
				Body:       truncate(string(body), maxErrorBody),
				RetryAfter: resp.Header.Get("Retry-After"),
			}
		}
		if out != nil && len(body) > 0 {
			if err := json.Unmarshal(body, out); err != nil {
				return retry.Unrecoverable(
					fmt.Errorf("failed to decode response from %s: %w", redact(target), err))
			}
		}
		return nil
	}, opts...)
	return status, err
}

func (c *Client) once(ctx context.Context, method, target string, payload []byte) (*http.Response, []byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, values := range c.header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%s %s: %w", method, redact(target), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response from %s: %w", redact(target), err)
	}
	c.logger.DebugContext(ctx, "Upstream request finished",
		"method", method, "path", req.URL.Path, "status", resp.StatusCode, "duration", time.Since(started))
	return resp, body, nil
}

func (c *Client) resolve(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = c.baseURL.Path + "/" + strings.TrimLeft(path, "/")
	q := url.Values{}
	for k, vs := range c.query {
		q[k] = append([]string(nil), vs...)
	}
	for k, vs := range query {
		q[k] = append(q[k], vs...)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// redact strips the query string, which may carry API keys.
func redact(target string) string {
	if i := strings.IndexByte(target, '?'); i >= 0 {
		return target[:i]
	}
	return target
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
