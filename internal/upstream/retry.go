package upstream

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/avast/retry-go/v4"
)

const (
	defaultMaxAttempts = 2
	defaultBackoff     = 1 * time.Second
	defaultMaxBackoff  = 30 * time.Second
)

// RetryPolicy decides whether and how long to wait before repeating a
// request. Only rate limiting responses are retried.
type RetryPolicy struct {
	// MaxAttempts counts the first request; 2 means one retry.
	MaxAttempts int
	// DefaultBackoff is used when the response carries no usable Retry-After.
	DefaultBackoff time.Duration
	// MaxBackoff caps the wait taken from Retry-After.
	MaxBackoff time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.DefaultBackoff <= 0 {
		p.DefaultBackoff = defaultBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = defaultMaxBackoff
	}
	return p
}

// Timer is the clock retries wait on.
type Timer = retry.Timer

// Retryable reports whether err may be repeated: 429 always, 503 only when
// the server says when to come back.
func Retryable(err error) bool {
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	switch statusErr.StatusCode {
	case http.StatusTooManyRequests:
		return true
	case http.StatusServiceUnavailable:
		return statusErr.RetryAfter != ""
	default:
		return false
	}
}

// Backoff returns how long to wait before repeating the request that failed
// with err.
func (p RetryPolicy) Backoff(err error, now time.Time) time.Duration {
	p = p.withDefaults()
	wait := p.DefaultBackoff
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if d, ok := ParseRetryAfter(statusErr.RetryAfter, now); ok {
			wait = d
		}
	}
	return min(wait, p.MaxBackoff)
}

func (p RetryPolicy) options() []retry.Option {
	return []retry.Option{
		retry.Attempts(uint(p.MaxAttempts)),
		retry.RetryIf(Retryable),
		retry.DelayType(func(_ uint, err error, _ *retry.Config) time.Duration {
			return p.Backoff(err, time.Now())
		}),
		retry.MaxDelay(p.MaxBackoff),
		retry.LastErrorOnly(true),
	}
}

// ParseRetryAfter reads a Retry-After header given either as delay seconds
// or as an HTTP date.
func ParseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if at, err := http.ParseTime(value); err == nil {
		return max(at.Sub(now), 0), true
	}
	return 0, false
}
