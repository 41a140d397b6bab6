package fetch

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/optionhawk/scanner/internal/ratelimit"
)

// ErrNoData marks a symbol with no data behind it (delisted, unknown,
// never traded). Callers skip the symbol instead of treating it as a
// failure; it is never retried.
var ErrNoData = errors.New("no data for symbol")

// Client wraps provider calls with rate limiting, jitter and bounded retry.
// Errors are triaged into three classes: permanently absent data (returned
// as ErrNoData immediately), rate limiting (escalating backoff) and anything
// else (flat delay, surfaced after the final attempt).
type Client struct {
	limiter    *ratelimit.Limiter
	maxRetries int
	baseDelay  time.Duration
	sleep      func(time.Duration)
	logger     zerolog.Logger
}

// New creates a retrying fetch client around the given limiter.
func New(limiter *ratelimit.Limiter) *Client {
	return &Client{
		limiter:    limiter,
		maxRetries: 3,
		baseDelay:  2 * time.Second,
		sleep:      time.Sleep,
		logger:     log.With().Str("component", "fetch").Logger(),
	}
}

// SetSleep replaces the sleep function, used by tests.
func (c *Client) SetSleep(sleep func(time.Duration)) {
	c.sleep = sleep
}

// Do runs fn behind the rate limiter, jittering on success. op names the
// call for logging only.
func (c *Client) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			c.limiter.Jitter()
			return nil
		}
		lastErr = err

		if IsNoData(err) {
			return ErrNoData
		}

		if attempt == c.maxRetries-1 {
			break
		}

		if isRateLimited(err) {
			wait := time.Duration(attempt+1) * c.baseDelay * 2
			c.logger.Warn().Str("op", op).Int("attempt", attempt+1).
				Dur("wait", wait).Msg("rate limit hit, backing off")
			c.sleep(wait)
			continue
		}

		c.logger.Warn().Str("op", op).Err(err).Msg("call failed, retrying")
		c.sleep(c.baseDelay)
	}
	return lastErr
}

// IsNoData reports whether err means the symbol has no data at all.
func IsNoData(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNoData) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "possibly delisted") ||
		strings.Contains(msg, "may be delisted") ||
		strings.Contains(msg, "no data found")
}

func isRateLimited(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "too many requests") ||
		strings.Contains(msg, "429")
}
