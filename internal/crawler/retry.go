package crawler

import (
	"context"
	"log/slog"
	"time"

	"github.com/masahif/postcrawl/internal/config"
)

// RetryPolicy bounds retries of transient fetch failures
type RetryPolicy struct {
	MaxRetries int           // Retries after the first attempt
	BaseDelay  time.Duration // Backoff before the first retry
	MaxDelay   time.Duration // Cap for every backoff, Retry-After included
}

// NewRetryPolicy builds a RetryPolicy from its configuration section
func NewRetryPolicy(cfg config.RetryConfig) RetryPolicy {
	return RetryPolicy{
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  cfg.BaseDelay,
		MaxDelay:   cfg.MaxDelay,
	}
}

// Backoff returns the wait before retry number retry (0-based):
// BaseDelay * 2^retry, raised to the server's Retry-After, capped at MaxDelay.
func (p RetryPolicy) Backoff(retry int, err error) time.Duration {
	delay := p.BaseDelay
	for i := 0; i < retry && (p.MaxDelay <= 0 || delay < p.MaxDelay); i++ {
		delay *= 2
	}
	if ra := retryAfter(err); ra > delay {
		delay = ra
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

type sleepFunc func(ctx context.Context, d time.Duration) error

// retryFetch calls fetcher until it succeeds, fails permanently or the
// retry budget is spent. It returns the markup, the number of attempts and
// the last error.
func retryFetch(ctx context.Context, fetcher Fetcher, url string, policy RetryPolicy, sleep sleepFunc, onRetry func()) ([]byte, int, error) {
	attempts := 0
	for {
		attempts++
		markup, err := fetcher.Fetch(ctx, url)
		if err == nil {
			return markup, attempts, nil
		}
		if !IsTransient(err) || attempts > policy.MaxRetries || ctx.Err() != nil {
			return nil, attempts, err
		}

		delay := policy.Backoff(attempts-1, err)
		slog.Debug("Retrying transient fetch error", "url", url, "attempt", attempts, "backoff", delay, "error", err)
		if onRetry != nil {
			onRetry()
		}
		if err := sleep(ctx, delay); err != nil {
			return nil, attempts, err
		}
	}
}
