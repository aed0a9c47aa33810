package client

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/deeplooplabs/crystalcache"
)

// RetryConfig holds retry configuration
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts (default: 3)
	MaxRetries int

	// InitialBackoff is the initial backoff duration (default: 1s)
	InitialBackoff time.Duration

	// MaxBackoff caps the backoff duration; zero means uncapped
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff (default: 2.0)
	BackoffMultiplier float64

	// Jitter adds up to 25% randomness to backoff (default: false)
	Jitter bool

	// Enabled indicates whether retries are enabled
	Enabled bool
}

// DefaultRetryConfig returns a default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    time.Second,
		BackoffMultiplier: 2.0,
		Enabled:           true,
	}
}

// override returns a copy with per-call retry settings applied
func (rc *RetryConfig) override(count *int, delay time.Duration) *RetryConfig {
	out := *rc
	if count != nil {
		out.MaxRetries = *count
	}
	if delay > 0 {
		out.InitialBackoff = delay
	}
	return &out
}

// BackoffDuration returns the delay before retry number attempt+1
func (rc *RetryConfig) BackoffDuration(attempt int) time.Duration {
	// Calculate exponential backoff
	backoff := float64(rc.InitialBackoff) * math.Pow(rc.BackoffMultiplier, float64(attempt))

	// Cap at max backoff
	if rc.MaxBackoff > 0 && backoff > float64(rc.MaxBackoff) {
		backoff = float64(rc.MaxBackoff)
	}

	// Add jitter if enabled
	if rc.Jitter {
		jitter := backoff * 0.25 * rand.Float64()
		backoff += jitter
	}

	return time.Duration(backoff)
}

// retryWithBackoff runs fn until it succeeds, fails with a non-transient
// error, or MaxRetries retries have been spent. The last error is returned.
func retryWithBackoff(ctx context.Context, clk clock.Clock, config *RetryConfig, fn func(attempt int) error) error {
	if config == nil || !config.Enabled {
		return fn(0)
	}

	var lastErr error
	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		lastErr = fn(attempt)
		if lastErr == nil {
			return nil
		}
		if !crystalcache.IsRetryable(lastErr) {
			return lastErr
		}

		// Don't sleep after the last attempt
		if attempt < config.MaxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-clk.After(config.BackoffDuration(attempt)):
			}
		}
	}
	return lastErr
}
