package api

import (
	"context"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"
)

// RetryConfig controls how idempotent review requests are retried.
type RetryConfig struct {
	// MaxRetries is the number of attempts after the first.
	MaxRetries int
	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration
	// MaxDelay caps every delay, jitter and Retry-After included.
	MaxDelay time.Duration
	// Multiplier grows the delay after each attempt.
	Multiplier float64
	// Jitter is the randomization factor in [0, 1].
	Jitter float64
	// RetryableOn reports whether a status code is worth retrying.
	RetryableOn func(statusCode int) bool
}

// DefaultRetryConfig returns the retry policy used by New. The daemon runs on
// the reviewer's machine, so delays are short.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:  3,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Multiplier:  2.0,
		Jitter:      0.2,
		RetryableOn: retryableStatus,
	}
}

func retryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// ShouldRetry reports whether attempt (zero-based) may be followed by another.
func (r *RetryConfig) ShouldRetry(attempt int, statusCode int) bool {
	if attempt >= r.MaxRetries {
		return false
	}
	if r.RetryableOn == nil {
		return retryableStatus(statusCode)
	}
	return r.RetryableOn(statusCode)
}

// Delay returns the backoff before the retry that follows attempt.
func (r *RetryConfig) Delay(attempt int) time.Duration {
	delay := float64(r.BaseDelay) * math.Pow(r.Multiplier, float64(attempt))
	if r.Jitter > 0 {
		spread := delay * r.Jitter
		delay += (rand.Float64()*2 - 1) * spread
	}
	if r.MaxDelay > 0 && delay > float64(r.MaxDelay) {
		delay = float64(r.MaxDelay)
	}
	return time.Duration(delay)
}

// Wait sleeps before the retry that follows attempt. A positive retryAfter,
// taken from the server's Retry-After header, replaces the computed backoff.
func (r *RetryConfig) Wait(ctx context.Context, attempt int, retryAfter time.Duration) error {
	delay := r.Delay(attempt)
	if retryAfter > 0 {
		delay = retryAfter
		if r.MaxDelay > 0 && delay > r.MaxDelay {
			delay = r.MaxDelay
		}
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// parseRetryAfter reads a Retry-After header given in seconds.
func parseRetryAfter(h http.Header) time.Duration {
	secs, err := strconv.Atoi(h.Get("Retry-After"))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
