package api

import (
	"context"
	"net/http"
	"testing"
	"time"
)

func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()

	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.MaxRetries)
	}
	if cfg.BaseDelay != 200*time.Millisecond {
		t.Errorf("BaseDelay = %v, want 200ms", cfg.BaseDelay)
	}
	if cfg.MaxDelay != 5*time.Second {
		t.Errorf("MaxDelay = %v, want 5s", cfg.MaxDelay)
	}
	if cfg.RetryableOn == nil {
		t.Error("RetryableOn is nil")
	}
}

func TestRetryConfig_ShouldRetry(t *testing.T) {
	cfg := DefaultRetryConfig()

	tests := []struct {
		name       string
		attempt    int
		statusCode int
		expected   bool
	}{
		{"first attempt, retryable", 0, 503, true},
		{"last attempt, retryable", 2, 503, true},
		{"max attempts reached", 3, 503, false},
		{"conflict", 0, 409, false},
		{"forbidden", 0, 403, false},
		{"unauthorized", 0, 401, false},
		{"retryable 408", 0, 408, true},
		{"retryable 429", 0, 429, true},
		{"retryable 500", 0, 500, true},
		{"retryable 502", 0, 502, true},
		{"retryable 504", 0, 504, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cfg.ShouldRetry(tt.attempt, tt.statusCode); got != tt.expected {
				t.Errorf("ShouldRetry(%d, %d) = %v, want %v", tt.attempt, tt.statusCode, got, tt.expected)
			}
		})
	}
}

func TestRetryConfig_ShouldRetry_NilPredicate(t *testing.T) {
	cfg := &RetryConfig{MaxRetries: 1}
	if !cfg.ShouldRetry(0, 503) {
		t.Error("ShouldRetry(0, 503) = false, want true")
	}
	if cfg.ShouldRetry(0, 400) {
		t.Error("ShouldRetry(0, 400) = true, want false")
	}
}

func TestRetryConfig_Delay(t *testing.T) {
	cfg := &RetryConfig{
		BaseDelay:  time.Second,
		MaxDelay:   10 * time.Second,
		Multiplier: 2.0,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 10 * time.Second},
		{9, 10 * time.Second},
	}

	for _, tt := range tests {
		if got := cfg.Delay(tt.attempt); got != tt.expected {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.expected)
		}
	}
}

func TestRetryConfig_Delay_JitterNeverExceedsMax(t *testing.T) {
	cfg := &RetryConfig{
		BaseDelay:  time.Second,
		MaxDelay:   time.Second,
		Multiplier: 2.0,
		Jitter:     0.5,
	}

	for i := 0; i < 100; i++ {
		d := cfg.Delay(0)
		if d < 500*time.Millisecond || d > time.Second {
			t.Fatalf("Delay(0) = %v, want within [500ms, 1s]", d)
		}
	}
}

func TestRetryConfig_Wait_ContextCancellation(t *testing.T) {
	cfg := &RetryConfig{BaseDelay: 10 * time.Second, Multiplier: 2}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	if err := cfg.Wait(ctx, 0, 0); err != context.DeadlineExceeded {
		t.Errorf("Wait() error = %v, want context.DeadlineExceeded", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Wait() took %v after cancellation", elapsed)
	}
}

func TestRetryConfig_Wait_RetryAfterCapped(t *testing.T) {
	cfg := &RetryConfig{BaseDelay: 10 * time.Second, MaxDelay: 20 * time.Millisecond, Multiplier: 2}

	start := time.Now()
	if err := cfg.Wait(context.Background(), 0, time.Hour); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Wait() = %v, want Retry-After capped at MaxDelay", elapsed)
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", 0},
		{"3", 3 * time.Second},
		{"0", 0},
		{"-1", 0},
		{"Wed, 21 Oct 2015 07:28:00 GMT", 0},
	}
	for _, tt := range tests {
		h := http.Header{}
		if tt.value != "" {
			h.Set("Retry-After", tt.value)
		}
		if got := parseRetryAfter(h); got != tt.want {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}
