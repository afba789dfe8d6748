// Package events delivers review queue changes to a reviewer client, either
// from the daemon's server-sent event stream or by polling the queue.
package events

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/vaultsandbox/signbroker-go/internal/wire"
)

// Source is the part of the review API the strategies need. *api.Client
// implements it.
type Source interface {
	OpenEventStream(ctx context.Context) (*http.Response, error)
	ListPending(ctx context.Context) ([]wire.RequestSummary, error)
}

// Handler receives one queue change. Handlers run on the strategy's
// goroutine and should return quickly.
type Handler func(ctx context.Context, ev *wire.Event)

// Strategy is a running source of queue changes.
//
// The lifecycle is Start, then Stop. Stop is idempotent; after it returns no
// further events are delivered.
type Strategy interface {
	Start(ctx context.Context, handler Handler) error
	Stop() error
	// Name returns "sse", "polling", "auto:sse" or "auto:polling".
	Name() string
}

// Config holds settings shared by all strategies.
type Config struct {
	Source Source
	Logger *slog.Logger

	// ReconnectWait is the first SSE reconnect delay; it doubles per failure.
	ReconnectWait time.Duration
	// MaxReconnectAttempts bounds consecutive SSE failures.
	MaxReconnectAttempts int

	PollInterval   time.Duration
	PollMaxBackoff time.Duration

	// ConnectTimeout is how long the auto strategy waits for SSE before it
	// falls back to polling.
	ConnectTimeout time.Duration
}

// Defaults.
const (
	DefaultReconnectWait        = time.Second
	DefaultMaxReconnectAttempts = 10
	DefaultPollInterval         = time.Second
	DefaultPollMaxBackoff       = 10 * time.Second
	DefaultConnectTimeout       = 5 * time.Second
)

func (c Config) withDefaults() Config {
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	if c.ReconnectWait <= 0 {
		c.ReconnectWait = DefaultReconnectWait
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.PollMaxBackoff <= 0 {
		c.PollMaxBackoff = DefaultPollMaxBackoff
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	return c
}
