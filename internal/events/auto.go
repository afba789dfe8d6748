package events

import (
	"context"
	"time"
)

// AutoStrategy tries SSE first and falls back to polling when the stream
// does not connect within the configured timeout.
type AutoStrategy struct {
	cfg     Config
	current Strategy
}

// NewAutoStrategy creates an auto strategy.
func NewAutoStrategy(cfg Config) *AutoStrategy {
	return &AutoStrategy{cfg: cfg.withDefaults()}
}

// Name implements Strategy.
func (a *AutoStrategy) Name() string {
	if a.current != nil {
		return "auto:" + a.current.Name()
	}
	return "auto"
}

// Start implements Strategy. It blocks until SSE connects or the fallback
// to polling has started.
func (a *AutoStrategy) Start(ctx context.Context, handler Handler) error {
	sse := NewSSEStrategy(a.cfg)
	if err := sse.Start(ctx, handler); err != nil {
		return a.startPolling(ctx, handler)
	}

	timer := time.NewTimer(a.cfg.ConnectTimeout)
	defer timer.Stop()

	select {
	case <-sse.Connected():
		a.current = sse
		return nil
	case <-sse.Done():
	case <-timer.C:
	case <-ctx.Done():
		_ = sse.Stop()
		return ctx.Err()
	}
	a.cfg.Logger.Info("event stream unavailable, polling instead", "error", sse.LastError())
	_ = sse.Stop()
	return a.startPolling(ctx, handler)
}

func (a *AutoStrategy) startPolling(ctx context.Context, handler Handler) error {
	polling := NewPollingStrategy(a.cfg)
	if err := polling.Start(ctx, handler); err != nil {
		return err
	}
	a.current = polling
	return nil
}

// Stop implements Strategy.
func (a *AutoStrategy) Stop() error {
	if a.current != nil {
		return a.current.Stop()
	}
	return nil
}
