package signbroker

import (
	"context"
	"log/slog"
	"time"
)

// Resolution is the audit record of a request that left the queue.
// It never carries payload data or secrets.
type Resolution struct {
	RequestID  uint64
	Origin     string
	Kind       Kind
	Outcome    Outcome
	CreatedAt  time.Time
	ResolvedAt time.Time
}

// Recorder persists resolutions. Errors are logged by the Authority and
// never reach callers.
type Recorder interface {
	Record(ctx context.Context, r Resolution) error
}

// Metrics receives the Authority's measurements.
type Metrics interface {
	RequestEnqueued(ctx context.Context, kind Kind)
	RequestResolved(ctx context.Context, kind Kind, outcome Outcome, pendingFor time.Duration)
	DecisionFailed(ctx context.Context, kind Kind, reason string)
	DecisionDuration(ctx context.Context, kind Kind, d time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) RequestEnqueued(context.Context, Kind)                          {}
func (noopMetrics) RequestResolved(context.Context, Kind, Outcome, time.Duration) {}
func (noopMetrics) DecisionFailed(context.Context, Kind, string)                   {}
func (noopMetrics) DecisionDuration(context.Context, Kind, time.Duration)          {}

// authorityConfig holds configuration for an Authority.
type authorityConfig struct {
	logger     *slog.Logger
	now        func() time.Time
	maxPending int
	recorder   Recorder
	metrics    Metrics
	wrap       Wrapper
}

// Option configures an Authority.
type Option func(*authorityConfig)

// WithLogger sets the structured logger. Secrets and payload data are never logged.
func WithLogger(logger *slog.Logger) Option {
	return func(c *authorityConfig) {
		c.logger = logger
	}
}

// WithClock overrides the time source used to stamp requests.
func WithClock(now func() time.Time) Option {
	return func(c *authorityConfig) {
		c.now = now
	}
}

// WithMaxPending bounds the queue. Submit fails with ErrQueueFull at the
// bound. Zero or less means unbounded.
func WithMaxPending(n int) Option {
	return func(c *authorityConfig) {
		c.maxPending = n
	}
}

// WithRecorder sets where resolutions are recorded.
func WithRecorder(r Recorder) Option {
	return func(c *authorityConfig) {
		c.recorder = r
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(c *authorityConfig) {
		c.metrics = m
	}
}

// WithWrapper replaces the domain-separation envelope applied to raw bytes
// before signing and to ciphertexts before decryption. Encryption always
// encloses the plaintext in one <Bytes> layer.
func WithWrapper(w Wrapper) Option {
	return func(c *authorityConfig) {
		c.wrap = w
	}
}
