package events

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/vaultsandbox/signbroker-go/internal/wire"
)

const pollJitter = 0.3

// PollingStrategy lists the queue on an adaptive interval and reports the
// difference between consecutive snapshots: new ids as "enqueued" events and
// vanished ids as "resolved" events without an outcome.
type PollingStrategy struct {
	cfg Config

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	seen    map[uint64]wire.RequestSummary
	primed  bool
	backoff time.Duration
}

// NewPollingStrategy creates a polling strategy.
func NewPollingStrategy(cfg Config) *PollingStrategy {
	cfg = cfg.withDefaults()
	return &PollingStrategy{
		cfg:     cfg,
		seen:    make(map[uint64]wire.RequestSummary),
		backoff: cfg.PollInterval,
	}
}

// Name implements Strategy.
func (p *PollingStrategy) Name() string {
	return "polling"
}

// Start implements Strategy. Requests already pending at the first poll are
// reported as enqueued.
func (p *PollingStrategy) Start(ctx context.Context, handler Handler) error {
	if p.cfg.Source == nil {
		return errors.New("events: source is nil")
	}
	ctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancel = cancel
	p.done = make(chan struct{})
	done := p.done
	p.mu.Unlock()

	go func() {
		defer close(done)
		p.pollLoop(ctx, handler)
	}()
	return nil
}

// Stop implements Strategy.
func (p *PollingStrategy) Stop() error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
	return nil
}

func (p *PollingStrategy) pollLoop(ctx context.Context, handler Handler) {
	for {
		wait := p.poll(ctx, handler)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// poll takes one snapshot and returns the delay before the next. The delay
// resets when the queue changed and grows while it is quiet or failing.
func (p *PollingStrategy) poll(ctx context.Context, handler Handler) time.Duration {
	list, err := p.cfg.Source.ListPending(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.cfg.Logger.Debug("poll failed", "error", err)
		}
		return p.grow()
	}

	changes := p.diff(list)
	for i := range changes {
		handler(ctx, &changes[i])
	}
	if len(changes) > 0 {
		p.backoff = p.cfg.PollInterval
		return p.backoff
	}
	return p.grow()
}

func (p *PollingStrategy) diff(list []wire.RequestSummary) []wire.Event {
	current := make(map[uint64]wire.RequestSummary, len(list))
	for _, r := range list {
		current[r.ID] = r
	}

	var out []wire.Event
	for _, r := range list {
		if _, ok := p.seen[r.ID]; !ok {
			out = append(out, wire.Event{Type: "enqueued", Request: &r, Pending: len(list)})
		}
	}
	if p.primed {
		for id, r := range p.seen {
			if _, ok := current[id]; !ok {
				out = append(out, wire.Event{Type: "resolved", Request: &r, Pending: len(list)})
			}
		}
	}
	p.seen = current
	p.primed = true
	return out
}

func (p *PollingStrategy) grow() time.Duration {
	next := time.Duration(float64(p.backoff) * 1.5)
	if next > p.cfg.PollMaxBackoff {
		next = p.cfg.PollMaxBackoff
	}
	p.backoff = next
	jitter := time.Duration(float64(next) * pollJitter * rand.Float64())
	return next + jitter
}
