package events

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/vaultsandbox/signbroker-go/internal/wire"
)

// SSEStrategy follows the daemon's /v1/events stream and reconnects with
// exponential backoff when it drops.
type SSEStrategy struct {
	cfg Config

	mu          sync.RWMutex
	handler     Handler
	cancel      context.CancelFunc
	lastError   error
	onReconnect func(ctx context.Context)

	done          chan struct{}
	connected     chan struct{}
	connectedOnce sync.Once
}

// NewSSEStrategy creates an SSE strategy.
func NewSSEStrategy(cfg Config) *SSEStrategy {
	return &SSEStrategy{
		cfg:       cfg.withDefaults(),
		done:      make(chan struct{}),
		connected: make(chan struct{}),
	}
}

// Name implements Strategy.
func (s *SSEStrategy) Name() string {
	return "sse"
}

// Connected is closed once the first connection is established.
func (s *SSEStrategy) Connected() <-chan struct{} {
	return s.connected
}

// Done is closed when the strategy stops for good, either through Stop or
// after too many failed reconnects.
func (s *SSEStrategy) Done() <-chan struct{} {
	return s.done
}

// LastError returns the last connection error, if any.
func (s *SSEStrategy) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

// OnReconnect registers fn to run after every successful (re)connection.
// Events missed while disconnected are not replayed, so fn typically
// refreshes the reviewer's view of the queue.
func (s *SSEStrategy) OnReconnect(fn func(ctx context.Context)) {
	s.mu.Lock()
	s.onReconnect = fn
	s.mu.Unlock()
}

// Start implements Strategy. It returns immediately.
func (s *SSEStrategy) Start(ctx context.Context, handler Handler) error {
	if s.cfg.Source == nil {
		return errors.New("events: source is nil")
	}
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.handler = handler
	s.cancel = cancel
	s.mu.Unlock()

	go s.connectLoop(ctx)
	return nil
}

// Stop implements Strategy.
func (s *SSEStrategy) Stop() error {
	s.mu.RLock()
	cancel := s.cancel
	s.mu.RUnlock()
	if cancel != nil {
		cancel()
		<-s.done
	}
	return nil
}

func (s *SSEStrategy) connectLoop(ctx context.Context) {
	defer close(s.done)

	attempts := 0
	for ctx.Err() == nil {
		err := s.connect(ctx, &attempts)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			err = errors.New("event stream closed by server")
		}
		s.setError(err)

		attempts++
		if attempts >= s.cfg.MaxReconnectAttempts {
			s.cfg.Logger.Warn("event stream gave up", "attempts", attempts, "error", err)
			return
		}

		wait := s.cfg.ReconnectWait * time.Duration(1<<(attempts-1))
		s.cfg.Logger.Debug("event stream reconnecting", "wait", wait, "error", err)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (s *SSEStrategy) connect(ctx context.Context, attempts *int) error {
	resp, err := s.cfg.Source.OpenEventStream(ctx)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	*attempts = 0
	s.connectedOnce.Do(func() { close(s.connected) })

	s.mu.RLock()
	handler, onReconnect := s.handler, s.onReconnect
	s.mu.RUnlock()
	if onReconnect != nil {
		onReconnect(ctx)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for scanner.Scan() {
		data, ok := strings.CutPrefix(scanner.Text(), "data: ")
		if !ok {
			continue
		}
		var ev wire.Event
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			s.cfg.Logger.Debug("skipping malformed event", "error", err)
			continue
		}
		if handler != nil {
			handler(ctx, &ev)
		}
	}
	return scanner.Err()
}

func (s *SSEStrategy) setError(err error) {
	s.mu.Lock()
	s.lastError = err
	s.mu.Unlock()
}
