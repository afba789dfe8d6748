package signbroker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gowebpki/jcs"

	"github.com/vaultsandbox/signbroker-go/internal/brokererr"
	"github.com/vaultsandbox/signbroker-go/internal/crypto"
)

// entry tracks one live request.
type entry struct {
	req  *Request
	c    *completion
	slot chan struct{} // serializes decisions on this request
}

// Authority is the trusted side of the broker. It owns the pending queue,
// settles each request exactly once, and is the only place a privileged
// operation is ever started.
type Authority struct {
	vault    Vault
	wrap     Wrapper
	logger   *slog.Logger
	now      func() time.Time
	recorder Recorder
	metrics  Metrics
	subs     *subscriptionManager

	mu      sync.Mutex // guards queue mutation, entries and closed
	queue   *Queue
	entries map[uint64]*entry
	closed  bool
}

// NewAuthority returns an Authority that runs privileged operations on vault.
func NewAuthority(vault Vault, opts ...Option) *Authority {
	cfg := &authorityConfig{
		now:     time.Now,
		metrics: noopMetrics{},
		wrap:    WrapBytes,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}

	return &Authority{
		vault:    vault,
		wrap:     cfg.wrap,
		logger:   cfg.logger.With("component", "authority"),
		now:      cfg.now,
		recorder: cfg.recorder,
		metrics:  cfg.metrics,
		subs:     newSubscriptionManager(),
		queue:    NewQueue(cfg.maxPending),
		entries:  make(map[uint64]*entry),
	}
}

// Submit validates payload and queues it for review on behalf of origin.
// The returned Pending resolves once a reviewer decides or the Authority closes.
func (a *Authority) Submit(ctx context.Context, origin string, payload Payload) (*Pending, error) {
	if payload == nil {
		return nil, invalidPayload("payload is required")
	}
	if err := payload.Validate(); err != nil {
		return nil, err
	}
	payload = clonePayload(payload)

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil, ErrAuthorityClosed
	}
	req, err := a.queue.Enqueue(origin, payload, a.now())
	if err != nil {
		a.mu.Unlock()
		a.logger.WarnContext(ctx, "request refused", "origin", origin, "kind", payload.Kind(), "error", err)
		return nil, err
	}
	e := &entry{req: req, c: newCompletion(), slot: make(chan struct{}, 1)}
	a.entries[req.ID] = e
	n := a.queue.Len()
	a.mu.Unlock()

	a.logger.InfoContext(ctx, "request enqueued", "id", req.ID, "origin", origin, "kind", req.Kind, "pending", n)
	a.metrics.RequestEnqueued(ctx, req.Kind)
	a.subs.notify(Event{Type: EventEnqueued, Request: *req, Pending: n})

	return &Pending{req: req.clone(), c: e.c}, nil
}

// Pending returns a snapshot of the queue in arrival order.
func (a *Authority) Pending() []Request {
	return a.queue.List()
}

// Get returns the pending request with the given id.
func (a *Authority) Get(id uint64) (Request, bool) {
	req, ok := a.queue.Get(id)
	if !ok {
		return Request{}, false
	}
	return *req, true
}

// Len returns the number of pending requests.
func (a *Authority) Len() int {
	return a.queue.Len()
}

// Decide applies a reviewer decision to the request with the given id.
//
// Rejecting removes the request and resolves its caller with ErrCancelled.
// Approving runs the privileged operation with the decision's secret; on
// success the request is removed and its caller resolved with the returned
// Result. If the operation fails, the request stays queued and Decide
// returns a *DecisionError. Deciding a request that is no longer pending
// fails with ErrStaleRequest.
//
// Concurrent decisions on one request are serialized; the one that loses the
// race sees ErrStaleRequest.
func (a *Authority) Decide(ctx context.Context, id uint64, d *Decision) (Result, error) {
	if d == nil {
		return nil, fmt.Errorf("decision is required")
	}
	if !d.claim() {
		return nil, ErrDecisionUsed
	}
	defer d.wipe()

	e, err := a.lookup(id)
	if err != nil {
		return nil, err
	}

	select {
	case e.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-e.slot }()

	// The previous holder of the slot may have resolved the request.
	if _, err := a.lookup(id); err != nil {
		return nil, err
	}

	if !d.approve {
		a.resolve(ctx, e, OutcomeRejected, nil, ErrCancelled)
		return nil, nil
	}
	return a.approve(ctx, e, d.secret)
}

func (a *Authority) lookup(id uint64) (*entry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil, ErrAuthorityClosed
	}
	e, ok := a.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrStaleRequest, id)
	}
	return e, nil
}

func (a *Authority) approve(ctx context.Context, e *entry, secret []byte) (Result, error) {
	req := e.req
	start := a.now()
	result, err := a.execute(ctx, req, secret)
	a.metrics.DecisionDuration(ctx, req.Kind, a.now().Sub(start))

	if err != nil {
		reason := string(brokererr.CodeOf(err))
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			reason = "context"
		}
		a.logger.WarnContext(ctx, "approval failed", "id", req.ID, "kind", req.Kind, "reason", reason)
		a.metrics.DecisionFailed(ctx, req.Kind, reason)
		a.subs.notify(Event{Type: EventDecisionFailed, Request: *req, Reason: reason, Pending: a.queue.Len()})
		return nil, &DecisionError{ID: req.ID, Kind: req.Kind, Err: err}
	}

	result = result.withID(req.ID)
	if !a.resolve(ctx, e, OutcomeApproved, result, nil) {
		// Close won the race; the caller already has ErrTerminated.
		a.logger.WarnContext(ctx, "approval discarded after shutdown", "id", req.ID, "kind", req.Kind)
		return nil, ErrAuthorityClosed
	}
	return result, nil
}

// execute dispatches the request to the Vault.
func (a *Authority) execute(ctx context.Context, req *Request, secret []byte) (Result, error) {
	switch p := req.Payload.(type) {
	case *SignPayloadRequest:
		canonical, err := jcs.Transform(p.Payload)
		if err != nil {
			return nil, invalidPayload(err.Error())
		}
		sig, err := a.vault.SignPayload(ctx, p.Address, secret, canonical)
		if err != nil {
			return nil, err
		}
		return &SignerResult{Signature: crypto.ToHex(sig)}, nil

	case *SignRawRequest:
		data, err := crypto.FromHex(p.Data)
		if err != nil {
			return nil, invalidPayload(err.Error())
		}
		sig, err := a.vault.SignRaw(ctx, p.Address, secret, a.wrap(data))
		if err != nil {
			return nil, err
		}
		return &SignerResult{Signature: crypto.ToHex(sig)}, nil

	case *EncryptRequest:
		data, err := crypto.FromHex(p.Data)
		if err != nil {
			return nil, invalidPayload(err.Error())
		}
		// The plaintext always gets its own envelope; decryption strips exactly
		// one layer, so enveloped input survives the round trip.
		encrypted, err := a.vault.EncryptMessage(ctx, p.Address, secret, p.Recipient, crypto.EncloseBytes(data))
		if err != nil {
			return nil, err
		}
		return &EncryptResult{Encrypted: crypto.ToHex(encrypted)}, nil

	case *DecryptRequest:
		data, err := crypto.FromHex(p.Data)
		if err != nil {
			return nil, invalidPayload(err.Error())
		}
		message, err := a.vault.DecryptMessage(ctx, p.Address, secret, p.Sender, a.wrap(data))
		if err != nil {
			return nil, err
		}
		return &DecryptResult{Message: crypto.ToHex(message)}, nil

	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownKind, req.Payload)
	}
}

// resolve removes e from the queue and settles it, both under the mutation
// lock. It reports false if the request had already left the queue.
func (a *Authority) resolve(ctx context.Context, e *entry, outcome Outcome, result Result, err error) bool {
	a.mu.Lock()
	if a.entries[e.req.ID] != e {
		a.mu.Unlock()
		return false
	}
	a.queue.Remove(e.req.ID)
	delete(a.entries, e.req.ID)
	settled := e.c.settle(outcome, result, err)
	n := a.queue.Len()
	a.mu.Unlock()

	if settled {
		a.finish(ctx, e.req, outcome, n)
	}
	return settled
}

// finish runs the side effects of a resolution outside the lock.
func (a *Authority) finish(ctx context.Context, req *Request, outcome Outcome, pending int) {
	resolvedAt := a.now()
	a.logger.InfoContext(ctx, "request resolved", "id", req.ID, "origin", req.Origin, "kind", req.Kind, "outcome", outcome, "pending", pending)
	a.metrics.RequestResolved(ctx, req.Kind, outcome, resolvedAt.Sub(req.CreatedAt))

	if a.recorder != nil {
		err := a.recorder.Record(ctx, Resolution{
			RequestID:  req.ID,
			Origin:     req.Origin,
			Kind:       req.Kind,
			Outcome:    outcome,
			CreatedAt:  req.CreatedAt,
			ResolvedAt: resolvedAt,
		})
		if err != nil {
			a.logger.ErrorContext(ctx, "audit record failed", "id", req.ID, "error", err)
		}
	}

	a.subs.notify(Event{Type: EventResolved, Request: *req, Outcome: outcome, Pending: pending})
}

// Close shuts the Authority down. Every pending request is removed and its
// caller resolved with ErrTerminated. An approval still running when Close
// is called returns ErrAuthorityClosed and its result is discarded.
// Subsequent Submit and Decide calls fail with ErrAuthorityClosed.
// Close is idempotent.
func (a *Authority) Close(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	reqs := a.queue.drain()
	terminated := make([]*entry, 0, len(reqs))
	for _, req := range reqs {
		e := a.entries[req.ID]
		delete(a.entries, req.ID)
		if e.c.settle(OutcomeTerminated, nil, ErrTerminated) {
			terminated = append(terminated, e)
		}
	}
	a.mu.Unlock()

	a.logger.InfoContext(ctx, "authority closing", "terminated", len(terminated))
	for _, e := range terminated {
		a.finish(ctx, e.req, OutcomeTerminated, 0)
	}
	a.subs.clear()
	return nil
}
