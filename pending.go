package signbroker

import (
	"context"
	"sync/atomic"
)

// Outcome is how a request left the queue.
type Outcome string

const (
	OutcomePending    Outcome = "pending"
	OutcomeApproved   Outcome = "approved"
	OutcomeRejected   Outcome = "rejected"
	OutcomeTerminated Outcome = "terminated"
)

// completion is the settle side of a Pending. Only the Authority holds it.
type completion struct {
	done    chan struct{}
	settled atomic.Bool

	// written once before done is closed
	outcome Outcome
	result  Result
	err     error
}

func newCompletion() *completion {
	return &completion{done: make(chan struct{})}
}

// settle resolves the completion. It reports false if it was already settled.
func (c *completion) settle(outcome Outcome, result Result, err error) bool {
	if !c.settled.CompareAndSwap(false, true) {
		return false
	}
	c.outcome = outcome
	c.result = result
	c.err = err
	close(c.done)
	return true
}

// Pending is the caller's handle on a submitted request. It resolves exactly
// once: with a Result on approval, ErrCancelled on rejection, or
// ErrTerminated when the authority shuts down first.
type Pending struct {
	req Request
	c   *completion
}

// ID returns the authority-assigned request id.
func (p *Pending) ID() uint64 {
	return p.req.ID
}

// Request returns a copy of the request as it was enqueued.
func (p *Pending) Request() Request {
	return p.req.clone()
}

// Done returns a channel that is closed once the request is resolved.
func (p *Pending) Done() <-chan struct{} {
	return p.c.done
}

// Outcome returns OutcomePending until the request is resolved.
func (p *Pending) Outcome() Outcome {
	select {
	case <-p.c.done:
		return p.c.outcome
	default:
		return OutcomePending
	}
}

// Wait blocks until the request is resolved or ctx is done. Giving up on
// the wait does not withdraw the request.
func (p *Pending) Wait(ctx context.Context) (Result, error) {
	select {
	case <-p.c.done:
		return p.c.result, p.c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
