package signbroker

import (
	"context"
	"fmt"
	"sync"
)

// Transport carries a request from a Signer to an Authority and its outcome
// back. Implementations must resolve every Send exactly once and treat a
// second in-flight call with the same id as a programming error.
type Transport interface {
	Send(ctx context.Context, id uint64, p Payload) (Result, error)
}

// inflight tracks caller ids with an outstanding call.
type inflight struct {
	mu  sync.Mutex
	ids map[uint64]struct{}
}

func (f *inflight) add(id uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ids == nil {
		f.ids = make(map[uint64]struct{})
	}
	if _, dup := f.ids[id]; dup {
		panic(fmt.Sprintf("signbroker: duplicate in-flight request id %d", id))
	}
	f.ids[id] = struct{}{}
}

func (f *inflight) remove(id uint64) {
	f.mu.Lock()
	delete(f.ids, id)
	f.mu.Unlock()
}

// LocalTransport connects a Signer to an Authority in the same process.
type LocalTransport struct {
	auth     *Authority
	origin   string
	inflight inflight
}

// NewLocalTransport returns a transport that submits to auth on behalf of origin.
func NewLocalTransport(auth *Authority, origin string) *LocalTransport {
	return &LocalTransport{auth: auth, origin: origin}
}

// Send implements Transport. Authority errors are returned unchanged.
// Cancelling ctx abandons the wait but leaves the request queued.
func (t *LocalTransport) Send(ctx context.Context, id uint64, p Payload) (Result, error) {
	t.inflight.add(id)
	defer t.inflight.remove(id)

	pending, err := t.auth.Submit(ctx, t.origin, p)
	if err != nil {
		return nil, err
	}
	return pending.Wait(ctx)
}
