package signbroker

import (
	"context"
	"fmt"
)

// Review is a reviewer's session on an Authority: a cursor over the pending
// queue plus decisions on the request under it. The cursor is re-clamped on
// every queue change. It is safe for concurrent use.
type Review struct {
	auth        *Authority
	nav         *Navigator
	unsubscribe func()
}

// NewReview starts a review session. Call Close to stop tracking the queue.
func NewReview(auth *Authority) *Review {
	r := &Review{
		auth: auth,
		nav:  NewNavigator(),
	}
	r.nav.Sync(auth.Len())
	r.unsubscribe = auth.Subscribe(func(Event) {
		r.nav.Sync(auth.Len())
	})
	return r
}

// Close stops the session.
func (r *Review) Close() {
	r.unsubscribe()
}

// Pending returns the queue in arrival order.
func (r *Review) Pending() []Request {
	return r.auth.Pending()
}

// Current returns the request under the cursor.
func (r *Review) Current() (Request, bool) {
	return r.nav.Select(r.auth.Pending())
}

// Snapshot returns one snapshot of the queue together with the cursor index
// into it, or -1 when the queue is empty.
func (r *Review) Snapshot() ([]Request, int) {
	list := r.auth.Pending()
	i, ok := r.nav.Index(len(list))
	if !ok {
		return list, -1
	}
	return list, i
}

// Position returns the zero-based cursor index and the queue length.
// The index is -1 when the queue is empty.
func (r *Review) Position() (int, int) {
	n := r.auth.Len()
	i, _ := r.nav.Index(n)
	return i, n
}

// Navigate moves the cursor and returns the request now under it.
func (r *Review) Navigate(a Action) (Request, bool) {
	list := r.auth.Pending()
	r.nav.Sync(len(list))
	i, _ := r.nav.Move(a)
	// the queue may have changed since the snapshot
	i, ok := Clamp(i, len(list))
	if !ok {
		return Request{}, false
	}
	return list[i], true
}

// Approve approves the request under the cursor with secret.
func (r *Review) Approve(ctx context.Context, secret string) (Result, error) {
	cur, ok := r.Current()
	if !ok {
		return nil, fmt.Errorf("%w: queue is empty", ErrStaleRequest)
	}
	return r.auth.Decide(ctx, cur.ID, Approve(secret))
}

// Reject rejects the request under the cursor.
func (r *Review) Reject(ctx context.Context) error {
	cur, ok := r.Current()
	if !ok {
		return fmt.Errorf("%w: queue is empty", ErrStaleRequest)
	}
	_, err := r.auth.Decide(ctx, cur.ID, Reject())
	return err
}
