package signbroker

import (
	"context"
	"sync"
	"sync/atomic"
)

// EventType classifies a change to the pending queue.
type EventType string

const (
	// EventEnqueued is emitted after a request joins the queue.
	EventEnqueued EventType = "enqueued"
	// EventResolved is emitted after a request leaves the queue.
	EventResolved EventType = "resolved"
	// EventDecisionFailed is emitted when an approval's privileged operation
	// failed and the request stays queued.
	EventDecisionFailed EventType = "decision_failed"
)

// Event describes one change to the pending queue.
type Event struct {
	Type    EventType
	Request Request
	// Outcome is set for EventResolved.
	Outcome Outcome
	// Reason is the error code for EventDecisionFailed.
	Reason string
	// Pending is the queue length right after the change.
	Pending int
}

// subscription represents an active change-event subscription.
type subscription struct {
	id       uint64
	callback func(Event)
	active   atomic.Bool
}

// subscriptionManager handles subscriptions with safe lifecycle management.
// It ensures callbacks are never invoked after unsubscription completes.
type subscriptionManager struct {
	mu     sync.RWMutex
	subs   map[uint64]*subscription
	nextID atomic.Uint64
}

func newSubscriptionManager() *subscriptionManager {
	return &subscriptionManager{
		subs: make(map[uint64]*subscription),
	}
}

// subscribe registers a callback. The callback is invoked synchronously on
// the goroutine that changed the queue, so it must not block.
// Returns an unsubscribe function that must be called to clean up.
func (m *subscriptionManager) subscribe(callback func(Event)) func() {
	id := m.nextID.Add(1)

	sub := &subscription{
		id:       id,
		callback: callback,
	}
	sub.active.Store(true)

	m.mu.Lock()
	m.subs[id] = sub
	m.mu.Unlock()

	return func() {
		m.unsubscribe(id)
	}
}

// unsubscribe removes a subscription. Safe to call multiple times.
func (m *subscriptionManager) unsubscribe(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sub, ok := m.subs[id]; ok {
		sub.active.Store(false) // Mark inactive before removing
		delete(m.subs, id)
	}
}

// notify calls all registered callbacks after releasing the read lock.
func (m *subscriptionManager) notify(ev Event) {
	m.mu.RLock()
	if len(m.subs) == 0 {
		m.mu.RUnlock()
		return
	}

	subs := make([]*subscription, 0, len(m.subs))
	for _, sub := range m.subs {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	for _, sub := range subs {
		if sub.active.Load() {
			e := ev
			e.Request = ev.Request.clone()
			sub.callback(e)
		}
	}
}

// clear removes all subscriptions. Called from Authority.Close.
func (m *subscriptionManager) clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, sub := range m.subs {
		sub.active.Store(false)
	}
	m.subs = make(map[uint64]*subscription)
}

// Subscribe registers fn for every queue change until the returned function
// is called. fn runs synchronously and must not block or call back into the
// Authority's mutating methods.
func (a *Authority) Subscribe(fn func(Event)) func() {
	return a.subs.subscribe(fn)
}

// Watch returns a channel that receives queue changes until ctx is done.
// Events are dropped when the buffer is full; consumers that must not miss a
// change should re-read Pending after each event.
// The channel is not closed when the context is cancelled; use a select
// on ctx.Done() to detect cancellation.
func (a *Authority) Watch(ctx context.Context) <-chan Event {
	ch := make(chan Event, 16)

	unsubscribe := a.subs.subscribe(func(ev Event) {
		select {
		case ch <- ev:
		default:
		}
	})

	// ch is never closed so an in-flight callback cannot send on a closed channel.
	go func() {
		<-ctx.Done()
		unsubscribe()
	}()

	return ch
}
