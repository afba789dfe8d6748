package signbroker

import (
	"sort"
	"sync"
	"time"
)

// Request is one pending privileged operation. A Request is immutable once
// enqueued: every Request handed out of the queue carries its own copy of
// the payload.
type Request struct {
	// ID is unique and monotonically increasing within one Authority.
	ID uint64
	// Origin identifies the caller that submitted the request.
	Origin    string
	Kind      Kind
	Payload   Payload
	CreatedAt time.Time
}

// Account returns the address whose secret unlocks the request.
func (r *Request) Account() string {
	return r.Payload.Account()
}

func (r *Request) clone() Request {
	c := *r
	if r.Payload != nil {
		c.Payload = clonePayload(r.Payload)
	}
	return c
}

// Queue is the insertion-ordered set of pending requests.
// It is safe for concurrent use.
type Queue struct {
	mu     sync.Mutex
	items  []*Request
	nextID uint64
	max    int
}

// NewQueue returns an empty queue holding at most max requests. A max of
// zero or less means unbounded.
func NewQueue(max int) *Queue {
	return &Queue{max: max}
}

// Enqueue assigns the next id and appends a request. It fails with
// ErrQueueFull at capacity; requests are never dropped.
func (q *Queue) Enqueue(origin string, payload Payload, createdAt time.Time) (*Request, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.max > 0 && len(q.items) >= q.max {
		return nil, ErrQueueFull
	}

	q.nextID++
	req := &Request{
		ID:        q.nextID,
		Origin:    origin,
		Kind:      payload.Kind(),
		Payload:   payload,
		CreatedAt: createdAt,
	}
	q.items = append(q.items, req)
	return req, nil
}

// Get returns a copy of the pending request with the given id.
func (q *Queue) Get(id uint64) (*Request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if i := q.indexLocked(id); i >= 0 {
		c := q.items[i].clone()
		return &c, true
	}
	return nil, false
}

// Remove deletes and returns the request with the given id.
func (q *Queue) Remove(id uint64) (*Request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := q.indexLocked(id)
	if i < 0 {
		return nil, false
	}
	req := q.items[i]
	q.items = append(q.items[:i], q.items[i+1:]...)
	return req, true
}

// List returns a snapshot of the pending requests in arrival order.
func (q *Queue) List() []Request {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Request, len(q.items))
	for i, r := range q.items {
		out[i] = r.clone()
	}
	return out
}

// Len returns the number of pending requests.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// drain removes and returns every pending request.
func (q *Queue) drain() []*Request {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.items
	q.items = nil
	return items
}

// Requests are appended with increasing ids, so the slice is sorted.
func (q *Queue) indexLocked(id uint64) int {
	i := sort.Search(len(q.items), func(i int) bool { return q.items[i].ID >= id })
	if i < len(q.items) && q.items[i].ID == id {
		return i
	}
	return -1
}
