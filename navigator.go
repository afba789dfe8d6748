package signbroker

import (
	"fmt"
	"sync"
)

// Action moves the review cursor.
type Action int

const (
	ActionNext Action = iota + 1
	ActionPrevious
)

func (a Action) String() string {
	switch a {
	case ActionNext:
		return "next"
	case ActionPrevious:
		return "previous"
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// ParseAction parses "next" or "previous".
func ParseAction(s string) (Action, error) {
	switch s {
	case "next":
		return ActionNext, nil
	case "previous":
		return ActionPrevious, nil
	}
	return 0, fmt.Errorf("unknown navigation action %q", s)
}

// Clamp maps a cursor onto a list of the given length. A cursor below zero
// selects the first element and one past the end selects the last. An empty
// list parks the cursor at -1 and reports false.
func Clamp(cursor, length int) (int, bool) {
	if length <= 0 {
		return -1, false
	}
	if cursor < 0 {
		return 0, true
	}
	if cursor >= length {
		return length - 1, true
	}
	return cursor, true
}

// Step applies a without clamping.
func Step(cursor int, a Action) int {
	switch a {
	case ActionNext:
		return cursor + 1
	case ActionPrevious:
		return cursor - 1
	}
	return cursor
}

// Navigator is a review cursor over a list whose length changes underneath it.
// Whenever the list is non-empty the cursor is a valid index.
// It is safe for concurrent use.
type Navigator struct {
	mu     sync.Mutex
	cursor int
	length int
}

// NewNavigator returns a parked cursor.
func NewNavigator() *Navigator {
	return &Navigator{cursor: -1}
}

// Next moves to the following element, stopping at the last.
//
// Moves clamp against the last synced length as they happen, so a Next past
// the end followed by a Previous lands on the second-to-last element rather
// than on the last. Reads still re-clamp against the current length.
func (n *Navigator) Next() (int, bool) {
	return n.move(ActionNext)
}

// Previous moves to the preceding element, stopping at the first.
func (n *Navigator) Previous() (int, bool) {
	return n.move(ActionPrevious)
}

// Move applies a.
func (n *Navigator) Move(a Action) (int, bool) {
	return n.move(a)
}

func (n *Navigator) move(a Action) (int, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.length == 0 {
		return -1, false
	}
	var ok bool
	n.cursor, ok = Clamp(Step(n.cursor, a), n.length)
	return n.cursor, ok
}

// Sync records a new list length and re-clamps the cursor. The cursor keeps
// its index while that index is valid.
func (n *Navigator) Sync(length int) (int, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.length = max(length, 0)
	var ok bool
	n.cursor, ok = Clamp(n.cursor, n.length)
	return n.cursor, ok
}

// Index returns the cursor for a list of the given length, clamping first.
func (n *Navigator) Index(length int) (int, bool) {
	return n.Sync(length)
}

// Select returns the element under the cursor.
func (n *Navigator) Select(list []Request) (Request, bool) {
	i, ok := n.Sync(len(list))
	if !ok {
		return Request{}, false
	}
	return list[i], true
}
