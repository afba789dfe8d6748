// Package wire defines the JSON documents exchanged between callers, the
// authority daemon and review clients.
package wire

import (
	"encoding/json"
	"time"

	"github.com/vaultsandbox/signbroker-go/internal/brokererr"
)

// Message is a caller request sent over the transport.
type Message struct {
	ID      uint64          `json:"id"`
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// Response answers exactly one Message. Either Result or Error is set.
type Response struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`
}

// Error is the wire form of a broker error.
type Error struct {
	Code    brokererr.Code `json:"code"`
	Message string         `json:"message"`
}

// NewError converts err to its wire form.
func NewError(err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: brokererr.CodeOf(err), Message: err.Error()}
}

// Err converts the wire form back into an error that matches the sentinel
// for its code.
func (e *Error) Err() error {
	if e == nil {
		return nil
	}
	return brokererr.FromWire(e.Code, e.Message)
}

// RequestSummary describes a pending request to a reviewer.
type RequestSummary struct {
	ID        uint64          `json:"id"`
	Origin    string          `json:"origin"`
	Kind      string          `json:"kind"`
	Account   string          `json:"account"`
	CreatedAt time.Time       `json:"createdAt"`
	Payload   json.RawMessage `json:"payload"`
}

// ApproveRequest is the body of an approval.
type ApproveRequest struct {
	Secret string `json:"secret"`
}

// NavigateRequest is the body of a cursor move: "next" or "previous".
type NavigateRequest struct {
	Direction string `json:"direction"`
}

// ReviewState is the server-side review cursor. Index is -1 and Request nil
// when the queue is empty.
type ReviewState struct {
	Index   int             `json:"index"`
	Total   int             `json:"total"`
	Request *RequestSummary `json:"request,omitempty"`
}

// DecisionResponse reports the outcome of a decision.
type DecisionResponse struct {
	ID      uint64          `json:"id"`
	Outcome string          `json:"outcome"`
	Result  json.RawMessage `json:"result,omitempty"`
}

// Event is one queue change as streamed to review clients.
type Event struct {
	Type    string          `json:"type"`
	Request *RequestSummary `json:"request,omitempty"`
	Outcome string          `json:"outcome,omitempty"`
	Reason  string          `json:"reason,omitempty"`
	Pending int             `json:"pending"`
}

// Problem is an RFC 7807 problem document extended with the broker error code.
type Problem struct {
	Type   string         `json:"type"`
	Title  string         `json:"title"`
	Status int            `json:"status"`
	Detail string         `json:"detail,omitempty"`
	Code   brokererr.Code `json:"code,omitempty"`
}

// ProblemContentType is the media type of a Problem.
const ProblemContentType = "application/problem+json"

// Err converts a problem into an error. Problems carrying a broker code match
// the corresponding sentinel.
func (p *Problem) Err() error {
	if p.Code != "" {
		return &brokererr.RemoteError{Code: p.Code, Message: p.Detail}
	}
	return nil
}
