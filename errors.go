package signbroker

import (
	"errors"
	"fmt"

	"github.com/vaultsandbox/signbroker-go/internal/brokererr"
)

// Sentinel errors for errors.Is() checks
var (
	// ErrStaleRequest is returned when a decision targets a request that is no
	// longer pending: it was already approved, rejected or never existed.
	ErrStaleRequest = brokererr.ErrStaleRequest

	// ErrWrongSecret is returned when the secret does not unlock the account.
	ErrWrongSecret = brokererr.ErrWrongSecret

	// ErrInvalidAddress is returned when an address is malformed or unknown.
	ErrInvalidAddress = brokererr.ErrInvalidAddress

	// ErrCancelled is the outcome delivered to the caller of a rejected request.
	ErrCancelled = brokererr.ErrCancelled

	// ErrTerminated is the outcome delivered to callers whose requests were
	// still pending when the authority shut down.
	ErrTerminated = brokererr.ErrTerminated

	// ErrAuthorityClosed is returned when operations are attempted on a closed authority.
	ErrAuthorityClosed = brokererr.ErrAuthorityClosed

	// ErrQueueFull is returned when the pending queue is at capacity.
	ErrQueueFull = brokererr.ErrQueueFull

	// ErrInvalidPayload is returned when a payload fails validation.
	ErrInvalidPayload = brokererr.ErrInvalidPayload

	// ErrUnknownKind is returned for request kinds the broker does not handle.
	ErrUnknownKind = brokererr.ErrUnknownKind

	// ErrTransportClosed is returned for calls on a closed transport, and
	// for calls still in flight when it closes.
	ErrTransportClosed = errors.New("transport has been closed")
)

// SignBrokerError is implemented by all typed errors in this module.
type SignBrokerError interface {
	error
	SignBrokerError() // marker method
}

// RemoteError is an error decoded from a remote authority. errors.Is matches
// it against the sentinel for its code.
type RemoteError = brokererr.RemoteError

// DecisionError reports an approval whose privileged operation failed.
// The request stays queued and can be approved again or rejected.
type DecisionError struct {
	ID   uint64
	Kind Kind
	Err  error
}

func (e *DecisionError) Error() string {
	return fmt.Sprintf("approve request %d (%s): %v", e.ID, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *DecisionError) Unwrap() error {
	return e.Err
}

// SignBrokerError implements the SignBrokerError interface.
func (e *DecisionError) SignBrokerError() {}

// TransportError reports a caller-side failure to deliver a request or to
// receive its outcome.
type TransportError struct {
	Kind Kind
	ID   uint64
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s request %d: %v", e.Kind, e.ID, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// SignBrokerError implements the SignBrokerError interface.
func (e *TransportError) SignBrokerError() {}
