// Package brokererr provides the shared error taxonomy for the signing broker.
//
// The root package re-exports every sentinel so callers never import this
// package directly. Collaborators that cannot import the root package (the
// keyring, the HTTP plumbing) use these values so errors.Is works across the
// whole module.
package brokererr

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is() checks
var (
	// ErrStaleRequest is returned when a decision targets a request that is no
	// longer pending.
	ErrStaleRequest = errors.New("request is no longer pending")

	// ErrWrongSecret is returned when the supplied secret does not unlock the
	// account's key material.
	ErrWrongSecret = errors.New("wrong secret")

	// ErrInvalidAddress is returned when an account address is malformed or unknown.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrCancelled is the outcome of a request the reviewer rejected.
	ErrCancelled = errors.New("request cancelled")

	// ErrTerminated is the outcome of a request still pending when the authority shut down.
	ErrTerminated = errors.New("authority terminated")

	// ErrAuthorityClosed is returned for operations attempted on a closed authority.
	ErrAuthorityClosed = errors.New("authority has been closed")

	// ErrQueueFull is returned when the pending queue is at capacity.
	ErrQueueFull = errors.New("pending queue is full")

	// ErrInvalidPayload is returned when a request payload fails validation.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrUnknownKind is returned for request kinds the broker does not handle.
	ErrUnknownKind = errors.New("unknown request kind")
)

// Code is the stable wire identifier of an error in the taxonomy.
type Code string

const (
	CodeStaleRequest    Code = "stale_request"
	CodeWrongSecret     Code = "wrong_secret"
	CodeInvalidAddress  Code = "invalid_address"
	CodeCancelled       Code = "cancelled"
	CodeTerminated      Code = "terminated"
	CodeAuthorityClosed Code = "authority_closed"
	CodeQueueFull       Code = "queue_full"
	CodeInvalidPayload  Code = "invalid_payload"
	CodeUnknownKind     Code = "unknown_kind"
	CodeInternal        Code = "internal"
)

var codes = []struct {
	code Code
	err  error
}{
	{CodeStaleRequest, ErrStaleRequest},
	{CodeWrongSecret, ErrWrongSecret},
	{CodeInvalidAddress, ErrInvalidAddress},
	{CodeCancelled, ErrCancelled},
	{CodeTerminated, ErrTerminated},
	{CodeAuthorityClosed, ErrAuthorityClosed},
	{CodeQueueFull, ErrQueueFull},
	{CodeInvalidPayload, ErrInvalidPayload},
	{CodeUnknownKind, ErrUnknownKind},
}

// CodeOf returns the wire code for err, or CodeInternal if err is not part of
// the taxonomy.
func CodeOf(err error) Code {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}

// Sentinel returns the sentinel error for a wire code, or nil for unknown codes.
func Sentinel(code Code) error {
	for _, c := range codes {
		if c.code == code {
			return c.err
		}
	}
	return nil
}

// RemoteError is an error decoded from the wire. It matches the sentinel for
// its code so callers can use errors.Is regardless of where the error arose.
type RemoteError struct {
	Code    Code
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return string(e.Code)
}

// SignBrokerError marks RemoteError as part of the broker's error taxonomy.
func (e *RemoteError) SignBrokerError() {}

// Is implements errors.Is for sentinel error matching.
func (e *RemoteError) Is(target error) bool {
	sentinel := Sentinel(e.Code)
	return sentinel != nil && target == sentinel
}

// FromWire rebuilds an error from its wire form.
func FromWire(code Code, message string) error {
	if code == "" && message == "" {
		return nil
	}
	return &RemoteError{Code: code, Message: message}
}
