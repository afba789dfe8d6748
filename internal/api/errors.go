package api

import (
	"errors"
	"fmt"

	"github.com/vaultsandbox/signbroker-go/internal/brokererr"
)

// ErrUnauthorized indicates a missing or wrong review token.
var ErrUnauthorized = errors.New("review token rejected")

// APIError is an HTTP error answered by the daemon. When the problem document
// carries a broker error code, the error matches that code's sentinel.
type APIError struct {
	StatusCode int
	Title      string
	Detail     string
	Code       brokererr.Code
	RequestID  string
}

func (e *APIError) Error() string {
	msg := e.Detail
	if msg == "" {
		msg = e.Title
	}
	s := fmt.Sprintf("API error %d", e.StatusCode)
	if msg != "" {
		s += ": " + msg
	}
	if e.RequestID != "" {
		s += " (request_id: " + e.RequestID + ")"
	}
	return s
}

// SignBrokerError marks APIError as part of the broker's error taxonomy.
func (e *APIError) SignBrokerError() {}

// Is implements errors.Is for sentinel error matching.
func (e *APIError) Is(target error) bool {
	if e.StatusCode == 401 && target == ErrUnauthorized {
		return true
	}
	return false
}

// Unwrap exposes the broker error carried by the problem document.
func (e *APIError) Unwrap() error {
	if e.Code == "" {
		return nil
	}
	return &brokererr.RemoteError{Code: e.Code, Message: e.Detail}
}

// NetworkError represents a network-level failure.
type NetworkError struct {
	Err     error
	URL     string
	Attempt int
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error after %d attempt(s): %v", e.Attempt+1, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// SignBrokerError marks NetworkError as part of the broker's error taxonomy.
func (e *NetworkError) SignBrokerError() {}
