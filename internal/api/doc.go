// Package api is the HTTP client for the review API of a signbrokerd daemon.
//
// Every request carries the review token as a bearer credential. Idempotent
// GET requests are retried with exponential backoff and jitter on 408, 429
// and 5xx answers, honoring Retry-After; approvals, rejections and cursor
// moves are sent exactly once.
//
// Error answers are RFC 7807 problem documents. They decode into *APIError,
// which unwraps to the broker error named by the document's code:
//
//	if errors.Is(err, signbroker.ErrWrongSecret) {
//	    // ask again
//	}
package api
