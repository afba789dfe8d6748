package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/vaultsandbox/signbroker-go/internal/wire"
)

// Health reports the number of pending requests. It needs no token on the
// server side but sends one anyway.
func (c *Client) Health(ctx context.Context) (int, error) {
	var result struct {
		Status  string `json:"status"`
		Pending int    `json:"pending"`
	}
	if err := c.Do(ctx, http.MethodGet, "/healthz", nil, &result); err != nil {
		return 0, err
	}
	return result.Pending, nil
}

// ListPending returns the queue in arrival order.
func (c *Client) ListPending(ctx context.Context) ([]wire.RequestSummary, error) {
	var result []wire.RequestSummary
	if err := c.Do(ctx, http.MethodGet, "/v1/pending", nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// GetPending returns one pending request.
func (c *Client) GetPending(ctx context.Context, id uint64) (*wire.RequestSummary, error) {
	var result wire.RequestSummary
	if err := c.Do(ctx, http.MethodGet, fmt.Sprintf("/v1/pending/%d", id), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Approve approves request id with the account secret.
func (c *Client) Approve(ctx context.Context, id uint64, secret string) (*wire.DecisionResponse, error) {
	var result wire.DecisionResponse
	body := &wire.ApproveRequest{Secret: secret}
	if err := c.Do(ctx, http.MethodPost, fmt.Sprintf("/v1/pending/%d/approve", id), body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Reject rejects request id.
func (c *Client) Reject(ctx context.Context, id uint64) error {
	return c.Do(ctx, http.MethodPost, fmt.Sprintf("/v1/pending/%d/reject", id), nil, nil)
}

// Review returns the server-side review cursor.
func (c *Client) Review(ctx context.Context) (*wire.ReviewState, error) {
	var result wire.ReviewState
	if err := c.Do(ctx, http.MethodGet, "/v1/review", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Navigate moves the review cursor; direction is "next" or "previous".
func (c *Client) Navigate(ctx context.Context, direction string) (*wire.ReviewState, error) {
	var result wire.ReviewState
	body := &wire.NavigateRequest{Direction: direction}
	if err := c.Do(ctx, http.MethodPost, "/v1/review/navigate", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// OpenEventStream opens the server-sent event stream. The caller owns the
// response body.
func (c *Client) OpenEventStream(ctx context.Context) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/events", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	// the stream is long-lived, so the client timeout must not apply
	stream := *c.httpClient
	stream.Timeout = 0

	resp, err := stream.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err, URL: req.URL.String()}
	}
	if resp.StatusCode != http.StatusOK {
		defer drain(resp)
		return nil, parseErrorResponse(resp)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		drain(resp)
		return nil, fmt.Errorf("unexpected content type %q", ct)
	}
	return resp, nil
}
