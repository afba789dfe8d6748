package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vaultsandbox/signbroker-go/internal/wire"
)

// Client talks to the review API of a signbrokerd daemon.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	retry      *RetryConfig
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the number of retries for idempotent requests.
func WithRetries(n int) Option {
	return func(c *Client) {
		c.retry.MaxRetries = n
	}
}

// WithRetryConfig replaces the whole retry policy.
func WithRetryConfig(cfg *RetryConfig) Option {
	return func(c *Client) {
		c.retry = cfg
	}
}

// New creates a review client for the daemon at baseURL.
func New(baseURL, token string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("base URL is required")
	}
	if token == "" {
		return nil, errors.New("review token is required")
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retry:      DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Do sends a request and decodes the JSON answer into result. GET requests
// are retried per the retry policy; decisions are never retried because the
// daemon may already have acted on them.
func (c *Client) Do(ctx context.Context, method, path string, body, result any) error {
	var data []byte
	if body != nil {
		var err error
		data, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
	}

	retries := 0
	if method == http.MethodGet {
		retries = c.retry.MaxRetries
	}

	for attempt := 0; ; attempt++ {
		resp, err := c.send(ctx, method, path, data)
		if err != nil {
			if ctx.Err() != nil || attempt >= retries {
				return &NetworkError{Err: err, URL: c.baseURL + path, Attempt: attempt}
			}
			if werr := c.retry.Wait(ctx, attempt, 0); werr != nil {
				return werr
			}
			continue
		}

		if resp.StatusCode >= 400 && attempt < retries && c.retry.ShouldRetry(attempt, resp.StatusCode) {
			retryAfter := parseRetryAfter(resp.Header)
			drain(resp)
			if werr := c.retry.Wait(ctx, attempt, retryAfter); werr != nil {
				return werr
			}
			continue
		}
		return c.handle(resp, result)
	}
}

func (c *Client) send(ctx context.Context, method, path string, data []byte) (*http.Response, error) {
	var bodyReader io.Reader
	if data != nil {
		bodyReader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.httpClient.Do(req)
}

func (c *Client) handle(resp *http.Response, result any) error {
	defer drain(resp)

	if resp.StatusCode >= 400 {
		return parseErrorResponse(resp)
	}
	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}

func parseErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		RequestID:  resp.Header.Get("X-Request-ID"),
	}

	var p wire.Problem
	if err := json.Unmarshal(body, &p); err == nil && (p.Title != "" || p.Code != "") {
		apiErr.Title = p.Title
		apiErr.Detail = p.Detail
		apiErr.Code = p.Code
		return apiErr
	}
	apiErr.Detail = strings.TrimSpace(string(body))
	return apiErr
}
