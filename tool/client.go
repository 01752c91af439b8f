package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yazdeszhivu/cityagent/log"
)

// Client is the shared HTTP client for city-data services. Every request
// gets a per-call timeout; 5xx and network failures are retried with a short
// backoff, 4xx are not.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
	logger     log.Logger
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithTimeout sets the per-call timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithMaxRetries caps retries for retryable failures.
func WithMaxRetries(maxRetries int) ClientOption {
	return func(c *Client) {
		c.maxRetries = maxRetries
	}
}

// WithBackoff sets the base delay between retries.
func WithBackoff(backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.backoff = backoff
	}
}

// WithLogger sets the request logger.
func WithLogger(logger log.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a client for one service base URL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		timeout:    10 * time.Second,
		maxRetries: 2,
		backoff:    200 * time.Millisecond,
		logger:     &log.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetJSON issues a GET to baseURL+path and decodes the JSON response into
// out. The tool name only labels errors.
func (c *Client) GetJSON(ctx context.Context, toolName, path string, params url.Values, out any) error {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return &InvocationError{Tool: toolName, Err: ctx.Err()}
			case <-time.After(c.backoff * time.Duration(attempt)):
			}
			c.logger.Debug("tool %s: retrying %s (attempt %d)", toolName, path, attempt+1)
		}

		retryable, err := c.doOnce(ctx, reqURL, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return &InvocationError{Tool: toolName, Err: lastErr}
}

// doOnce performs a single request. The bool reports whether the failure is
// retryable.
func (c *Client) doOnce(ctx context.Context, reqURL string, out any) (bool, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, reqURL, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return true, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return true, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode >= 500:
		return true, fmt.Errorf("status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return false, fmt.Errorf("status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	return false, nil
}
