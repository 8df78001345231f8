// Package api is the HTTP client for the portal backend endpoints.
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

	"medportal/internal/logging"
)

// ErrNetwork wraps transport failures (connection refused, timeouts, reset).
var ErrNetwork = errors.New("network failure")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	if body == "" {
		return fmt.Sprintf("%s: status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Endpoint, e.StatusCode, body)
}

// Client talks to the portal backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a client for baseURL. A non-positive timeout disables the
// client-side deadline.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// do sends one request and returns the body of a 2xx response.
func (c *Client) do(ctx context.Context, method, endpoint, token string, in any) ([]byte, error) {
	timer := logging.StartTimer(logging.CategoryAPI, method+" "+endpoint)
	defer timer.Stop()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("%s: marshal request: %w", endpoint, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", endpoint, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json, text/plain")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logging.Get(logging.CategoryAPI).Warn("%s %s failed: %v", method, endpoint, err)
		return nil, fmt.Errorf("%s: %w: %w", endpoint, ErrNetwork, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: read response: %w", endpoint, ErrNetwork, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logging.Get(logging.CategoryAPI).Warn("%s %s returned %d", method, endpoint, resp.StatusCode)
		return nil, &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: string(data)}
	}
	logging.APIDebug("%s %s -> %d (%d bytes)", method, endpoint, resp.StatusCode, len(data))
	return data, nil
}
