// Package webhook sends side-effect commands to the game overlay endpoint.
//
// The overlay accepts a plain POST with two query parameters: "action" names
// the command family (mounts, minions, emotes, ...) and "text" carries the
// raw spoken request. The response body is a short human-readable line that
// gets spoken back to the user.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultTimeout = 10 * time.Second

	// maxReplyBytes bounds the response body read; overlay replies are one
	// short sentence.
	maxReplyBytes = 4 << 10
)

// Sender is the webhook call surface. Wrappers (circuit breaking) and test
// doubles implement it alongside [Client].
type Sender interface {
	Send(ctx context.Context, action, text string) (string, error)
}

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithTimeout sets the per-request HTTP timeout. Default: 10 s.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// Client posts commands to the overlay webhook. Safe for concurrent use.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// New creates a Client targeting the overlay webhook at endpoint
// (e.g. "http://localhost:8400/hook").
func New(endpoint string, opts ...Option) (*Client, error) {
	if endpoint == "" {
		return nil, errors.New("webhook: endpoint must not be empty")
	}
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("webhook: invalid endpoint: %w", err)
	}
	c := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Send posts one command and returns the overlay's reply line.
func (c *Client) Send(ctx context.Context, action, text string) (string, error) {
	if strings.TrimSpace(action) == "" {
		return "", errors.New("webhook: action must not be empty")
	}

	q := url.Values{}
	q.Set("action", action)
	q.Set("text", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("webhook: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("webhook: POST %s: %w", action, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("webhook: POST %s returned status %d", action, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return "", fmt.Errorf("webhook: read response: %w", err)
	}
	return strings.TrimSpace(string(body)), nil
}
