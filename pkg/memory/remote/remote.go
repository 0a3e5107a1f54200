// Package remote implements memory.Store against the memory sidecar's JSON
// API: POST /query with a keyword list and POST /save with a single fact.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/miravoice/mira/pkg/memory"
)

// Compile-time interface assertion.
var _ memory.Store = (*Client)(nil)

const (
	defaultTimeout = 5 * time.Second

	queryEndpoint = "/query"
	saveEndpoint  = "/save"
)

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithTimeout sets the per-request HTTP timeout. Default: 5 s. Memory lookups
// sit on the turn path, so the budget is deliberately tight.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// Client talks to the memory sidecar. Safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Client targeting the memory sidecar at baseURL
// (e.g. "http://localhost:8300").
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("memory remote: baseURL must not be empty")
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// queryRequest is the JSON body sent to POST /query.
type queryRequest struct {
	Keywords []string `json:"keywords"`
}

// queryResponse is the JSON body returned by POST /query.
type queryResponse struct {
	Memories []memory.Fact `json:"memories"`
}

// Query retrieves facts matching the keywords. A nil or empty keyword list
// returns no facts without hitting the sidecar.
func (c *Client) Query(ctx context.Context, keywords []string) ([]memory.Fact, error) {
	if len(keywords) == 0 {
		return nil, nil
	}

	var decoded queryResponse
	if err := c.post(ctx, queryEndpoint, queryRequest{Keywords: keywords}, &decoded); err != nil {
		return nil, err
	}
	return decoded.Memories, nil
}

// Save persists one fact.
func (c *Client) Save(ctx context.Context, fact memory.Fact) error {
	if strings.TrimSpace(fact.Text) == "" {
		return errors.New("memory remote: fact text must not be empty")
	}
	return c.post(ctx, saveEndpoint, fact, nil)
}

// post marshals payload, performs the request, and optionally decodes the
// JSON response into out.
func (c *Client) post(ctx context.Context, endpoint string, payload, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("memory remote: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("memory remote: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("memory remote: POST %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("memory remote: POST %s returned status %d", endpoint, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("memory remote: decode response: %w", err)
	}
	return nil
}
