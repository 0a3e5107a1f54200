// Package ollama implements llm.Provider against a local Ollama server using
// its native JSON API: POST /api/chat for conversation and POST /api/generate
// for deterministic single-prompt completions.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/miravoice/mira/pkg/provider/llm"
)

// Compile-time interface assertion.
var _ llm.Provider = (*Client)(nil)

const (
	defaultBaseURL = "http://localhost:11434"
	defaultModel   = "llama3.1"
	defaultTimeout = 60 * time.Second

	chatEndpoint     = "/api/chat"
	generateEndpoint = "/api/generate"
)

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithModel selects the model tag (e.g. "llama3.1", "mistral"). Default:
// "llama3.1".
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// WithTimeout sets the per-request HTTP timeout. Default: 60 s. Callers pass
// a shorter context deadline for steady-state turns; this is the outer bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// Client talks to an Ollama server. Safe for concurrent use.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// New creates a Client. An empty baseURL selects the local default
// ("http://localhost:11434").
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      defaultModel,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// chatRequest is the JSON body sent to POST /api/chat.
type chatRequest struct {
	Model    string        `json:"model"`
	Stream   bool          `json:"stream"`
	Messages []llm.Message `json:"messages"`
}

// chatResponse is the JSON body returned by POST /api/chat (stream:false).
type chatResponse struct {
	Message llm.Message `json:"message"`
	Done    bool        `json:"done"`
	Error   string      `json:"error"`
}

// generateRequest is the JSON body sent to POST /api/generate.
type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
}

// generateResponse is the JSON body returned by POST /api/generate.
type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error"`
}

// Chat sends the full history as a non-streaming chat completion.
func (c *Client) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	if len(messages) == 0 {
		return "", errors.New("ollama: messages must not be empty")
	}

	var decoded chatResponse
	err := c.post(ctx, chatEndpoint, chatRequest{
		Model:    c.model,
		Stream:   false,
		Messages: messages,
	}, &decoded)
	if err != nil {
		return "", err
	}
	if decoded.Error != "" {
		return "", fmt.Errorf("ollama: chat error: %s", decoded.Error)
	}
	return decoded.Message.Content, nil
}

// Generate runs a zero-temperature completion over prompt.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", errors.New("ollama: prompt must not be empty")
	}

	var decoded generateResponse
	err := c.post(ctx, generateEndpoint, generateRequest{
		Model:   c.model,
		Prompt:  prompt,
		Stream:  false,
		Options: generateOptions{Temperature: 0},
	}, &decoded)
	if err != nil {
		return "", err
	}
	if decoded.Error != "" {
		return "", fmt.Errorf("ollama: generate error: %s", decoded.Error)
	}
	return decoded.Response, nil
}

// post marshals payload, performs the request, and decodes the JSON response
// into out.
func (c *Client) post(ctx context.Context, endpoint string, payload, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("ollama: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("ollama: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama: POST %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama: POST %s returned status %d", endpoint, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("ollama: decode response: %w", err)
	}
	return nil
}
