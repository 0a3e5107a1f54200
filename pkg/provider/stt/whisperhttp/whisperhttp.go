// Package whisperhttp implements stt.Transcriber against the local
// faster-whisper sidecar: a multipart WAV upload to POST /stt answered with
// a small JSON body.
package whisperhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/miravoice/mira/pkg/provider/stt"
)

// Compile-time interface assertion.
var _ stt.Transcriber = (*Client)(nil)

const (
	defaultTimeout = 30 * time.Second
	sttEndpoint    = "/stt"

	// uploadField and uploadFilename are what the FastAPI handler expects.
	uploadField    = "audio"
	uploadFilename = "utterance.wav"
)

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithTimeout sets the per-request HTTP timeout. Default: 30 s.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client entirely. Useful in
// tests that need a custom transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// Client talks to a whisper transcription sidecar. Safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Client targeting the sidecar at baseURL
// (e.g. "http://localhost:8300").
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("whisperhttp: baseURL must not be empty")
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

// sttResponse is the JSON body returned by POST /stt.
type sttResponse struct {
	Text string `json:"text"`
	Lang string `json:"lang"`
}

// Transcribe uploads wavData as a multipart form and returns the transcript.
func (c *Client) Transcribe(ctx context.Context, wavData []byte) (stt.Transcript, error) {
	if len(wavData) == 0 {
		return stt.Transcript{}, errors.New("whisperhttp: empty audio payload")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(uploadField, uploadFilename)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("whisperhttp: create form file: %w", err)
	}
	if _, err := fw.Write(wavData); err != nil {
		return stt.Transcript{}, fmt.Errorf("whisperhttp: write form file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return stt.Transcript{}, fmt.Errorf("whisperhttp: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+sttEndpoint, &body)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("whisperhttp: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("whisperhttp: POST %s: %w", sttEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return stt.Transcript{}, fmt.Errorf("whisperhttp: POST %s returned status %d", sttEndpoint, resp.StatusCode)
	}

	var decoded sttResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return stt.Transcript{}, fmt.Errorf("whisperhttp: decode response: %w", err)
	}

	return stt.Transcript{
		Text:     strings.TrimSpace(decoded.Text),
		Language: decoded.Lang,
	}, nil
}
