// Package xtts implements tts.Synthesizer against a local Coqui XTTS v2 API
// server: synthesis is one POST /tts_to_audio/ call with a JSON body, voices
// are reference WAV paths on the server ("speaker_wav" cloning).
package xtts

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

	"github.com/miravoice/mira/pkg/audio"
	"github.com/miravoice/mira/pkg/provider/tts"
)

// Compile-time interface assertion.
var _ tts.Synthesizer = (*Client)(nil)

const (
	defaultLanguage = "en"
	defaultTimeout  = 30 * time.Second
	ttsEndpoint     = "/tts_to_audio/"
)

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithLanguage sets the language code sent to the server (e.g. "en", "fr").
// Default: "en".
func WithLanguage(lang string) Option {
	return func(c *Client) { c.language = lang }
}

// WithTimeout sets the per-request HTTP timeout. Default: 30 s.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithSpeakerWAV sets the server-side reference WAV used for voice cloning.
// When empty the server falls back to its default speaker.
func WithSpeakerWAV(path string) Option {
	return func(c *Client) { c.speakerWAV = path }
}

// Client talks to an XTTS v2 API server. Safe for concurrent use; the
// synthesis scheduler runs several overlapping Synthesize calls.
type Client struct {
	serverURL  string
	language   string
	speakerWAV string
	httpClient *http.Client
}

// New creates a Client targeting the XTTS server at serverURL
// (e.g. "http://localhost:8200").
func New(serverURL string, opts ...Option) (*Client, error) {
	if serverURL == "" {
		return nil, errors.New("xtts: serverURL must not be empty")
	}
	c := &Client{
		serverURL:  strings.TrimRight(serverURL, "/"),
		language:   defaultLanguage,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// ttsRequest is the JSON body sent to POST /tts_to_audio/.
type ttsRequest struct {
	Text       string `json:"text"`
	Language   string `json:"language"`
	SpeakerWav string `json:"speaker_wav,omitempty"`
}

// Synthesize performs a single synthesis call and returns the WAV bytes.
// The response is validated as a RIFF/WAVE container so a sidecar error page
// is rejected here instead of reaching the playback decoder.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("xtts: text must not be empty")
	}

	payload, err := json.Marshal(ttsRequest{
		Text:       text,
		Language:   c.language,
		SpeakerWav: c.speakerWAV,
	})
	if err != nil {
		return nil, fmt.Errorf("xtts: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+ttsEndpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("xtts: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/wav")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("xtts: POST %s: %w", ttsEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("xtts: POST %s returned status %d", ttsEndpoint, resp.StatusCode)
	}

	wav, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("xtts: read response: %w", err)
	}

	if _, err := audio.ParseWAV(wav); err != nil {
		return nil, fmt.Errorf("xtts: invalid audio response: %w", err)
	}
	return wav, nil
}
