// Package config provides the configuration schema and loader for the Mira
// server. Configuration is a single YAML file; sidecar URLs can additionally
// be overridden through the environment (optionally seeded from a .env file),
// which keeps machine-local port layouts out of the committed config.
package config

import (
	"log/slog"
	"strings"
	"time"
)

// LogLevel controls log verbosity for the Mira server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for Mira.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Character CharacterConfig `yaml:"character"`
	Sidecars  SidecarsConfig  `yaml:"sidecars"`
	Capture   CaptureConfig   `yaml:"capture"`
	Session   SessionConfig   `yaml:"session"`
	Synthesis SynthesisConfig `yaml:"synthesis"`
}

// ServerConfig holds network and logging settings for the Mira server.
type ServerConfig struct {
	// ListenAddr is the TCP address the control/health/metrics server
	// listens on (e.g., ":8520").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// ProbeInterval is how often the sidecar readiness prober polls the
	// transcription and synthesis servers.
	ProbeInterval time.Duration `yaml:"probe_interval"`
}

// CharacterConfig describes the character's identity and voice.
type CharacterConfig struct {
	// Name is the character's display name. Also used to tag extracted
	// facts in the memory store.
	Name string `yaml:"name"`

	// Persona is a free-text character description injected at the top of
	// every system prompt.
	Persona string `yaml:"persona"`

	// UserName labels the human side of the conversation in fact storage.
	UserName string `yaml:"user_name"`

	// CommandPrefix is the spoken wake phrase that marks a command
	// (e.g., "hey mira"). Defaults to "hey " plus the lowercased name.
	CommandPrefix string `yaml:"command_prefix"`

	// SpeakerWAV is the server-side reference WAV used for voice cloning.
	SpeakerWAV string `yaml:"speaker_wav"`

	// Language is the synthesis language code (e.g., "en").
	Language string `yaml:"language"`
}

// SidecarsConfig holds the base URLs of the external helper servers and the
// chat model tag. Every URL can be overridden through the environment; see
// [Load].
type SidecarsConfig struct {
	// STTURL is the base URL of the transcription server.
	STTURL string `yaml:"stt_url"`

	// TTSURL is the base URL of the synthesis server.
	TTSURL string `yaml:"tts_url"`

	// LLMURL is the base URL of the Ollama server.
	LLMURL string `yaml:"llm_url"`

	// Model is the Ollama model tag (e.g., "llama3.1").
	Model string `yaml:"model"`

	// MemoryURL is the base URL of the long-term memory service. Empty
	// disables memory retrieval and fact persistence.
	MemoryURL string `yaml:"memory_url"`

	// WebhookURL is the endpoint for in-game action commands. Empty
	// disables the webhook command families.
	WebhookURL string `yaml:"webhook_url"`
}

// CaptureConfig tunes the microphone capture and utterance detection.
// Zero-value thresholds fall back to the detector's package defaults.
type CaptureConfig struct {
	// SampleRate of the capture stream in Hz.
	SampleRate int `yaml:"sample_rate"`

	// StartThreshold is the RMS loudness required to begin an utterance,
	// in (0, 1].
	StartThreshold float64 `yaml:"start_threshold"`

	// PreRoll is how much audio preceding the trigger is kept.
	PreRoll time.Duration `yaml:"pre_roll"`

	// StopAfterSilence finalizes the utterance after this much audio below
	// the threshold.
	StopAfterSilence time.Duration `yaml:"stop_after_silence"`

	// MaxSpeech is the hard cap on utterance duration.
	MaxSpeech time.Duration `yaml:"max_speech"`

	// MinUtterance discards finalized utterances shorter than this.
	MinUtterance time.Duration `yaml:"min_utterance"`
}

// SessionConfig tunes conversation history and per-call timeouts.
// Zero values fall back to the session's package defaults.
type SessionConfig struct {
	// MaxHistoryMessages caps the non-system history length.
	MaxHistoryMessages int `yaml:"max_history_messages"`

	// TopKeywords caps how many extracted keywords go into a memory query.
	TopKeywords int `yaml:"top_keywords"`

	// MemoryTimeout bounds the best-effort memory fetch.
	MemoryTimeout time.Duration `yaml:"memory_timeout"`

	// TurnTimeout bounds an ordinary chat call.
	TurnTimeout time.Duration `yaml:"turn_timeout"`

	// WelcomeTimeout bounds the one-time greeting call, which must
	// tolerate cold-starting local inference servers.
	WelcomeTimeout time.Duration `yaml:"welcome_timeout"`
}

// SynthesisConfig tunes the synthesis scheduler.
// Zero values fall back to the scheduler's package defaults.
type SynthesisConfig struct {
	// ChunkBudget is the character budget per synthesis request.
	ChunkBudget int `yaml:"chunk_budget"`

	// MaxConcurrent bounds simultaneous synthesis requests.
	MaxConcurrent int `yaml:"max_concurrent"`
}

// applyDefaults fills identity and server fields that have sensible
// universal defaults. Pipeline tuning knobs are left at zero so each
// component's own defaults apply.
func (c *Config) applyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8520"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = LogInfo
	}
	if c.Character.Name == "" {
		c.Character.Name = "Mira"
	}
	if c.Character.UserName == "" {
		c.Character.UserName = "User"
	}
	if c.Character.CommandPrefix == "" {
		c.Character.CommandPrefix = "hey " + strings.ToLower(c.Character.Name)
	}
	if c.Character.Language == "" {
		c.Character.Language = "en"
	}
	// The transcription sidecar expects 16 kHz mono; unlike the tuning
	// thresholds, the capture rate is structural and cannot stay zero.
	if c.Capture.SampleRate == 0 {
		c.Capture.SampleRate = 16000
	}
}

// SlogLevel maps the configured level to its slog equivalent. Unknown values
// map to info; [Validate] rejects them beforehand.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	}
	return slog.LevelInfo
}
