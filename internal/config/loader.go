package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envOverrides maps environment variables onto the sidecar URL fields they
// override. A .env file in the working directory is loaded first, so local
// port layouts never need to be committed.
var envOverrides = map[string]func(*Config) *string{
	"MIRA_STT_URL":     func(c *Config) *string { return &c.Sidecars.STTURL },
	"MIRA_TTS_URL":     func(c *Config) *string { return &c.Sidecars.TTSURL },
	"MIRA_LLM_URL":     func(c *Config) *string { return &c.Sidecars.LLMURL },
	"MIRA_MEMORY_URL":  func(c *Config) *string { return &c.Sidecars.MemoryURL },
	"MIRA_WEBHOOK_URL": func(c *Config) *string { return &c.Sidecars.WebhookURL },
}

// Load reads the YAML configuration file at path, applies the environment
// overlay, and returns a validated [Config].
func Load(path string) (*Config, error) {
	// Best effort: a missing .env file is the normal case.
	_ = godotenv.Load()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := decode(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	applyEnvOverrides(cfg)
	cfg.applyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// No environment overlay is applied; useful in tests where configs are
// constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg, err := decode(r)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	for key, field := range envOverrides {
		if v := os.Getenv(key); v != "" {
			*field(cfg) = v
		}
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.ProbeInterval < 0 {
		errs = append(errs, fmt.Errorf("server.probe_interval %s must not be negative", cfg.Server.ProbeInterval))
	}

	// Character
	if cfg.Character.Persona == "" {
		errs = append(errs, errors.New("character.persona is required"))
	}
	if cfg.Character.SpeakerWAV == "" {
		slog.Warn("character.speaker_wav is empty; the synthesis server will use its default voice")
	}

	// Sidecars — the three pipeline stages are required, the rest degrade.
	errs = append(errs, requireURL("sidecars.stt_url", cfg.Sidecars.STTURL)...)
	errs = append(errs, requireURL("sidecars.tts_url", cfg.Sidecars.TTSURL)...)
	errs = append(errs, requireURL("sidecars.llm_url", cfg.Sidecars.LLMURL)...)
	if cfg.Sidecars.Model == "" {
		errs = append(errs, errors.New("sidecars.model is required"))
	}
	if cfg.Sidecars.MemoryURL == "" {
		slog.Warn("sidecars.memory_url is empty; long-term memory is disabled")
	} else {
		errs = append(errs, checkURL("sidecars.memory_url", cfg.Sidecars.MemoryURL)...)
	}
	if cfg.Sidecars.WebhookURL == "" {
		slog.Warn("sidecars.webhook_url is empty; in-game action commands are disabled")
	} else {
		errs = append(errs, checkURL("sidecars.webhook_url", cfg.Sidecars.WebhookURL)...)
	}

	// Capture
	if cfg.Capture.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("capture.sample_rate %d must not be negative", cfg.Capture.SampleRate))
	}
	if cfg.Capture.StartThreshold < 0 || cfg.Capture.StartThreshold > 1 {
		errs = append(errs, fmt.Errorf("capture.start_threshold %.3f is out of range [0, 1]", cfg.Capture.StartThreshold))
	}
	for _, d := range []struct {
		name  string
		value time.Duration
	}{
		{"capture.pre_roll", cfg.Capture.PreRoll},
		{"capture.stop_after_silence", cfg.Capture.StopAfterSilence},
		{"capture.max_speech", cfg.Capture.MaxSpeech},
		{"capture.min_utterance", cfg.Capture.MinUtterance},
		{"session.memory_timeout", cfg.Session.MemoryTimeout},
		{"session.turn_timeout", cfg.Session.TurnTimeout},
		{"session.welcome_timeout", cfg.Session.WelcomeTimeout},
	} {
		if d.value < 0 {
			errs = append(errs, fmt.Errorf("%s %s must not be negative", d.name, d.value))
		}
	}
	if cfg.Capture.MaxSpeech > 0 && cfg.Capture.MinUtterance > cfg.Capture.MaxSpeech {
		errs = append(errs, fmt.Errorf("capture.min_utterance %s exceeds capture.max_speech %s", cfg.Capture.MinUtterance, cfg.Capture.MaxSpeech))
	}

	// Session
	if cfg.Session.MaxHistoryMessages < 0 {
		errs = append(errs, fmt.Errorf("session.max_history_messages %d must not be negative", cfg.Session.MaxHistoryMessages))
	}
	if cfg.Session.TurnTimeout > 0 && cfg.Session.WelcomeTimeout > 0 && cfg.Session.WelcomeTimeout < cfg.Session.TurnTimeout {
		slog.Warn("session.welcome_timeout is shorter than session.turn_timeout; cold-starting models may time out on the greeting",
			"welcome_timeout", cfg.Session.WelcomeTimeout,
			"turn_timeout", cfg.Session.TurnTimeout,
		)
	}

	// Synthesis
	if cfg.Synthesis.ChunkBudget < 0 {
		errs = append(errs, fmt.Errorf("synthesis.chunk_budget %d must not be negative", cfg.Synthesis.ChunkBudget))
	}
	if cfg.Synthesis.MaxConcurrent < 0 {
		errs = append(errs, fmt.Errorf("synthesis.max_concurrent %d must not be negative", cfg.Synthesis.MaxConcurrent))
	}

	return errors.Join(errs...)
}

// requireURL reports an error when value is empty or not an absolute URL.
func requireURL(name, value string) []error {
	if value == "" {
		return []error{fmt.Errorf("%s is required", name)}
	}
	return checkURL(name, value)
}

// checkURL reports an error when a non-empty value is not an absolute
// http(s) URL.
func checkURL(name, value string) []error {
	u, err := url.Parse(value)
	if err != nil {
		return []error{fmt.Errorf("%s %q is not a valid URL: %w", name, value, err)}
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return []error{fmt.Errorf("%s %q must be an absolute http(s) URL", name, value)}
	}
	return nil
}
