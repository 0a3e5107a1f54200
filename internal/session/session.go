// Package session owns the conversation: ordered message history, the
// per-turn request sequence against the chat provider, and the in-flight
// guard that keeps at most one model call outstanding.
//
// The session never touches the turn gate. Locking and unlocking around a
// turn is the caller's job, so gate cleanup runs on every exit path even
// when a turn fails inside this package.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/miravoice/mira/pkg/memory"
	"github.com/miravoice/mira/pkg/provider/llm"
)

// ErrTurnInFlight is returned by [Session.Ask] when a turn is already being
// processed. The new input is dropped, not queued.
var ErrTurnInFlight = errors.New("session: turn already in flight")

// ErrEmptyReply is returned when the model answers with blank content. The
// system prompt is rebuilt before returning, since a blank reply usually
// means the history confused the model rather than the network failing.
var ErrEmptyReply = errors.New("session: model returned empty reply")

const (
	defaultMaxHistoryMessages = 20
	defaultTopKeywords        = 5
	defaultMemoryTimeout      = 2 * time.Second
	defaultTurnTimeout        = 30 * time.Second
	defaultWelcomeTimeout     = 2 * time.Minute
)

// Config configures a [Session]. Zero values get replaced with defaults.
type Config struct {
	// Persona is the static character description that opens every system
	// prompt.
	Persona string

	// MaxHistoryMessages caps the non-system history length. Default: 20.
	MaxHistoryMessages int

	// TopKeywords caps how many tokens of the user text are sent to the
	// memory query. Default: 5.
	TopKeywords int

	// MemoryTimeout bounds the best-effort memory fetch. Default: 2s.
	// Kept short so a slow memory sidecar cannot stall a turn.
	MemoryTimeout time.Duration

	// TurnTimeout bounds an ordinary chat call. Default: 30s.
	TurnTimeout time.Duration

	// WelcomeTimeout bounds the one-time greeting call, which must tolerate
	// cold-starting local inference servers. Default: 2m.
	WelcomeTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.MaxHistoryMessages <= 0 {
		c.MaxHistoryMessages = defaultMaxHistoryMessages
	}
	if c.TopKeywords <= 0 {
		c.TopKeywords = defaultTopKeywords
	}
	if c.MemoryTimeout <= 0 {
		c.MemoryTimeout = defaultMemoryTimeout
	}
	if c.TurnTimeout <= 0 {
		c.TurnTimeout = defaultTurnTimeout
	}
	if c.WelcomeTimeout <= 0 {
		c.WelcomeTimeout = defaultWelcomeTimeout
	}
}

// LocationFunc returns the current location description line injected into
// the system prompt, e.g. "You are currently at Limsa Lominsa, ...".
type LocationFunc func() string

// Session drives conversational turns. Safe for concurrent use; concurrent
// Ask calls beyond the first are dropped via the in-flight guard.
type Session struct {
	cfg      Config
	provider llm.Provider
	store    memory.Store
	location LocationFunc
	history  *History
	log      *slog.Logger

	inFlight atomic.Bool
}

// New creates a Session. store may be nil to disable memory retrieval;
// location may be nil when no location context exists yet.
func New(cfg Config, provider llm.Provider, store memory.Store, location LocationFunc, log *slog.Logger) *Session {
	cfg.applyDefaults()
	if log == nil {
		log = slog.Default()
	}
	s := &Session{
		cfg:      cfg,
		provider: provider,
		store:    store,
		location: location,
		history:  NewHistory(cfg.MaxHistoryMessages),
		log:      log,
	}
	s.rebuildSystem(nil)
	return s
}

// Ask runs one conversational turn and returns the assistant reply. A call
// while another turn is outstanding returns [ErrTurnInFlight] without
// touching history.
func (s *Session) Ask(ctx context.Context, userText string) (string, error) {
	return s.ask(ctx, userText, s.cfg.TurnTimeout)
}

// Welcome runs the one-time greeting turn with the longer cold-start
// timeout.
func (s *Session) Welcome(ctx context.Context, greetingPrompt string) (string, error) {
	return s.ask(ctx, greetingPrompt, s.cfg.WelcomeTimeout)
}

func (s *Session) ask(ctx context.Context, userText string, timeout time.Duration) (string, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.log.Debug("dropping input, turn in flight", "text_len", len(userText))
		return "", ErrTurnInFlight
	}
	defer s.inFlight.Store(false)

	facts := s.fetchMemories(ctx, userText)
	s.rebuildSystem(facts)

	s.history.Append(llm.RoleUser, userText)

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	reply, err := s.provider.Chat(callCtx, s.history.Snapshot())
	if err != nil {
		// The user message stays; no assistant entry is appended.
		return "", fmt.Errorf("session: chat call failed: %w", err)
	}
	if strings.TrimSpace(reply) == "" {
		s.log.Warn("model returned empty reply, rebuilding system prompt")
		s.rebuildSystem(nil)
		return "", ErrEmptyReply
	}

	s.history.Append(llm.RoleAssistant, reply)
	return reply, nil
}

// AddMessage appends a history entry without a model call. Used by the
// command path to inject arrival confirmations.
func (s *Session) AddMessage(role, content string) {
	s.history.Append(role, content)
}

// ResetSystemPrompt rebuilds the system entry from the persona and current
// location, with no memory snippets.
func (s *Session) ResetSystemPrompt() {
	s.rebuildSystem(nil)
}

// History returns a snapshot of the conversation for background readers.
func (s *Session) History() []llm.Message {
	return s.history.Snapshot()
}

// fetchMemories queries the fact store with keywords from the user text.
// Every failure degrades to no memories; a turn never aborts here.
func (s *Session) fetchMemories(ctx context.Context, userText string) []memory.Fact {
	if s.store == nil {
		return nil
	}
	keywords := extractKeywords(userText, s.cfg.TopKeywords)
	if len(keywords) == 0 {
		return nil
	}

	queryCtx, cancel := context.WithTimeout(ctx, s.cfg.MemoryTimeout)
	defer cancel()

	facts, err := s.store.Query(queryCtx, keywords)
	if err != nil {
		s.log.Warn("memory query failed, continuing without memories", "error", err)
		return nil
	}
	return facts
}

// rebuildSystem overwrites the system entry from persona, current location
// description, and retrieved memories.
func (s *Session) rebuildSystem(facts []memory.Fact) {
	var b strings.Builder
	b.WriteString(s.cfg.Persona)

	if s.location != nil {
		if loc := s.location(); loc != "" {
			b.WriteString("\n\n")
			b.WriteString(loc)
		}
	}

	if len(facts) > 0 {
		b.WriteString("\n\nThings you remember:")
		for _, f := range facts {
			b.WriteString("\n- ")
			if f.Owner != "" {
				b.WriteString(f.Owner)
				b.WriteString(": ")
			}
			b.WriteString(f.Text)
		}
	}

	s.history.SetSystem(b.String())
}
