// Package control is the boundary to the rendering front end: a local
// websocket server that accepts typed input and control commands and pushes
// response, sentence, and state events.
//
// The front end (avatar renderer, chat overlay) is a separate process; this
// surface replaces direct function calls with a small JSON protocol so the
// core stays renderer-agnostic.
package control

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/miravoice/mira/internal/gate"
	"github.com/miravoice/mira/internal/observe"
)

// writeTimeout bounds one event push to a client.
const writeTimeout = 5 * time.Second

// Pipeline is what the control surface needs from the application core.
type Pipeline interface {
	// SubmitText feeds typed text into the same routing path as a spoken
	// transcript.
	SubmitText(ctx context.Context, text string)

	// ForceLocation changes the current location. An empty name picks a
	// random one.
	ForceLocation(ctx context.Context, name string)

	// Interrupt discards the utterance currently being captured, if any.
	Interrupt()

	// Speaking reports whether the character currently has audio pending or
	// playing.
	Speaking() bool

	// UserSpeaking reports whether the capture engine is mid-utterance.
	UserSpeaking() bool
}

// Command is a JSON message received from a client.
type Command struct {
	// Type is one of "say", "travel", "interrupt", "status".
	Type string `json:"type"`

	// Text carries the input for "say".
	Text string `json:"text,omitempty"`

	// Location names the target for "travel"; empty means random.
	Location string `json:"location,omitempty"`
}

// Event is a JSON message pushed to clients.
type Event struct {
	// Type is one of "response", "sentence", "state".
	Type string `json:"type"`

	// Text carries the full reply for "response" and the fragment for
	// "sentence".
	Text string `json:"text,omitempty"`

	// Emotion is set on "sentence" events.
	Emotion string `json:"emotion,omitempty"`

	// State fields, set on "state" events.
	Speaking     *bool `json:"speaking,omitempty"`
	UserSpeaking *bool `json:"user_speaking,omitempty"`
	STTReady     *bool `json:"stt_ready,omitempty"`
	TTSReady     *bool `json:"tts_ready,omitempty"`
}

// Server accepts websocket clients and fans events out to all of them.
// Safe for concurrent use.
type Server struct {
	pipeline Pipeline
	g        *gate.Gate
	log      *slog.Logger

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewServer creates a Server over the given pipeline and gate.
func NewServer(pipeline Pipeline, g *gate.Gate, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		pipeline: pipeline,
		g:        g,
		log:      log,
		conns:    make(map[*websocket.Conn]struct{}),
	}
}

// ServeHTTP upgrades the request to a websocket and serves commands until
// the client disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// The front end runs on the same machine with its own origin.
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.log.Warn("websocket accept failed", "error", err)
		return
	}

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close(websocket.StatusNormalClosure, "bye")
	}()

	ctx := r.Context()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			s.log.Warn("malformed control command", "error", err)
			continue
		}
		s.handle(ctx, conn, cmd)
	}
}

func (s *Server) handle(ctx context.Context, conn *websocket.Conn, cmd Command) {
	// The websocket upgrade passes through the tracing middleware, so these
	// logs carry the connection's trace ID.
	log := observe.Logger(ctx)
	switch cmd.Type {
	case "say":
		if cmd.Text != "" {
			log.Info("typed input received", "text_len", len(cmd.Text))
			s.pipeline.SubmitText(ctx, cmd.Text)
		}
	case "travel":
		log.Info("travel requested", "location", cmd.Location)
		s.pipeline.ForceLocation(ctx, cmd.Location)
	case "interrupt":
		log.Info("capture interrupt requested")
		s.pipeline.Interrupt()
	case "status":
		s.send(ctx, conn, s.stateEvent())
	default:
		s.log.Debug("unknown control command", "type", cmd.Type)
	}
}

// PushResponse broadcasts a completed reply.
func (s *Server) PushResponse(text string) {
	s.broadcast(Event{Type: "response", Text: text})
}

// PushSentence broadcasts one synthesizable sentence with its emotion.
func (s *Server) PushSentence(text, emotion string) {
	s.broadcast(Event{Type: "sentence", Text: text, Emotion: emotion})
}

// PushState broadcasts the current speaking/readiness state. Wired to the
// gate's change listener.
func (s *Server) PushState() {
	s.broadcast(s.stateEvent())
}

func (s *Server) stateEvent() Event {
	speaking := s.pipeline.Speaking()
	userSpeaking := s.pipeline.UserSpeaking()
	snap := s.g.Snapshot()
	return Event{
		Type:         "state",
		Speaking:     &speaking,
		UserSpeaking: &userSpeaking,
		STTReady:     &snap.STTReady,
		TTSReady:     &snap.TTSReady,
	}
}

func (s *Server) broadcast(ev Event) {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		s.send(context.Background(), c, ev)
	}
}

func (s *Server) send(ctx context.Context, conn *websocket.Conn, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		s.log.Warn("event marshal failed", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		s.log.Debug("event push failed", "error", err)
	}
}
