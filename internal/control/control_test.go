package control

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/miravoice/mira/internal/gate"
)

type fakePipeline struct {
	mu         sync.Mutex
	submitted  []string
	travels    []string
	interrupts int
	speaking   bool
}

func (f *fakePipeline) SubmitText(_ context.Context, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, text)
}

func (f *fakePipeline) ForceLocation(_ context.Context, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.travels = append(f.travels, name)
}

func (f *fakePipeline) Interrupt() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.interrupts++
}

func (f *fakePipeline) Speaking() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.speaking
}

func (f *fakePipeline) UserSpeaking() bool { return false }

// dial connects a test client to the control server.
func dial(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func writeCommand(t *testing.T, conn *websocket.Conn, cmd Command) {
	t.Helper()
	data, err := json.Marshal(cmd)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return ev
}

func TestSayCommandSubmitsText(t *testing.T) {
	t.Parallel()

	p := &fakePipeline{}
	s := NewServer(p, gate.New(), nil)
	conn := dial(t, s)

	writeCommand(t, conn, Command{Type: "say", Text: "hey mira, how are you?"})

	deadline := time.After(2 * time.Second)
	for {
		p.mu.Lock()
		n := len(p.submitted)
		p.mu.Unlock()
		if n == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("say command never reached the pipeline")
		case <-time.After(5 * time.Millisecond):
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.submitted[0] != "hey mira, how are you?" {
		t.Errorf("submitted = %q", p.submitted[0])
	}
}

func TestTravelCommandForcesLocation(t *testing.T) {
	t.Parallel()

	p := &fakePipeline{}
	s := NewServer(p, gate.New(), nil)
	conn := dial(t, s)

	writeCommand(t, conn, Command{Type: "travel", Location: "Kugane"})
	writeCommand(t, conn, Command{Type: "travel"})

	deadline := time.After(2 * time.Second)
	for {
		p.mu.Lock()
		n := len(p.travels)
		p.mu.Unlock()
		if n == 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("travel commands never reached the pipeline")
		case <-time.After(5 * time.Millisecond):
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.travels[0] != "Kugane" || p.travels[1] != "" {
		t.Errorf("travels = %v", p.travels)
	}
}

func TestInterruptCommandReachesPipeline(t *testing.T) {
	t.Parallel()

	p := &fakePipeline{}
	s := NewServer(p, gate.New(), nil)
	conn := dial(t, s)

	writeCommand(t, conn, Command{Type: "interrupt"})

	deadline := time.After(2 * time.Second)
	for {
		p.mu.Lock()
		n := p.interrupts
		p.mu.Unlock()
		if n == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("interrupt command never reached the pipeline")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestStatusCommandReturnsState(t *testing.T) {
	t.Parallel()

	p := &fakePipeline{speaking: true}
	g := gate.New()
	g.SetSTTReady(true)
	s := NewServer(p, g, nil)
	conn := dial(t, s)

	writeCommand(t, conn, Command{Type: "status"})
	ev := readEvent(t, conn)

	if ev.Type != "state" {
		t.Fatalf("event type = %q, want state", ev.Type)
	}
	if ev.Speaking == nil || !*ev.Speaking {
		t.Error("state event must report speaking=true")
	}
	if ev.STTReady == nil || !*ev.STTReady {
		t.Error("state event must report stt_ready=true")
	}
	if ev.TTSReady == nil || *ev.TTSReady {
		t.Error("state event must report tts_ready=false")
	}
}

func TestPushSentenceReachesClient(t *testing.T) {
	t.Parallel()

	p := &fakePipeline{}
	s := NewServer(p, gate.New(), nil)
	conn := dial(t, s)

	// The read loop registers the connection before the first Read; still,
	// give the server a moment to finish the accept.
	time.Sleep(20 * time.Millisecond)
	s.PushSentence("What a lovely evening!", "happy")

	ev := readEvent(t, conn)
	if ev.Type != "sentence" {
		t.Fatalf("event type = %q, want sentence", ev.Type)
	}
	if ev.Text != "What a lovely evening!" || ev.Emotion != "happy" {
		t.Errorf("event = %+v", ev)
	}
}

func TestMalformedCommandIsIgnored(t *testing.T) {
	t.Parallel()

	p := &fakePipeline{}
	s := NewServer(p, gate.New(), nil)
	conn := dial(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, []byte("{not json")); err != nil {
		t.Fatalf("write: %v", err)
	}

	// The connection stays usable.
	writeCommand(t, conn, Command{Type: "status"})
	if ev := readEvent(t, conn); ev.Type != "state" {
		t.Errorf("event type = %q, want state", ev.Type)
	}
}
