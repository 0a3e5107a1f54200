package synth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// scriptSynth simulates out-of-order completion and injected failures,
// keyed by chunk text.
type scriptSynth struct {
	mu     sync.Mutex
	delays map[string]time.Duration
	fails  map[string]bool
}

func (f *scriptSynth) Synthesize(ctx context.Context, text string) ([]byte, error) {
	f.mu.Lock()
	delay := f.delays[text]
	fail := f.fails[text]
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, errors.New("synth backend down")
	}
	return []byte("wav:" + text), nil
}

// recordSink records played audio in order.
type recordSink struct {
	mu     sync.Mutex
	played []string
}

func (r *recordSink) Play(_ context.Context, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.played = append(r.played, string(data))
	return nil
}

func (r *recordSink) Close() error { return nil }

func (r *recordSink) order() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.played))
	copy(out, r.played)
	return out
}

// startDrained builds a running scheduler and a channel signalled on each
// drain.
func startDrained(t *testing.T, cfg Config, synth *scriptSynth, sink *recordSink) (*Scheduler, chan struct{}) {
	t.Helper()
	s := New(cfg, synth, sink, nil)
	drained := make(chan struct{}, 1)
	s.SetOnIdle(func() {
		select {
		case drained <- struct{}{}:
		default:
		}
	})
	s.Start(context.Background())
	t.Cleanup(s.Close)
	return s, drained
}

func waitDrained(t *testing.T, drained chan struct{}) {
	t.Helper()
	select {
	case <-drained:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not drain in time")
	}
}

func TestPlaybackOrderMatchesEnqueueOrder(t *testing.T) {
	t.Parallel()

	// Later chunks finish first; playback order must still follow enqueue
	// order.
	synth := &scriptSynth{delays: map[string]time.Duration{
		"alpha":   60 * time.Millisecond,
		"bravo":   30 * time.Millisecond,
		"charlie": 0,
	}}
	sink := &recordSink{}
	s, drained := startDrained(t, Config{MaxConcurrent: 3}, synth, sink)

	for _, text := range []string{"alpha", "bravo", "charlie"} {
		s.Enqueue(context.Background(), text)
	}
	waitDrained(t, drained)

	want := []string{"wav:alpha", "wav:bravo", "wav:charlie"}
	got := sink.order()
	if len(got) != len(want) {
		t.Fatalf("played %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("played[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestFailedChunkDoesNotStallLaterOnes(t *testing.T) {
	t.Parallel()

	// Chunk 2 of 3 fails; 1 and 3 must both play, in order.
	synth := &scriptSynth{
		fails:  map[string]bool{"bravo": true},
		delays: map[string]time.Duration{"alpha": 20 * time.Millisecond},
	}
	sink := &recordSink{}
	s, drained := startDrained(t, Config{MaxConcurrent: 3}, synth, sink)

	for _, text := range []string{"alpha", "bravo", "charlie"} {
		s.Enqueue(context.Background(), text)
	}
	waitDrained(t, drained)

	got := sink.order()
	want := []string{"wav:alpha", "wav:charlie"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("played %v, want %v", got, want)
	}
}

func TestSequenceSpaceResetsBetweenTurns(t *testing.T) {
	t.Parallel()

	synth := &scriptSynth{}
	sink := &recordSink{}
	s, drained := startDrained(t, Config{}, synth, sink)

	s.Enqueue(context.Background(), "first turn")
	waitDrained(t, drained)

	s.mu.Lock()
	nextSeq, nextRelease := s.nextSeq, s.nextRelease
	s.mu.Unlock()
	if nextSeq != 0 || nextRelease != 0 {
		t.Errorf("counters = (%d, %d) after drain, want (0, 0)", nextSeq, nextRelease)
	}

	s.Enqueue(context.Background(), "second turn")
	waitDrained(t, drained)
	if len(sink.order()) != 2 {
		t.Errorf("played %v, want two turns", sink.order())
	}
}

func TestSpeakingReflectsPendingWork(t *testing.T) {
	t.Parallel()

	synth := &scriptSynth{delays: map[string]time.Duration{"slow line": 100 * time.Millisecond}}
	sink := &recordSink{}
	s, drained := startDrained(t, Config{}, synth, sink)

	if s.Speaking() {
		t.Error("fresh scheduler must not be speaking")
	}
	s.Enqueue(context.Background(), "slow line")
	if !s.Speaking() {
		t.Error("scheduler with pending chunk must report speaking")
	}
	waitDrained(t, drained)
	if s.Speaking() {
		t.Error("drained scheduler must not be speaking")
	}
}

func TestEmptyTextIsIgnored(t *testing.T) {
	t.Parallel()

	synth := &scriptSynth{}
	sink := &recordSink{}
	s, _ := startDrained(t, Config{}, synth, sink)

	s.Enqueue(context.Background(), "   ")
	s.Enqueue(context.Background(), "@#$%")
	time.Sleep(20 * time.Millisecond)
	if got := sink.order(); len(got) != 0 {
		t.Errorf("played %v, want nothing", got)
	}
}

func TestSplitChunks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		text   string
		budget int
		want   []string
	}{
		{
			name:   "fits in one chunk",
			text:   "short line",
			budget: 50,
			want:   []string{"short line"},
		},
		{
			name:   "cuts at punctuation inside budget",
			text:   "First part is here. Then more",
			budget: 25,
			want:   []string{"First part is here.", "Then more"},
		},
		{
			name:   "falls back to space cut",
			text:   "one two three four five",
			budget: 10,
			want:   []string{"one two", "three", "four five"},
		},
		{
			name:   "hard cut only for an oversized word",
			text:   "abcdefghij",
			budget: 4,
			want:   []string{"abcd", "efgh", "ij"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := splitChunks(tt.text, tt.budget)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("chunk[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSplitChunksRespectsBudget(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("some words here, with commas and periods. ", 20)
	for _, chunk := range splitChunks(text, 80) {
		if n := len([]rune(chunk)); n > 80 {
			t.Errorf("chunk %q has %d runes, budget 80", chunk, n)
		}
	}
}

func TestSanitizeForTTS(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"Hello, world!", "Hello, world!"},
		{"stage <whisper> *giggles* [aside]", "stage whisper giggles aside"},
		{"tabs\tand\nnewlines", "tabs and newlines"},
		{"emoji \U0001F604 gone", "emoji gone"},
		{"it's fine - really", "it's fine - really"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := sanitizeForTTS(tt.in); got != tt.want {
			t.Errorf("sanitizeForTTS(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
