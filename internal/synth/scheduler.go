// Package synth reassembles concurrently synthesized audio into strict
// enqueue order before playback.
//
// Text chunks receive a global sequence number at enqueue time and are
// synthesized by a bounded number of concurrent requests. Completed results
// land in a sequence-keyed holding area and are released to the serialized
// playback goroutine only gap-free in increasing order: sequence N+1 waits
// for N even when it finishes first. A failed synthesis releases its slot so
// one bad chunk never stalls the rest of the reply.
package synth

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/miravoice/mira/pkg/audio/playback"
	"github.com/miravoice/mira/pkg/provider/tts"
)

const (
	defaultChunkBudget   = 200
	defaultMaxConcurrent = 2
)

// Config configures a [Scheduler]. Zero values get replaced with defaults.
type Config struct {
	// ChunkBudget is the maximum chunk length in runes. Default: 200.
	ChunkBudget int

	// MaxConcurrent bounds in-flight synthesis requests. Default: 2.
	MaxConcurrent int64
}

// Scheduler fans text chunks out to synthesis workers and plays the results
// back in enqueue order.
type Scheduler struct {
	cfg  Config
	tts  tts.Synthesizer
	sink playback.Sink
	sem  *semaphore.Weighted
	log  *slog.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc

	mu          sync.Mutex
	cond        *sync.Cond
	nextSeq     int
	nextRelease int
	holding     map[int][]byte
	playQueue   [][]byte
	playing     bool
	stopped     bool
	onIdle      func()
}

// New creates a Scheduler. Call [Scheduler.Start] before enqueueing.
func New(cfg Config, synthesizer tts.Synthesizer, sink playback.Sink, log *slog.Logger) *Scheduler {
	if cfg.ChunkBudget <= 0 {
		cfg.ChunkBudget = defaultChunkBudget
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = defaultMaxConcurrent
	}
	if log == nil {
		log = slog.Default()
	}
	s := &Scheduler{
		cfg:     cfg,
		tts:     synthesizer,
		sink:    sink,
		sem:     semaphore.NewWeighted(cfg.MaxConcurrent),
		log:     log,
		holding: make(map[int][]byte),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// SetOnIdle registers a callback fired each time the scheduler drains: all
// enqueued chunks synthesized (or failed) and all released audio played.
// Must be set before Start.
func (s *Scheduler) SetOnIdle(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onIdle = fn
}

// Start launches the playback goroutine. The scheduler runs until Close or
// until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.playLoop(ctx)

	// Wake the playback loop when the context dies.
	go func() {
		<-ctx.Done()
		s.mu.Lock()
		s.stopped = true
		s.cond.Broadcast()
		s.mu.Unlock()
	}()
}

// Close stops the playback goroutine and waits for in-flight work to exit.
// Released but unplayed audio is dropped.
func (s *Scheduler) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// Enqueue splits text into chunks, assigns sequence numbers, and dispatches
// synthesis workers under the sliding-window concurrency bound. It returns
// immediately; audio arrives at the sink asynchronously in enqueue order.
func (s *Scheduler) Enqueue(ctx context.Context, text string) {
	clean := sanitizeForTTS(text)
	if clean == "" {
		return
	}
	chunks := splitChunks(clean, s.cfg.ChunkBudget)

	s.mu.Lock()
	first := s.nextSeq
	s.nextSeq += len(chunks)
	s.mu.Unlock()

	for i, chunk := range chunks {
		seq := first + i
		s.wg.Add(1)
		go s.synthesize(ctx, seq, chunk)
	}
}

// Speaking reports whether any audio is pending, released, or playing.
func (s *Scheduler) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing || len(s.playQueue) > 0 || s.nextRelease < s.nextSeq
}

// synthesize runs one chunk through the synthesizer and delivers the result
// into the holding area. The semaphore is the sliding-window admission gate:
// the next queued chunk starts the moment any in-flight one finishes.
func (s *Scheduler) synthesize(ctx context.Context, seq int, text string) {
	defer s.wg.Done()

	if err := s.sem.Acquire(ctx, 1); err != nil {
		s.deliver(seq, nil)
		return
	}
	audio, err := s.tts.Synthesize(ctx, text)
	s.sem.Release(1)

	if err != nil {
		s.log.Warn("synthesis failed, skipping chunk", "seq", seq, "error", err)
		audio = nil
	}
	s.deliver(seq, audio)
}

// deliver stores a completed result and releases every ready sequence, in
// order, into the playback queue. A nil result releases its slot without
// queueing audio.
func (s *Scheduler) deliver(seq int, audio []byte) {
	s.mu.Lock()
	s.holding[seq] = audio

	released := false
	for {
		res, ok := s.holding[s.nextRelease]
		if !ok {
			break
		}
		delete(s.holding, s.nextRelease)
		s.nextRelease++
		if res != nil {
			s.playQueue = append(s.playQueue, res)
			released = true
		}
	}
	if released {
		s.cond.Signal()
	}
	s.finishLocked()
}

// playLoop consumes the playback queue one result at a time, in release
// order.
func (s *Scheduler) playLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		for len(s.playQueue) == 0 && !s.stopped {
			s.cond.Wait()
		}
		if s.stopped {
			s.mu.Unlock()
			return
		}
		audio := s.playQueue[0]
		s.playQueue = s.playQueue[1:]
		s.playing = true
		s.mu.Unlock()

		if err := s.sink.Play(ctx, audio); err != nil && ctx.Err() == nil {
			s.log.Warn("playback failed", "error", err)
		}

		s.mu.Lock()
		s.playing = false
		s.finishLocked()
	}
}

// finishLocked runs the drained check, resets the sequence space, and fires
// the idle callback. Takes s.mu held and releases it.
func (s *Scheduler) finishLocked() {
	idle := !s.playing && len(s.playQueue) == 0 &&
		s.nextRelease == s.nextSeq && len(s.holding) == 0 && s.nextSeq > 0
	onIdle := s.onIdle
	if idle {
		// Safe only when fully drained: overlapping turns are excluded by
		// the turn gate, so a fresh reply always starts a fresh sequence
		// space.
		s.nextSeq = 0
		s.nextRelease = 0
	}
	s.mu.Unlock()

	if idle && onIdle != nil {
		onIdle()
	}
}
