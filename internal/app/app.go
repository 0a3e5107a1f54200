// Package app wires all Mira subsystems into a running application.
//
// The App owns the capture loop and the turn lifecycle: microphone frames
// flow through the utterance detector, finalized utterances are transcribed,
// classified, and dispatched to the conversation session, the location
// registry, or the webhook. The turn gate is locked the moment a transcript
// is accepted and unlocked when the synthesis scheduler drains — never
// earlier, so the character cannot hear itself talk. At most one turn runs
// at a time; input arriving mid-turn is dropped, never queued.
//
// New takes every external collaborator as an argument; main constructs the
// real providers, tests pass fakes.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync/atomic"
	"time"

	"github.com/miravoice/mira/internal/config"
	"github.com/miravoice/mira/internal/emotion"
	"github.com/miravoice/mira/internal/facts"
	"github.com/miravoice/mira/internal/gate"
	"github.com/miravoice/mira/internal/observe"
	"github.com/miravoice/mira/internal/router"
	"github.com/miravoice/mira/internal/sentence"
	"github.com/miravoice/mira/internal/session"
	"github.com/miravoice/mira/internal/synth"
	"github.com/miravoice/mira/internal/vad"
	"github.com/miravoice/mira/internal/webhook"
	"github.com/miravoice/mira/internal/world"
	"github.com/miravoice/mira/pkg/audio"
	"github.com/miravoice/mira/pkg/audio/capture"
	"github.com/miravoice/mira/pkg/audio/playback"
	"github.com/miravoice/mira/pkg/memory"
	"github.com/miravoice/mira/pkg/provider/llm"
	"github.com/miravoice/mira/pkg/provider/stt"
	"github.com/miravoice/mira/pkg/provider/tts"
)

// greetingPrompt is the instruction for the one-time welcome turn.
const greetingPrompt = "Your companion just arrived. Greet them warmly in one or two short sentences."

// sttTimeout bounds one transcription call. Utterances are capped at a few
// seconds of audio, so a transcription taking longer than this is stuck.
const sttTimeout = 30 * time.Second

// Providers holds the external collaborators the pipeline talks to.
// Memory and Webhook may be nil; the matching features degrade.
type Providers struct {
	STT     stt.Transcriber
	TTS     tts.Synthesizer
	LLM     llm.Provider
	Memory  memory.Store
	Webhook webhook.Sender
}

// Notifier receives conversation events for the rendering front end.
// Satisfied by the control server; nil disables event push.
type Notifier interface {
	PushResponse(text string)
	PushSentence(text, emotion string)
}

// Option is a functional option for New. Use these to inject test doubles
// or tune behaviour main does not configure.
type Option func(*App)

// WithNotifier wires conversation events to the control surface.
func WithNotifier(n Notifier) Option {
	return func(a *App) { a.notify = n }
}

// WithMetrics replaces the default metrics instance. Tests pass one backed
// by a manual reader.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithRand replaces the random source used for location picks and line
// selection. Tests pass a fixed seed.
func WithRand(rng *rand.Rand) Option {
	return func(a *App) { a.rng = rng }
}

// WithClock replaces the wall-clock hour source used for day/night location
// descriptions.
func WithClock(hour func() int) Option {
	return func(a *App) { a.hour = hour }
}

// App owns the full voice pipeline.
type App struct {
	cfg       *config.Config
	g         *gate.Gate
	providers *Providers
	source    capture.Source
	sink      playback.Sink
	log       *slog.Logger

	detector  *vad.Detector
	router    *router.Router
	session   *session.Session
	splitter  *sentence.Splitter
	scheduler *synth.Scheduler
	extractor *facts.Extractor
	metrics   *observe.Metrics
	notify    Notifier
	rng       *rand.Rand
	hour      func() int

	// current is the location ID; int64 so the capture goroutine and the
	// control surface can both read it.
	current atomic.Int64

	// userSpeaking mirrors the detector state for cross-goroutine reads.
	userSpeaking atomic.Bool

	// awaitingIdle is set when a turn ended with audio still pending; the
	// scheduler's idle callback performs the deferred gate unlock.
	awaitingIdle atomic.Bool

	// turnActive serializes turns: exactly one dispatch owns the gate from
	// lock to finishTurn. Input arriving while a turn runs is dropped, so a
	// control command can never unlock the gate under a spoken turn still
	// waiting on the model.
	turnActive atomic.Bool

	// interruptReq asks the capture loop to discard the in-progress
	// utterance. The loop is the only goroutine touching the detector, so
	// the reset is applied there, not at the call site.
	interruptReq atomic.Bool
}

// New wires the pipeline. source and sink are the audio endpoints (the real
// microphone and speaker in production); providers must have STT, TTS, and
// LLM set.
func New(cfg *config.Config, g *gate.Gate, providers *Providers, source capture.Source, sink playback.Sink, log *slog.Logger, opts ...Option) (*App, error) {
	if providers == nil || providers.STT == nil || providers.TTS == nil || providers.LLM == nil {
		return nil, fmt.Errorf("app: stt, tts, and llm providers are required")
	}
	if log == nil {
		log = slog.Default()
	}

	a := &App{
		cfg:       cfg,
		g:         g,
		providers: providers,
		source:    source,
		sink:      sink,
		log:       log,
		hour:      func() int { return time.Now().Hour() },
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.rng == nil {
		a.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	a.detector = vad.New(vad.Config{
		SampleRate:       cfg.Capture.SampleRate,
		StartThreshold:   cfg.Capture.StartThreshold,
		PreRoll:          cfg.Capture.PreRoll,
		StopAfterSilence: cfg.Capture.StopAfterSilence,
		MaxSpeech:        cfg.Capture.MaxSpeech,
		MinUtterance:     cfg.Capture.MinUtterance,
	}, g)

	normalizer, err := router.NewNormalizer(cfg.Character.Name, nil)
	if err != nil {
		return nil, fmt.Errorf("app: build normalizer: %w", err)
	}
	a.router = router.New(cfg.Character.CommandPrefix, normalizer, a.rng)

	a.current.Store(int64(world.All()[0].ID))

	a.session = session.New(session.Config{
		Persona:            cfg.Character.Persona,
		MaxHistoryMessages: cfg.Session.MaxHistoryMessages,
		TopKeywords:        cfg.Session.TopKeywords,
		MemoryTimeout:      cfg.Session.MemoryTimeout,
		TurnTimeout:        cfg.Session.TurnTimeout,
		WelcomeTimeout:     cfg.Session.WelcomeTimeout,
	}, measuredLLM{providers.LLM, a.metrics}, providers.Memory, a.locationLine, log)

	a.splitter = sentence.NewSplitter(func(text string) string {
		return string(emotion.Infer(text))
	})

	a.scheduler = synth.New(synth.Config{
		ChunkBudget:   cfg.Synthesis.ChunkBudget,
		MaxConcurrent: int64(cfg.Synthesis.MaxConcurrent),
	}, measuredTTS{providers.TTS, a.metrics}, sink, log)
	a.scheduler.SetOnIdle(a.onPlaybackIdle)

	if providers.Memory != nil {
		a.extractor = facts.New(measuredLLM{providers.LLM, a.metrics}, providers.Memory,
			cfg.Character.UserName, cfg.Character.Name, log)
	}

	return a, nil
}

// SetNotifier wires the control surface after construction — the control
// server needs the App as its pipeline, so the two cannot be built in one
// step. Must be called before Run.
func (a *App) SetNotifier(n Notifier) {
	a.notify = n
}

// Run starts the scheduler and the capture loop and blocks until ctx is
// cancelled. The welcome turn runs once at startup, concurrently with
// capture — the gate stays locked until the greeting finishes playing.
func (a *App) Run(ctx context.Context) error {
	a.scheduler.Start(ctx)
	defer a.scheduler.Close()

	go a.welcome(ctx)

	err := a.captureLoop(ctx)

	if a.extractor != nil {
		a.extractor.Wait()
	}
	return err
}

// captureLoop is the single owner of the capture source and the detector.
func (a *App) captureLoop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		frame, err := a.source.Read()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("app: capture read: %w", err)
		}

		if a.interruptReq.CompareAndSwap(true, false) {
			a.detector.Interrupt()
		}
		utt, ok := a.detector.Poll(frame)
		a.userSpeaking.Store(a.detector.State() == vad.StateSpeaking)
		if !ok {
			continue
		}
		a.handleUtterance(ctx, utt)
	}
}

// handleUtterance transcribes one finalized utterance and dispatches the
// turn. Empty transcripts are dropped without locking the gate.
func (a *App) handleUtterance(ctx context.Context, utt vad.Utterance) {
	wav, err := audio.EncodeWAV(utt.Samples, utt.SampleRate)
	if err != nil {
		a.log.Error("utterance encode failed", "error", err)
		return
	}

	sttCtx, cancel := context.WithTimeout(ctx, sttTimeout)
	start := time.Now()
	transcript, err := a.providers.STT.Transcribe(sttCtx, wav)
	cancel()
	a.metrics.STTDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		a.log.Warn("transcription failed", "error", err)
		a.metrics.RecordProviderError(ctx, "stt", "transcribe")
		return
	}
	if strings.TrimSpace(transcript.Text) == "" {
		a.metrics.RecordUtteranceDrop(ctx, "empty_transcript")
		return
	}

	a.log.Info("transcript accepted",
		"text", transcript.Text,
		"language", transcript.Language,
		"duration", utt.Duration(),
	)
	a.dispatch(ctx, transcript.Text)
}

// locationLine renders the system-prompt location sentence for the current
// location and time of day.
func (a *App) locationLine() string {
	loc, ok := world.Get(world.ID(a.current.Load()))
	if !ok {
		return ""
	}
	return fmt.Sprintf("You are currently at %s. %s", loc.Name, loc.Description(a.hour()))
}

// onPlaybackIdle is the scheduler's drained callback: it performs the gate
// unlock that the turn deferred while audio was pending.
func (a *App) onPlaybackIdle() {
	if a.awaitingIdle.CompareAndSwap(true, false) {
		a.g.Unlock()
	}
}
