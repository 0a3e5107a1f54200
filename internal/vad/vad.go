// Package vad implements the energy-based voice-activity detector that turns
// a polled microphone stream into discrete utterances.
//
// The detector is a two-state machine (Idle, Speaking) driven by per-frame
// RMS loudness. A rolling pre-roll buffer is maintained at all times so the
// first word of an utterance is never lost, and the silence timer accumulates
// audio duration rather than wall-clock time so detection behaviour does not
// depend on the polling cadence.
package vad

import (
	"time"

	"github.com/miravoice/mira/pkg/audio"
)

// halfThresholdRatio scales the start threshold down to the silence
// threshold: frames below startThreshold*halfThresholdRatio accumulate
// silence, frames at or above it reset the silence timer.
const halfThresholdRatio = 0.5

// Defaults for the tunable thresholds. Exact values are tuning, not
// correctness; they are named here so nothing is inlined at call sites.
const (
	DefaultStartThreshold   = 0.02
	DefaultPreRoll          = 500 * time.Millisecond
	DefaultStopAfterSilence = 1200 * time.Millisecond
	DefaultMaxSpeech        = 15 * time.Second
	DefaultMinUtterance     = 250 * time.Millisecond
)

// State is the detector's speech-presence state.
type State int

const (
	// StateIdle means no speech is currently being captured.
	StateIdle State = iota

	// StateSpeaking means an utterance is accumulating.
	StateSpeaking
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSpeaking:
		return "speaking"
	default:
		return "unknown"
	}
}

// TurnGate is the subset of the turn gate the detector consults. Capture may
// only begin when CanCapture reports true, and a finalized utterance is only
// emitted when CanSend still reports true, because a full utterance duration
// elapses between the two checks.
type TurnGate interface {
	CanCapture() bool
	CanSend() bool
}

// Utterance is one continuous span of detected user speech, pre-roll
// included, finalized and ready for transcription.
type Utterance struct {
	// Samples is mono linear-amplitude PCM.
	Samples []float32

	// SampleRate in Hz.
	SampleRate int
}

// Duration returns the audio duration of the utterance.
func (u Utterance) Duration() time.Duration {
	if u.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(u.Samples)) / float64(u.SampleRate) * float64(time.Second))
}

// Config holds the detector thresholds.
type Config struct {
	// SampleRate of the incoming frames in Hz.
	SampleRate int

	// StartThreshold is the RMS loudness required to enter Speaking.
	StartThreshold float64

	// PreRoll is how much trailing audio is kept while Idle and prepended
	// to a new utterance.
	PreRoll time.Duration

	// StopAfterSilence finalizes the utterance once this much audio below
	// the silence threshold has accumulated.
	StopAfterSilence time.Duration

	// MaxSpeech is the hard cap on utterance duration, independent of
	// silence.
	MaxSpeech time.Duration

	// MinUtterance is the floor below which a finalized utterance is
	// discarded as noise.
	MinUtterance time.Duration
}

func (c *Config) applyDefaults() {
	if c.StartThreshold <= 0 {
		c.StartThreshold = DefaultStartThreshold
	}
	if c.PreRoll <= 0 {
		c.PreRoll = DefaultPreRoll
	}
	if c.StopAfterSilence <= 0 {
		c.StopAfterSilence = DefaultStopAfterSilence
	}
	if c.MaxSpeech <= 0 {
		c.MaxSpeech = DefaultMaxSpeech
	}
	if c.MinUtterance <= 0 {
		c.MinUtterance = DefaultMinUtterance
	}
}

// Detector is the utterance state machine. It is single-owner by design: the
// capture loop is the only goroutine calling Poll, matching the one-reader
// contract of the capture source. Interrupt is the one cross-goroutine entry
// point and only flips an atomic-style flag under the same mutex-free model —
// callers must serialise it through the owning loop (see app).
type Detector struct {
	cfg  Config
	gate TurnGate

	state     State
	preRoll   []float32 // rolling buffer, capped at preRollSamples
	utterance []float32
	speech    time.Duration // total speaking duration
	silence   time.Duration // accumulated sub-threshold audio duration
}

// New creates a Detector. Zero-value thresholds in cfg are replaced with the
// package defaults. gate must not be nil.
func New(cfg Config, gate TurnGate) *Detector {
	cfg.applyDefaults()
	return &Detector{
		cfg:     cfg,
		gate:    gate,
		preRoll: make([]float32, 0, cfg.preRollSamples()),
	}
}

func (c Config) preRollSamples() int {
	return int(float64(c.SampleRate) * c.PreRoll.Seconds())
}

// State returns the current speech-presence state.
func (d *Detector) State() State {
	return d.state
}

// Poll feeds one captured frame through the state machine. When the frame
// completes an utterance that passes the gate and minimum-duration checks,
// the finalized utterance is returned with ok=true. In every other case ok
// is false and the returned Utterance is the zero value.
func (d *Detector) Poll(frame audio.Frame) (Utterance, bool) {
	loudness := audio.RMS(frame.Samples)

	switch d.state {
	case StateIdle:
		d.appendPreRoll(frame.Samples)
		if loudness >= d.cfg.StartThreshold && d.gate.CanCapture() {
			// Seed the new utterance with the entire pre-roll so the
			// first word is intact, then start accumulating.
			d.state = StateSpeaking
			d.utterance = append(d.utterance[:0], d.preRoll...)
			d.speech = time.Duration(float64(len(d.utterance)) / float64(d.cfg.SampleRate) * float64(time.Second))
			d.silence = 0
		}
		return Utterance{}, false

	case StateSpeaking:
		d.utterance = append(d.utterance, frame.Samples...)
		d.speech += frame.Duration()

		if loudness < d.cfg.StartThreshold*halfThresholdRatio {
			d.silence += frame.Duration()
		} else {
			d.silence = 0
		}

		if d.silence >= d.cfg.StopAfterSilence || d.speech >= d.cfg.MaxSpeech {
			return d.finalize()
		}
		return Utterance{}, false
	}
	return Utterance{}, false
}

// Interrupt forces Speaking → Idle, discarding the in-progress utterance
// without finalizing it. A no-op while Idle.
func (d *Detector) Interrupt() {
	d.reset()
}

// finalize ends the utterance and applies the send-time gate and minimum
// duration checks. Failing either check discards the utterance silently —
// this is expected steady-state behaviour, not an error.
func (d *Detector) finalize() (Utterance, bool) {
	u := Utterance{
		Samples:    make([]float32, len(d.utterance)),
		SampleRate: d.cfg.SampleRate,
	}
	copy(u.Samples, d.utterance)
	d.reset()

	if !d.gate.CanSend() {
		return Utterance{}, false
	}
	if u.Duration() < d.cfg.MinUtterance {
		return Utterance{}, false
	}
	return u, true
}

func (d *Detector) reset() {
	d.state = StateIdle
	d.utterance = d.utterance[:0]
	d.speech = 0
	d.silence = 0
}

// appendPreRoll pushes samples into the rolling pre-roll buffer, dropping
// the oldest samples once the configured window is full.
func (d *Detector) appendPreRoll(samples []float32) {
	max := d.cfg.preRollSamples()
	if max <= 0 {
		return
	}
	d.preRoll = append(d.preRoll, samples...)
	if overflow := len(d.preRoll) - max; overflow > 0 {
		d.preRoll = d.preRoll[:copy(d.preRoll, d.preRoll[overflow:])]
	}
}
