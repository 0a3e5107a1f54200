package vad

import (
	"testing"
	"time"

	"github.com/miravoice/mira/pkg/audio"
)

const testRate = 16000

// stubGate is a TurnGate with directly settable answers.
type stubGate struct {
	capture bool
	send    bool
}

func (g *stubGate) CanCapture() bool { return g.capture }
func (g *stubGate) CanSend() bool    { return g.send }

// frame builds a 20 ms frame of constant amplitude.
func frame(amplitude float32) audio.Frame {
	samples := make([]float32, testRate/50)
	for i := range samples {
		samples[i] = amplitude
	}
	return audio.Frame{Samples: samples, SampleRate: testRate}
}

func newTestDetector(g TurnGate) *Detector {
	return New(Config{
		SampleRate:       testRate,
		StartThreshold:   0.05,
		PreRoll:          100 * time.Millisecond,
		StopAfterSilence: 200 * time.Millisecond,
		MaxSpeech:        2 * time.Second,
		MinUtterance:     250 * time.Millisecond,
	}, g)
}

// speakFor feeds loud frames for the given audio duration.
func speakFor(d *Detector, dur time.Duration) (Utterance, bool) {
	frames := int(dur / (20 * time.Millisecond))
	for i := 0; i < frames; i++ {
		if u, ok := d.Poll(frame(0.5)); ok {
			return u, true
		}
	}
	return Utterance{}, false
}

// silenceFor feeds quiet frames for the given audio duration.
func silenceFor(d *Detector, dur time.Duration) (Utterance, bool) {
	frames := int(dur / (20 * time.Millisecond))
	for i := 0; i < frames; i++ {
		if u, ok := d.Poll(frame(0.001)); ok {
			return u, true
		}
	}
	return Utterance{}, false
}

func TestIdleStaysIdleBelowThreshold(t *testing.T) {
	t.Parallel()

	d := newTestDetector(&stubGate{capture: true, send: true})
	if _, ok := silenceFor(d, time.Second); ok {
		t.Fatal("silence produced an utterance")
	}
	if d.State() != StateIdle {
		t.Fatalf("state = %v, want idle", d.State())
	}
}

func TestGateBlocksCaptureStart(t *testing.T) {
	t.Parallel()

	g := &stubGate{capture: false, send: true}
	d := newTestDetector(g)
	speakFor(d, 500*time.Millisecond)
	if d.State() != StateIdle {
		t.Fatal("detector started capturing while gate was closed")
	}
}

func TestUtteranceEmittedAfterSilence(t *testing.T) {
	t.Parallel()

	d := newTestDetector(&stubGate{capture: true, send: true})

	if _, ok := speakFor(d, 600*time.Millisecond); ok {
		t.Fatal("utterance finalized while still speaking")
	}
	if d.State() != StateSpeaking {
		t.Fatalf("state = %v, want speaking", d.State())
	}

	u, ok := silenceFor(d, 300*time.Millisecond)
	if !ok {
		t.Fatal("no utterance after silence timeout")
	}
	if d.State() != StateIdle {
		t.Fatalf("state = %v after finalize, want idle", d.State())
	}

	// 600 ms of speech + up to 200 ms of silence + 100 ms pre-roll.
	if got := u.Duration(); got < 600*time.Millisecond || got > 1200*time.Millisecond {
		t.Fatalf("utterance duration %v outside expected range", got)
	}
}

func TestPreRollSeedsUtterance(t *testing.T) {
	t.Parallel()

	d := newTestDetector(&stubGate{capture: true, send: true})

	// Fill pre-roll with quiet audio, then speak.
	silenceFor(d, 500*time.Millisecond)
	speakFor(d, 400*time.Millisecond)
	u, ok := silenceFor(d, 300*time.Millisecond)
	if !ok {
		t.Fatal("no utterance emitted")
	}

	// The utterance must contain at least the 100 ms pre-roll beyond the
	// speech itself, and its head must be the quiet pre-roll samples.
	if u.Duration() < 500*time.Millisecond {
		t.Fatalf("utterance %v too short to contain pre-roll", u.Duration())
	}
	if u.Samples[0] != 0.001 {
		t.Fatalf("utterance head sample = %v, want pre-roll amplitude", u.Samples[0])
	}
}

func TestLoudFrameResetsSilenceTimer(t *testing.T) {
	t.Parallel()

	d := newTestDetector(&stubGate{capture: true, send: true})
	speakFor(d, 400*time.Millisecond)

	// Alternate quiet and loud so accumulated silence never reaches the
	// stop threshold. Few enough iterations to stay under the hard cap.
	for i := 0; i < 8; i++ {
		if _, ok := silenceFor(d, 100*time.Millisecond); ok {
			t.Fatal("utterance finalized despite silence timer resets")
		}
		d.Poll(frame(0.5))
	}
	if d.State() != StateSpeaking {
		t.Fatal("detector left speaking state")
	}
}

func TestMaxSpeechHardCap(t *testing.T) {
	t.Parallel()

	d := newTestDetector(&stubGate{capture: true, send: true})
	u, ok := speakFor(d, 3*time.Second)
	if !ok {
		t.Fatal("no utterance despite exceeding max speech duration")
	}
	if got := u.Duration(); got > 2200*time.Millisecond {
		t.Fatalf("utterance duration %v exceeds hard cap", got)
	}
}

func TestShortUtteranceDiscarded(t *testing.T) {
	t.Parallel()

	// 0.15 s at max loudness is below the minimum floor: discarded, no
	// transcription issued.
	d := New(Config{
		SampleRate:       testRate,
		StartThreshold:   0.05,
		PreRoll:          time.Millisecond, // negligible pre-roll
		StopAfterSilence: 100 * time.Millisecond,
		MaxSpeech:        2 * time.Second,
		MinUtterance:     250 * time.Millisecond,
	}, &stubGate{capture: true, send: true})

	speakFor(d, 150*time.Millisecond)
	if _, ok := silenceFor(d, 200*time.Millisecond); ok {
		t.Fatal("sub-floor utterance was emitted")
	}
}

func TestSendGateDropsFinalizedUtterance(t *testing.T) {
	t.Parallel()

	g := &stubGate{capture: true, send: true}
	d := newTestDetector(g)
	speakFor(d, 600*time.Millisecond)

	// Gate closes between capture start and finalize.
	g.send = false
	if _, ok := silenceFor(d, 300*time.Millisecond); ok {
		t.Fatal("utterance emitted while send gate closed")
	}
	if d.State() != StateIdle {
		t.Fatal("detector did not reset after gated finalize")
	}
}

func TestInterruptDiscardsInProgress(t *testing.T) {
	t.Parallel()

	d := newTestDetector(&stubGate{capture: true, send: true})
	speakFor(d, 600*time.Millisecond)
	d.Interrupt()

	if d.State() != StateIdle {
		t.Fatal("interrupt did not return detector to idle")
	}
	if _, ok := silenceFor(d, 300*time.Millisecond); ok {
		t.Fatal("utterance emitted after interrupt")
	}
}
