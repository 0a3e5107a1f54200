// Package gate implements the turn gate: the single source of truth for
// "whose turn is it" between the user and the character.
//
// Four independent flags are combined:
//
//   - STT ready / TTS ready — readiness of the two local inference sidecars,
//     flipped by the health prober.
//   - canTalkAgain — the conversational turn token; false while the character
//     is generating or speaking a response.
//   - allowCapture — hard override; false for the entire duration of any
//     in-flight model call or command dispatch.
//
// The gate is an explicitly injected shared value: components receive a *Gate
// and consult it at every decision point. There are deliberately no
// package-level globals.
//
// Unlocking is deferred until playback of the full response has started, not
// until response generation completes. This prevents the character's own
// speech from being captured as user speech.
//
// All methods are safe for concurrent use.
package gate

import "sync"

// Gate holds the turn-taking flags.
type Gate struct {
	mu           sync.RWMutex
	sttReady     bool
	ttsReady     bool
	canTalkAgain bool
	allowCapture bool

	// listeners are notified on every state change. Used by the control
	// surface to push state events to the front end.
	listeners []func(State)
}

// State is a point-in-time snapshot of the gate flags.
type State struct {
	STTReady     bool
	TTSReady     bool
	CanTalkAgain bool
	AllowCapture bool
}

// New returns an unlocked gate with both services marked not ready.
// Capture stays blocked until the health prober reports both sidecars up.
func New() *Gate {
	return &Gate{
		canTalkAgain: true,
		allowCapture: true,
	}
}

// CanCapture reports whether a new utterance may begin recording: both
// sidecars ready, no hard block, and the turn token held by the user.
func (g *Gate) CanCapture() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.sttReady && g.ttsReady && g.allowCapture && g.canTalkAgain
}

// CanSend reports whether a finalized utterance may be sent to transcription.
// Checked again at send time because a full utterance duration elapses
// between the capture decision and the send.
func (g *Gate) CanSend() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.allowCapture && g.canTalkAgain
}

// Lock takes the turn away from the user. Called the instant a transcript is
// accepted for processing, before any routing decision, and held until the
// response has been fully handed to playback.
func (g *Gate) Lock() {
	g.setTurn(false)
}

// Unlock returns the turn to the user. Idempotent: unlocking an unlocked
// gate leaves it unlocked. Runs on every turn exit path, including failures.
func (g *Gate) Unlock() {
	g.setTurn(true)
}

// Locked reports whether the character currently holds the turn.
func (g *Gate) Locked() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return !g.canTalkAgain
}

// SetSTTReady flips the transcription sidecar readiness flag.
func (g *Gate) SetSTTReady(ready bool) {
	g.mu.Lock()
	changed := g.sttReady != ready
	g.sttReady = ready
	state := g.stateLocked()
	g.mu.Unlock()
	if changed {
		g.notify(state)
	}
}

// SetTTSReady flips the synthesis sidecar readiness flag.
func (g *Gate) SetTTSReady(ready bool) {
	g.mu.Lock()
	changed := g.ttsReady != ready
	g.ttsReady = ready
	state := g.stateLocked()
	g.mu.Unlock()
	if changed {
		g.notify(state)
	}
}

// Snapshot returns the current flag values.
func (g *Gate) Snapshot() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.stateLocked()
}

// OnChange registers fn to be called after every state change. Callbacks run
// synchronously on the mutating goroutine and must not call back into the
// gate's mutating methods.
func (g *Gate) OnChange(fn func(State)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listeners = append(g.listeners, fn)
}

func (g *Gate) setTurn(open bool) {
	g.mu.Lock()
	changed := g.canTalkAgain != open || g.allowCapture != open
	g.canTalkAgain = open
	g.allowCapture = open
	state := g.stateLocked()
	g.mu.Unlock()
	if changed {
		g.notify(state)
	}
}

func (g *Gate) stateLocked() State {
	return State{
		STTReady:     g.sttReady,
		TTSReady:     g.ttsReady,
		CanTalkAgain: g.canTalkAgain,
		AllowCapture: g.allowCapture,
	}
}

func (g *Gate) notify(state State) {
	g.mu.RLock()
	listeners := g.listeners
	g.mu.RUnlock()
	for _, fn := range listeners {
		fn(state)
	}
}
