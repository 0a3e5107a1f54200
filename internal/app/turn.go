package app

import (
	"context"
	"errors"
	"time"

	"github.com/miravoice/mira/internal/router"
	"github.com/miravoice/mira/internal/session"
	"github.com/miravoice/mira/internal/world"
	"github.com/miravoice/mira/pkg/provider/llm"
)

// webhookFailLine is spoken when the webhook call fails after the filler
// already promised an answer.
const webhookFailLine = "Hmm, I couldn't look that up right now. Sorry!"

// dispatch runs one full turn for accepted input text. The turn guard admits
// one dispatch at a time; input arriving while a turn runs is dropped, not
// queued. The admitted turn locks the gate immediately, and the unlock runs
// on every exit path, deferred to playback completion when audio was
// enqueued.
func (a *App) dispatch(ctx context.Context, text string) {
	if !a.turnActive.CompareAndSwap(false, true) {
		a.metrics.RecordUtteranceDrop(ctx, "turn_in_flight")
		a.log.Debug("dropping input, turn in flight", "text_len", len(text))
		return
	}
	defer a.turnActive.Store(false)

	a.g.Lock()
	start := time.Now()

	d := a.router.Classify(text, world.ID(a.current.Load()))
	if d.Kind == router.KindWebhook && a.providers.Webhook == nil {
		// No webhook configured: answer conversationally instead of
		// promising a lookup that cannot happen.
		d = router.Decision{Kind: router.KindChat, Text: text}
	}

	switch d.Kind {
	case router.KindChat:
		a.chatTurn(ctx, d)
	case router.KindLocation:
		a.locationTurn(ctx, d)
	case router.KindWebhook:
		a.webhookTurn(ctx, d)
	}

	a.metrics.TurnDuration.Record(ctx, time.Since(start).Seconds())
	a.finishTurn()
}

// chatTurn runs one conversational turn through the session.
func (a *App) chatTurn(ctx context.Context, d router.Decision) {
	reply, err := a.session.Ask(ctx, d.Text)
	if err != nil {
		if errors.Is(err, session.ErrEmptyReply) {
			a.log.Warn("model returned nothing speakable")
		} else {
			a.log.Error("chat turn failed", "error", err)
		}
		return
	}

	a.metrics.RecordTurn(ctx, "chat")
	if a.notify != nil {
		a.notify.PushResponse(reply)
	}
	a.speak(ctx, reply)
	if a.extractor != nil {
		a.extractor.ExtractAndStore(ctx, d.Text, reply)
	}
}

func (a *App) locationTurn(ctx context.Context, d router.Decision) {
	a.current.Store(int64(d.Location.ID))
	a.session.AddMessage(llm.RoleAssistant, d.HistoryNote)
	a.log.Info("location changed",
		"location", d.Location.Name,
		"random", d.RandomPick,
	)
	a.metrics.RecordTurn(ctx, "location")
	a.speak(ctx, d.Confirmation)
}

func (a *App) webhookTurn(ctx context.Context, d router.Decision) {
	// The filler plays while the lookup is in flight.
	a.speak(ctx, d.Filler)

	body, err := a.providers.Webhook.Send(ctx, string(d.Action), d.Text)
	if err != nil {
		a.log.Warn("webhook call failed", "action", d.Action, "error", err)
		a.metrics.RecordProviderError(ctx, "webhook", string(d.Action))
		a.speak(ctx, webhookFailLine)
		return
	}

	a.metrics.RecordTurn(ctx, "webhook")
	a.session.AddMessage(llm.RoleAssistant, body)
	if a.notify != nil {
		a.notify.PushResponse(body)
	}
	a.speak(ctx, body)
}

// welcome runs the one-time greeting with the longer cold-start timeout.
func (a *App) welcome(ctx context.Context) {
	if !a.turnActive.CompareAndSwap(false, true) {
		return
	}
	defer a.turnActive.Store(false)

	a.g.Lock()
	reply, err := a.session.Welcome(ctx, greetingPrompt)
	if err != nil {
		a.log.Warn("welcome turn failed", "error", err)
		a.finishTurn()
		return
	}
	a.metrics.RecordTurn(ctx, "welcome")
	if a.notify != nil {
		a.notify.PushResponse(reply)
	}
	a.speak(ctx, reply)
	a.finishTurn()
}

// speak splits text into sentences, pushes each to the front end, and hands
// it to the synthesis scheduler.
func (a *App) speak(ctx context.Context, text string) {
	for _, unit := range a.splitter.Split(text) {
		if a.notify != nil {
			a.notify.PushSentence(unit.Text, unit.Emotion)
		}
		a.scheduler.Enqueue(ctx, unit.Text)
	}
}

// finishTurn arranges the gate unlock: immediately when nothing is playing,
// otherwise deferred to the scheduler's idle callback. The re-check after
// setting the flag closes the race where playback drains between the
// Speaking probe and the flag store.
func (a *App) finishTurn() {
	if !a.scheduler.Speaking() {
		a.g.Unlock()
		return
	}
	a.awaitingIdle.Store(true)
	if !a.scheduler.Speaking() && a.awaitingIdle.CompareAndSwap(true, false) {
		a.g.Unlock()
	}
}

// SubmitText feeds typed text from the control surface through the same
// routing path as a spoken transcript.
func (a *App) SubmitText(ctx context.Context, text string) {
	go a.dispatch(ctx, text)
}

// ForceLocation changes the current location on behalf of the control
// surface. An empty name picks a random location. Dropped while another turn
// owns the gate.
func (a *App) ForceLocation(ctx context.Context, name string) {
	if !a.turnActive.CompareAndSwap(false, true) {
		a.log.Debug("dropping location change, turn in flight", "target", name)
		return
	}
	defer a.turnActive.Store(false)

	d := a.router.Travel(name, world.ID(a.current.Load()))
	a.g.Lock()
	a.locationTurn(ctx, d)
	a.finishTurn()
}

// Interrupt discards the utterance currently being captured, if any. The
// detector reset is applied by the capture loop on its next frame.
func (a *App) Interrupt() {
	a.interruptReq.Store(true)
}

// Speaking reports whether the character has audio pending or playing.
func (a *App) Speaking() bool { return a.scheduler.Speaking() }

// UserSpeaking reports whether the capture loop is mid-utterance.
func (a *App) UserSpeaking() bool { return a.userSpeaking.Load() }
