package resilience

import (
	"context"
	"log/slog"

	"github.com/miravoice/mira/internal/webhook"
)

// Compile-time interface assertion.
var _ webhook.Sender = (*SafeWebhook)(nil)

// SafeWebhook wraps a [webhook.Sender] with a [Breaker]. Rejected calls
// surface an error so the turn path can speak its failure line without
// waiting out the overlay's timeout.
type SafeWebhook struct {
	inner   webhook.Sender
	breaker *Breaker
	log     *slog.Logger
}

// NewSafeWebhook wraps inner with the given breaker.
func NewSafeWebhook(inner webhook.Sender, breaker *Breaker, log *slog.Logger) *SafeWebhook {
	if log == nil {
		log = slog.Default()
	}
	return &SafeWebhook{inner: inner, breaker: breaker, log: log}
}

// Send forwards one command through the breaker.
func (w *SafeWebhook) Send(ctx context.Context, action, text string) (string, error) {
	var body string
	err := w.breaker.Do(func() error {
		var serr error
		body, serr = w.inner.Send(ctx, action, text)
		return serr
	})
	if err != nil {
		if err == ErrOpen {
			w.log.Debug("webhook call skipped, breaker open", "action", action)
		}
		return "", err
	}
	return body, nil
}
