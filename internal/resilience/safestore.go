package resilience

import (
	"context"
	"log/slog"

	"github.com/miravoice/mira/pkg/memory"
)

// Compile-time interface assertion.
var _ memory.Store = (*SafeStore)(nil)

// SafeStore wraps a [memory.Store] with a [Breaker]. A tripped breaker turns
// queries into empty results so a dead memory sidecar costs the conversation
// its recall, not its voice. Saves still report the rejection so the fact
// extractor can log it.
type SafeStore struct {
	inner   memory.Store
	breaker *Breaker
	log     *slog.Logger
}

// NewSafeStore wraps inner with the given breaker.
func NewSafeStore(inner memory.Store, breaker *Breaker, log *slog.Logger) *SafeStore {
	if log == nil {
		log = slog.Default()
	}
	return &SafeStore{inner: inner, breaker: breaker, log: log}
}

// Query returns the inner store's facts, or no facts when the breaker
// rejects the call.
func (s *SafeStore) Query(ctx context.Context, keywords []string) ([]memory.Fact, error) {
	var facts []memory.Fact
	err := s.breaker.Do(func() error {
		var qerr error
		facts, qerr = s.inner.Query(ctx, keywords)
		return qerr
	})
	if err != nil {
		if err == ErrOpen {
			s.log.Debug("memory query skipped, breaker open")
			return nil, nil
		}
		return nil, err
	}
	return facts, nil
}

// Save forwards to the inner store through the breaker.
func (s *SafeStore) Save(ctx context.Context, fact memory.Fact) error {
	return s.breaker.Do(func() error {
		return s.inner.Save(ctx, fact)
	})
}
