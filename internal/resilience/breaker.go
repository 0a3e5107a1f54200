// Package resilience shields the turn path from flapping sidecars.
//
// [Breaker] is a three-state circuit breaker (closed, open, half-open) placed
// in front of the optional HTTP sidecars. A sidecar that starts timing out
// would otherwise add its full timeout to every turn; the breaker converts
// that into an instant rejection until the sidecar recovers. [SafeStore]
// wraps the long-term fact store with a breaker and degrades to "no memories"
// instead of failing the turn; [SafeWebhook] does the same for the overlay
// webhook.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned by [Breaker.Do] while the breaker is open and the cool
// down has not yet elapsed.
var ErrOpen = errors.New("resilience: breaker open")

// state is the breaker's operating mode.
type state int

const (
	stateClosed state = iota
	stateOpen
	stateHalfOpen
)

func (s state) String() string {
	switch s {
	case stateClosed:
		return "closed"
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker trips after a run of consecutive failures and rejects calls until
// a cool down passes, then lets a limited number of probes through.
type Breaker struct {
	name     string
	tripper  int
	coolDown time.Duration
	probes   int
	log      *slog.Logger

	mu       sync.Mutex
	mode     state
	failures int
	openedAt time.Time
	probing  int
}

// BreakerConfig tunes a [Breaker]. Zero values get replaced with defaults.
type BreakerConfig struct {
	// Name labels the protected sidecar in log output.
	Name string

	// TripAfter is the consecutive-failure count that opens the breaker.
	// Default: 3.
	TripAfter int

	// CoolDown is how long the breaker stays open before probing again.
	// Default: 15s.
	CoolDown time.Duration

	// Probes is how many successful half-open calls close the breaker.
	// Default: 1.
	Probes int
}

// NewBreaker creates a closed [Breaker].
func NewBreaker(cfg BreakerConfig, log *slog.Logger) *Breaker {
	if cfg.TripAfter <= 0 {
		cfg.TripAfter = 3
	}
	if cfg.CoolDown <= 0 {
		cfg.CoolDown = 15 * time.Second
	}
	if cfg.Probes <= 0 {
		cfg.Probes = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Breaker{
		name:     cfg.Name,
		tripper:  cfg.TripAfter,
		coolDown: cfg.CoolDown,
		probes:   cfg.Probes,
		log:      log.With("breaker", cfg.Name),
	}
}

// Do runs fn unless the breaker rejects the call. Open-state calls return
// [ErrOpen] immediately; half-open calls are limited to the probe budget.
func (b *Breaker) Do(fn func() error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := fn()
	b.settle(err)
	return err
}

// admit decides whether a call may go through, advancing open → half-open
// when the cool down has elapsed.
func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.mode {
	case stateOpen:
		if time.Since(b.openedAt) < b.coolDown {
			return ErrOpen
		}
		b.mode = stateHalfOpen
		b.probing = 0
		b.log.Info("breaker probing after cool down")
		fallthrough
	case stateHalfOpen:
		if b.probing >= b.probes {
			return ErrOpen
		}
		b.probing++
	}
	return nil
}

// settle records the call outcome and drives state transitions.
func (b *Breaker) settle(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		if b.mode == stateHalfOpen {
			// A failed probe re-opens immediately.
			b.mode = stateOpen
			b.openedAt = time.Now()
			b.log.Warn("breaker re-opened after failed probe")
			return
		}
		b.failures++
		if b.failures >= b.tripper {
			b.mode = stateOpen
			b.openedAt = time.Now()
			b.log.Warn("breaker opened", "consecutive_failures", b.failures)
		}
		return
	}

	if b.mode == stateHalfOpen && b.probing >= b.probes {
		b.log.Info("breaker closed after successful probe")
	}
	b.mode = stateClosed
	b.failures = 0
	b.probing = 0
}

// Tripped reports whether the breaker is currently rejecting calls.
func (b *Breaker) Tripped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mode == stateOpen && time.Since(b.openedAt) < b.coolDown
}

// Reset forces the breaker closed and clears all counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mode = stateClosed
	b.failures = 0
	b.probing = 0
}
