package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

const (
	defaultProbeInterval = 3 * time.Second
	defaultProbeTimeout  = 2 * time.Second
)

// Target is one sidecar the prober watches. Set receives the observed
// readiness on every transition.
type Target struct {
	// Name labels the sidecar in log output.
	Name string

	// URL is probed with a plain GET. Any response below 500 counts as up:
	// the local inference servers answer 404 on their root path while
	// perfectly able to serve.
	URL string

	// Set flips the matching readiness flag.
	Set func(ready bool)
}

// Prober polls sidecar endpoints and drives the turn gate's readiness flags.
// These are the externally-set readiness signals of the pipeline, made
// concrete.
type Prober struct {
	targets  []Target
	interval time.Duration
	client   *http.Client
	log      *slog.Logger

	// last holds the previous observation per target index, so transitions
	// can be logged once instead of every tick. Only the Run goroutine
	// touches it.
	last []bool
}

// NewProber creates a Prober over the given targets. interval <= 0 selects
// the default of 3s.
func NewProber(interval time.Duration, log *slog.Logger, targets ...Target) *Prober {
	if interval <= 0 {
		interval = defaultProbeInterval
	}
	if log == nil {
		log = slog.Default()
	}
	return &Prober{
		targets:  targets,
		interval: interval,
		client:   &http.Client{Timeout: defaultProbeTimeout},
		log:      log,
		last:     make([]bool, len(targets)),
	}
}

// Run probes every target once immediately, then on each tick, until ctx is
// cancelled. On cancellation all targets are marked not ready.
func (p *Prober) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.probeAll(ctx)
	for {
		select {
		case <-ctx.Done():
			for _, t := range p.targets {
				t.Set(false)
			}
			return
		case <-ticker.C:
			p.probeAll(ctx)
		}
	}
}

func (p *Prober) probeAll(ctx context.Context) {
	for i, t := range p.targets {
		ready := p.probe(ctx, t.URL)
		if ready != p.last[i] {
			p.log.Info("sidecar readiness changed", "sidecar", t.Name, "ready", ready)
			p.last[i] = ready
		}
		t.Set(ready)
	}
}

func (p *Prober) probe(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}
