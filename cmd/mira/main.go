// Command mira runs the Mira voice companion: microphone capture, utterance
// detection, transcription, conversation, and speech synthesis against the
// local sidecar servers, with a websocket control surface for the rendering
// front end.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/miravoice/mira/internal/app"
	"github.com/miravoice/mira/internal/config"
	"github.com/miravoice/mira/internal/control"
	"github.com/miravoice/mira/internal/gate"
	"github.com/miravoice/mira/internal/health"
	"github.com/miravoice/mira/internal/observe"
	"github.com/miravoice/mira/internal/resilience"
	"github.com/miravoice/mira/internal/webhook"
	"github.com/miravoice/mira/pkg/audio/capture"
	"github.com/miravoice/mira/pkg/audio/playback"
	"github.com/miravoice/mira/pkg/memory"
	"github.com/miravoice/mira/pkg/memory/remote"
	"github.com/miravoice/mira/pkg/provider/llm/ollama"
	"github.com/miravoice/mira/pkg/provider/stt/whisperhttp"
	"github.com/miravoice/mira/pkg/provider/tts/xtts"
)

// version is stamped by the build; "dev" for local builds.
var version = "dev"

const (
	// captureFrameSamples is the mic read granularity: 100 ms at 16 kHz,
	// small enough for responsive silence detection.
	captureFrameSamples = 1600

	// playbackSampleRate is the output device rate; synthesized WAVs are
	// resampled to it on the fly.
	playbackSampleRate = 48000

	shutdownTimeout = 15 * time.Second
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "mira.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "mira: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "mira: %v\n", err)
		}
		return 1
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Server.LogLevel.SlogLevel(),
	}))
	slog.SetDefault(logger)

	slog.Info("mira starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"character", cfg.Character.Name,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := otelShutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Sidecar clients ───────────────────────────────────────────────────
	transcriber, err := whisperhttp.New(cfg.Sidecars.STTURL)
	if err != nil {
		slog.Error("failed to create transcription client", "err", err)
		return 1
	}

	ttsOpts := []xtts.Option{xtts.WithLanguage(cfg.Character.Language)}
	if cfg.Character.SpeakerWAV != "" {
		ttsOpts = append(ttsOpts, xtts.WithSpeakerWAV(cfg.Character.SpeakerWAV))
	}
	synthesizer, err := xtts.New(cfg.Sidecars.TTSURL, ttsOpts...)
	if err != nil {
		slog.Error("failed to create synthesis client", "err", err)
		return 1
	}

	chat := ollama.New(cfg.Sidecars.LLMURL, ollama.WithModel(cfg.Sidecars.Model))

	var store memory.Store
	if cfg.Sidecars.MemoryURL != "" {
		remoteStore, err := remote.New(cfg.Sidecars.MemoryURL)
		if err != nil {
			slog.Error("failed to create memory client", "err", err)
			return 1
		}
		breaker := resilience.NewBreaker(resilience.BreakerConfig{Name: "memory"}, logger)
		store = resilience.NewSafeStore(remoteStore, breaker, logger)
	}

	var hook webhook.Sender
	if cfg.Sidecars.WebhookURL != "" {
		client, err := webhook.New(cfg.Sidecars.WebhookURL)
		if err != nil {
			slog.Error("failed to create webhook client", "err", err)
			return 1
		}
		breaker := resilience.NewBreaker(resilience.BreakerConfig{Name: "webhook"}, logger)
		hook = resilience.NewSafeWebhook(client, breaker, logger)
	}

	// ── Audio devices ─────────────────────────────────────────────────────
	mic, err := capture.OpenMic(cfg.Capture.SampleRate, captureFrameSamples)
	if err != nil {
		slog.Error("failed to open microphone", "err", err)
		return 1
	}
	defer mic.Close()

	speaker, err := playback.OpenSpeaker(playbackSampleRate)
	if err != nil {
		slog.Error("failed to open speaker", "err", err)
		return 1
	}
	defer speaker.Close()

	// ── Pipeline ──────────────────────────────────────────────────────────
	g := gate.New()

	application, err := app.New(cfg, g, &app.Providers{
		STT:     transcriber,
		TTS:     synthesizer,
		LLM:     chat,
		Memory:  store,
		Webhook: hook,
	}, mic, speaker, logger)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	ctl := control.NewServer(application, g, logger)
	application.SetNotifier(ctl)
	g.OnChange(func(gate.State) { ctl.PushState() })

	// ── HTTP server: health, metrics, control websocket ───────────────────
	mux := http.NewServeMux()
	health.New(health.GateCheckers(g)...).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("/ws", ctl)

	srv := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: observe.Middleware(observe.DefaultMetrics())(mux),
	}

	prober := health.NewProber(cfg.Server.ProbeInterval, logger,
		health.Target{Name: "stt", URL: cfg.Sidecars.STTURL, Set: g.SetSTTReady},
		health.Target{Name: "tts", URL: cfg.Sidecars.TTSURL, Set: g.SetTTSReady},
	)

	slog.Info("server ready — press Ctrl+C to shut down")

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("pipeline: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		prober.Run(ctx)
		return nil
	})
	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	if err := eg.Wait(); err != nil {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}
