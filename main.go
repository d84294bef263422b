// Command chat-overlay is the main entrypoint for the stream overlay
// backend. It:
//   - Loads configuration and initializes structured logging.
//   - Joins the configured Twitch channel anonymously and routes every
//     message through the classification pipeline.
//   - Runs the now-playing poller, the announcer queue and the periodic
//     scheduler tick.
//   - Exposes an HTTP server with /events (SSE), /healthz, /status and
//     /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/onnwee/chat-overlay/announcer"
	"github.com/onnwee/chat-overlay/audio"
	"github.com/onnwee/chat-overlay/chat"
	"github.com/onnwee/chat-overlay/config"
	"github.com/onnwee/chat-overlay/filter"
	"github.com/onnwee/chat-overlay/identity"
	"github.com/onnwee/chat-overlay/music"
	"github.com/onnwee/chat-overlay/router"
	"github.com/onnwee/chat-overlay/server"
	"github.com/onnwee/chat-overlay/telemetry"
	"github.com/onnwee/chat-overlay/tracker"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load(".env")

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", map[bool]string{true: "json", false: "text"}[format == "json"]))

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	if err := cfg.ValidateChatReady(); err != nil {
		slog.Error("config incomplete", slog.Any("err", err))
		os.Exit(1)
	}
	ov := cfg.Overlay

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("chat-overlay", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Identity layer: aliases, roster, participant directory.
	norm := identity.NewNormalizer(ov.Aliases)
	dir, err := identity.NewDirectory(ov, norm)
	if err != nil {
		slog.Error("participant directory init failed", slog.Any("err", err))
		os.Exit(1)
	}
	roster := identity.NewRoster(ov.Roster, norm)
	track := tracker.New()

	// Announcer: content filter feeding the serialized TTS queue.
	contentFilter := filter.New(ov.BannedTerms, ov.TTS.CleanLength)
	queue := announcer.New(ov.TTS, contentFilter, announcer.NewHTTPSynthesizer(ov.TTS.Endpoint))
	queue.Start(ctx)
	defer queue.Stop()

	// Notification sound with the degradation chain.
	chain := audio.NewChain(ov.Audio, audio.LogSink{})
	if ov.Audio.Asset != "" {
		chain.Load(ctx, audio.LoadWAV(ov.Audio.Asset))
	}

	// UI feed and message pipeline.
	hub := server.NewHub()
	rt := router.New(norm, roster, dir, track, hub, chain, queue, router.Options{
		PrimaryStreamer: ov.PrimaryStreamer,
		DisplayDuration: ov.Display.MessageDuration.Std(),
		AudioTopN:       ov.Audio.TopN,
		MusicPrefix:     ov.Music.MessagePrefix,
	})

	// Now-playing poller announces track changes as messages from the
	// primary streamer, so they flow through the same pipeline.
	poller := music.New(ov.Music, func(pctx context.Context, text string) {
		rt.Handle(pctx, router.Event{Sender: ov.PrimaryStreamer, Text: text})
	})
	go poller.Run(ctx)

	// Periodic scheduler: day rollover and window upkeep between messages.
	go func() {
		ticker := time.NewTicker(cfg.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				track.Tick()
			}
		}
	}()

	// Chat ingestion.
	go func() {
		if err := chat.Listen(ctx, cfg.TwitchChannel, rt); err != nil {
			slog.Error("chat listener exited", slog.Any("err", err))
			stop()
		}
	}()

	// Enable pprof profiling endpoints in debug mode (ENABLE_PPROF=1)
	if os.Getenv("ENABLE_PPROF") == "1" {
		pprofAddr := os.Getenv("PPROF_ADDR")
		if pprofAddr == "" {
			pprofAddr = "localhost:6060"
		}
		go func() {
			slog.Info("pprof profiling enabled", slog.String("addr", pprofAddr))
			srv := &http.Server{
				Addr:              pprofAddr,
				Handler:           nil, // default mux exposes /debug/pprof
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       10 * time.Second,
				WriteTimeout:      10 * time.Second,
				IdleTimeout:       60 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil {
				slog.Error("pprof server error", slog.Any("err", err))
			}
		}()
	}

	// HTTP server (SSE feed, health, status, metrics)
	go func() {
		deps := server.Deps{
			Channel:   cfg.TwitchChannel,
			Tracker:   track,
			Hub:       hub,
			Announcer: queue,
			Audio:     chain,
			Music:     poller,
		}
		if err := server.Start(ctx, cfg.HTTPAddr, deps); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	// Block until shutdown signal
	<-ctx.Done()
	slog.Info("shutting down")
}
