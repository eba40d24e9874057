package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tribela/picrew-amuse/internal/adapter/mastodon"
	"github.com/tribela/picrew-amuse/internal/app"
	"github.com/tribela/picrew-amuse/internal/collage"
	"github.com/tribela/picrew-amuse/internal/config"
	"github.com/tribela/picrew-amuse/internal/festival"
	"github.com/tribela/picrew-amuse/internal/platform/logging"
	"github.com/tribela/picrew-amuse/internal/statestore"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupClient(cfg *config.Config, clock clockwork.Clock) *mastodon.Client {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := mastodon.New(ctx, cfg.MastodonServer, cfg.AccessToken, clock)
	if err != nil {
		slog.Error("Failed to connect to Mastodon", "error", err)
		os.Exit(1)
	}
	return client
}

func startMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Error("Metrics listener failed", "error", err)
		}
	}()
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)

	if err := os.MkdirAll(cfg.StoragePath, 0o755); err != nil {
		slog.Error("Failed to create storage directory", "path", cfg.StoragePath, "error", err)
		os.Exit(1)
	}

	client := setupClient(cfg, clock)
	slog.Info("Bot initialized", "account", client.FullHandle(client.Me()))

	synth := collage.NewSynthesizer(
		&collage.HTTPFetcher{},
		cfg.FontPath,
		cfg.QuestionImagePath(),
		cfg.AnswerImagePath(),
	)
	engine := festival.NewEngine(client, synth, cfg.QuestionImagePath(), cfg.AnswerImagePath())
	store := statestore.New(cfg.StatePath())
	poller := app.NewPoller(engine, client, store, clock, cfg.PollInterval)

	if cfg.MetricsAddr != "" {
		slog.Info("Starting metrics listener", "addr", cfg.MetricsAddr)
		startMetrics(cfg.MetricsAddr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Poll loop starting", "interval", cfg.PollInterval)
	poller.Run(ctx)
}
