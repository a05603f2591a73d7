package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"tweet_collector/internal/config"
	"tweet_collector/internal/page"
	"tweet_collector/internal/scraper"
	"tweet_collector/internal/sender"
	"tweet_collector/internal/storage"
)

func main() {
	// A local .env is optional; real deployments set the environment.
	_ = godotenv.Load()

	cfg, err := config.LoadAgent()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.JournalPath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	// The journal is best-effort: without it the agent still dedups in
	// memory and the server-side pass absorbs the duplicate sends.
	var journal storage.Journal
	if j, err := storage.NewSQLite(cfg.JournalPath); err != nil {
		log.Warn("open journal, continuing without", "path", cfg.JournalPath, "error", err)
	} else {
		journal = j
		defer func() { _ = j.Close() }()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	bridge := page.NewBridge(cfg.EventsURL, log)
	fetcher := page.NewFetcher(http.DefaultClient, cfg.SnapshotURL)
	index := scraper.NewIndex()

	scr := scraper.New(fetcher, bridge.Events(), index, journal, log)
	snd := sender.New(http.DefaultClient, cfg.IngestURL, index, journal, log)

	go func() { _ = bridge.Run(ctx) }()
	go snd.Run(ctx)

	scr.Start()
	log.Info("agent started", "ingest_url", cfg.IngestURL)

	<-ctx.Done()

	scr.Stop()
	log.Info("agent stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
