package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"tweet_collector/internal/config"
	"tweet_collector/internal/httpserver"
	"tweet_collector/internal/ingest"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadServer()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		log.Error("create data directory", "path", cfg.DataDir, "error", err)
		os.Exit(1)
	}

	store := ingest.NewFileStore(cfg.DataDir, log)
	queue := ingest.NewQueue(store, log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go queue.Run(ctx)

	server := httpserver.NewServer(cfg, queue, store, log)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			log.Error("http server exited with error", "error", err)
			cancel()
		}
	}()

	log.Info("server started", "port", cfg.Port, "data_dir", cfg.DataDir)

	select {
	case <-ctx.Done():
		log.Info("received signal, shutting down")
	case <-server.Fatal():
		log.Error("unhandled failure, shutting down")
		cancel()
	}

	if err := server.Shutdown(context.Background()); err != nil {
		log.Error("shutdown http server", "error", err)
	}

	log.Info("server stopped")
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
