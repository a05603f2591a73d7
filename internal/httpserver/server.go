// Package httpserver exposes the ingestion service over HTTP.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"tweet_collector/internal/config"
	"tweet_collector/internal/ingest"
	"tweet_collector/internal/model"
)

const maxBodyBytes = 50 << 20

// Server is the HTTP surface of the ingestion service.
type Server struct {
	cfg        *config.Server
	queue      *ingest.Queue
	store      *ingest.FileStore
	log        *slog.Logger
	httpServer *http.Server

	fatalOnce sync.Once
	fatal     chan struct{}
}

// NewServer creates the HTTP server over the given queue and store.
func NewServer(cfg *config.Server, queue *ingest.Queue, store *ingest.FileStore, log *slog.Logger) *Server {
	s := &Server{
		cfg:   cfg,
		queue: queue,
		store: store,
		log:   log,
		fatal: make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /store-data", s.handleStoreData)
	mux.HandleFunc("GET /get-tweets", s.handleGetTweets)
	mux.HandleFunc("GET /health", s.handleHealth)

	handler := s.withRecovery(withLogging(log, s.withCORS(mux)))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start begins listening for HTTP requests. It blocks until the server is
// shut down or an error occurs.
func (s *Server) Start() error {
	s.log.Info("starting HTTP server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Fatal is closed after an unhandled panic in a handler; the main loop
// should shut down rather than keep serving from possibly inconsistent
// state.
func (s *Server) Fatal() <-chan struct{} {
	return s.fatal
}

// Handler returns the fully wrapped handler (useful for testing).
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStoreData(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	var records []model.WireTweet
	if err := json.Unmarshal(body, &records); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid data format", "request body must be a JSON array of records")
		return
	}

	result, err := s.queue.Submit(r.Context(), records)
	if err != nil {
		s.log.Error("ingestion job failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error", err.Error())
		return
	}

	resp := map[string]any{
		"message": "Tweets stored successfully",
		"count":   result.Count,
	}
	if result.Count == 0 {
		resp["message"] = "No new unique tweets"
	}
	if result.Filename != "" {
		resp["filename"] = result.Filename
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetTweets(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", ingest.DefaultPageLimit)

	result, err := s.store.ReadPage(page, limit)
	if err != nil {
		s.log.Error("read tweets", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	return n
}

// withCORS applies the cross-origin policy: requests without an Origin
// header pass, requests with one must match the allow list.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if !s.cfg.OriginAllowed(origin) {
			s.log.Warn("origin rejected", "origin", origin)
			writeError(w, http.StatusForbidden, "Forbidden", "origin not allowed")
			return
		}

		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Max-Age", "86400")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRecovery converts a handler panic into a 500 response and signals
// the fatal channel so the process shuts down gracefully instead of
// serving from possibly inconsistent in-memory state.
func (s *Server) withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error("unhandled panic", "panic", rec, "path", r.URL.Path)
				writeError(w, http.StatusInternalServerError, "Unexpected server error", fmt.Sprint(rec))
				s.fatalOnce.Do(func() { close(s.fatal) })
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func withLogging(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		log.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration", time.Since(start),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, map[string]string{
		"error":   errType,
		"message": message,
	})
}
