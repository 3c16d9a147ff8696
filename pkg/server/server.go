// Package server exposes frame analysis over HTTP and stores results in Redis.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/menta2k/frame-analyzer/internal/logging"
	"github.com/menta2k/frame-analyzer/pkg/metrics"
	"github.com/menta2k/frame-analyzer/pkg/response"
	"github.com/menta2k/frame-analyzer/pkg/types"
)

// HeaderRedisID carries the id the result was stored under; absent when no store is configured
const HeaderRedisID = "X-Redis-Id"

// maxBodyBytes caps the request body of /analyze_frames
const maxBodyBytes = 1 << 20

// Analyzer runs one batch over a directory
type Analyzer interface {
	AnalyzeDirectory(ctx context.Context, dir string) types.BatchResult
}

// ResultStore persists encoded batch results
type ResultStore interface {
	Save(ctx context.Context, id string, body []byte) error
}

// AnalyzeRequest is the body of POST /analyze_frames
type AnalyzeRequest struct {
	RedisID    string `json:"redis_id"`
	FramesPath string `json:"frames_path"`
}

// Server handles analysis requests
type Server struct {
	analyzer  Analyzer
	store     ResultStore
	formatter response.Formatter
	metrics   *metrics.Collector
	logger    *slog.Logger
}

// New creates a server; store and m may be nil
func New(a Analyzer, store ResultStore, f response.Formatter, m *metrics.Collector, logger *slog.Logger) *Server {
	return &Server{
		analyzer:  a,
		store:     store,
		formatter: f,
		metrics:   m,
		logger:    logging.OrDiscard(logger).With("component", "server"),
	}
}

// Handler returns the routed handler with panic recovery
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /analyze_frames", s.handleAnalyze)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	return s.recovery(mux)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server started", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON body: %v", err))
		return
	}
	req.FramesPath = strings.TrimSpace(req.FramesPath)
	if req.FramesPath == "" {
		s.writeError(w, http.StatusBadRequest, "frames_path is required")
		return
	}
	if req.RedisID == "" {
		req.RedisID = uuid.New().String()
	}

	logger := s.logger.With("redis_id", req.RedisID, "frames_path", req.FramesPath)
	logger.Info("analysis requested")

	result := s.analyzer.AnalyzeDirectory(r.Context(), req.FramesPath)
	body, err := s.formatter.Format(result)
	if err != nil {
		logger.Error("encode result", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to encode result")
		return
	}

	if s.store != nil {
		if err := s.store.Save(r.Context(), req.RedisID, body); err != nil {
			logger.Error("store result", "error", err)
			s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to store result: %v", err))
			return
		}
		w.Header().Set(HeaderRedisID, req.RedisID)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (s *Server) recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic in handler", "path", r.URL.Path, "panic", rec)
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
