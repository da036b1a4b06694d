// Package server exposes the HTTP API: gated and ungated ask
// endpoints, session history, health, and Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kubesage/kubesage/internal/agent"
	"github.com/kubesage/kubesage/internal/audit"
	"github.com/kubesage/kubesage/internal/config"
	"github.com/kubesage/kubesage/internal/history"
	"github.com/kubesage/kubesage/internal/metrics"
	"github.com/kubesage/kubesage/internal/policy"
)

// Server wires the request pipeline behind the HTTP API.
type Server struct {
	cfg          *config.Config
	logger       *zap.Logger
	auditor      audit.Logger
	gate         *policy.Gate
	debugLoop    *agent.Loop
	analysisLoop *agent.Loop
	coordinator  *history.Coordinator
	store        history.Store

	httpServer *http.Server
}

// New assembles the server from its collaborators.
func New(
	cfg *config.Config,
	logger *zap.Logger,
	auditor audit.Logger,
	gate *policy.Gate,
	debugLoop, analysisLoop *agent.Loop,
	coordinator *history.Coordinator,
	store history.Store,
) *Server {
	s := &Server{
		cfg:          cfg,
		logger:       logger,
		auditor:      auditor,
		gate:         gate,
		debugLoop:    debugLoop,
		analysisLoop: analysisLoop,
		coordinator:  coordinator,
		store:        store,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ask", s.instrument("/ask", s.handleAsk))
	mux.HandleFunc("/ask_current", s.instrument("/ask_current", s.handleAskCurrent))
	mux.HandleFunc("/history", s.instrument("/history", s.handleHistory))
	mux.HandleFunc("/health", s.instrument("/health", s.handleHealth))
	mux.HandleFunc("/ws/ask", s.handleWebSocket)
	mux.Handle("/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return s
}

// Start runs the HTTP listener until it fails or Stop is called.
func (s *Server) Start() error {
	s.logger.Info("server listening", zap.String("addr", s.httpServer.Addr))
	if s.auditor != nil {
		_ = s.auditor.Log(context.Background(), audit.NewEvent(audit.EventServerStarted).
			WithDescription("HTTP server started on "+s.httpServer.Addr))
	}
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop drains in-flight requests and shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	if s.auditor != nil {
		_ = s.auditor.Log(ctx, audit.NewEvent(audit.EventServerShutdown).
			WithDescription("HTTP server shutting down"))
	}
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the routing handler, used directly in tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// ─── Instrumentation and helpers ─────────────────────────────────────

// statusRecorder captures the response code for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		elapsed := time.Since(start)

		metrics.RequestsTotal.WithLabelValues(endpoint, strconv.Itoa(rec.status)).Inc()
		metrics.RequestDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
		s.logger.Info("request handled",
			zap.String("endpoint", endpoint),
			zap.String("method", r.Method),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", elapsed))
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError mirrors the {"detail": ...} error shape.
func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
