// Package api serves the speech HTTP API.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/dgnsrekt/riser-voice/internal/config"
	"github.com/dgnsrekt/riser-voice/internal/history"
	"github.com/dgnsrekt/riser-voice/internal/metrics"
	"github.com/dgnsrekt/riser-voice/internal/playback"
	"github.com/dgnsrekt/riser-voice/internal/queue"
)

// Deps are the collaborators the handlers call. History may be nil, in
// which case the history routes answer 404.
type Deps struct {
	Queue    *queue.Queue
	Playback *playback.Handler
	History  *history.Store
	Metrics  *metrics.Metrics
}

// Server handles HTTP API requests.
type Server struct {
	cfg      *config.Config
	logger   *slog.Logger
	server   *http.Server
	handler  http.Handler
	queue    *queue.Queue
	playback *playback.Handler
	history  *history.Store
	metrics  *metrics.Metrics
}

// New creates a new API server.
func New(cfg *config.Config, logger *slog.Logger, deps Deps) *Server {
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		queue:    deps.Queue,
		playback: deps.Playback,
		history:  deps.History,
		metrics:  deps.Metrics,
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}

	mux := http.NewServeMux()
	s.route(mux, "GET /v1/healthz", s.handleHealthz, false)
	s.route(mux, "GET /v1/voices", s.handleVoices, true)
	s.route(mux, "POST /v1/speak", s.handleSpeak, true)
	s.route(mux, "POST /v1/interrupt", s.handleInterrupt, true)
	s.route(mux, "POST /v1/synthesize", s.handleSynthesize, true)
	s.route(mux, "POST /v1/transcode", s.handleTranscode, true)
	s.route(mux, "GET /v1/history", s.handleHistoryList, true)
	s.route(mux, "DELETE /v1/history", s.handleHistoryClear, true)
	s.route(mux, "DELETE /v1/history/{id}", s.handleHistoryDelete, true)
	s.route(mux, "GET /v1/history/{id}/audio", s.handleHistoryAudio, true)
	s.route(mux, "POST /v1/history/{id}/replay", s.handleHistoryReplay, true)
	s.route(mux, "GET /metrics", s.metrics.Handler().ServeHTTP, true)
	s.handler = mux

	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
		// Synchronous synthesis can take up to the engine timeout.
		WriteTimeout: cfg.SynthTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) route(mux *http.ServeMux, pattern string, h http.HandlerFunc, auth bool) {
	if auth {
		h = s.withAuth(h)
	}
	mux.HandleFunc(pattern, s.withMetrics(pattern, h))
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// Serve accepts connections on l until Shutdown.
func (s *Server) Serve(l net.Listener) error {
	s.logger.Info("starting HTTP server", "addr", l.Addr().String())
	if err := s.server.Serve(l); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
