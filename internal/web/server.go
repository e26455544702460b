// Package web exposes the engine over HTTP: carrier webhooks, the
// media stream WebSocket, the management API, health, and metrics.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voxflow-ai/voxflow/internal/observability"
	"github.com/voxflow-ai/voxflow/internal/orchestrator"
	"github.com/voxflow-ai/voxflow/internal/session"
	"github.com/voxflow-ai/voxflow/internal/storage"
	"github.com/voxflow-ai/voxflow/internal/telephony"
)

// Engine is the orchestration surface the transport layer drives.
type Engine interface {
	StartOutboundCall(ctx context.Context, contactID, campaignID string) (*storage.Call, error)
	OnCallAnswered(ctx context.Context, callID string) (*orchestrator.Output, error)
	OnSpeechReceived(ctx context.Context, callID string, audio []byte, isFinal bool) (*orchestrator.Output, error)
	OnPlaybackFinished(ctx context.Context, callID string) error
	OnCallEnded(ctx context.Context, callID, reason string) error
	HandleStatusEvent(ctx context.Context, ev *telephony.StatusEvent) error
	Sessions() []session.Summary
	SessionStatus(callID string) (session.Status, error)
}

// Config holds server configuration.
type Config struct {
	Addr   string
	Engine Engine

	// Carrier validates webhook signatures and names the provider.
	Carrier telephony.Provider

	// PublicURL is the externally visible base URL, used both to
	// reconstruct signed webhook URLs and to build the media stream URL
	// handed to the carrier.
	PublicURL string

	// ValidateSignatures rejects webhooks with bad or missing carrier
	// signatures. Disable only for local development.
	ValidateSignatures bool

	Logger  *observability.Logger
	Metrics *observability.Metrics

	// Gatherer backs the /metrics endpoint. Default: prometheus.DefaultGatherer
	Gatherer prometheus.Gatherer
}

// Server is the HTTP front of the engine.
type Server struct {
	cfg    Config
	mux    *http.ServeMux
	server *http.Server
}

// NewServer creates the HTTP server and registers all routes.
func NewServer(cfg Config) *Server {
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{cfg: cfg, mux: http.NewServeMux()}

	s.mux.HandleFunc("POST /webhooks/twilio/voice/{call_id}", s.handleVoiceWebhook)
	s.mux.HandleFunc("POST /webhooks/twilio/status/{call_id}", s.handleStatusWebhook)
	s.mux.HandleFunc("GET /ws/stream/{call_id}", s.handleMediaStream)

	s.mux.HandleFunc("POST /v1/calls", s.handleCreateCall)
	s.mux.HandleFunc("GET /v1/sessions", s.handleListSessions)
	s.mux.HandleFunc("GET /v1/sessions/{call_id}", s.handleGetSession)

	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))

	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the route mux, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.mux }

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.cfg.Logger.Info(context.Background(), "http server listening", "addr", s.cfg.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web: server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.cfg.Logger.Warn(context.Background(), "failed to encode response", "error", err)
	}
}

func (s *Server) jsonError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) writeTwiML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, body)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"provider":        string(s.cfg.Carrier.Name()),
		"active_sessions": len(s.cfg.Engine.Sessions()),
	})
}
