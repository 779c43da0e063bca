// Package server exposes the engine over HTTP and WebSocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/becomeliminal/nim-reality/engine"
	"github.com/becomeliminal/nim-reality/reality"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// backendUnavailable is shown instead of storage and embedding errors.
const backendUnavailable = "the reality store is temporarily unavailable, please try again"

// Server serves turns, sessions and history.
type Server struct {
	engine   *engine.Engine
	sessions *reality.Sessions
	gatherer prometheus.Gatherer
	logger   *zap.Logger
	upgrader websocket.Upgrader
	router   http.Handler
}

// Option configures the server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithGatherer sets the source for /metrics. Default: the global registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		if g != nil {
			s.gatherer = g
		}
	}
}

// WithCheckOrigin sets the WebSocket origin check. By default only
// same-origin upgrades are accepted.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(s *Server) {
		s.upgrader.CheckOrigin = fn
	}
}

// New creates a server.
func New(e *engine.Engine, sessions *reality.Sessions, opts ...Option) *Server {
	s := &Server{
		engine:   e,
		sessions: sessions,
		gatherer: prometheus.DefaultGatherer,
		logger:   zap.NewNop(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("server")
	s.router = s.buildRouter()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// buildRouter constructs the chi mux with all routes wired.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth())
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Get("/ws", s.handleWebSocket())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/turns", s.handleTurn())

		r.Post("/sessions", s.handleStartSession())
		r.Get("/sessions/{id}", s.handleGetSession())
		r.Delete("/sessions/{id}", s.handleEndSession())
		r.Post("/sessions/{id}/turns", s.handleSessionTurn())

		r.Get("/users/{user_id}/realities", s.handleHistory())
	})

	return r
}

// errorResponse is the JSON body of every error.
type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps a turn error to an HTTP status and a client-safe message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, engine.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	// Checked before the backend errors, which may wrap the deadline.
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "turn timed out"
	case reality.IsStorageError(err), reality.IsEmbeddingError(err):
		return http.StatusBadGateway, backendUnavailable
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (s *Server) writeTurnError(w http.ResponseWriter, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("turn failed", zap.Error(err), zap.Int("status", status))
	}
	writeError(w, status, msg)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}
