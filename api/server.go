// Package api exposes the assistant over HTTP: a chat endpoint, session
// management, and health probes.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/finsight/finsight/internal/assistant"
	"github.com/finsight/finsight/internal/session"
)

// Asker answers questions. Satisfied by *assistant.Assistant.
type Asker interface {
	Ask(ctx context.Context, sessionID uuid.UUID, question string) (*assistant.Answer, error)
}

// SessionStore manages conversation persistence. Satisfied by *session.Store.
type SessionStore interface {
	CreateSession(ctx context.Context, title string) (*session.Session, error)
	GetSession(ctx context.Context, id uuid.UUID) (*session.Session, error)
	ListSessions(ctx context.Context, limit, offset int) ([]*session.Session, error)
	DeleteSession(ctx context.Context, id uuid.UUID) error
	Messages(ctx context.Context, sessionID uuid.UUID) ([]*session.Message, error)
}

// Pinger reports backend liveness. Satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config wires a Server.
type Config struct {
	Assistant Asker
	Sessions  SessionStore
	DB        Pinger
	Logger    *slog.Logger

	// RateLimit caps requests per second across all clients.
	// Zero disables limiting.
	RateLimit float64
}

// Server is the HTTP API server.
type Server struct {
	mux       *http.ServeMux
	assistant Asker
	sessions  SessionStore
	db        Pinger
	logger    *slog.Logger
	limiter   *rate.Limiter
}

// NewServer creates a Server with all routes configured.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Assistant == nil {
		return nil, errors.New("assistant is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("session store is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), int(cfg.RateLimit)*2)
	}

	s := &Server{
		mux:       http.NewServeMux(),
		assistant: cfg.Assistant,
		sessions:  cfg.Sessions,
		db:        cfg.DB,
		logger:    logger,
		limiter:   limiter,
	}

	s.mux.HandleFunc("POST /api/chat", s.handleChat)
	s.mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	s.mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	s.mux.HandleFunc("GET /api/sessions/{id}/messages", s.handleMessages)
	s.mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /ready", s.handleReady)

	return s, nil
}

// ServeHTTP implements http.Handler with the middleware stack:
// recovery catches panics from every layer below, logging tracks requests,
// the limiter sheds load before any handler runs.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var handler http.Handler = s.mux
	handler = s.rateLimitMiddleware(handler)
	handler = s.loggingMiddleware(handler)
	handler = s.recoveryMiddleware(handler)
	handler.ServeHTTP(w, r)
}

// NewHTTPServer wraps handler in an http.Server with production timeouts.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		// Answering a question involves several model calls.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}
}
