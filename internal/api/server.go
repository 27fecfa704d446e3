// Package api exposes the subscription management HTTP surface: request a
// verification code, then subscribe, update, or unsubscribe with it. The
// API never serves generated content; it only manages the audience.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// Server holds the router and the wired handler set.
type Server struct {
	router  chi.Router
	handler *SubscriptionHandler
	logger  *slog.Logger
}

// NewServer creates the HTTP server surface and mounts all routes.
func NewServer(handler *SubscriptionHandler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		router:  chi.NewRouter(),
		handler: handler,
		logger:  logger,
	}
	s.mountRoutes()
	return s
}

// mountRoutes registers the global middleware chain and all endpoints.
// Middleware order matters: Recoverer outermost, then request ID so the
// logger can include it.
func (s *Server) mountRoutes() {
	s.router.Use(Recoverer(s.logger))
	s.router.Use(RequestIDMiddleware)
	s.router.Use(RequestLogger(s.logger))

	s.router.Get("/health", s.handleHealth)
	s.router.Post("/verify/send", s.handler.HandleSendCode)
	s.router.Post("/subscribe", s.handler.HandleSubscribe)
	s.router.Post("/unsubscribe", s.handler.HandleUnsubscribe)
	s.router.Post("/update", s.handler.HandleUpdate)
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// handleHealth implements GET /health, a liveness probe with no
// dependencies: it reports that the process is up, nothing more.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	JSON(w, r, http.StatusOK, APIResponse{Data: map[string]string{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	}})
}
