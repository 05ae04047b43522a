package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/abrezinsky/planningpoker/internal/tracing"
)

// conditionalHTTPLogger only logs HTTP requests when HTTP logging is enabled
func (h *Handlers) conditionalHTTPLogger(next http.Handler) http.Handler {
	logger := middleware.Logger(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Log != nil && h.Log.IsHTTPLoggingEnabled() {
			logger.ServeHTTP(w, r)
		} else {
			next.ServeHTTP(w, r)
		}
	})
}

// Router returns a configured chi router with all routes
func (h *Handlers) Router() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.conditionalHTTPLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RedirectSlashes)

	r.Get("/health", h.handleHealth)

	// Push streams stay open for the life of the connection, so they sit
	// outside the request timeout
	r.Get("/api/sessions/{code}/events", h.handleEvents)
	r.Get("/api/sessions/{code}/ws", h.handleWebSocket)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Use(tracing.Middleware)

		// Sessions
		r.Post("/api/sessions", h.handleCreateSession)
		r.Get("/api/sessions/{code}", h.handleGetSession)
		r.Delete("/api/sessions/{code}", h.handleDeleteSession)
		r.Get("/api/sessions/{code}/history", h.handleGetHistory)
		r.Get("/api/sessions/{code}/qr", h.handleGetQR)

		// Users
		r.Post("/api/sessions/{code}/users", h.handleJoinSession)
		r.Delete("/api/sessions/{code}/users/{userId}", h.handleLeaveSession)

		// Voting
		r.Post("/api/sessions/{code}/voting/start", h.handleStartVoting)
		r.Post("/api/sessions/{code}/voting/votes", h.handleSubmitVote)
		r.Post("/api/sessions/{code}/voting/reveal", h.handleRevealVotes)
		r.Post("/api/sessions/{code}/voting/reset", h.handleResetVotes)

		// Admin auth (public)
		r.Post("/api/admin/login", h.handleAdminLogin)
		r.Post("/api/admin/logout", h.handleAdminLogout)

		// Admin API (protected)
		r.Group(func(r chi.Router) {
			r.Use(h.Auth.RequireAuthAPI)
			r.Get("/api/admin/sessions", h.handleAdminListSessions)
			r.Delete("/api/admin/sessions/{code}", h.handleAdminCloseSession)
			r.Post("/api/admin/sweep", h.handleAdminSweep)
		})
	})

	return r
}

func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondOK(w, HealthResponse{Status: "ok"})
}
