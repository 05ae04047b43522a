package handlers

import (
	"github.com/abrezinsky/planningpoker/internal/auth"
	"github.com/abrezinsky/planningpoker/internal/hub"
	"github.com/abrezinsky/planningpoker/internal/logger"
	"github.com/abrezinsky/planningpoker/internal/services"
	"github.com/abrezinsky/planningpoker/internal/sweeper"
)

// Handlers holds all HTTP handler dependencies
type Handlers struct {
	Sessions  services.SessionServicer
	Hub       *hub.Hub
	Sweeper   *sweeper.Sweeper
	Auth      *auth.Auth
	Log       logger.Logger
	PublicURL string
}

// New creates a new Handlers instance with all dependencies
func New(
	sessions services.SessionServicer,
	pushHub *hub.Hub,
	sweep *sweeper.Sweeper,
	adminAuth *auth.Auth,
	log logger.Logger,
	publicURL string,
) *Handlers {
	return &Handlers{
		Sessions:  sessions,
		Hub:       pushHub,
		Sweeper:   sweep,
		Auth:      adminAuth,
		Log:       log,
		PublicURL: publicURL,
	}
}

// JoinURL returns the link participants open to join a session
func (h *Handlers) JoinURL(code string) string {
	return h.PublicURL + "/join/" + code
}
