package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/abrezinsky/planningpoker/internal/auth"
	"github.com/abrezinsky/planningpoker/internal/config"
	"github.com/abrezinsky/planningpoker/internal/handlers"
	"github.com/abrezinsky/planningpoker/internal/hub"
	"github.com/abrezinsky/planningpoker/internal/logger"
	"github.com/abrezinsky/planningpoker/internal/services"
	"github.com/abrezinsky/planningpoker/internal/sweeper"
)

const shutdownTimeout = 10 * time.Second

// App holds all application dependencies
type App struct {
	cfg       config.Config
	log       logger.Logger
	store     *services.SessionService
	hub       *hub.Hub
	sweeper   *sweeper.Sweeper
	auth      *auth.Auth
	handlers  *handlers.Handlers
	publicURL string
}

// Stats is a point-in-time view of the running server
type Stats struct {
	Sessions       int
	ActiveSessions int
	Users          int
	LiveSessions   int
	Connections    int
}

// New wires the store, push hub, sweeper and HTTP handlers together
func New(cfg config.Config, log logger.Logger) *App {
	store := services.NewSessionService(log)

	pushHub := hub.New(log, store)
	pushHub.SetKeepAlive(cfg.KeepAlive)
	store.SetNotifier(pushHub)

	sweep := sweeper.New(log, store,
		sweeper.WithInterval(cfg.SweepInterval),
		sweeper.WithDisconnectGrace(cfg.DisconnectGrace),
		sweeper.WithInactivityTimeout(cfg.InactivityTimeout),
	)

	password := cfg.AdminPassword
	if password == "" {
		password = auth.GeneratePassword()
	}
	adminAuth := auth.New(password)

	publicURL := cfg.PublicURL()
	if cfg.BaseURL == "" {
		// Join links and QR codes are useless on other devices with localhost
		publicURL = fmt.Sprintf("http://%s:%d", preferredIP(systemInterfaces{}), cfg.Port)
	}

	return &App{
		cfg:       cfg,
		log:       log,
		store:     store,
		hub:       pushHub,
		sweeper:   sweep,
		auth:      adminAuth,
		handlers:  handlers.New(store, pushHub, sweep, adminAuth, log, publicURL),
		publicURL: publicURL,
	}
}

// Router returns the configured HTTP router
func (a *App) Router() chi.Router {
	return a.handlers.Router()
}

// PublicURL returns the base URL used in join links
func (a *App) PublicURL() string {
	return a.publicURL
}

// AdminPassword returns the configured or generated admin password
func (a *App) AdminPassword() string {
	return a.auth.Password()
}

// Logger returns the application logger
func (a *App) Logger() logger.Logger {
	return a.log
}

// Stats summarizes sessions and live connections
func (a *App) Stats(ctx context.Context) Stats {
	var s Stats
	for _, summary := range a.store.ListSessions(ctx) {
		s.Sessions++
		s.Users += summary.UserCount
		if summary.Active {
			s.ActiveSessions++
		}
	}
	s.LiveSessions, s.Connections = a.hub.Stats()
	return s
}

// ListenAndRun listens on the configured address and serves until ctx is done
func (a *App) ListenAndRun(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.cfg.Addr(), err)
	}
	return a.Run(ctx, ln)
}

// Run serves HTTP on ln and runs the sweeper until ctx is cancelled, then
// closes every push connection and shuts the server down gracefully.
func (a *App) Run(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		// Streams watch the request context, so cancelling ctx ends them
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.Info("Server starting", "addr", ln.Addr().String(), "url", a.publicURL)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return a.sweeper.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("Shutting down")
		a.hub.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
