package sweeper

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/abrezinsky/planningpoker/internal/errors"
	"github.com/abrezinsky/planningpoker/internal/logger"
	"github.com/abrezinsky/planningpoker/internal/services"
)

const (
	DefaultInterval          = 30 * time.Second
	DefaultDisconnectGrace   = 2 * time.Minute
	DefaultInactivityTimeout = 10 * time.Minute
)

// Report summarizes one sweep cycle
type Report struct {
	UsersRemoved    int `json:"usersRemoved"`
	SessionsDeleted int `json:"sessionsDeleted"`
	Failures        int `json:"failures"`
}

// Sweeper periodically removes users who stayed disconnected past the grace
// window and deletes sessions nobody has touched for too long
type Sweeper struct {
	log             logger.Logger
	store           services.CleanupServicer
	interval        time.Duration
	disconnectGrace time.Duration
	inactivity      time.Duration
}

// Option configures a Sweeper
type Option func(*Sweeper)

// WithInterval sets the time between sweep cycles
func WithInterval(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithDisconnectGrace sets how long a user may stay disconnected
func WithDisconnectGrace(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.disconnectGrace = d
		}
	}
}

// WithInactivityTimeout sets how long a session may stay untouched
func WithInactivityTimeout(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.inactivity = d
		}
	}
}

// New creates a Sweeper over the given store
func New(log logger.Logger, store services.CleanupServicer, opts ...Option) *Sweeper {
	s := &Sweeper{
		log:             log,
		store:           store,
		interval:        DefaultInterval,
		disconnectGrace: DefaultDisconnectGrace,
		inactivity:      DefaultInactivityTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run sweeps on every tick until ctx is cancelled
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("Sweeper started", "interval", s.interval, "disconnect_grace", s.disconnectGrace, "inactivity", s.inactivity)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("Sweeper stopped")
			return nil
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep performs one cleanup cycle. Failures on one user or session are
// logged and do not stop the cycle; a panic ends the cycle but not the loop.
func (s *Sweeper) Sweep(ctx context.Context) (report Report) {
	ctx, span := otel.Tracer("planningpoker/sweeper").Start(ctx, "sweeper.Sweep")
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			report.Failures++
			s.log.Error("Sweep cycle panicked", "panic", r)
			span.SetStatus(codes.Error, fmt.Sprint(r))
		}
		span.SetAttributes(
			attribute.Int("sweeper.users_removed", report.UsersRemoved),
			attribute.Int("sweeper.sessions_deleted", report.SessionsDeleted),
			attribute.Int("sweeper.failures", report.Failures),
		)
	}()

	for _, ref := range s.store.ListDisconnectedUsers(ctx, s.disconnectGrace) {
		if ctx.Err() != nil {
			return report
		}
		if err := s.store.RemoveUser(ctx, ref.SessionCode, ref.UserID); err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				// the owner left earlier in this cycle and took the session along
				continue
			}
			report.Failures++
			s.log.Warn("Failed to remove disconnected user", "session", ref.SessionCode, "user", ref.UserID, "error", err)
			continue
		}
		report.UsersRemoved++
		s.log.Info("Removed disconnected user", "session", ref.SessionCode, "user", ref.UserID)
	}

	for _, code := range s.store.ListInactiveSessions(ctx, s.inactivity) {
		if ctx.Err() != nil {
			return report
		}
		if err := s.store.DeleteSession(ctx, code); err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				continue
			}
			report.Failures++
			s.log.Warn("Failed to delete inactive session", "session", code, "error", err)
			continue
		}
		report.SessionsDeleted++
		s.log.Info("Deleted inactive session", "session", code)
	}

	if report.UsersRemoved > 0 || report.SessionsDeleted > 0 || report.Failures > 0 {
		s.log.Debug("Sweep finished", "users_removed", report.UsersRemoved, "sessions_deleted", report.SessionsDeleted, "failures", report.Failures)
	}
	return report
}
