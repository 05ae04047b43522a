package services

import (
	"context"
	"time"

	"github.com/abrezinsky/planningpoker/internal/models"
)

// SessionServicer defines the interface for session and voting operations
type SessionServicer interface {
	CreateSession(ctx context.Context, ownerName, browserID string) (*models.Session, error)
	GetSession(ctx context.Context, code string) (*models.Session, error)
	JoinSession(ctx context.Context, code, name, browserID string) (*models.User, error)
	LeaveSession(ctx context.Context, code, userID string) error
	DeleteSession(ctx context.Context, code string) error
	StartVoting(ctx context.Context, code, userID string) (*models.VotingRound, error)
	SubmitVote(ctx context.Context, code, userID string, value int) (*models.Vote, error)
	RevealVotes(ctx context.Context, code, userID string) (*models.VotingResults, error)
	ResetVotes(ctx context.Context, code, userID string) error
	RoundHistory(ctx context.Context, code string) ([]*models.VotingRound, error)
	ListSessions(ctx context.Context) []models.SessionSummary
}

// CleanupServicer is the part of the store used by the inactivity sweeper
type CleanupServicer interface {
	ListInactiveSessions(ctx context.Context, threshold time.Duration) []string
	ListDisconnectedUsers(ctx context.Context, threshold time.Duration) []models.UserRef
	RemoveUser(ctx context.Context, code, userID string) error
	DeleteSession(ctx context.Context, code string) error
}

// ConnectionTracker receives live connection status changes from the push hub
type ConnectionTracker interface {
	SetUserConnected(ctx context.Context, code, userID string, connected bool) (*models.User, error)
}

// Notifier delivers session events to connected clients
type Notifier interface {
	Broadcast(code string, evt models.Event, excludeUserID string)
	CloseSession(code string)
}

type noopNotifier struct{}

func (noopNotifier) Broadcast(string, models.Event, string) {}
func (noopNotifier) CloseSession(string)                    {}

// Ensure concrete types implement interfaces
var (
	_ SessionServicer   = (*SessionService)(nil)
	_ CleanupServicer   = (*SessionService)(nil)
	_ ConnectionTracker = (*SessionService)(nil)
)
