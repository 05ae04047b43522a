package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"

	"github.com/abrezinsky/planningpoker/internal/errors"
	"github.com/abrezinsky/planningpoker/internal/logger"
	"github.com/abrezinsky/planningpoker/internal/models"
)

const (
	// CodeLength is the number of characters in a session code
	CodeLength = 8
	// CodeAlphabet omits characters that are easy to confuse (0/O, 1/I)
	CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// sessionEntry serializes every operation on one session
type sessionEntry struct {
	mu      sync.Mutex
	session *models.Session
	removed bool
}

// pendingEvent is an event queued while the session lock is held
type pendingEvent struct {
	evt     models.Event
	exclude string
}

// mutation collects the side effects of one locked operation
type mutation struct {
	events []pendingEvent
	delete bool
}

func (m *mutation) emit(t models.EventType, data interface{}, excludeUserID string) {
	m.events = append(m.events, pendingEvent{evt: models.Event{Type: t, Data: data}, exclude: excludeUserID})
}

// SessionService owns all session, user and voting state in memory
type SessionService struct {
	log        logger.Logger
	sessions   sync.Map // code -> *sessionEntry
	notifier   Notifier
	notifierMu sync.RWMutex
	randReader io.Reader // for testing: defaults to crypto/rand.Reader
	now        func() time.Time
}

// NewSessionService creates a new SessionService
func NewSessionService(log logger.Logger) *SessionService {
	return &SessionService{
		log:        log,
		notifier:   noopNotifier{},
		randReader: rand.Reader,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetNotifier sets the hub that receives session events
func (s *SessionService) SetNotifier(n Notifier) {
	s.notifierMu.Lock()
	defer s.notifierMu.Unlock()
	if n == nil {
		n = noopNotifier{}
	}
	s.notifier = n
}

// SetRandReader sets a custom random reader (for testing)
func (s *SessionService) SetRandReader(reader io.Reader) {
	s.randReader = reader
}

// SetClock sets the time source (for testing)
func (s *SessionService) SetClock(now func() time.Time) {
	s.now = now
}

// NormalizeCode trims and upper-cases a user-typed session code
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// foldName returns the case-insensitive comparison key for a display name
func foldName(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

func annotate(ctx context.Context, op, code string) {
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("poker.operation", op),
		attribute.String("poker.session_code", code),
	)
}

// CreateSession creates a session owned by a new user named ownerName
func (s *SessionService) CreateSession(ctx context.Context, ownerName, browserID string) (*models.Session, error) {
	now := s.now()
	entry := &sessionEntry{}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	code, err := s.reserveCode(entry)
	if err != nil {
		return nil, err
	}
	annotate(ctx, "create_session", code)

	owner := &models.User{
		ID:          uuid.NewString(),
		SessionCode: code,
		Name:        strings.TrimSpace(ownerName),
		IsOwner:     true,
		JoinedAt:    now,
		LastSeenAt:  now,
		BrowserID:   browserID,
	}
	entry.session = &models.Session{
		Code:           code,
		OwnerID:        owner.ID,
		CreatedAt:      now,
		LastActivityAt: now,
		Users:          map[string]*models.User{owner.ID: owner},
		RoundHistory:   []*models.VotingRound{},
	}

	s.log.Info("Session created", "session", code, "owner", owner.Name, "browser_id", browserID != "")
	return entry.session.Clone(), nil
}

// reserveCode stores entry under a fresh random code, retrying on collision
func (s *SessionService) reserveCode(entry *sessionEntry) (string, error) {
	buf := make([]byte, CodeLength)
	for attempt := 1; ; attempt++ {
		if _, err := io.ReadFull(s.randReader, buf); err != nil {
			return "", errors.Internal(fmt.Errorf("generate session code: %w", err))
		}
		code := make([]byte, CodeLength)
		for i, b := range buf {
			code[i] = CodeAlphabet[int(b)%len(CodeAlphabet)]
		}
		if _, loaded := s.sessions.LoadOrStore(string(code), entry); !loaded {
			return string(code), nil
		}
		s.log.Debug("Session code collision, retrying", "code", string(code), "attempt", attempt)
	}
}

// GetSession returns a snapshot of the session and marks it active
func (s *SessionService) GetSession(ctx context.Context, code string) (*models.Session, error) {
	var snapshot *models.Session
	err := s.update(ctx, "get_session", code, func(sess *models.Session, m *mutation) error {
		snapshot = sess.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

// JoinSession adds a user to the session, or returns the existing user when
// browserID matches a member (reconnection)
func (s *SessionService) JoinSession(ctx context.Context, code, name, browserID string) (*models.User, error) {
	var joined *models.User
	err := s.update(ctx, "join_session", code, func(sess *models.Session, m *mutation) error {
		now := s.now()

		if browserID != "" {
			for _, u := range sess.Users {
				if u.BrowserID == browserID {
					u.LastSeenAt = now
					joined = u.Clone()
					s.log.Info("User reconnected", "session", sess.Code, "user", u.Name)
					return nil
				}
			}
		}

		name = strings.TrimSpace(name)
		if name == "" {
			return errors.Validation("user name is required")
		}
		key := foldName(name)
		for _, u := range sess.Users {
			if foldName(u.Name) == key {
				return errors.Validationf("username '%s' is already taken in this session", name)
			}
		}

		user := &models.User{
			ID:          uuid.NewString(),
			SessionCode: sess.Code,
			Name:        name,
			JoinedAt:    now,
			LastSeenAt:  now,
			BrowserID:   browserID,
		}
		sess.Users[user.ID] = user
		joined = user.Clone()

		m.emit(models.EventUserJoined, models.UserJoinedPayload{
			ID:          user.ID,
			Name:        user.Name,
			IsOwner:     user.IsOwner,
			JoinedAt:    user.JoinedAt,
			IsConnected: user.IsConnected,
		}, user.ID)
		s.log.Info("User joined", "session", sess.Code, "user", user.Name)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return joined, nil
}

// LeaveSession removes a user. The owner leaving closes the session.
func (s *SessionService) LeaveSession(ctx context.Context, code, userID string) error {
	return s.removeUser(ctx, "leave_session", code, userID, models.LeaveReasonLeft)
}

// RemoveUser force-removes a user with the same side effects as LeaveSession
func (s *SessionService) RemoveUser(ctx context.Context, code, userID string) error {
	return s.removeUser(ctx, "remove_user", code, userID, models.LeaveReasonTimeout)
}

func (s *SessionService) removeUser(ctx context.Context, op, code, userID, reason string) error {
	return s.update(ctx, op, code, func(sess *models.Session, m *mutation) error {
		user, ok := sess.Users[userID]
		if !ok {
			return nil
		}
		delete(sess.Users, userID)

		m.emit(models.EventUserLeft, models.UserLeftPayload{
			UserID:   user.ID,
			UserName: user.Name,
			Reason:   reason,
		}, "")
		s.log.Info("User left", "session", sess.Code, "user", user.Name, "reason", reason)

		if user.IsOwner {
			s.closeSession(sess, m)
		}
		return nil
	})
}

// DeleteSession removes the session and closes every subscription to it
func (s *SessionService) DeleteSession(ctx context.Context, code string) error {
	return s.update(ctx, "delete_session", code, func(sess *models.Session, m *mutation) error {
		s.closeSession(sess, m)
		return nil
	})
}

func (s *SessionService) closeSession(sess *models.Session, m *mutation) {
	m.delete = true
	m.emit(models.EventSessionClosed, models.SessionClosedPayload{SessionCode: sess.Code}, "")
	s.log.Info("Session deleted", "session", sess.Code)
}

// RoundHistory returns the archived (revealed then reset) rounds of a session
func (s *SessionService) RoundHistory(ctx context.Context, code string) ([]*models.VotingRound, error) {
	var history []*models.VotingRound
	err := s.view(ctx, "round_history", code, func(sess *models.Session) {
		history = make([]*models.VotingRound, len(sess.RoundHistory))
		for i, r := range sess.RoundHistory {
			history[i] = r.Clone()
		}
	})
	return history, err
}

// update runs fn with exclusive access to the session. On success the
// session's activity is refreshed. Events queued by fn are dispatched after
// the lock is released so the mutation is visible to anyone reacting to them.
func (s *SessionService) update(ctx context.Context, op, code string, fn func(*models.Session, *mutation) error) error {
	code = NormalizeCode(code)
	annotate(ctx, op, code)

	entry, ok := s.lookup(code)
	if !ok {
		return errors.SessionNotFound(code)
	}

	var m mutation
	entry.mu.Lock()
	if entry.removed || entry.session == nil {
		entry.mu.Unlock()
		return errors.SessionNotFound(code)
	}
	if err := fn(entry.session, &m); err != nil {
		entry.mu.Unlock()
		return err
	}
	entry.session.LastActivityAt = s.now()
	if m.delete {
		entry.removed = true
		s.sessions.CompareAndDelete(code, entry)
	}
	entry.mu.Unlock()

	s.dispatch(code, &m)
	return nil
}

// view runs fn with exclusive access without counting as activity
func (s *SessionService) view(ctx context.Context, op, code string, fn func(*models.Session)) error {
	code = NormalizeCode(code)
	annotate(ctx, op, code)

	entry, ok := s.lookup(code)
	if !ok {
		return errors.SessionNotFound(code)
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.removed || entry.session == nil {
		return errors.SessionNotFound(code)
	}
	fn(entry.session)
	return nil
}

func (s *SessionService) lookup(code string) (*sessionEntry, bool) {
	v, ok := s.sessions.Load(code)
	if !ok {
		return nil, false
	}
	return v.(*sessionEntry), true
}

func (s *SessionService) dispatch(code string, m *mutation) {
	if len(m.events) == 0 && !m.delete {
		return
	}
	s.notifierMu.RLock()
	n := s.notifier
	s.notifierMu.RUnlock()

	for _, p := range m.events {
		n.Broadcast(code, p.evt, p.exclude)
	}
	if m.delete {
		n.CloseSession(code)
	}
}
