package services

import (
	"context"
	"sort"
	"time"

	"github.com/abrezinsky/planningpoker/internal/errors"
	"github.com/abrezinsky/planningpoker/internal/models"
)

// forEachSession visits every live session under its own lock
func (s *SessionService) forEachSession(fn func(*models.Session)) {
	s.sessions.Range(func(_, v any) bool {
		entry := v.(*sessionEntry)
		entry.mu.Lock()
		if !entry.removed && entry.session != nil {
			fn(entry.session)
		}
		entry.mu.Unlock()
		return true
	})
}

// ListInactiveSessions returns the codes of sessions with no activity for longer than threshold
func (s *SessionService) ListInactiveSessions(ctx context.Context, threshold time.Duration) []string {
	now := s.now()
	codes := []string{}
	s.forEachSession(func(sess *models.Session) {
		if now.Sub(sess.MostRecentActivity()) > threshold {
			codes = append(codes, sess.Code)
		}
	})
	sort.Strings(codes)
	return codes
}

// ListDisconnectedUsers returns users whose last connection closed more than threshold ago
func (s *SessionService) ListDisconnectedUsers(ctx context.Context, threshold time.Duration) []models.UserRef {
	cutoff := s.now().Add(-threshold)
	refs := []models.UserRef{}
	s.forEachSession(func(sess *models.Session) {
		for _, u := range sess.Users {
			if !u.IsConnected && u.DisconnectedAt != nil && u.DisconnectedAt.Before(cutoff) {
				refs = append(refs, models.UserRef{SessionCode: sess.Code, UserID: u.ID})
			}
		}
	})
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].SessionCode == refs[j].SessionCode {
			return refs[i].UserID < refs[j].UserID
		}
		return refs[i].SessionCode < refs[j].SessionCode
	})
	return refs
}

// SetUserConnected records a user's live connection status. Disconnecting
// stamps the disconnect time; reconnecting clears it.
func (s *SessionService) SetUserConnected(ctx context.Context, code, userID string, connected bool) (*models.User, error) {
	var updated *models.User
	err := s.update(ctx, "set_user_connected", code, func(sess *models.Session, m *mutation) error {
		user, ok := sess.Users[userID]
		if !ok {
			return errors.NotFound("user not found in session")
		}
		now := s.now()
		user.IsConnected = connected
		user.LastSeenAt = now
		if connected {
			user.DisconnectedAt = nil
		} else {
			user.DisconnectedAt = &now
		}
		updated = user.Clone()
		s.log.Debug("User connection status changed", "session", sess.Code, "user", user.Name, "connected", connected)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ListSessions summarizes every live session for diagnostics
func (s *SessionService) ListSessions(ctx context.Context) []models.SessionSummary {
	now := s.now()
	summaries := []models.SessionSummary{}
	s.forEachSession(func(sess *models.Session) {
		summary := models.SessionSummary{
			Code:           sess.Code,
			UserCount:      len(sess.Users),
			RoundsPlayed:   len(sess.RoundHistory),
			CreatedAt:      sess.CreatedAt,
			LastActivityAt: sess.LastActivityAt,
			Active:         sess.IsActive(now),
		}
		if owner := sess.Owner(); owner != nil {
			summary.OwnerName = owner.Name
		}
		for _, u := range sess.Users {
			if u.IsConnected {
				summary.ConnectedCount++
			}
		}
		if sess.CurrentRound != nil {
			summary.RoundStatus = string(sess.CurrentRound.Status)
		}
		summaries = append(summaries, summary)
	})
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.Before(summaries[j].CreatedAt)
	})
	return summaries
}
