package handlers

import (
	"sort"
	"time"

	"github.com/abrezinsky/planningpoker/internal/models"
)

// SessionResponse is the JSON view of a session
type SessionResponse struct {
	SessionCode  string         `json:"sessionCode"`
	OwnerID      string         `json:"ownerId"`
	OwnerName    string         `json:"ownerName"`
	Users        []UserResponse `json:"users"`
	CurrentRound *RoundResponse `json:"currentRound"`
	CreatedAt    time.Time      `json:"createdAt"`
	JoinURL      string         `json:"joinUrl,omitempty"`
}

// UserResponse is the JSON view of a participant
type UserResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	IsOwner     bool      `json:"isOwner"`
	JoinedAt    time.Time `json:"joinedAt"`
	IsConnected bool      `json:"isConnected"`
}

// RoundResponse is the JSON view of a voting round. Vote values stay null
// until the round is revealed.
type RoundResponse struct {
	ID         string                `json:"id"`
	Status     models.RoundStatus    `json:"status"`
	StartedAt  time.Time             `json:"startedAt"`
	RevealedAt *time.Time            `json:"revealedAt"`
	Votes      []VoteResponse        `json:"votes"`
	Results    *models.VotingResults `json:"results"`
}

// VoteResponse is the JSON view of a single vote
type VoteResponse struct {
	UserID      string    `json:"userId"`
	UserName    string    `json:"userName"`
	Value       *int      `json:"value"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// LoginResponse is returned on successful admin login
type LoginResponse struct {
	Token string `json:"token"`
}

// HealthResponse is the liveness probe payload
type HealthResponse struct {
	Status string `json:"status"`
}

// AdminSessionResponse extends a session summary with live push stats
type AdminSessionResponse struct {
	models.SessionSummary
	LiveConnections int `json:"liveConnections"`
}

func newUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:          u.ID,
		Name:        u.Name,
		IsOwner:     u.IsOwner,
		JoinedAt:    u.JoinedAt,
		IsConnected: u.IsConnected,
	}
}

func newSessionResponse(s *models.Session, joinURL string) SessionResponse {
	resp := SessionResponse{
		SessionCode: s.Code,
		OwnerID:     s.OwnerID,
		Users:       make([]UserResponse, 0, len(s.Users)),
		CreatedAt:   s.CreatedAt,
		JoinURL:     joinURL,
	}
	if owner := s.Owner(); owner != nil {
		resp.OwnerName = owner.Name
	}
	for _, u := range s.Users {
		resp.Users = append(resp.Users, newUserResponse(u))
	}
	sort.Slice(resp.Users, func(i, j int) bool {
		a, b := resp.Users[i], resp.Users[j]
		if !a.JoinedAt.Equal(b.JoinedAt) {
			return a.JoinedAt.Before(b.JoinedAt)
		}
		return a.Name < b.Name
	})
	if s.CurrentRound != nil {
		round := newRoundResponse(s.CurrentRound)
		resp.CurrentRound = &round
	}
	return resp
}

func newRoundResponse(r *models.VotingRound) RoundResponse {
	resp := RoundResponse{
		ID:         r.ID,
		Status:     r.Status,
		StartedAt:  r.StartedAt,
		RevealedAt: r.RevealedAt,
		Votes:      make([]VoteResponse, 0, len(r.Votes)),
		Results:    r.Results,
	}
	for _, v := range r.Votes {
		vote := VoteResponse{
			UserID:      v.UserID,
			UserName:    v.UserName,
			SubmittedAt: v.SubmittedAt,
		}
		if r.IsRevealed() {
			value := v.Value
			vote.Value = &value
		}
		resp.Votes = append(resp.Votes, vote)
	}
	sort.Slice(resp.Votes, func(i, j int) bool {
		a, b := resp.Votes[i], resp.Votes[j]
		if !a.SubmittedAt.Equal(b.SubmittedAt) {
			return a.SubmittedAt.Before(b.SubmittedAt)
		}
		return a.UserName < b.UserName
	})
	return resp
}

func newRoundResponses(rounds []*models.VotingRound) []RoundResponse {
	out := make([]RoundResponse, 0, len(rounds))
	for _, r := range rounds {
		out = append(out, newRoundResponse(r))
	}
	return out
}
