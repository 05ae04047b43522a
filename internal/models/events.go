package models

import "time"

// EventType names a server-push event
type EventType string

const (
	EventUserJoined       EventType = "user_joined"
	EventUserLeft         EventType = "user_left"
	EventUserConnected    EventType = "user_connected"
	EventUserDisconnected EventType = "user_disconnected"
	EventVotingStarted    EventType = "voting_started"
	EventVoteSubmitted    EventType = "vote_submitted"
	EventVotesRevealed    EventType = "votes_revealed"
	EventVotesReset       EventType = "votes_reset"
	EventSessionClosed    EventType = "session_closed"
)

// Reasons carried by user_left
const (
	LeaveReasonLeft    = "left"
	LeaveReasonTimeout = "disconnected_timeout"
)

// Event is one state change pushed to connected clients
type Event struct {
	Type  EventType
	Data  interface{}
	ID    string
	Retry int // milliseconds, zero omits the field
}

// WSMessage is the WebSocket envelope for an event
type WSMessage struct {
	Type    EventType   `json:"type"`
	Payload interface{} `json:"payload"`
}

// UserJoinedPayload is the data of user_joined
type UserJoinedPayload struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	IsOwner     bool      `json:"isOwner"`
	JoinedAt    time.Time `json:"joinedAt"`
	IsConnected bool      `json:"isConnected"`
}

// UserLeftPayload is the data of user_left
type UserLeftPayload struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	Reason   string `json:"reason"`
}

// ConnectionPayload is the data of user_connected and user_disconnected
type ConnectionPayload struct {
	UserID      string `json:"userId"`
	UserName    string `json:"userName"`
	IsConnected bool   `json:"isConnected"`
}

// VotingStartedPayload is the data of voting_started
type VotingStartedPayload struct {
	ID        string      `json:"id"`
	StartedAt time.Time   `json:"startedAt"`
	Status    RoundStatus `json:"status"`
}

// VoteSubmittedPayload is the data of vote_submitted; the value is never sent
type VoteSubmittedPayload struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	HasVoted bool   `json:"hasVoted"`
}

// RevealedVote is one unmasked vote inside votes_revealed
type RevealedVote struct {
	UserID      string    `json:"userId"`
	UserName    string    `json:"userName"`
	Value       int       `json:"value"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// VotesRevealedPayload is the data of votes_revealed
type VotesRevealedPayload struct {
	Results *VotingResults `json:"results"`
	Votes   []RevealedVote `json:"votes"`
}

// VotesResetPayload is the data of votes_reset
type VotesResetPayload struct {
	ResetAt time.Time `json:"resetAt"`
}

// SessionClosedPayload is the data of session_closed
type SessionClosedPayload struct {
	SessionCode string `json:"sessionCode"`
}
