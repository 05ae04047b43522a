package models

import "time"

// RoundStatus is the lifecycle state of a voting round
type RoundStatus string

const (
	RoundInProgress RoundStatus = "InProgress"
	RoundRevealed   RoundStatus = "Revealed"
)

// ActiveWindow is how long a session stays active after its last activity
const ActiveWindow = 10 * time.Minute

// Session is a shared estimation workspace identified by a short code
type Session struct {
	Code           string           `json:"sessionCode"`
	OwnerID        string           `json:"ownerId"`
	CreatedAt      time.Time        `json:"createdAt"`
	LastActivityAt time.Time        `json:"lastActivityAt"`
	Users          map[string]*User `json:"users"`
	CurrentRound   *VotingRound     `json:"currentRound"`
	RoundHistory   []*VotingRound   `json:"roundHistory"`
}

// Owner returns the owning user, or nil while the session is being torn down
func (s *Session) Owner() *User {
	return s.Users[s.OwnerID]
}

// IsActive reports whether the session saw activity within ActiveWindow
func (s *Session) IsActive(now time.Time) bool {
	return now.Sub(s.MostRecentActivity()) <= ActiveWindow
}

// MostRecentActivity returns the later of creation and last activity
func (s *Session) MostRecentActivity() time.Time {
	if s.LastActivityAt.After(s.CreatedAt) {
		return s.LastActivityAt
	}
	return s.CreatedAt
}

// Clone returns a deep copy that shares no mutable state with s
func (s *Session) Clone() *Session {
	c := *s
	c.Users = make(map[string]*User, len(s.Users))
	for id, u := range s.Users {
		c.Users[id] = u.Clone()
	}
	if s.CurrentRound != nil {
		c.CurrentRound = s.CurrentRound.Clone()
	}
	c.RoundHistory = make([]*VotingRound, len(s.RoundHistory))
	for i, r := range s.RoundHistory {
		c.RoundHistory[i] = r.Clone()
	}
	return &c
}

// User is a participant of one session
type User struct {
	ID             string     `json:"id"`
	SessionCode    string     `json:"sessionId"`
	Name           string     `json:"name"`
	IsOwner        bool       `json:"isOwner"`
	JoinedAt       time.Time  `json:"joinedAt"`
	LastSeenAt     time.Time  `json:"lastSeenAt"`
	BrowserID      string     `json:"-"`
	IsConnected    bool       `json:"isConnected"`
	DisconnectedAt *time.Time `json:"disconnectedAt,omitempty"`
}

func (u *User) Clone() *User {
	c := *u
	if u.DisconnectedAt != nil {
		t := *u.DisconnectedAt
		c.DisconnectedAt = &t
	}
	return &c
}

// UserRef addresses a user inside a session
type UserRef struct {
	SessionCode string
	UserID      string
}

// VotingRound is one in-progress-or-revealed voting cycle
type VotingRound struct {
	ID          string           `json:"id"`
	SessionCode string           `json:"sessionId"`
	StartedAt   time.Time        `json:"startedAt"`
	RevealedAt  *time.Time       `json:"revealedAt"`
	Status      RoundStatus      `json:"status"`
	Votes       map[string]*Vote `json:"-"`
	Results     *VotingResults   `json:"results"`
}

// IsRevealed reports whether the round's votes have been unmasked
func (r *VotingRound) IsRevealed() bool {
	return r.Status == RoundRevealed
}

// VoteCount returns the number of users that have voted
func (r *VotingRound) VoteCount() int {
	return len(r.Votes)
}

// VoteValues returns the raw vote values in no particular order
func (r *VotingRound) VoteValues() []int {
	values := make([]int, 0, len(r.Votes))
	for _, v := range r.Votes {
		values = append(values, v.Value)
	}
	return values
}

func (r *VotingRound) Clone() *VotingRound {
	c := *r
	if r.RevealedAt != nil {
		t := *r.RevealedAt
		c.RevealedAt = &t
	}
	c.Votes = make(map[string]*Vote, len(r.Votes))
	for id, v := range r.Votes {
		vv := *v
		c.Votes[id] = &vv
	}
	if r.Results != nil {
		c.Results = r.Results.Clone()
	}
	return &c
}

// Vote is one user's estimate within a round
type Vote struct {
	UserID      string    `json:"userId"`
	UserName    string    `json:"userName"`
	Value       int       `json:"value"`
	SubmittedAt time.Time `json:"submittedAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// VotingResults holds the aggregate statistics frozen at reveal time
type VotingResults struct {
	Majority      int         `json:"majority"`
	Optimistic    int         `json:"optimistic"`
	Pessimistic   int         `json:"pessimistic"`
	ActualAverage float64     `json:"actualAverage"`
	Distribution  map[int]int `json:"distribution"`
	MinVote       int         `json:"minVote"`
	MaxVote       int         `json:"maxVote"`
	TotalVotes    int         `json:"totalVotes"`
}

func (r *VotingResults) Clone() *VotingResults {
	c := *r
	c.Distribution = make(map[int]int, len(r.Distribution))
	for k, v := range r.Distribution {
		c.Distribution[k] = v
	}
	return &c
}

// SessionSummary is the admin view of a live session
type SessionSummary struct {
	Code           string    `json:"sessionCode"`
	OwnerName      string    `json:"ownerName"`
	UserCount      int       `json:"userCount"`
	ConnectedCount int       `json:"connectedCount"`
	RoundStatus    string    `json:"roundStatus,omitempty"`
	RoundsPlayed   int       `json:"roundsPlayed"`
	CreatedAt      time.Time `json:"createdAt"`
	LastActivityAt time.Time `json:"lastActivityAt"`
	Active         bool      `json:"active"`
}
