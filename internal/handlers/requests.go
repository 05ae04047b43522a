package handlers

// CreateSessionRequest represents a request to open a new session
type CreateSessionRequest struct {
	OwnerName string `json:"ownerName"`
	BrowserID string `json:"browserId"`
}

// JoinSessionRequest represents a request to join an existing session
type JoinSessionRequest struct {
	UserName  string `json:"userName"`
	BrowserID string `json:"browserId"`
}

// SubmitVoteRequest represents a vote in the current round
type SubmitVoteRequest struct {
	Value *int `json:"value"`
}

// LoginRequest represents an admin login attempt
type LoginRequest struct {
	Password string `json:"password"`
}
