package handlers

import "net/http"

func (h *Handlers) handleStartVoting(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUserID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	round, err := h.Sessions.StartVoting(r.Context(), sessionCode(r), userID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, newRoundResponse(round))
}

func (h *Handlers) handleSubmitVote(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUserID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	var req SubmitVoteRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	if req.Value == nil {
		h.respondError(w, r, BadRequest("Vote value is required"))
		return
	}

	vote, err := h.Sessions.SubmitVote(r.Context(), sessionCode(r), userID, *req.Value)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	// The voter may always see their own value
	value := vote.Value
	respondOK(w, VoteResponse{
		UserID:      vote.UserID,
		UserName:    vote.UserName,
		Value:       &value,
		SubmittedAt: vote.SubmittedAt,
	})
}

func (h *Handlers) handleRevealVotes(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUserID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	results, err := h.Sessions.RevealVotes(r.Context(), sessionCode(r), userID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, results)
}

func (h *Handlers) handleResetVotes(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUserID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	if err := h.Sessions.ResetVotes(r.Context(), sessionCode(r), userID); err != nil {
		h.respondError(w, r, err)
		return
	}
	respondDeleted(w)
}
