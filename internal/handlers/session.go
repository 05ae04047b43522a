package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

func (h *Handlers) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	if strings.TrimSpace(req.OwnerName) == "" {
		h.respondError(w, r, BadRequest("Owner name is required"))
		return
	}

	sess, err := h.Sessions.CreateSession(r.Context(), req.OwnerName, req.BrowserID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondCreated(w, "/api/sessions/"+sess.Code, newSessionResponse(sess, h.JoinURL(sess.Code)))
}

func (h *Handlers) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Sessions.GetSession(r.Context(), sessionCode(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, newSessionResponse(sess, h.JoinURL(sess.Code)))
}

func (h *Handlers) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUserID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	code := sessionCode(r)
	sess, err := h.Sessions.GetSession(r.Context(), code)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if sess.OwnerID != userID {
		h.respondError(w, r, Forbidden("Only the session owner can delete the session"))
		return
	}

	if err := h.Sessions.DeleteSession(r.Context(), code); err != nil {
		h.respondError(w, r, err)
		return
	}
	respondDeleted(w)
}

func (h *Handlers) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.Sessions.RoundHistory(r.Context(), sessionCode(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, newRoundResponses(history))
}

func (h *Handlers) handleJoinSession(w http.ResponseWriter, r *http.Request) {
	var req JoinSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	code := sessionCode(r)
	user, err := h.Sessions.JoinSession(r.Context(), code, req.UserName, req.BrowserID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondCreated(w, "/api/sessions/"+code+"/users/"+user.ID, newUserResponse(user))
}

func (h *Handlers) handleLeaveSession(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if err := h.Sessions.LeaveSession(r.Context(), sessionCode(r), userID); err != nil {
		h.respondError(w, r, err)
		return
	}
	respondDeleted(w)
}
