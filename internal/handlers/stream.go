package handlers

import (
	"net/http"
)

// streamTarget validates the session and user of a push stream request
func (h *Handlers) streamTarget(r *http.Request) (code, userID string, err error) {
	userID, err = requireUserID(r)
	if err != nil {
		return "", "", err
	}
	code = sessionCode(r)
	sess, err := h.Sessions.GetSession(r.Context(), code)
	if err != nil {
		return "", "", err
	}
	if _, ok := sess.Users[userID]; !ok {
		return "", "", BadRequest("User not found in session")
	}
	return code, userID, nil
}

func (h *Handlers) handleEvents(w http.ResponseWriter, r *http.Request) {
	code, userID, err := h.streamTarget(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := h.Hub.ServeSSE(w, r, code, userID); err != nil {
		// The user left between validation and registration
		h.respondError(w, r, err)
	}
}

func (h *Handlers) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	code, userID, err := h.streamTarget(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := h.Hub.ServeWs(w, r, code, userID); err != nil {
		h.respondError(w, r, err)
	}
}
