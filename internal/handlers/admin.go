package handlers

import (
	"net/http"
	"sort"

	"github.com/abrezinsky/planningpoker/internal/auth"
)

// ==================== Admin Auth ====================

func (h *Handlers) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	token, ok := h.Auth.Login(req.Password)
	if !ok {
		h.Log.Warn("Admin login failed", "remote", r.RemoteAddr)
		h.respondError(w, r, Unauthorized("Invalid password"))
		return
	}

	auth.SetTokenCookie(w, token)
	respondOK(w, LoginResponse{Token: token})
}

func (h *Handlers) handleAdminLogout(w http.ResponseWriter, r *http.Request) {
	if token := auth.TokenFromRequest(r); token != "" {
		h.Auth.Logout(token)
	}
	auth.ClearTokenCookie(w)
	respondDeleted(w)
}

// ==================== Admin API ====================

func (h *Handlers) handleAdminListSessions(w http.ResponseWriter, r *http.Request) {
	summaries := h.Sessions.ListSessions(r.Context())
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.Before(summaries[j].CreatedAt)
	})

	out := make([]AdminSessionResponse, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, AdminSessionResponse{
			SessionSummary:  s,
			LiveConnections: h.Hub.ConnectionCount(s.Code),
		})
	}
	respondOK(w, out)
}

func (h *Handlers) handleAdminCloseSession(w http.ResponseWriter, r *http.Request) {
	code := sessionCode(r)
	if err := h.Sessions.DeleteSession(r.Context(), code); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.Log.Info("Session closed by admin", "session", code)
	respondDeleted(w)
}

func (h *Handlers) handleAdminSweep(w http.ResponseWriter, r *http.Request) {
	report := h.Sweeper.Sweep(r.Context())
	respondOK(w, report)
}
