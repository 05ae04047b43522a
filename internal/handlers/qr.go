package handlers

import (
	"net/http"
	"strconv"

	"github.com/skip2/go-qrcode"
)

const (
	qrDefaultSize = 256
	qrMaxSize     = 1024
)

// handleGetQR renders the session's join link as a PNG QR code
func (h *Handlers) handleGetQR(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Sessions.GetSession(r.Context(), sessionCode(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	size := qrDefaultSize
	if s := r.URL.Query().Get("size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 64 || n > qrMaxSize {
			h.respondError(w, r, BadRequest("size must be between 64 and 1024"))
			return
		}
		size = n
	}

	png, err := qrcode.Encode(h.JoinURL(sess.Code), qrcode.Medium, size)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(png)
}
