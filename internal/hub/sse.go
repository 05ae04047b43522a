package hub

import (
	"io"
	"net/http"
	"time"
)

// ServeSSE registers a connection for userID and streams the session's
// events as text/event-stream until the client goes away, the session is
// closed or the hub shuts down. An error is returned only when registration
// fails, before anything has been written.
func (h *Hub) ServeSSE(w http.ResponseWriter, r *http.Request, code, userID string) error {
	ctx := r.Context()
	conn, err := h.Register(ctx, code, userID)
	if err != nil {
		return err
	}
	defer h.Unregister(code, conn.ID)

	rc := http.NewResponseController(w)
	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := writeFlush(w, rc, []byte(": connected\n\n")); err != nil {
		return nil
	}

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Debug("SSE client went away", "session", code, "user", userID)
			return nil
		case frame, ok := <-conn.Frames():
			if !ok {
				return nil
			}
			if err := writeFlush(w, rc, frame.SSE()); err != nil {
				h.log.Debug("SSE write failed", "session", code, "user", userID, "error", err)
				return nil
			}
		case <-ticker.C:
			if err := writeFlush(w, rc, []byte(": keep-alive\n\n")); err != nil {
				return nil
			}
		}
	}
}

func writeFlush(w io.Writer, rc *http.ResponseController, b []byte) error {
	if _, err := w.Write(b); err != nil {
		return err
	}
	return rc.Flush()
}
