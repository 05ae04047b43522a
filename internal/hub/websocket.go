package hub

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// wsClient is a middleman between the websocket connection and the hub
type wsClient struct {
	hub  *Hub
	conn *Conn
	ws   *websocket.Conn
}

// ServeWs registers a connection for userID and upgrades the request to a
// WebSocket carrying {"type","payload"} envelopes. An error is returned only
// when registration fails, before the upgrade.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request, code, userID string) error {
	conn, err := h.Register(r.Context(), code, userID)
	if err != nil {
		return err
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("WebSocket upgrade error", "error", err)
		h.Unregister(code, conn.ID)
		return nil
	}

	client := &wsClient{hub: h, conn: conn, ws: ws}

	// Allow collection of memory referenced by the caller by doing all work in new goroutines
	go client.writePump()
	go client.readPump()
	return nil
}

// readPump discards client messages and unregisters when the socket closes
func (c *wsClient) readPump() {
	defer func() {
		c.hub.Unregister(c.conn.Code, c.conn.ID)
		c.ws.Close()
	}()

	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("WebSocket error", "error", err)
			}
			return
		}
	}
}

// writePump pumps frames from the outbox to the websocket connection
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case frame, ok := <-c.conn.Frames():
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the outbox
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, frame.JSON()); err != nil {
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
