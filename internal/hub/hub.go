package hub

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/abrezinsky/planningpoker/internal/logger"
	"github.com/abrezinsky/planningpoker/internal/models"
	"github.com/abrezinsky/planningpoker/internal/services"
)

const (
	// DefaultKeepAlive is the interval between SSE keep-alive comments
	DefaultKeepAlive = 30 * time.Second
	// DefaultBufferSize is the number of frames a connection may lag behind
	DefaultBufferSize = 256

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Conn is one live push connection of a user
type Conn struct {
	ID     string
	Code   string
	UserID string

	mu     sync.Mutex
	closed bool
	send   chan Frame
}

// Frames returns the connection's outbox. It is closed when the connection
// is torn down; frames queued before that are still delivered.
func (c *Conn) Frames() <-chan Frame {
	return c.send
}

// enqueue never blocks; false means the outbox is full or closed
func (c *Conn) enqueue(f Frame) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- f:
		return true
	default:
		return false
	}
}

func (c *Conn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// bucket holds the connections of one session
type bucket struct {
	mu    sync.Mutex
	conns map[string]*Conn
	users map[string]int // userID -> live connection count
	dead  bool
}

// Hub tracks live push connections per session and fans events out to them
type Hub struct {
	log        logger.Logger
	tracker    services.ConnectionTracker
	buckets    sync.Map // code -> *bucket
	keepAlive  time.Duration
	bufferSize int
	upgrader   websocket.Upgrader
}

// New creates a Hub that reports connection status changes to tracker
func New(log logger.Logger, tracker services.ConnectionTracker) *Hub {
	return &Hub{
		log:        log,
		tracker:    tracker,
		keepAlive:  DefaultKeepAlive,
		bufferSize: DefaultBufferSize,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// SetKeepAlive sets the SSE keep-alive interval
func (h *Hub) SetKeepAlive(d time.Duration) {
	if d > 0 {
		h.keepAlive = d
	}
}

// SetBufferSize sets the outbox size of connections registered afterwards
func (h *Hub) SetBufferSize(n int) {
	if n > 0 {
		h.bufferSize = n
	}
}

// Register adds a connection for userID. The user's first live connection
// marks them connected in the store and announces user_connected to the
// rest of the session.
func (h *Hub) Register(ctx context.Context, code, userID string) (*Conn, error) {
	for {
		v, _ := h.buckets.LoadOrStore(code, &bucket{conns: map[string]*Conn{}, users: map[string]int{}})
		b := v.(*bucket)

		b.mu.Lock()
		if b.dead {
			b.mu.Unlock()
			h.buckets.CompareAndDelete(code, b)
			continue
		}

		var user *models.User
		if b.users[userID] == 0 {
			u, err := h.tracker.SetUserConnected(ctx, code, userID, true)
			if err != nil {
				if len(b.conns) == 0 {
					b.dead = true
					h.buckets.CompareAndDelete(code, b)
				}
				b.mu.Unlock()
				return nil, err
			}
			user = u
		}

		conn := &Conn{
			ID:     uuid.NewString(),
			Code:   code,
			UserID: userID,
			send:   make(chan Frame, h.bufferSize),
		}
		b.conns[conn.ID] = conn
		b.users[userID]++
		total := len(b.conns)
		b.mu.Unlock()

		h.log.Debug("Client connected", "session", code, "user", userID, "session_clients", total)
		if user != nil {
			h.Broadcast(code, connectionEvent(models.EventUserConnected, user), userID)
		}
		return conn, nil
	}
}

// Unregister removes a connection; unknown ids are ignored. The user's last
// connection marks them disconnected and announces user_disconnected.
func (h *Hub) Unregister(code, connID string) {
	v, ok := h.buckets.Load(code)
	if !ok {
		return
	}
	b := v.(*bucket)

	b.mu.Lock()
	conn, ok := b.conns[connID]
	if !ok {
		b.mu.Unlock()
		return
	}
	delete(b.conns, connID)
	conn.close()

	var user *models.User
	b.users[conn.UserID]--
	if b.users[conn.UserID] <= 0 {
		delete(b.users, conn.UserID)
		u, err := h.tracker.SetUserConnected(context.Background(), code, conn.UserID, false)
		if err != nil {
			h.log.Debug("Could not mark user disconnected", "session", code, "user", conn.UserID, "error", err)
		} else {
			user = u
		}
	}
	total := len(b.conns)
	if total == 0 {
		b.dead = true
		h.buckets.CompareAndDelete(code, b)
	}
	b.mu.Unlock()

	h.log.Debug("Client disconnected", "session", code, "user", conn.UserID, "session_clients", total)
	if user != nil {
		h.Broadcast(code, connectionEvent(models.EventUserDisconnected, user), conn.UserID)
	}
}

func connectionEvent(t models.EventType, u *models.User) models.Event {
	return models.Event{
		Type: t,
		Data: models.ConnectionPayload{
			UserID:      u.ID,
			UserName:    u.Name,
			IsConnected: u.IsConnected,
		},
	}
}

// Broadcast queues evt on every connection of the session except those of
// excludeUserID. Connections that cannot keep up are dropped.
func (h *Hub) Broadcast(code string, evt models.Event, excludeUserID string) {
	h.deliver(code, evt, func(c *Conn) bool {
		return excludeUserID == "" || c.UserID != excludeUserID
	})
}

// Send queues evt only on the connections of userID
func (h *Hub) Send(code, userID string, evt models.Event) {
	h.deliver(code, evt, func(c *Conn) bool {
		return c.UserID == userID
	})
}

func (h *Hub) deliver(code string, evt models.Event, match func(*Conn) bool) {
	targets := h.connections(code, match)
	if len(targets) == 0 {
		return
	}

	frame, err := NewFrame(evt)
	if err != nil {
		h.log.Error("Failed to encode event", "session", code, "type", evt.Type, "error", err)
		return
	}

	var failed []*Conn
	for _, c := range targets {
		if !c.enqueue(frame) {
			failed = append(failed, c)
		}
	}
	for _, c := range failed {
		h.log.Warn("Dropping slow client", "session", code, "user", c.UserID, "type", evt.Type)
		h.Unregister(code, c.ID)
	}
}

// connections snapshots the matching connections of a session
func (h *Hub) connections(code string, match func(*Conn) bool) []*Conn {
	v, ok := h.buckets.Load(code)
	if !ok {
		return nil
	}
	b := v.(*bucket)

	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Conn, 0, len(b.conns))
	for _, c := range b.conns {
		if match(c) {
			out = append(out, c)
		}
	}
	return out
}

// IsUserLive reports whether the user has at least one open connection
func (h *Hub) IsUserLive(code, userID string) bool {
	v, ok := h.buckets.Load(code)
	if !ok {
		return false
	}
	b := v.(*bucket)
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.users[userID] > 0
}

// ConnectionCount returns the number of open connections of a session
func (h *Hub) ConnectionCount(code string) int {
	v, ok := h.buckets.Load(code)
	if !ok {
		return 0
	}
	b := v.(*bucket)
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns)
}

// Stats returns the number of sessions with live connections and the total
// number of connections
func (h *Hub) Stats() (sessions, connections int) {
	h.buckets.Range(func(_, v any) bool {
		b := v.(*bucket)
		b.mu.Lock()
		if n := len(b.conns); n > 0 {
			sessions++
			connections += n
		}
		b.mu.Unlock()
		return true
	})
	return sessions, connections
}

// CloseSession closes every connection of a session. Frames already queued,
// such as session_closed, are still written before the connections end.
func (h *Hub) CloseSession(code string) {
	v, ok := h.buckets.LoadAndDelete(code)
	if !ok {
		return
	}
	n := h.closeBucket(v.(*bucket))
	h.log.Debug("Session connections closed", "session", code, "connections", n)
}

// Shutdown closes every connection of every session
func (h *Hub) Shutdown() {
	total := 0
	h.buckets.Range(func(k, v any) bool {
		h.buckets.CompareAndDelete(k, v)
		total += h.closeBucket(v.(*bucket))
		return true
	})
	h.log.Info("Push hub shut down", "connections", total)
}

func (h *Hub) closeBucket(b *bucket) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dead = true
	n := len(b.conns)
	for id, c := range b.conns {
		c.close()
		delete(b.conns, id)
	}
	b.users = map[string]int{}
	return n
}

// Ensure Hub implements services.Notifier
var _ services.Notifier = (*Hub)(nil)
