package testutil

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/abrezinsky/planningpoker/internal/logger"
	"github.com/abrezinsky/planningpoker/internal/models"
	"github.com/abrezinsky/planningpoker/internal/services"
)

// Clock is a manually advanced time source
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock frozen at a fixed instant
func NewClock() *Clock {
	return &Clock{now: time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)}
}

// Now returns the current fake time
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// SentEvent is one recorded broadcast
type SentEvent struct {
	Code    string
	Event   models.Event
	Exclude string
}

// Notifier records every event the store dispatches
type Notifier struct {
	mu     sync.Mutex
	events []SentEvent
	closed []string
}

func (n *Notifier) Broadcast(code string, evt models.Event, excludeUserID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, SentEvent{Code: code, Event: evt, Exclude: excludeUserID})
}

func (n *Notifier) CloseSession(code string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = append(n.closed, code)
}

// Events returns a copy of the recorded events
func (n *Notifier) Events() []SentEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]SentEvent, len(n.events))
	copy(out, n.events)
	return out
}

// Types returns the recorded event types in order
func (n *Notifier) Types() []models.EventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]models.EventType, len(n.events))
	for i, e := range n.events {
		out[i] = e.Event.Type
	}
	return out
}

// Closed returns the codes passed to CloseSession
func (n *Notifier) Closed() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.closed...)
}

// Reset forgets everything recorded so far
func (n *Notifier) Reset() {
	n.mu.Lock()
	n.events = nil
	n.closed = nil
	n.mu.Unlock()
}

// NewLogger returns a logger that discards output
func NewLogger() *logger.SlogLogger {
	return logger.NewWithOptions(io.Discard, slog.LevelDebug, logger.FormatText)
}

// NewTestSessionService creates a SessionService with a fake clock and a
// recording notifier
func NewTestSessionService(t *testing.T) (*services.SessionService, *Clock, *Notifier) {
	t.Helper()

	clock := NewClock()
	notifier := &Notifier{}
	svc := services.NewSessionService(NewLogger())
	svc.SetClock(clock.Now)
	svc.SetNotifier(notifier)
	return svc, clock, notifier
}
