package hub

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	apperrors "github.com/abrezinsky/planningpoker/internal/errors"
	"github.com/abrezinsky/planningpoker/internal/models"
	"github.com/abrezinsky/planningpoker/internal/services"
	"github.com/abrezinsky/planningpoker/internal/testutil"
)

type fixture struct {
	hub   *Hub
	store *services.SessionService
	code  string
	alice string
	bob   string
}

// newFixture wires a hub to a real store holding a session owned by Alice
// with Bob joined
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	store := services.NewSessionService(testutil.NewLogger())
	h := New(testutil.NewLogger(), store)
	store.SetNotifier(h)

	sess, err := store.CreateSession(ctx, "Alice", "")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	bob, err := store.JoinSession(ctx, sess.Code, "Bob", "")
	if err != nil {
		t.Fatalf("JoinSession failed: %v", err)
	}
	return &fixture{hub: h, store: store, code: sess.Code, alice: sess.OwnerID, bob: bob.ID}
}

func (f *fixture) register(t *testing.T, userID string) *Conn {
	t.Helper()
	c, err := f.hub.Register(context.Background(), f.code, userID)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return c
}

func (f *fixture) user(t *testing.T, userID string) *models.User {
	t.Helper()
	sess, err := f.store.GetSession(context.Background(), f.code)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	return sess.Users[userID]
}

func recvFrame(t *testing.T, c *Conn) Frame {
	t.Helper()
	select {
	case f, ok := <-c.Frames():
		if !ok {
			t.Fatal("outbox closed unexpectedly")
		}
		return f
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
	}
	return Frame{}
}

func expectNoFrame(t *testing.T, c *Conn) {
	t.Helper()
	select {
	case f, ok := <-c.Frames():
		if ok {
			t.Fatalf("unexpected frame %s", f.Type)
		}
	default:
	}
}

func TestRegister_FirstConnectionAnnounced(t *testing.T) {
	f := newFixture(t)

	alice := f.register(t, f.alice)
	bob := f.register(t, f.bob)

	got := recvFrame(t, alice)
	if got.Type != models.EventUserConnected {
		t.Fatalf("expected user_connected, got %s", got.Type)
	}
	if !strings.Contains(string(got.SSE()), `"userId":"`+f.bob+`"`) {
		t.Errorf("expected Bob's id in payload, got %s", got.SSE())
	}
	expectNoFrame(t, bob)

	if !f.user(t, f.bob).IsConnected {
		t.Error("expected store to mark Bob connected")
	}
	if !f.hub.IsUserLive(f.code, f.bob) {
		t.Error("expected Bob to be live")
	}
	if n := f.hub.ConnectionCount(f.code); n != 2 {
		t.Errorf("expected 2 connections, got %d", n)
	}
}

func TestRegister_SecondConnectionNotAnnounced(t *testing.T) {
	f := newFixture(t)

	alice := f.register(t, f.alice)
	f.register(t, f.bob)
	recvFrame(t, alice)

	f.register(t, f.bob)
	expectNoFrame(t, alice)
}

func TestUnregister_DisconnectedOnlyAfterLastConnection(t *testing.T) {
	f := newFixture(t)

	alice := f.register(t, f.alice)
	first := f.register(t, f.bob)
	second := f.register(t, f.bob)
	recvFrame(t, alice) // user_connected

	f.hub.Unregister(f.code, first.ID)
	expectNoFrame(t, alice)
	if !f.user(t, f.bob).IsConnected {
		t.Fatal("expected Bob to stay connected with one live connection")
	}
	if !f.hub.IsUserLive(f.code, f.bob) {
		t.Fatal("expected Bob to stay live")
	}

	f.hub.Unregister(f.code, second.ID)
	got := recvFrame(t, alice)
	if got.Type != models.EventUserDisconnected {
		t.Fatalf("expected user_disconnected, got %s", got.Type)
	}
	if u := f.user(t, f.bob); u.IsConnected || u.DisconnectedAt == nil {
		t.Errorf("expected Bob disconnected with a stamp, got %+v", u)
	}

	// repeated unregistration is a no-op
	f.hub.Unregister(f.code, second.ID)
	f.hub.Unregister(f.code, "unknown")
	expectNoFrame(t, alice)
}

func TestRegister_UnknownUserFails(t *testing.T) {
	f := newFixture(t)

	_, err := f.hub.Register(context.Background(), f.code, "ghost")
	if !apperrors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if n := f.hub.ConnectionCount(f.code); n != 0 {
		t.Errorf("expected no connections, got %d", n)
	}

	_, err = f.hub.Register(context.Background(), "NOPE2345", f.bob)
	if !apperrors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found for unknown session, got %v", err)
	}
}

func TestBroadcast_ExcludesUser(t *testing.T) {
	f := newFixture(t)

	alice := f.register(t, f.alice)
	bob := f.register(t, f.bob)
	recvFrame(t, alice)

	f.hub.Broadcast(f.code, models.Event{Type: models.EventVoteSubmitted, Data: models.VoteSubmittedPayload{UserID: f.bob, HasVoted: true}}, f.bob)

	if got := recvFrame(t, alice); got.Type != models.EventVoteSubmitted {
		t.Errorf("expected vote_submitted, got %s", got.Type)
	}
	expectNoFrame(t, bob)

	f.hub.Broadcast(f.code, models.Event{Type: models.EventVotesReset, Data: models.VotesResetPayload{}}, "")
	recvFrame(t, alice)
	recvFrame(t, bob)
}

func TestSend_OnlyTargetUser(t *testing.T) {
	f := newFixture(t)

	alice := f.register(t, f.alice)
	bob := f.register(t, f.bob)
	recvFrame(t, alice)

	f.hub.Send(f.code, f.bob, models.Event{Type: models.EventVotesReset, Data: models.VotesResetPayload{}})

	recvFrame(t, bob)
	expectNoFrame(t, alice)
}

func TestBroadcast_StoreEventsReachConnections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	alice := f.register(t, f.alice)
	bob := f.register(t, f.bob)
	recvFrame(t, alice)

	if _, err := f.store.StartVoting(ctx, f.code, f.alice); err != nil {
		t.Fatalf("StartVoting failed: %v", err)
	}
	if got := recvFrame(t, bob); got.Type != models.EventVotingStarted {
		t.Fatalf("expected voting_started, got %s", got.Type)
	}
	recvFrame(t, alice)

	if _, err := f.store.SubmitVote(ctx, f.code, f.bob, 5); err != nil {
		t.Fatalf("SubmitVote failed: %v", err)
	}
	if got := recvFrame(t, alice); got.Type != models.EventVoteSubmitted {
		t.Fatalf("expected vote_submitted, got %s", got.Type)
	}
	expectNoFrame(t, bob)
}

func TestBroadcast_FullOutboxDropsConnection(t *testing.T) {
	f := newFixture(t)
	f.hub.SetBufferSize(1)

	bob := f.register(t, f.bob)
	evt := models.Event{Type: models.EventVotesReset, Data: models.VotesResetPayload{}}

	f.hub.Broadcast(f.code, evt, "")
	f.hub.Broadcast(f.code, evt, "")

	if f.hub.IsUserLive(f.code, f.bob) {
		t.Error("expected slow connection to be dropped")
	}
	recvFrame(t, bob)
	if _, ok := <-bob.Frames(); ok {
		t.Error("expected outbox to be closed after the queued frame")
	}
	if f.user(t, f.bob).IsConnected {
		t.Error("expected store to mark Bob disconnected")
	}
}

func TestCloseSession_DeliversQueuedFramesThenCloses(t *testing.T) {
	f := newFixture(t)

	alice := f.register(t, f.alice)
	bob := f.register(t, f.bob)
	recvFrame(t, alice)

	if err := f.store.DeleteSession(context.Background(), f.code); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}

	for _, c := range []*Conn{alice, bob} {
		if got := recvFrame(t, c); got.Type != models.EventSessionClosed {
			t.Errorf("expected session_closed, got %s", got.Type)
		}
		if _, ok := <-c.Frames(); ok {
			t.Error("expected outbox closed")
		}
	}
	if n := f.hub.ConnectionCount(f.code); n != 0 {
		t.Errorf("expected no connections, got %d", n)
	}

	// writers unregistering after close must not fail
	f.hub.Unregister(f.code, alice.ID)
}

func TestShutdown_ClosesEverything(t *testing.T) {
	f := newFixture(t)

	alice := f.register(t, f.alice)
	f.register(t, f.bob)

	sessions, conns := f.hub.Stats()
	if sessions != 1 || conns != 2 {
		t.Fatalf("expected 1 session / 2 connections, got %d / %d", sessions, conns)
	}

	f.hub.Shutdown()

	sessions, conns = f.hub.Stats()
	if sessions != 0 || conns != 0 {
		t.Errorf("expected nothing left, got %d / %d", sessions, conns)
	}
	for range alice.Frames() {
	}
}

func TestNewFrame_Encoding(t *testing.T) {
	evt := models.Event{
		Type:  models.EventSessionClosed,
		Data:  models.SessionClosedPayload{SessionCode: "ABCD2345"},
		ID:    "7",
		Retry: 3000,
	}

	f, err := NewFrame(evt)
	if err != nil {
		t.Fatalf("NewFrame failed: %v", err)
	}

	expected := "event: session_closed\ndata: {\"sessionCode\":\"ABCD2345\"}\nid: 7\nretry: 3000\n\n"
	if string(f.SSE()) != expected {
		t.Errorf("unexpected SSE frame:\n%q\nwant\n%q", f.SSE(), expected)
	}

	var envelope struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(f.JSON(), &envelope); err != nil {
		t.Fatalf("invalid envelope: %v", err)
	}
	if envelope.Type != "session_closed" || string(envelope.Payload) != `{"sessionCode":"ABCD2345"}` {
		t.Errorf("unexpected envelope: %s", f.JSON())
	}
}

func TestNewFrame_OmitsOptionalFields(t *testing.T) {
	f, err := NewFrame(models.Event{Type: models.EventVotesReset, Data: map[string]int{"n": 1}})
	if err != nil {
		t.Fatalf("NewFrame failed: %v", err)
	}
	if string(f.SSE()) != "event: votes_reset\ndata: {\"n\":1}\n\n" {
		t.Errorf("unexpected SSE frame %q", f.SSE())
	}
}

func TestNewFrame_UnencodablePayload(t *testing.T) {
	if _, err := NewFrame(models.Event{Type: models.EventVotesReset, Data: make(chan int)}); err == nil {
		t.Error("expected encoding error")
	}
}
