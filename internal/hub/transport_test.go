package hub

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	apperrors "github.com/abrezinsky/planningpoker/internal/errors"
	"github.com/abrezinsky/planningpoker/internal/models"
)

func (f *fixture) sseServer(t *testing.T, userID string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := f.hub.ServeSSE(w, r, f.code, userID); err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// readLines streams response lines into a channel
func readLines(body *bufio.Reader) <-chan string {
	lines := make(chan string, 64)
	go func() {
		defer close(lines)
		for {
			line, err := body.ReadString('\n')
			if err != nil {
				return
			}
			lines <- strings.TrimRight(line, "\n")
		}
	}()
	return lines
}

func waitForLine(t *testing.T, lines <-chan string, want string) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatalf("stream ended before %q", want)
			}
			if line == want {
				return
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal(msg)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestServeSSE_StreamsEvents(t *testing.T) {
	f := newFixture(t)
	srv := f.sseServer(t, f.bob)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected text/event-stream, got %q", ct)
	}
	if resp.Header.Get("Cache-Control") != "no-cache" || resp.Header.Get("X-Accel-Buffering") != "no" {
		t.Errorf("unexpected headers: %v", resp.Header)
	}

	lines := readLines(bufio.NewReader(resp.Body))
	waitForLine(t, lines, ": connected")

	if !f.hub.IsUserLive(f.code, f.bob) {
		t.Fatal("expected Bob to be live while streaming")
	}

	if _, err := f.store.StartVoting(context.Background(), f.code, f.alice); err != nil {
		t.Fatalf("StartVoting failed: %v", err)
	}
	waitForLine(t, lines, "event: voting_started")

	cancel()
	waitFor(t, func() bool { return f.hub.ConnectionCount(f.code) == 0 }, "connection not released after cancel")
	waitFor(t, func() bool { return !f.user(t, f.bob).IsConnected }, "user not marked disconnected")
}

func TestServeSSE_KeepAlive(t *testing.T) {
	f := newFixture(t)
	f.hub.SetKeepAlive(20 * time.Millisecond)
	srv := f.sseServer(t, f.bob)

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	lines := readLines(bufio.NewReader(resp.Body))
	waitForLine(t, lines, ": connected")
	waitForLine(t, lines, ": keep-alive")
}

func TestServeSSE_EndsWhenSessionCloses(t *testing.T) {
	f := newFixture(t)
	srv := f.sseServer(t, f.bob)

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	lines := readLines(bufio.NewReader(resp.Body))
	waitForLine(t, lines, ": connected")

	if err := f.store.DeleteSession(context.Background(), f.code); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	waitForLine(t, lines, "event: session_closed")

	timeout := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-lines:
			if !ok {
				return
			}
		case <-timeout:
			t.Fatal("stream did not end after session close")
		}
	}
}

func TestServeSSE_RegistrationError(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	err := f.hub.ServeSSE(rec, req, f.code, "ghost")

	if !apperrors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("expected nothing written, got %q", rec.Body.String())
	}
}

func TestServeWs_StreamsEnvelopes(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := f.hub.ServeWs(w, r, f.code, f.bob); err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
		}
	}))
	defer srv.Close()

	url := "ws" + srv.URL[4:]
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer ws.Close()

	waitFor(t, func() bool { return f.hub.IsUserLive(f.code, f.bob) }, "websocket client not registered")

	if _, err := f.store.StartVoting(context.Background(), f.code, f.alice); err != nil {
		t.Fatalf("StartVoting failed: %v", err)
	}

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read message: %v", err)
	}

	var msg struct {
		Type    models.EventType            `json:"type"`
		Payload models.VotingStartedPayload `json:"payload"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("invalid message %s: %v", data, err)
	}
	if msg.Type != models.EventVotingStarted || msg.Payload.Status != models.RoundInProgress {
		t.Errorf("unexpected message: %s", data)
	}

	ws.Close()
	waitFor(t, func() bool { return f.hub.ConnectionCount(f.code) == 0 }, "websocket connection not released")
}

func TestServeWs_RegistrationError(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := f.hub.ServeWs(w, r, f.code, "ghost"); err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
		}
	}))
	defer srv.Close()

	_, resp, err := websocket.DefaultDialer.Dial("ws"+srv.URL[4:], nil)
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 response, got %+v", resp)
	}
}
