package live

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/reunio/reunio/pkg/events"
)

func dial(t *testing.T, srv *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	if sessionID != "" {
		url += "?session_id=" + sessionID
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func waitForClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if h.ClientCount() == n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d clients, have %d", n, h.ClientCount())
}

func TestHubBroadcastsToSessionSubscribers(t *testing.T) {
	h := NewHub(Config{})
	srv := httptest.NewServer(h)
	defer srv.Close()
	defer func() { _ = h.Stop() }()

	conn := dial(t, srv, "s1")
	defer conn.Close()
	waitForClients(t, h, 1)

	h.Emit(events.NewText(events.KindChunk, "s1", 2, "Bonjour à tous", nil))

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev events.Event
	if err := json.Unmarshal(msg, &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Kind != events.KindChunk || ev.Seq != 2 || ev.Text != "Bonjour à tous" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestHubFiltersOtherSessions(t *testing.T) {
	h := NewHub(Config{})
	srv := httptest.NewServer(h)
	defer srv.Close()
	defer func() { _ = h.Stop() }()

	conn := dial(t, srv, "s1")
	defer conn.Close()
	waitForClients(t, h, 1)

	h.Emit(events.New(events.KindState, "other-session", nil))

	_ = conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("client should not receive another session's events")
	}
}

func TestHubWildcardSubscriber(t *testing.T) {
	h := NewHub(Config{})
	srv := httptest.NewServer(h)
	defer srv.Close()
	defer func() { _ = h.Stop() }()

	conn := dial(t, srv, "")
	defer conn.Close()
	waitForClients(t, h, 1)

	h.Emit(events.New(events.KindState, "any-session", map[string]string{events.MetaState: "recording"}))

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev events.Event
	if err := json.Unmarshal(msg, &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.SessionID != "any-session" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestHubEmitDuringClientDisconnect(t *testing.T) {
	h := NewHub(Config{})
	srv := httptest.NewServer(h)
	defer srv.Close()
	defer func() { _ = h.Stop() }()

	conn := dial(t, srv, "s1")
	defer conn.Close()
	waitForClients(t, h, 1)

	h.mu.Lock()
	var c *client
	for _, cl := range h.clients {
		c = cl
	}
	h.mu.Unlock()

	// A disconnect closes the client while broadcasts from session
	// goroutines are still in flight; neither path may panic.
	if err := c.close(); err != nil && !strings.Contains(err.Error(), "closed") {
		t.Fatalf("close: %v", err)
	}
	c.enqueue([]byte(`{"kind":"chunk"}`))
	h.Emit(events.NewText(events.KindChunk, "s1", 1, "après la déconnexion", nil))
}

func TestHubStopRejectsNewClients(t *testing.T) {
	h := NewHub(Config{})
	srv := httptest.NewServer(h)
	defer srv.Close()

	if err := h.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	if _, _, err := websocket.DefaultDialer.Dial(url, nil); err == nil {
		t.Fatalf("expected dial failure after stop")
	}
}
