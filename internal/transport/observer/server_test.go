package observer

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"velo.run/internal/protocol"
)

func testBoot() protocol.BootstrapResponse {
	return protocol.BootstrapResponse{
		ProtocolVersion: protocol.Version,
		Program:         "examples/cat.velo",
		SourceDigest:    "deadbeef",
		Width:           4,
		Height:          2,
		Mode:            "trace",
	}
}

func TestBootstrapHandler(t *testing.T) {
	s := NewServer(testBoot(), nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/observer/bootstrap", nil)
	req.RemoteAddr = "127.0.0.1:50000"
	rec := httptest.NewRecorder()
	s.BootstrapHandler()(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d want 200", rec.Code)
	}
	var got protocol.BootstrapResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != testBoot() {
		t.Fatalf("bootstrap: got %+v", got)
	}
}

func TestBootstrapHandler_RejectsNonLoopback(t *testing.T) {
	s := NewServer(testBoot(), nil)
	req := httptest.NewRequest(http.MethodGet, "/v1/observer/bootstrap", nil)
	req.RemoteAddr = "10.1.2.3:50000"
	rec := httptest.NewRecorder()
	s.BootstrapHandler()(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status: got %d want 403", rec.Code)
	}
}

func TestWS_SubscribeAndReceive(t *testing.T) {
	s := NewServer(testBoot(), nil)
	srv := httptest.NewServer(s.WSHandler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	sub := protocol.SubscribeMsg{Type: "SUBSCRIBE", ProtocolVersion: protocol.Version}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	// The registration happens in the handler goroutine; give it a moment.
	waitForSubscribers(t, s, 1)

	s.Publish(protocol.TraceEntry{
		Cycle: 1, Pos: [2]int{0, 1}, Dir: "RIGHT", Velocity: 1,
		Rune: "CHARGE", LatticeRLE: "AAE=", Digest: "00",
	})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg protocol.SnapshotMsg
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if msg.Type != "SNAPSHOT" || msg.Cycle != 1 || msg.Rune != "CHARGE" {
		t.Fatalf("snapshot: %+v", msg)
	}
}

func TestWS_IgnoreVoidFiltersSnapshots(t *testing.T) {
	s := NewServer(testBoot(), nil)
	srv := httptest.NewServer(s.WSHandler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	sub := protocol.SubscribeMsg{Type: "SUBSCRIBE", ProtocolVersion: protocol.Version, IgnoreVoid: true}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	waitForSubscribers(t, s, 1)

	s.Publish(protocol.TraceEntry{Cycle: 1, Dir: "RIGHT", Rune: "VOID", Digest: "00"})
	s.Publish(protocol.TraceEntry{Cycle: 2, Dir: "RIGHT", Rune: "OUTPUT", Digest: "00"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg protocol.SnapshotMsg
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if msg.Cycle != 2 {
		t.Fatalf("expected the VOID snapshot to be skipped, got cycle %d", msg.Cycle)
	}
}

func TestWS_RejectsBadHandshake(t *testing.T) {
	s := NewServer(testBoot(), nil)
	srv := httptest.NewServer(s.WSHandler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]string{"type": "HELLO"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected close after bad handshake")
	}
}

func waitForSubscribers(t *testing.T, s *Server, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		got := len(s.subs)
		s.mu.Unlock()
		if got >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("subscribers never reached %d", n)
}
