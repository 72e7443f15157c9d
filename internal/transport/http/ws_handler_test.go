package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"ipzy-gateway/internal/app"
	"ipzy-gateway/internal/domain"
)

type wsMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func TestWebSocketStreamsAdvance(t *testing.T) {
	h := newHarness(t)
	h.login()
	h.call(http.MethodGet, "/api/quiz", nil, http.StatusOK, nil)

	conn := h.dialWS()
	defer conn.Close()

	first := readSnapshot(t, conn)
	if first.Step != 0 || first.State != domain.StateInProgress {
		t.Fatalf("expected step 0 in progress, got %+v", first)
	}

	if err := conn.WriteJSON(map[string]any{
		"type":    "answer",
		"payload": map[string]any{"questionId": 11, "value": "date"},
	}); err != nil {
		t.Fatalf("write answer: %v", err)
	}

	// the selection snapshot arrives first, then the delayed advance
	deadline := time.Now().Add(3 * time.Second)
	for {
		snap := readSnapshot(t, conn)
		if snap.Step == 1 && !snap.Advancing {
			if snap.Answers[11] != "date" {
				t.Fatalf("expected answer carried, got %v", snap.Answers)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("advance never streamed")
		}
	}

	if err := conn.WriteJSON(map[string]any{"type": "answer", "payload": map[string]any{"questionId": 11, "value": "work"}}); err != nil {
		t.Fatalf("write stale answer: %v", err)
	}
	msg := readMessage(t, conn, "error")
	if !strings.Contains(string(msg.Payload), "invalid_answer") {
		t.Fatalf("expected invalid_answer, got %s", msg.Payload)
	}

	if err := conn.WriteJSON(map[string]any{"type": "confirmLogin"}); err != nil {
		t.Fatalf("write confirm: %v", err)
	}
	msg = readMessage(t, conn, "navigation")
	var nav domain.Navigation
	if err := json.Unmarshal(msg.Payload, &nav); err != nil {
		t.Fatalf("decode navigation: %v", err)
	}
	if nav.Path != app.PathLogin {
		t.Fatalf("expected login navigation, got %+v", nav)
	}
}

func TestWebSocketWithoutAttempt(t *testing.T) {
	h := newHarness(t)
	h.call(http.MethodGet, "/api/guard?path=/", nil, http.StatusOK, nil)

	conn := h.dialWS()
	defer conn.Close()

	msg := readMessage(t, conn, "error")
	if !strings.Contains(string(msg.Payload), "attempt_not_loaded") {
		t.Fatalf("expected attempt_not_loaded, got %s", msg.Payload)
	}
}

func (h *harness) dialWS() *websocket.Conn {
	h.t.Helper()
	header := http.Header{}
	var parts []string
	for _, c := range h.jar.Cookies(h.base) {
		parts = append(parts, c.Name+"="+c.Value)
	}
	header.Set("Cookie", strings.Join(parts, "; "))

	u := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/ws/quiz"
	conn, _, err := websocket.DefaultDialer.Dial(u, header)
	if err != nil {
		h.t.Fatalf("dial: %v", err)
	}
	return conn
}

// readMessage skips snapshots until a message of type want arrives.
func readMessage(t *testing.T, conn *websocket.Conn, want string) wsMessage {
	t.Helper()
	for i := 0; i < 20; i++ {
		var msg wsMessage
		_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read json: %v", err)
		}
		if msg.Type == want {
			return msg
		}
	}
	t.Fatalf("no %s message", want)
	return wsMessage{}
}

func readSnapshot(t *testing.T, conn *websocket.Conn) app.Snapshot {
	t.Helper()
	msg := readMessage(t, conn, "snapshot")
	var snap app.Snapshot
	if err := json.Unmarshal(msg.Payload, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	return snap
}
