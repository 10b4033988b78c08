package hub

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"AI_PROCTOR/go-backend/internal/services"
)

type acceptAllFrames struct{}

func (acceptAllFrames) SubmitFrame(sessionID int, frame []byte) bool { return true }

func newTestHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	h := NewHub(acceptAllFrames{}, services.NewMetrics())
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWS))
	t.Cleanup(srv.Close)
	return h, srv
}

func dialTestHub(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestPingPong(t *testing.T) {
	_, srv := newTestHub(t)
	conn := dialTestHub(t, srv, "clientId=c1&role=observer")

	var welcome Message
	if err := conn.ReadJSON(&welcome); err != nil {
		t.Fatalf("read welcome: %v", err)
	}
	if welcome.Type != "WELCOME" {
		t.Fatalf("first message type = %s, want WELCOME", welcome.Type)
	}

	if err := conn.WriteJSON(Message{Type: "PING"}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	var pong Message
	if err := conn.ReadJSON(&pong); err != nil {
		t.Fatalf("read pong: %v", err)
	}
	if pong.Type != "PONG" {
		t.Errorf("reply type = %s, want PONG", pong.Type)
	}
}

// A client flooding replies while the server shuts down must not crash
// the server; the reply channel stays open until the pumps exit on their
// own.
func TestCloseAllDuringClientTraffic(t *testing.T) {
	h, srv := newTestHub(t)
	conn := dialTestHub(t, srv, "clientId=c1&role=observer")

	var welcome Message
	if err := conn.ReadJSON(&welcome); err != nil {
		t.Fatalf("read welcome: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if err := conn.WriteJSON(Message{Type: "PING"}); err != nil {
				return
			}
		}
	}()

	time.Sleep(20 * time.Millisecond)
	h.CloseAll()
	<-done

	deadline := time.Now().Add(2 * time.Second)
	for h.ActiveClients() > 0 {
		if time.Now().After(deadline) {
			t.Fatal("clients still registered after CloseAll")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
