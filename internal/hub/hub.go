// Package hub is the live distribution fan-out: candidate clients push
// video frames in, observer clients get integrity events pushed out.
package hub

import (
	"encoding/base64"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"AI_PROCTOR/go-backend/internal/models"
	"AI_PROCTOR/go-backend/internal/services"
)

const (
	RoleCandidate = "candidate"
	RoleObserver  = "observer"
)

// FrameSink receives candidate frames. Implemented by the monitor manager.
type FrameSink interface {
	SubmitFrame(sessionID int, frame []byte) bool
}

type Message struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	ClientID  string      `json:"client_id,omitempty"`
	SessionID int         `json:"session_id,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

type Client struct {
	conn      *websocket.Conn
	clientID  string
	role      string
	sessionID int // 0 = observer watching all sessions
	send      chan Message
}

type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	frames  FrameSink
	metrics *services.Metrics
}

func NewHub(frames FrameSink, metrics *services.Metrics) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		frames:  frames,
		metrics: metrics,
	}
}

func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	clientID := r.URL.Query().Get("clientId")
	if clientID == "" {
		clientID = "client-" + uuid.NewString()
	}

	role := r.URL.Query().Get("role")
	if role != RoleCandidate {
		role = RoleObserver
	}
	sessionID, _ := strconv.Atoi(r.URL.Query().Get("sessionId"))

	log.Printf("WebSocket client connected: %s (%s, session %d)", clientID, role, sessionID)

	client := &Client{
		conn:      conn,
		clientID:  clientID,
		role:      role,
		sessionID: sessionID,
		send:      make(chan Message, 256),
	}

	h.mu.Lock()
	h.clients[clientID] = client
	h.mu.Unlock()
	h.metrics.WSConnections.Add(1)

	defer func() {
		h.mu.Lock()
		delete(h.clients, clientID)
		h.mu.Unlock()
		h.metrics.WSConnections.Add(-1)

		conn.Close()
		log.Printf("WebSocket client disconnected: %s", clientID)
	}()

	go h.writePump(client)

	client.send <- Message{
		Type:      "WELCOME",
		ClientID:  clientID,
		SessionID: sessionID,
		Timestamp: time.Now().Unix(),
		Payload: map[string]interface{}{
			"message": "Connected to Proctoring Server",
			"role":    role,
		},
	}

	h.readPump(client)
}

// Publish fans an event out to every observer watching its session.
// Slow observers lose messages rather than blocking the emitter.
func (h *Hub) Publish(ev models.IntegrityEvent, integrityScore int) {
	msg := Message{
		Type:      "EVENT",
		SessionID: ev.SessionID,
		Timestamp: time.Now().Unix(),
		Payload: map[string]interface{}{
			"event":           ev,
			"integrity_score": integrityScore,
		},
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		if client.role != RoleObserver {
			continue
		}
		if client.sessionID != 0 && client.sessionID != ev.SessionID {
			continue
		}
		select {
		case client.send <- msg:
		default:
			h.metrics.WSErrors.Add(1)
		}
	}
}

func (h *Hub) readPump(client *Client) {
	defer client.conn.Close()

	client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		var msg Message
		err := client.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error for %s: %v", client.clientID, err)
				h.metrics.WSErrors.Add(1)
			}
			return
		}
		client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		h.metrics.WSMessages.Add(1)

		switch msg.Type {
		case "PING":
			client.send <- Message{
				Type:      "PONG",
				ClientID:  client.clientID,
				Timestamp: time.Now().Unix(),
			}

		case "FRAME":
			if client.role != RoleCandidate {
				continue
			}
			frame, ok := decodeFramePayload(msg.Payload)
			if !ok {
				h.metrics.WSErrors.Add(1)
				continue
			}
			if !h.frames.SubmitFrame(client.sessionID, frame) {
				client.send <- Message{
					Type:      "ERROR",
					ClientID:  client.clientID,
					Timestamp: time.Now().Unix(),
					Payload: map[string]interface{}{
						"error": "session is not being monitored",
					},
				}
			}

		default:
			log.Printf("Unknown message type: %s", msg.Type)
		}
	}
}

func decodeFramePayload(payload interface{}) ([]byte, bool) {
	m, ok := payload.(map[string]interface{})
	if !ok {
		return nil, false
	}
	encoded, ok := m["frame"].(string)
	if !ok || encoded == "" {
		return nil, false
	}
	frame, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, false
	}
	return frame, true
}

func (h *Hub) writePump(client *Client) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))

			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := client.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ActiveClients returns the number of connected WebSocket clients.
func (h *Hub) ActiveClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Closing the conn unblocks both pumps; the send channel stays open
	// because readPump may still be replying on it.
	for clientID, client := range h.clients {
		client.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		client.conn.Close()
		log.Printf("Closed connection for client: %s", clientID)
	}
	h.clients = make(map[string]*Client)
}
