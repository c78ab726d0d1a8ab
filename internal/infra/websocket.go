package infra

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// AlertHub fans live security events out to connected admin dashboards over
// WebSocket.
type AlertHub struct {
	mu     sync.RWMutex
	conns  map[string]*wsConn
	logger *slog.Logger
}

type wsConn struct {
	id   string
	send chan []byte
}

// WSMessage is the payload sent over WebSocket.
type WSMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser dashboards connect cross-origin in development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// NewAlertHub creates an empty hub.
func NewAlertHub(logger *slog.Logger) *AlertHub {
	return &AlertHub{conns: make(map[string]*wsConn), logger: logger}
}

// Broadcast sends an event to every connected client. Slow clients are
// skipped rather than blocking the caller.
func (h *AlertHub) Broadcast(event string, data any) {
	payload, err := json.Marshal(WSMessage{Event: event, Data: data})
	if err != nil {
		h.logger.Error("ws marshal error", "error", err, "event", event)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.conns {
		select {
		case c.send <- payload:
		default:
			h.logger.Warn("ws send buffer full", "conn_id", c.id, "event", event)
		}
	}
}

// ConnectionCount returns the number of active connections.
func (h *AlertHub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// ServeWS upgrades the request and streams broadcast events until the client
// disconnects. connID must be unique per connection.
func (h *AlertHub) ServeWS(w http.ResponseWriter, r *http.Request, connID string) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "error", err)
		return
	}

	conn := &wsConn{id: connID, send: make(chan []byte, 32)}
	h.mu.Lock()
	h.conns[connID] = conn
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.conns, connID)
		h.mu.Unlock()
		ws.Close()
	}()

	// Reader goroutine only watches for client close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case payload := <-conn.send:
			ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
