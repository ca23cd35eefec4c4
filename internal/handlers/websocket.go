package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/interfaces"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// LogEntry is one log line broadcast to connected clients
type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
}

// wsMessage is the envelope for every broadcast frame
type wsMessage struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	Payload   any    `json:"payload,omitempty"`
}

// WebSocketHandler streams job events and log lines to connected clients
type WebSocketHandler struct {
	logger            arbor.ILogger
	clients           map[*websocket.Conn]bool
	clientMutex       map[*websocket.Conn]*sync.Mutex
	mu                sync.RWMutex
	eventService      interfaces.EventService
	progressThrottler *rate.Limiter
	serverInstanceID  string // Clients use this to detect server restarts
}

func NewWebSocketHandler(eventService interfaces.EventService, logger arbor.ILogger, _ *common.WebSocketConfig) *WebSocketHandler {
	h := &WebSocketHandler{
		logger:            logger,
		clients:           make(map[*websocket.Conn]bool),
		clientMutex:       make(map[*websocket.Conn]*sync.Mutex),
		eventService:      eventService,
		progressThrottler: rate.NewLimiter(rate.Every(500*time.Millisecond), 1),
		serverInstanceID:  uuid.New().String(),
	}

	if eventService != nil {
		eventService.Subscribe(h.handleEvent)
	}

	return h
}

// HandleWebSocket upgrades the connection and registers the client
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.clientMutex[conn] = &sync.Mutex{}
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().Int("clients", count).Msg("WebSocket client connected")

	h.send(conn, wsMessage{
		Type:      "connected",
		Timestamp: time.Now().Format(time.RFC3339),
		Payload:   map[string]string{"server_instance_id": h.serverInstanceID},
	})

	// Read loop exists only to detect disconnect
	go func() {
		defer h.removeClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// handleEvent forwards application events to every client. Progress events
// are throttled so a fast pipeline cannot flood slow clients.
func (h *WebSocketHandler) handleEvent(event interfaces.Event) {
	if event.Type == "job.progress" && !h.progressThrottler.Allow() {
		return
	}

	payload := map[string]any{
		"job_id": event.JobID,
	}
	for k, v := range event.Payload {
		payload[k] = v
	}

	h.broadcast(wsMessage{
		Type:      event.Type,
		Timestamp: event.Timestamp.Format(time.RFC3339),
		Payload:   payload,
	})
}

// BroadcastLog sends one log line to every client
func (h *WebSocketHandler) BroadcastLog(entry LogEntry) {
	h.broadcast(wsMessage{
		Type:      "log",
		Timestamp: time.Now().Format(time.RFC3339),
		Payload:   entry,
	})
}

func (h *WebSocketHandler) broadcast(msg wsMessage) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		h.send(conn, msg)
	}
}

// send writes one frame, serialized per connection. A failed write evicts
// the client.
func (h *WebSocketHandler) send(conn *websocket.Conn, msg wsMessage) {
	h.mu.RLock()
	connMu := h.clientMutex[conn]
	h.mu.RUnlock()
	if connMu == nil {
		return
	}

	connMu.Lock()
	err := conn.WriteJSON(msg)
	connMu.Unlock()

	if err != nil {
		h.removeClient(conn)
	}
}

func (h *WebSocketHandler) removeClient(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		delete(h.clientMutex, conn)
		conn.Close()
	}
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().Int("clients", count).Msg("WebSocket client disconnected")
}

// ClientCount reports the number of connected clients
func (h *WebSocketHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
