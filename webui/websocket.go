package webui

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocket timing configuration.
const (
	wsPingInterval = 30 * time.Second
	wsPongWait     = 60 * time.Second
	wsWriteWait    = 10 * time.Second
	wsSendBuffer   = 16
)

// StatusMessage is one broadcast frame. Type selects the Data shape.
type StatusMessage struct {
	Type      string `json:"type"`
	Data      any    `json:"data,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Broadcast message types.
const (
	MsgEngineStatus = "engine_status"
	MsgGeneration   = "generation"
)

// EngineStatus reports which engine slot currently holds GPU memory.
type EngineStatus struct {
	Resident string `json:"resident"` // "text", "image", or "none"
}

// GenerationUpdate summarizes a finished batch for dashboard clients that
// did not initiate it.
type GenerationUpdate struct {
	Success bool `json:"success"`
	Images  int  `json:"images"`
	Errors  int  `json:"errors"`
}

// StatusBroadcaster fans status messages out to every connected WebSocket
// client. Slow clients are dropped rather than blocking the broadcast.
type StatusBroadcaster struct {
	logger *zap.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]chan []byte
	closed  bool

	upgrader websocket.Upgrader
}

// NewStatusBroadcaster builds an idle broadcaster; Start runs its ping loop.
func NewStatusBroadcaster(logger *zap.Logger) *StatusBroadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusBroadcaster{
		logger:  logger,
		clients: make(map[*websocket.Conn]chan []byte),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The UI is same-host; session auth already gates the route.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Start pings clients until ctx is cancelled, then closes all connections.
func (b *StatusBroadcaster) Start(ctx context.Context) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.closeAll()
			return
		case <-ticker.C:
			b.pingAll()
		}
	}
}

// HandleConnection upgrades the request and serves the client until it
// disconnects.
func (b *StatusBroadcaster) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	send := make(chan []byte, wsSendBuffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		conn.Close()
		return
	}
	b.clients[conn] = send
	count := len(b.clients)
	b.mu.Unlock()

	b.logger.Debug("websocket client connected", zap.Int("clients", count))

	go b.writePump(conn, send)
	b.readPump(conn)
}

// BroadcastEngineStatus pushes a residency change to all clients.
func (b *StatusBroadcaster) BroadcastEngineStatus(status EngineStatus) {
	b.broadcast(StatusMessage{
		Type:      MsgEngineStatus,
		Data:      status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// BroadcastGeneration pushes a finished-batch summary to all clients.
func (b *StatusBroadcaster) BroadcastGeneration(update GenerationUpdate) {
	b.broadcast(StatusMessage{
		Type:      MsgGeneration,
		Data:      update,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// ClientCount reports the number of connected clients.
func (b *StatusBroadcaster) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

func (b *StatusBroadcaster) broadcast(msg StatusMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error("websocket message encode failed", zap.Error(err))
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for conn, send := range b.clients {
		select {
		case send <- payload:
		default:
			// Client cannot keep up; disconnect it.
			delete(b.clients, conn)
			close(send)
			conn.Close()
		}
	}
}

func (b *StatusBroadcaster) removeClient(conn *websocket.Conn) {
	b.mu.Lock()
	if send, ok := b.clients[conn]; ok {
		delete(b.clients, conn)
		close(send)
	}
	b.mu.Unlock()
	conn.Close()
}

func (b *StatusBroadcaster) pingAll() {
	b.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(b.clients))
	for conn := range b.clients {
		conns = append(conns, conn)
	}
	b.mu.Unlock()

	for _, conn := range conns {
		deadline := time.Now().Add(wsWriteWait)
		if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
			b.removeClient(conn)
		}
	}
}

func (b *StatusBroadcaster) closeAll() {
	b.mu.Lock()
	b.closed = true
	conns := make([]*websocket.Conn, 0, len(b.clients))
	for conn, send := range b.clients {
		conns = append(conns, conn)
		close(send)
	}
	b.clients = make(map[*websocket.Conn]chan []byte)
	b.mu.Unlock()

	for _, conn := range conns {
		deadline := time.Now().Add(wsWriteWait)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			deadline)
		conn.Close()
	}
}

// readPump drains inbound frames (clients never send data frames, only
// pongs) and detects disconnects.
func (b *StatusBroadcaster) readPump(conn *websocket.Conn) {
	defer b.removeClient(conn)

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (b *StatusBroadcaster) writePump(conn *websocket.Conn, send <-chan []byte) {
	for payload := range send {
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}
