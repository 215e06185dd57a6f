package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/agentfleet/maestro/pkg/events"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Hub bridges the progress bus to WebSocket clients. Each connection gets
// its own bus subscription, so every client observes events in publication
// order; a client that cannot keep up loses its subscription rather than
// slowing the producers.
type Hub struct {
	bus          *events.Bus
	writeTimeout time.Duration
	log          *slog.Logger

	mu          sync.RWMutex
	connections map[string]*wsConnection
}

type wsConnection struct {
	id     string
	conn   *websocket.Conn
	cancel context.CancelFunc
}

// clientMessage is the JSON structure for client → server messages.
type clientMessage struct {
	Action string `json:"action"` // "ping"
}

// NewHub creates a hub over the given bus.
func NewHub(bus *events.Bus, writeTimeout time.Duration, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		bus:          bus,
		writeTimeout: writeTimeout,
		log:          log,
		connections:  make(map[string]*wsConnection),
	}
}

// ActiveConnections returns the number of connected clients.
func (h *Hub) ActiveConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// handleWebSocket upgrades the request and streams progress events until the
// client disconnects.
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // same-origin enforcement is upstream's concern
	})
	if err != nil {
		s.log.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	s.hub.handleConnection(c.Request.Context(), conn)
}

// handleConnection blocks until the connection closes.
func (h *Hub) handleConnection(parentCtx context.Context, conn *websocket.Conn) {
	connID := uuid.New().String()
	ctx, cancel := context.WithCancel(parentCtx)
	wc := &wsConnection{id: connID, conn: conn, cancel: cancel}

	h.mu.Lock()
	h.connections[connID] = wc
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.connections, connID)
		h.mu.Unlock()
		cancel()
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}()

	h.sendJSON(ctx, wc, map[string]string{
		"type":          "connection.established",
		"connection_id": connID,
	})

	// One bus subscription per connection; the writer goroutine preserves
	// publication order. If the bus drops the subscription (slow client),
	// the channel closes and the connection is shut down.
	sub := h.bus.Subscribe("ws-" + connID)
	defer h.bus.Unsubscribe(sub)

	go func() {
		for event := range sub.C {
			payload, err := events.MarshalWire(event)
			if err != nil {
				h.log.Warn("Failed to marshal progress event", "event", event.Kind, "error", err)
				continue
			}
			if err := h.sendRaw(ctx, wc, payload); err != nil {
				cancel()
				return
			}
		}
		cancel()
	}()

	// Read loop: process client messages until the connection closes.
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.log.Warn("Invalid WebSocket message", "connection_id", connID, "error", err)
			continue
		}
		if msg.Action == "ping" {
			h.sendJSON(ctx, wc, map[string]string{"type": "pong"})
		}
	}
}

func (h *Hub) sendJSON(ctx context.Context, wc *wsConnection, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.log.Warn("Failed to marshal WebSocket message", "connection_id", wc.id, "error", err)
		return
	}
	if err := h.sendRaw(ctx, wc, data); err != nil {
		h.log.Warn("Failed to send WebSocket message", "connection_id", wc.id, "error", err)
	}
}

func (h *Hub) sendRaw(ctx context.Context, wc *wsConnection, data []byte) error {
	writeCtx, cancel := context.WithTimeout(ctx, h.writeTimeout)
	defer cancel()
	return wc.conn.Write(writeCtx, websocket.MessageText, data)
}
