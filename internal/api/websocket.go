package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-scheduler/internal/events"
	"github.com/nerrad567/gray-logic-scheduler/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-scheduler/internal/infrastructure/logging"
)

// WebSocket message types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

// WSChannelAll matches every event type. A channel ending in ".*" matches
// every type with that prefix, e.g. "schedule.*".
const WSChannelAll = "*"

// wsSendBufferSize is the per-client outbound queue length.
const wsSendBufferSize = 64

// WSMessage is one frame in either direction.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventID   string `json:"event_id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload for subscribe/unsubscribe messages.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// Hub tracks connected clients and pushes engine events to them. It is an
// events.Sink; the dispatcher calls Handle on its own goroutine.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu      sync.RWMutex
	clients map[*WSClient]struct{}
	closed  bool
}

// NewHub creates a hub. Call Run to tie its lifetime to a context.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx ends, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	h.closed = true
	clients := h.clients
	h.clients = make(map[*WSClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.shutdown()
	}
}

// register adds c unless the hub has shut down.
func (h *Hub) register(c *WSClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.logger.Debug("websocket client connected", "clients", len(h.clients))
	return true
}

// unregister removes c. It is safe to call more than once.
func (h *Hub) unregister(c *WSClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		c.shutdown()
		h.logger.Debug("websocket client disconnected", "clients", n)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Name implements events.Sink.
func (h *Hub) Name() string { return "websocket" }

// Handle implements events.Sink. The event is encoded once and queued for
// every subscribed client; a client whose queue is full misses it.
func (h *Hub) Handle(_ context.Context, evt events.Event) error {
	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventID:   evt.ID,
		EventType: evt.Type,
		Timestamp: evt.Timestamp.UTC().Format(time.RFC3339),
		Payload:   evt.Payload,
	})
	if err != nil {
		return err
	}

	h.mu.RLock()
	targets := make([]*WSClient, 0, len(h.clients))
	for c := range h.clients {
		if c.wants(evt.Type) {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if !c.enqueue(data) {
			h.logger.Debug("websocket client queue full, event skipped", "type", evt.Type)
		}
	}
	return nil
}

// matchChannel reports whether a subscription pattern covers eventType.
func matchChannel(pattern, eventType string) bool {
	switch {
	case pattern == WSChannelAll:
		return true
	case strings.HasSuffix(pattern, ".*"):
		return strings.HasPrefix(eventType, strings.TrimSuffix(pattern, "*"))
	default:
		return pattern == eventType
	}
}

// handleWebSocket upgrades the connection. Clients receive nothing until
// they subscribe.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := newWSClient(s.hub, conn, s.hub.cfg)
	if !s.hub.register(c) {
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}
