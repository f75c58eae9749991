package api

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-scheduler/internal/infrastructure/config"
)

// WSClient is one connected WebSocket peer.
type WSClient struct {
	hub  *Hub
	conn *websocket.Conn

	maxMessageSize int64
	pingInterval   time.Duration
	pongWait       time.Duration

	send chan []byte
	done chan struct{}
	once sync.Once

	mu       sync.RWMutex
	channels map[string]struct{}
}

func newWSClient(hub *Hub, conn *websocket.Conn, cfg config.WebSocketConfig) *WSClient {
	return &WSClient{
		hub:            hub,
		conn:           conn,
		maxMessageSize: int64(cfg.MaxMessageSize),
		pingInterval:   time.Duration(cfg.PingInterval) * time.Second,
		pongWait:       time.Duration(cfg.PongTimeout) * time.Second,
		send:           make(chan []byte, wsSendBufferSize),
		done:           make(chan struct{}),
		channels:       make(map[string]struct{}),
	}
}

// shutdown signals both pumps to stop. Idempotent.
func (c *WSClient) shutdown() {
	c.once.Do(func() { close(c.done) })
}

// enqueue queues data without blocking. It returns false when the client
// is gone or its queue is full.
func (c *WSClient) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *WSClient) wants(eventType string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for pattern := range c.channels {
		if matchChannel(pattern, eventType) {
			return true
		}
	}
	return false
}

// readPump reads client frames until the connection fails.
func (c *WSClient) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	if c.maxMessageSize > 0 {
		c.conn.SetReadLimit(c.maxMessageSize)
	}
	deadline := func() time.Time { return time.Now().Add(c.pingInterval + c.pongWait) }
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(deadline())
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(deadline())
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		//nolint:errcheck // Any frame counts as liveness
		c.conn.SetReadDeadline(deadline())
		c.handleMessage(data)
	}
}

// writePump drains the send queue and keeps the connection alive with pings.
func (c *WSClient) writePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	write := func(msgType int, data []byte) error {
		//nolint:errcheck // Write error is reported below
		c.conn.SetWriteDeadline(time.Now().Add(c.pongWait))
		return c.conn.WriteMessage(msgType, data)
	}

	for {
		select {
		case <-c.done:
			//nolint:errcheck // Best-effort close frame
			write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		case data := <-c.send:
			if err := write(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) handleMessage(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.reply("", WSTypeError, map[string]string{"message": "invalid JSON message"})
		return
	}

	switch msg.Type {
	case WSTypeSubscribe, WSTypeUnsubscribe:
		c.handleChannels(msg)
	case WSTypePing:
		c.reply(msg.ID, WSTypePong, nil)
	default:
		c.reply(msg.ID, WSTypeError, map[string]string{"message": "unknown message type: " + msg.Type})
	}
}

// handleChannels applies a subscribe or unsubscribe request.
func (c *WSClient) handleChannels(msg WSMessage) {
	raw, err := json.Marshal(msg.Payload)
	if err != nil {
		c.reply(msg.ID, WSTypeError, map[string]string{"message": "invalid payload"})
		return
	}
	var sub WSSubscribePayload
	if err := json.Unmarshal(raw, &sub); err != nil {
		c.reply(msg.ID, WSTypeError, map[string]string{"message": "invalid " + msg.Type + " payload"})
		return
	}

	c.mu.Lock()
	for _, ch := range sub.Channels {
		if msg.Type == WSTypeSubscribe {
			c.channels[ch] = struct{}{}
		} else {
			delete(c.channels, ch)
		}
	}
	c.mu.Unlock()

	key := "subscribed"
	if msg.Type == WSTypeUnsubscribe {
		key = "unsubscribed"
	}
	c.hub.logger.Debug("websocket channels updated", key, sub.Channels)
	c.reply(msg.ID, WSTypeResponse, map[string]any{key: sub.Channels})
}

func (c *WSClient) reply(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.enqueue(data)
}
