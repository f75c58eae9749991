package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-scheduler/internal/infrastructure/config"
)

// Logger is the subset of logging.Logger the client uses.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// MessageHandler processes one inbound message on paho's router goroutine.
// A returned error is logged; the message is acknowledged either way.
type MessageHandler func(topic string, payload []byte) error

type subscription struct {
	qos     byte
	handler MessageHandler
}

// Client is the scheduler's broker connection. Subscriptions survive
// reconnects and the retained status topic tracks online/offline.
// All methods are safe for concurrent use.
type Client struct {
	paho pahomqtt.Client
	cfg  config.MQTTConfig

	mu           sync.RWMutex
	subs         map[string]subscription
	logger       Logger
	onConnect    func()
	onDisconnect func(error)
}

// Connect dials the broker in cfg and waits for the first session.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := &Client{cfg: cfg, subs: make(map[string]subscription)}

	opts := clientOptions(cfg)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.connected() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.connectionLost(err) })

	c.paho = pahomqtt.NewClient(opts)
	if err := wait(c.paho.Connect(), connectTimeout, ErrConnectionFailed); err != nil {
		return nil, err
	}
	return c, nil
}

// wait blocks on token and wraps any failure in op.
func wait(token pahomqtt.Token, timeout time.Duration, op error) error {
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("%w: timeout after %v", op, timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", op, err)
	}
	return nil
}

// connected replays subscriptions and announces the scheduler online.
func (c *Client) connected() {
	c.mu.RLock()
	for topic, sub := range c.subs {
		c.paho.Subscribe(topic, sub.qos, c.route(sub.handler))
	}
	cb := c.onConnect
	c.mu.RUnlock()

	c.paho.Publish(Topics{}.Status(), c.QoS(), true, statusMessage(statusOnline, c.cfg.Broker.ClientID, ""))
	if cb != nil {
		cb()
	}
}

func (c *Client) connectionLost(err error) {
	c.mu.RLock()
	logger, cb := c.logger, c.onDisconnect
	c.mu.RUnlock()

	if logger != nil {
		logger.Warn("mqtt connection lost", "error", err)
	}
	if cb != nil {
		cb(err)
	}
}

// Close announces a graceful offline status and disconnects.
func (c *Client) Close() error {
	if c.paho == nil {
		return nil
	}
	if c.IsConnected() {
		c.paho.Publish(Topics{}.Status(), c.QoS(), true,
			statusMessage(statusOffline, c.cfg.Broker.ClientID, "graceful_shutdown")).WaitTimeout(operationTimeout)
	}
	c.paho.Disconnect(disconnectQuiesceMillis)
	return nil
}

// HealthCheck returns ErrNotConnected while the broker is unreachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports whether a session is currently open.
func (c *Client) IsConnected() bool {
	return c.paho != nil && c.paho.IsConnectionOpen()
}

// QoS returns the configured default QoS.
func (c *Client) QoS() byte { return byte(c.cfg.QoS) }

// SetOnConnect registers fn to run after every (re)connect.
func (c *Client) SetOnConnect(fn func()) {
	c.mu.Lock()
	c.onConnect = fn
	c.mu.Unlock()
}

// SetOnDisconnect registers fn to run when the connection drops.
func (c *Client) SetOnDisconnect(fn func(error)) {
	c.mu.Lock()
	c.onDisconnect = fn
	c.mu.Unlock()
}

// SetLogger sets the logger for connection loss and handler failures.
func (c *Client) SetLogger(logger Logger) {
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
}
