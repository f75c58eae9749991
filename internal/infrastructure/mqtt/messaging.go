package mqtt

import (
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// maxPayloadSize caps outbound messages at 1MB.
const maxPayloadSize = 1 << 20

func validate(topic string, qos byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	return nil
}

// Publish sends payload and waits for the broker acknowledgement, or for
// the socket write at QoS 0. Only device state should be retained.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if err := validate(topic, qos); err != nil {
		return err
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: %d byte payload exceeds %d", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return wait(c.paho.Publish(topic, qos, retained, payload), operationTimeout, ErrPublishFailed)
}

// Subscribe registers handler for topic, which may use + and # wildcards.
// The subscription is replayed after every reconnect.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if err := validate(topic, qos); err != nil {
		return err
	}
	if handler == nil {
		return fmt.Errorf("%w: nil handler", ErrSubscribeFailed)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.mu.Lock()
	c.subs[topic] = subscription{qos: qos, handler: handler}
	c.mu.Unlock()

	if err := wait(c.paho.Subscribe(topic, qos, c.route(handler)), operationTimeout, ErrSubscribeFailed); err != nil {
		c.mu.Lock()
		delete(c.subs, topic)
		c.mu.Unlock()
		return err
	}
	return nil
}

// HasSubscription reports whether topic (exact string) is tracked.
func (c *Client) HasSubscription(topic string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subs[topic]
	return ok
}

func (c *Client) route(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		c.deliver(handler, msg.Topic(), msg.Payload())
	}
}

// deliver runs handler, keeping a panic from killing paho's router.
func (c *Client) deliver(handler MessageHandler, topic string, payload []byte) {
	c.mu.RLock()
	logger := c.logger
	c.mu.RUnlock()

	defer func() {
		if r := recover(); r != nil && logger != nil {
			logger.Error("mqtt handler panic", "topic", topic, "panic", r)
		}
	}()

	if err := handler(topic, payload); err != nil && logger != nil {
		logger.Warn("mqtt handler failed", "topic", topic, "error", err)
	}
}
