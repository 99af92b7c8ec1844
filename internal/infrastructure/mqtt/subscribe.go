package mqtt

import (
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Subscribe registers a handler for messages on the given topic.
//
// The subscription is tracked and automatically restored after reconnection.
// Topic may contain MQTT wildcards (+ for one level, # for remainder).
//
// Handler errors are logged but do not affect message acknowledgment.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}

	if err := c.subscribe(topic, qos, handler); err != nil {
		return err
	}

	// Track for re-subscription on reconnect
	c.subMu.Lock()
	c.subscriptions[topic] = subscription{topic: topic, qos: qos, handler: handler}
	c.subMu.Unlock()

	return nil
}

// subscribe performs the actual paho subscription without tracking.
func (c *Client) subscribe(topic string, qos byte, handler MessageHandler) error {
	wrapped := func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				c.logError("panic in MQTT message handler", "topic", msg.Topic(), "panic", r)
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			c.logError("MQTT message handler error", "topic", msg.Topic(), "error", err)
		}
	}

	token := c.client.Subscribe(topic, qos, wrapped)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout subscribing to %s", ErrSubscribeFailed, topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}

	return nil
}

// Unsubscribe removes the handler for a topic and stops tracking it.
func (c *Client) Unsubscribe(topic string) error {
	token := c.client.Unsubscribe(topic)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout unsubscribing from %s", ErrSubscribeFailed, topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}

	c.subMu.Lock()
	delete(c.subscriptions, topic)
	c.subMu.Unlock()

	return nil
}

// logError logs an error if a logger is configured.
func (c *Client) logError(msg string, args ...any) {
	c.loggerMu.RLock()
	l := c.logger
	c.loggerMu.RUnlock()
	if l != nil {
		l.Error(msg, args...)
	}
}
