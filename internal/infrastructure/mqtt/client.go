package mqtt

import (
	"context"
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/openhearth/hearth-core/internal/infrastructure/config"
)

// Client wraps paho.mqtt.golang with Hearth-specific functionality.
//
// It provides connection management, message publishing, subscription handling,
// and automatic reconnection with exponential backoff.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Subscriptions are automatically restored on reconnection.
type Client struct {
	client  pahomqtt.Client
	options *pahomqtt.ClientOptions
	cfg     config.MQTTConfig

	// subscriptions tracks active subscriptions for re-subscription on reconnect.
	subscriptions map[string]subscription
	subMu         sync.RWMutex

	// connected tracks current connection state.
	connected bool
	connMu    sync.RWMutex

	// Callbacks for connection events (optional, set via SetOnConnect/SetOnDisconnect).
	onConnect    func()
	onDisconnect func(err error)
	callbackMu   sync.RWMutex

	// logger for error logging (optional, set via SetLogger).
	logger   Logger
	loggerMu sync.RWMutex
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// subscription holds subscription details for re-subscription on reconnect.
type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// MessageHandler is the callback signature for received messages.
//
// Handlers are invoked in separate goroutines by the paho library.
// They should not block for extended periods.
type MessageHandler func(topic string, payload []byte) error

// Connect establishes a connection to the MQTT broker.
//
// It performs the following setup:
//  1. Builds connection options from config (broker URL, auth, TLS)
//  2. Configures Last Will and Testament (LWT) for offline detection
//  3. Sets up auto-reconnect with exponential backoff
//  4. Attempts initial connection with timeout
//  5. Publishes online status to hearth/system/status
func Connect(cfg config.MQTTConfig) (*Client, error) {
	opts := buildClientOptions(cfg)
	configureLWT(opts, cfg.Broker.ClientID)

	c := &Client{
		cfg:           cfg,
		options:       opts,
		subscriptions: make(map[string]subscription),
	}

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.handleConnect()
	})

	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleDisconnect(err)
	})

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// Set connected state immediately after successful connection.
	// The OnConnectHandler callback runs asynchronously and may not have
	// executed yet, so we set it here to ensure IsConnected() returns true.
	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	return c, nil
}

// handleConnect is called when the connection is established.
func (c *Client) handleConnect() {
	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	c.restoreSubscriptions()
	c.publishOnlineStatus()

	c.callbackMu.RLock()
	cb := c.onConnect
	c.callbackMu.RUnlock()
	if cb != nil {
		cb()
	}
}

// handleDisconnect is called when the connection is lost.
func (c *Client) handleDisconnect(err error) {
	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	c.callbackMu.RLock()
	cb := c.onDisconnect
	c.callbackMu.RUnlock()
	if cb != nil {
		cb(err)
	}
}

// restoreSubscriptions re-establishes all tracked subscriptions.
// Called automatically after reconnection.
func (c *Client) restoreSubscriptions() {
	c.subMu.RLock()
	subs := make([]subscription, 0, len(c.subscriptions))
	for _, s := range c.subscriptions {
		subs = append(subs, s)
	}
	c.subMu.RUnlock()

	for _, s := range subs {
		if err := c.subscribe(s.topic, s.qos, s.handler); err != nil {
			c.logWarn("failed to restore subscription", "topic", s.topic, "error", err)
		}
	}
}

// publishOnlineStatus publishes the retained online status message.
func (c *Client) publishOnlineStatus() {
	topic := Topics{}.SystemStatus()
	payload := buildOnlinePayload(c.cfg.Broker.ClientID)
	if err := c.Publish(topic, []byte(payload), 1, true); err != nil {
		c.logWarn("failed to publish online status", "error", err)
	}
}

// SetOnConnect sets a callback invoked after each successful (re)connection.
func (c *Client) SetOnConnect(cb func()) {
	c.callbackMu.Lock()
	c.onConnect = cb
	c.callbackMu.Unlock()
}

// SetOnDisconnect sets a callback invoked when the connection is lost.
func (c *Client) SetOnDisconnect(cb func(err error)) {
	c.callbackMu.Lock()
	c.onDisconnect = cb
	c.callbackMu.Unlock()
}

// SetLogger sets the logger for connection and subscription warnings.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

// logWarn logs a warning if a logger is configured.
func (c *Client) logWarn(msg string, args ...any) {
	c.loggerMu.RLock()
	l := c.logger
	c.loggerMu.RUnlock()
	if l != nil {
		l.Warn(msg, args...)
	}
}

// IsConnected reports whether the client has an active broker connection.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && c.client.IsConnected()
}

// HealthCheck verifies the broker connection is alive.
func (c *Client) HealthCheck(_ context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// Close publishes the graceful offline status and disconnects from the broker.
func (c *Client) Close() error {
	if c.IsConnected() {
		topic := Topics{}.SystemStatus()
		payload := buildOfflinePayload(c.cfg.Broker.ClientID)
		//nolint:errcheck // Best-effort status on shutdown
		c.Publish(topic, []byte(payload), 1, true)
	}

	c.client.Disconnect(defaultDisconnectQuiesce)

	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	return nil
}
