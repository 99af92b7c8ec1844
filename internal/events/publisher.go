// Package events publishes registry and bridge change events over MQTT.
//
// The publisher is optional: when constructed with a nil client every
// publish becomes a no-op, so callers never need to guard on whether
// MQTT is enabled.
package events

import (
	"time"

	"github.com/openhearth/hearth-core/internal/infrastructure/mqtt"
	"github.com/openhearth/hearth-core/internal/registry"
)

// Logger is the minimal logging interface the publisher needs.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// Publisher emits change events on the hearth MQTT topic tree.
type Publisher struct {
	client *mqtt.Client
	topics mqtt.Topics
	logger Logger
}

// NewPublisher creates an event publisher. A nil client disables publishing.
func NewPublisher(client *mqtt.Client, logger Logger) *Publisher {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Publisher{client: client, logger: logger}
}

// RegistryEvent is the payload published for device and entity changes.
type RegistryEvent struct {
	Action    string    `json:"action"`
	Record    any       `json:"record"`
	Timestamp time.Time `json:"timestamp"`
}

// MigrationEvent is the payload published when a bridge data migration runs.
type MigrationEvent struct {
	Bridge           string    `json:"bridge"`
	ConfigEntryID    string    `json:"config_entry_id"`
	FromVersion      int       `json:"from_version"`
	ToVersion        int       `json:"to_version"`
	DevicesMigrated  int       `json:"devices_migrated"`
	EntitiesMigrated int       `json:"entities_migrated"`
	Timestamp        time.Time `json:"timestamp"`
}

// DeviceHook returns a registry hook that publishes device change events.
func (p *Publisher) DeviceHook() registry.DeviceEventHook {
	return func(action registry.Action, device registry.Device) {
		p.publish(p.topics.RegistryEvent("device", string(action)), RegistryEvent{
			Action:    string(action),
			Record:    device,
			Timestamp: time.Now().UTC(),
		})
	}
}

// EntityHook returns a registry hook that publishes entity change events.
func (p *Publisher) EntityHook() registry.EntityEventHook {
	return func(action registry.Action, entity registry.Entity) {
		p.publish(p.topics.RegistryEvent("entity", string(action)), RegistryEvent{
			Action:    string(action),
			Record:    entity,
			Timestamp: time.Now().UTC(),
		})
	}
}

// PublishMigration announces a completed bridge data migration.
func (p *Publisher) PublishMigration(event MigrationEvent) {
	event.Timestamp = time.Now().UTC()
	p.publish(p.topics.BridgeEvent(event.Bridge, "migration"), event)
}

// publish sends a payload, logging failures instead of propagating them.
// Event delivery is best-effort; registry writes must not fail because
// the broker is down.
func (p *Publisher) publish(topic string, payload any) {
	if p.client == nil {
		return
	}
	if err := p.client.PublishJSON(topic, payload, 0, false); err != nil {
		p.logger.Warn("event publish failed", "topic", topic, "error", err)
	}
}
