package mqtt

import "fmt"

// Topic prefixes for the Hearth MQTT hierarchy.
//
// Registry topics use the scheme: hearth/registry/{record_type}/{action}
// Bridge topics use the scheme:   hearth/bridge/{integration}/{event}
const (
	// TopicPrefix is the base for all Hearth topics.
	TopicPrefix = "hearth"

	// TopicPrefixRegistry is the base for registry change events.
	TopicPrefixRegistry = "hearth/registry"

	// TopicPrefixBridge is the base for bridge integration events.
	TopicPrefixBridge = "hearth/bridge"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "hearth/system"
)

// Topics provides builders for Hearth MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	t := topics.RegistryEvent("entity", "updated")
//	// Returns: "hearth/registry/entity/updated"
type Topics struct{}

// RegistryEvent returns the topic for registry change events.
//
// recordType is "device", "entity", or "config_entry"; action is
// "created", "updated", or "removed".
//
// Example: hearth/registry/device/updated
func (Topics) RegistryEvent(recordType, action string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixRegistry, recordType, action)
}

// RegistryEvents returns a wildcard subscription topic for all registry events.
//
// Example: hearth/registry/#
func (Topics) RegistryEvents() string {
	return TopicPrefixRegistry + "/#"
}

// BridgeEvent returns the topic for bridge integration lifecycle events.
//
// Example: hearth/bridge/hue/migration
func (Topics) BridgeEvent(integration, event string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixBridge, integration, event)
}

// SystemStatus returns the topic for hub online/offline status.
//
// Example: hearth/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}
