// Package mqtt provides the MQTT client infrastructure for Hearth Core.
//
// Hearth publishes registry change events and bridge lifecycle events to an
// MQTT broker so that panels, automations, and external consumers can react
// without polling the API.
//
// The package wraps eclipse/paho.mqtt.golang with:
//   - Connection management with auto-reconnect and exponential backoff
//   - Last Will and Testament for offline detection
//   - Subscription restoration after reconnect
//   - Topic builders for the hearth/... hierarchy
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil { ... }
//	defer client.Close()
//
//	topic := mqtt.Topics{}.RegistryEvent("entity", "updated")
//	err = client.Publish(topic, payload, 1, false)
package mqtt
