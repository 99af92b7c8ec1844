package mqtt

import "errors"

// Sentinel errors for MQTT operations.
// Check with errors.Is():
//
//	if errors.Is(err, mqtt.ErrNotConnected) { ... }
var (
	// ErrConnectionFailed is returned when the initial broker connection fails.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrNotConnected is returned when an operation requires an active connection.
	ErrNotConnected = errors.New("mqtt: not connected")

	// ErrPublishFailed is returned when a publish does not complete.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed is returned when a subscription cannot be established.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrInvalidTopic is returned for empty or malformed topics.
	ErrInvalidTopic = errors.New("mqtt: invalid topic")

	// ErrInvalidQoS is returned for QoS levels outside 0-2.
	ErrInvalidQoS = errors.New("mqtt: invalid qos level")
)
