package hue

import "errors"

// Domain errors for the hue package.
var (
	// ErrBridgeUnreachable is returned when the bridge cannot be contacted.
	ErrBridgeUnreachable = errors.New("hue: bridge unreachable")

	// ErrBridgeResponse is returned when the bridge answers with an
	// unexpected status or a CLIP error payload.
	ErrBridgeResponse = errors.New("hue: unexpected bridge response")

	// ErrInvalidConfig is returned when a config entry is missing the
	// host or application key.
	ErrInvalidConfig = errors.New("hue: invalid bridge configuration")
)
