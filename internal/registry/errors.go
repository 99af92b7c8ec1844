package registry

import "errors"

// Domain errors for the registry package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, registry.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device ID or identifier does not exist.
	ErrDeviceNotFound = errors.New("registry: device not found")

	// ErrDeviceExists is returned when creating a device whose identifier is already claimed.
	ErrDeviceExists = errors.New("registry: device already exists")

	// ErrEntityNotFound is returned when an entity ID or unique id does not exist.
	ErrEntityNotFound = errors.New("registry: entity not found")

	// ErrEntityExists is returned when creating an entity whose unique id is already claimed.
	ErrEntityExists = errors.New("registry: entity already exists")

	// ErrUniqueIDTaken is returned when rewriting an entity's unique id would
	// collide with another entity in the same platform/domain.
	ErrUniqueIDTaken = errors.New("registry: unique id already taken")

	// ErrInvalidDevice is returned when device validation fails.
	ErrInvalidDevice = errors.New("registry: invalid device")

	// ErrInvalidEntity is returned when entity validation fails.
	ErrInvalidEntity = errors.New("registry: invalid entity")
)
