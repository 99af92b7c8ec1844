package registry

import "time"

// Identifier is one (domain, identifier) pair in a device's identifier set.
//
// The domain names the integration that owns the identifier ("hue"); the
// identifier is whatever that integration uses to recognise the device
// (a zigbee MAC address, a v2 resource guid).
type Identifier struct {
	Domain string `json:"domain"`
	ID     string `json:"id"`
}

// Device represents a physical device in the device registry.
type Device struct {
	// Identity
	ID            string `json:"id"`
	ConfigEntryID string `json:"config_entry_id"`

	// Identifiers is the set of (domain, identifier) pairs that identify
	// this device. Never empty. Order is not significant.
	Identifiers []Identifier `json:"identifiers"`

	// Metadata
	Name         string `json:"name"`
	Manufacturer string `json:"manufacturer,omitempty"`
	Model        string `json:"model,omitempty"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasIdentifier reports whether the device carries the given identifier pair.
func (d *Device) HasIdentifier(domain, id string) bool {
	for _, ident := range d.Identifiers {
		if ident.Domain == domain && ident.ID == id {
			return true
		}
	}
	return false
}

// DeepCopy creates a complete independent copy of the Device.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}

	cpy := *d
	if d.Identifiers != nil {
		cpy.Identifiers = make([]Identifier, len(d.Identifiers))
		copy(cpy.Identifiers, d.Identifiers)
	}
	return &cpy
}

// Entity represents an addressable entity in the entity registry.
type Entity struct {
	// ID is the stable entity id in the form "{platform}.{object_id}",
	// e.g. "light.migrated_light_1". It survives unique id migrations.
	ID string `json:"id"`

	// Ownership
	ConfigEntryID string  `json:"config_entry_id"`
	DeviceID      *string `json:"device_id,omitempty"`

	// Classification
	Platform string `json:"platform"` // "light", "sensor", "binary_sensor"
	Domain   string `json:"domain"`   // owning integration ("hue")

	// UniqueID identifies the entity within its (platform, domain).
	// Integrations rewrite it when their upstream identifier scheme changes.
	UniqueID string `json:"unique_id"`

	// ObjectID is the human-facing slug portion of the entity id.
	ObjectID string `json:"object_id"`

	// Metadata
	Name        string `json:"name,omitempty"`
	DeviceClass string `json:"device_class,omitempty"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeepCopy creates a complete independent copy of the Entity.
func (e *Entity) DeepCopy() *Entity {
	if e == nil {
		return nil
	}

	cpy := *e
	if e.DeviceID != nil {
		id := *e.DeviceID
		cpy.DeviceID = &id
	}
	return &cpy
}

// Action describes a registry mutation for change events.
type Action string

// Action constants.
const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionRemoved Action = "removed"
)

// DeviceEventHook is invoked after a successful device registry mutation.
// The device is a snapshot; hooks must not retain or mutate shared state.
type DeviceEventHook func(action Action, device Device)

// EntityEventHook is invoked after a successful entity registry mutation.
type EntityEventHook func(action Action, entity Entity)
