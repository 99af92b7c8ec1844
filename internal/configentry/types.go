package configentry

import "time"

// ConfigEntry represents the stored configuration of one integration instance.
type ConfigEntry struct { //nolint:revive // configentry.ConfigEntry is clearer than configentry.Entry in calling code
	// Identity
	ID     string `json:"id"`
	Domain string `json:"domain"`
	Title  string `json:"title"`

	// Data holds integration-specific connection parameters and credentials.
	// Keys are owned by the integration (e.g. "host", "api_key").
	Data map[string]any `json:"data"`

	// Version is the stored schema version of Data. Integrations advance it
	// when they migrate an entry to a newer format.
	Version int `json:"version"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeepCopy creates a complete independent copy of the ConfigEntry.
// The Data map is cloned recursively so modifications to the copy
// do not affect the original. This is essential for cache isolation.
func (e *ConfigEntry) DeepCopy() *ConfigEntry {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Data = deepCopyMap(e.Data)
	return &cpy
}

// deepCopyMap creates a deep copy of a map[string]any.
// Nested maps and slices are recursively copied.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cpy := make(map[string]any, len(m))
	for k, v := range m {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

// deepCopyValue recursively copies a value, handling nested maps and slices.
func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = deepCopyValue(elem)
		}
		return cpy
	default:
		// Primitives (string, bool, int, float64, etc.) are safe to copy by value
		return v
	}
}
