// Package registry implements the device and entity registries.
//
// The device registry tracks physical devices known to the hub. A device
// is identified by a set of (domain, identifier) pairs - for example a
// Hue bulb carries ("hue", "<zigbee mac>") and, once migrated to the v2
// bridge API, additionally ("hue", "<resource guid>"). Lookups match on
// any pair in the set.
//
// The entity registry tracks the addressable entities those devices
// expose (lights, sensors, grouped lights). An entity is identified by a
// unique id scoped to its (platform, domain); its entity id is the
// stable "{platform}.{object_id}" handle used by the API and panels.
//
// Both registries follow the same pattern: a Repository interface with a
// SQLite implementation, wrapped by a cached, thread-safe registry that
// hands out deep copies and fires change events on mutation.
package registry
