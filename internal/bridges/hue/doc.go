// Package hue integrates Philips Hue bridges with the hub.
//
// The package speaks the bridge's CLIP v2 REST API and owns the data
// migration from the legacy v1 resource model (numeric ids, zigbee MAC
// addresses) to the v2 model (stable resource guids). Entries created
// against v1 firmware are migrated in place on startup once the bridge
// reports v2 support: devices gain a guid identifier alongside their
// MAC, and entity unique ids are rewritten to the owning service guid
// while entity ids and names stay untouched.
package hue
