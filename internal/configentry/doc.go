// Package configentry persists integration configuration entries.
//
// A config entry holds the stored setup of one integration instance: the
// connection parameters and credentials a bridge or device integration
// needs to start (for the Hue integration: host, application key, API
// version). Entries are created by setup flows, loaded at startup, and
// mutated in place by schema migrations when an integration's stored
// format changes.
//
// The package follows the registry pattern used across Hearth Core:
// a Repository interface with a SQLite implementation, wrapped by a
// cached Store that hands out deep copies.
package configentry
