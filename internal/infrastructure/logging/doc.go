// Package logging provides structured logging for Hearth Core.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the entire application.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//
// # Usage
//
//	log := logging.New(cfg.Logging, version)
//	log.Info("bridge connected", "host", host)
//
//	hueLog := log.With("component", "hue")
//	hueLog.Warn("entity skipped during migration", "unique_id", id)
package logging
