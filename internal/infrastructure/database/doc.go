// Package database manages the SQLite connection and schema migrations
// for Hearth Core.
//
// The database holds the hub's persistent registries: config entries,
// devices and their identifier sets, entities, and the audit trail.
// Schema changes are applied through embedded, versioned SQL migrations
// (see the migrations package at the repository root).
//
// # Usage
//
//	db, err := database.Open(database.Config{Path: "./data/hearth.db", WALMode: true, BusyTimeout: 5})
//	if err != nil { ... }
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil { ... }
package database
