package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"
)

// MigrationsFS should be set by the migrations package to embed migration files.
// This allows the migrations to be compiled into the binary.
//
// Usage:
//
//	//go:embed *.sql
//	var migrationsFS embed.FS
//
//	func init() {
//	    database.MigrationsFS = migrationsFS
//	    database.MigrationsDir = "."
//	}
var MigrationsFS embed.FS

// MigrationsDir is the directory within MigrationsFS containing migration files.
// Can be set to "." if files are at the root of the embedded filesystem.
var MigrationsDir = "migrations"

// Migration represents a single database migration.
type Migration struct {
	// Version is the migration version number (extracted from filename).
	// Format: YYYYMMDD_HHMMSS (e.g., 20260830_120000)
	Version string

	// Name is the human-readable migration name.
	Name string

	// UpSQL contains the SQL to apply this migration.
	UpSQL string

	// DownSQL contains the SQL to rollback this migration.
	DownSQL string
}

// MigrationRecord represents a row in the schema_migrations table.
type MigrationRecord struct {
	Version   string
	AppliedAt time.Time
}

// Migrate applies all pending migrations to the database.
// Migrations are applied in version order (oldest first).
//
// Each migration runs in its own transaction. If migration N fails,
// migrations 1..N-1 remain committed, N is rolled back, and N+1 onwards
// are not attempted. Re-running Migrate() after fixing the issue
// continues from N.
func (db *DB) Migrate(ctx context.Context) error {
	if err := db.createMigrationsTable(ctx); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	migrations, err := loadMigrations()
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}

	if len(migrations) == 0 {
		return nil
	}

	applied, err := db.getAppliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("getting applied migrations: %w", err)
	}

	appliedSet := make(map[string]bool)
	for _, m := range applied {
		appliedSet[m.Version] = true
	}

	for _, m := range migrations {
		if appliedSet[m.Version] {
			continue
		}
		if err := db.applyMigration(ctx, m); err != nil {
			return fmt.Errorf("applying migration %s (%s): %w", m.Version, m.Name, err)
		}
	}

	return nil
}

// MigrateDown rolls back the most recent migration.
// This is primarily for development and testing.
func (db *DB) MigrateDown(ctx context.Context) error {
	applied, err := db.getAppliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("getting applied migrations: %w", err)
	}

	if len(applied) == 0 {
		return nil
	}

	latest := applied[len(applied)-1]

	migrations, err := loadMigrations()
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}

	var migration *Migration
	for i := range migrations {
		if migrations[i].Version == latest.Version {
			migration = &migrations[i]
			break
		}
	}

	if migration == nil {
		return fmt.Errorf("migration %s not found in filesystem", latest.Version)
	}
	if migration.DownSQL == "" {
		return fmt.Errorf("migration %s has no down SQL", latest.Version)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if _, err := tx.ExecContext(ctx, migration.DownSQL); err != nil {
		return fmt.Errorf("executing down SQL: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM schema_migrations WHERE version = ?", latest.Version); err != nil {
		return fmt.Errorf("removing migration record: %w", err)
	}

	return tx.Commit()
}

// AppliedVersions returns the versions of all applied migrations, oldest first.
func (db *DB) AppliedVersions(ctx context.Context) ([]string, error) {
	applied, err := db.getAppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	versions := make([]string, 0, len(applied))
	for _, m := range applied {
		versions = append(versions, m.Version)
	}
	return versions, nil
}

// createMigrationsTable ensures the schema_migrations table exists.
func (db *DB) createMigrationsTable(ctx context.Context) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		)`)
	return err
}

// getAppliedMigrations returns applied migrations ordered by version.
func (db *DB) getAppliedMigrations(ctx context.Context) ([]MigrationRecord, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT version, applied_at FROM schema_migrations ORDER BY version ASC")
	if err != nil {
		return nil, fmt.Errorf("querying schema_migrations: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only iterator

	var records []MigrationRecord
	for rows.Next() {
		var rec MigrationRecord
		var appliedAt string
		if err := rows.Scan(&rec.Version, &appliedAt); err != nil {
			return nil, fmt.Errorf("scanning migration record: %w", err)
		}
		rec.AppliedAt, _ = time.Parse(time.RFC3339, appliedAt)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// applyMigration runs a single migration in its own transaction.
func (db *DB) applyMigration(ctx context.Context, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if _, err := tx.ExecContext(ctx, m.UpSQL); err != nil {
		return fmt.Errorf("executing up SQL: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version) VALUES (?)", m.Version); err != nil {
		return fmt.Errorf("recording migration: %w", err)
	}

	return tx.Commit()
}

// loadMigrations reads all migration files from MigrationsFS.
//
// Filenames follow the pattern: VERSION_description.up.sql / VERSION_description.down.sql
// where VERSION is YYYYMMDD_HHMMSS. Up and down files with the same version
// are paired into one Migration.
func loadMigrations() ([]Migration, error) {
	entries, err := fs.ReadDir(MigrationsFS, MigrationsDir)
	if err != nil {
		// No embedded migrations registered; nothing to apply.
		return nil, nil //nolint:nilerr // Missing FS means no migrations, not failure
	}

	byVersion := make(map[string]*Migration)

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}

		version, migName, direction, ok := parseMigrationFilename(name)
		if !ok {
			return nil, fmt.Errorf("invalid migration filename: %s", name)
		}

		path := name
		if MigrationsDir != "." {
			path = MigrationsDir + "/" + name
		}
		content, err := fs.ReadFile(MigrationsFS, path)
		if err != nil {
			return nil, fmt.Errorf("reading migration %s: %w", name, err)
		}

		m, exists := byVersion[version]
		if !exists {
			m = &Migration{Version: version, Name: migName}
			byVersion[version] = m
		}

		switch direction {
		case "up":
			m.UpSQL = string(content)
		case "down":
			m.DownSQL = string(content)
		}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.UpSQL == "" {
			return nil, fmt.Errorf("migration %s has no up SQL", m.Version)
		}
		migrations = append(migrations, *m)
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

// parseMigrationFilename extracts the version, name, and direction from a
// migration filename like "20260830_120000_initial_schema.up.sql".
func parseMigrationFilename(name string) (version, migName, direction string, ok bool) {
	base := strings.TrimSuffix(name, ".sql")

	switch {
	case strings.HasSuffix(base, ".up"):
		direction = "up"
		base = strings.TrimSuffix(base, ".up")
	case strings.HasSuffix(base, ".down"):
		direction = "down"
		base = strings.TrimSuffix(base, ".down")
	default:
		return "", "", "", false
	}

	// Version is the first two underscore-separated parts: YYYYMMDD_HHMMSS
	parts := strings.SplitN(base, "_", 3)
	if len(parts) < 3 {
		return "", "", "", false
	}

	version = parts[0] + "_" + parts[1]
	migName = parts[2]
	return version, migName, direction, true
}
