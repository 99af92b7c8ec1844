package database

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Close returned error: %v", err)
		}
	})
	return db
}

func TestOpenAndHealthCheck(t *testing.T) {
	db := openTestDB(t)

	if err := db.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck returned error: %v", err)
	}
}

func TestForeignKeysEnabled(t *testing.T) {
	db := openTestDB(t)

	var enabled int
	if err := db.QueryRowContext(context.Background(), "PRAGMA foreign_keys").Scan(&enabled); err != nil {
		t.Fatalf("querying foreign_keys pragma: %v", err)
	}
	if enabled != 1 {
		t.Error("expected foreign keys to be enabled")
	}
}

func TestMigrateWithNoEmbeddedFiles(t *testing.T) {
	// MigrationsFS is not registered in this package's tests, so Migrate
	// should be a no-op rather than an error.
	db := openTestDB(t)

	if err := db.Migrate(context.Background()); err != nil {
		t.Errorf("Migrate with no embedded migrations returned error: %v", err)
	}

	versions, err := db.AppliedVersions(context.Background())
	if err != nil {
		t.Fatalf("AppliedVersions returned error: %v", err)
	}
	if len(versions) != 0 {
		t.Errorf("expected no applied versions, got %v", versions)
	}
}
