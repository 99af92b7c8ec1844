package configentry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for config entry persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves a config entry by its unique identifier.
	// Returns ErrNotFound if the entry does not exist.
	GetByID(ctx context.Context, id string) (*ConfigEntry, error)

	// List retrieves all config entries.
	List(ctx context.Context) ([]ConfigEntry, error)

	// ListByDomain retrieves all config entries for a specific integration domain.
	ListByDomain(ctx context.Context, domain string) ([]ConfigEntry, error)

	// Create inserts a new config entry.
	// Returns ErrExists if an entry with the same ID already exists.
	Create(ctx context.Context, entry *ConfigEntry) error

	// Update modifies an existing config entry.
	// Returns ErrNotFound if the entry does not exist.
	Update(ctx context.Context, entry *ConfigEntry) error

	// Delete removes a config entry by ID.
	// Returns ErrNotFound if the entry does not exist.
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const entryColumns = "id, domain, title, data, version, created_at, updated_at"

// GetByID retrieves a config entry by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*ConfigEntry, error) {
	query := "SELECT " + entryColumns + " FROM config_entries WHERE id = ?"

	entry, err := scanEntry(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying config entry: %w", err)
	}
	return entry, nil
}

// List retrieves all config entries.
func (r *SQLiteRepository) List(ctx context.Context) ([]ConfigEntry, error) {
	query := "SELECT " + entryColumns + " FROM config_entries ORDER BY created_at ASC"
	return r.queryEntries(ctx, query)
}

// ListByDomain retrieves all config entries for a specific integration domain.
func (r *SQLiteRepository) ListByDomain(ctx context.Context, domain string) ([]ConfigEntry, error) {
	query := "SELECT " + entryColumns + " FROM config_entries WHERE domain = ? ORDER BY created_at ASC"
	return r.queryEntries(ctx, query, domain)
}

// Create inserts a new config entry.
func (r *SQLiteRepository) Create(ctx context.Context, entry *ConfigEntry) error {
	dataJSON, err := json.Marshal(entry.Data)
	if err != nil {
		return fmt.Errorf("encoding entry data: %w", err)
	}

	now := time.Now().UTC()
	entry.CreatedAt = now
	entry.UpdatedAt = now

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO config_entries (id, domain, title, data, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Domain, entry.Title, string(dataJSON), entry.Version,
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrExists
		}
		return fmt.Errorf("inserting config entry: %w", err)
	}
	return nil
}

// Update modifies an existing config entry.
func (r *SQLiteRepository) Update(ctx context.Context, entry *ConfigEntry) error {
	dataJSON, err := json.Marshal(entry.Data)
	if err != nil {
		return fmt.Errorf("encoding entry data: %w", err)
	}

	entry.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, `
		UPDATE config_entries
		SET domain = ?, title = ?, data = ?, version = ?, updated_at = ?
		WHERE id = ?`,
		entry.Domain, entry.Title, string(dataJSON), entry.Version,
		entry.UpdatedAt.Format(time.RFC3339), entry.ID,
	)
	if err != nil {
		return fmt.Errorf("updating config entry: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a config entry by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM config_entries WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting config entry: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// queryEntries runs a multi-row query and scans the results.
func (r *SQLiteRepository) queryEntries(ctx context.Context, query string, args ...any) ([]ConfigEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying config entries: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only iterator

	var entries []ConfigEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning config entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// scanner abstracts sql.Row and sql.Rows for shared scanning.
type scanner interface {
	Scan(dest ...any) error
}

// scanEntry scans a single config entry row.
func scanEntry(row scanner) (*ConfigEntry, error) {
	var (
		entry     ConfigEntry
		dataJSON  string
		createdAt string
		updatedAt string
	)

	err := row.Scan(&entry.ID, &entry.Domain, &entry.Title, &dataJSON,
		&entry.Version, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(dataJSON), &entry.Data); err != nil {
		return nil, fmt.Errorf("decoding entry data: %w", err)
	}

	entry.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	entry.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	return &entry, nil
}

// isUniqueConstraintError reports whether err is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
