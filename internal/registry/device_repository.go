package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DeviceRepository defines the interface for device persistence operations.
type DeviceRepository interface {
	// GetByID retrieves a device by its unique identifier.
	// Returns ErrDeviceNotFound if the device does not exist.
	GetByID(ctx context.Context, id string) (*Device, error)

	// GetByIdentifier retrieves the device carrying the given identifier pair.
	// Returns ErrDeviceNotFound if no device carries it.
	GetByIdentifier(ctx context.Context, domain, identifier string) (*Device, error)

	// List retrieves all devices.
	List(ctx context.Context) ([]Device, error)

	// ListByConfigEntry retrieves all devices belonging to a config entry.
	ListByConfigEntry(ctx context.Context, configEntryID string) ([]Device, error)

	// Create inserts a new device with its identifier set.
	// Returns ErrDeviceExists if any identifier pair is already claimed.
	Create(ctx context.Context, device *Device) error

	// UpdateIdentifiers replaces a device's identifier set.
	// Returns ErrDeviceNotFound if the device does not exist.
	UpdateIdentifiers(ctx context.Context, id string, identifiers []Identifier) error

	// Delete removes a device by ID.
	// Returns ErrDeviceNotFound if the device does not exist.
	Delete(ctx context.Context, id string) error
}

// SQLiteDeviceRepository implements DeviceRepository using SQLite.
//
// Device rows live in the devices table; the identifier set lives in
// device_identifiers with (domain, identifier) as primary key, so a pair
// can only ever belong to one device.
type SQLiteDeviceRepository struct {
	db *sql.DB
}

// NewSQLiteDeviceRepository creates a new SQLite-backed device repository.
func NewSQLiteDeviceRepository(db *sql.DB) *SQLiteDeviceRepository {
	return &SQLiteDeviceRepository{db: db}
}

// GetByID retrieves a device by its unique identifier.
func (r *SQLiteDeviceRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	query := `
		SELECT id, config_entry_id, name, manufacturer, model, created_at, updated_at
		FROM devices
		WHERE id = ?`

	device, err := scanDevice(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device: %w", err)
	}

	if err := r.loadIdentifiers(ctx, device); err != nil {
		return nil, err
	}
	return device, nil
}

// GetByIdentifier retrieves the device carrying the given identifier pair.
func (r *SQLiteDeviceRepository) GetByIdentifier(ctx context.Context, domain, identifier string) (*Device, error) {
	var deviceID string
	err := r.db.QueryRowContext(ctx,
		"SELECT device_id FROM device_identifiers WHERE domain = ? AND identifier = ?",
		domain, identifier,
	).Scan(&deviceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device identifier: %w", err)
	}

	return r.GetByID(ctx, deviceID)
}

// List retrieves all devices.
func (r *SQLiteDeviceRepository) List(ctx context.Context) ([]Device, error) {
	query := `
		SELECT id, config_entry_id, name, manufacturer, model, created_at, updated_at
		FROM devices
		ORDER BY created_at ASC`
	return r.queryDevices(ctx, query)
}

// ListByConfigEntry retrieves all devices belonging to a config entry.
func (r *SQLiteDeviceRepository) ListByConfigEntry(ctx context.Context, configEntryID string) ([]Device, error) {
	query := `
		SELECT id, config_entry_id, name, manufacturer, model, created_at, updated_at
		FROM devices
		WHERE config_entry_id = ?
		ORDER BY created_at ASC`
	return r.queryDevices(ctx, query, configEntryID)
}

// Create inserts a new device with its identifier set.
// The device row and its identifiers are written in one transaction so a
// half-created device can never be observed.
func (r *SQLiteDeviceRepository) Create(ctx context.Context, device *Device) error {
	if len(device.Identifiers) == 0 {
		return fmt.Errorf("%w: identifier set must not be empty", ErrInvalidDevice)
	}

	now := time.Now().UTC()
	device.CreatedAt = now
	device.UpdatedAt = now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	_, err = tx.ExecContext(ctx, `
		INSERT INTO devices (id, config_entry_id, name, manufacturer, model, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		device.ID, device.ConfigEntryID, device.Name, device.Manufacturer, device.Model,
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDeviceExists
		}
		return fmt.Errorf("inserting device: %w", err)
	}

	if err := insertIdentifiers(ctx, tx, device.ID, device.Identifiers); err != nil {
		return err
	}

	return tx.Commit()
}

// UpdateIdentifiers replaces a device's identifier set.
// Delete and re-insert run in one transaction, so either the whole new
// set is visible or the old set remains untouched.
func (r *SQLiteDeviceRepository) UpdateIdentifiers(ctx context.Context, id string, identifiers []Identifier) error {
	if len(identifiers) == 0 {
		return fmt.Errorf("%w: identifier set must not be empty", ErrInvalidDevice)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	result, err := tx.ExecContext(ctx,
		"UPDATE devices SET updated_at = ? WHERE id = ?",
		time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("touching device: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if rows == 0 {
		return ErrDeviceNotFound
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM device_identifiers WHERE device_id = ?", id); err != nil {
		return fmt.Errorf("clearing identifiers: %w", err)
	}

	if err := insertIdentifiers(ctx, tx, id, identifiers); err != nil {
		return err
	}

	return tx.Commit()
}

// Delete removes a device by ID. Identifier rows cascade.
func (r *SQLiteDeviceRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if rows == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// insertIdentifiers writes identifier rows for a device inside a transaction.
func insertIdentifiers(ctx context.Context, tx *sql.Tx, deviceID string, identifiers []Identifier) error {
	for _, ident := range identifiers {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO device_identifiers (device_id, domain, identifier) VALUES (?, ?, ?)",
			deviceID, ident.Domain, ident.ID,
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return fmt.Errorf("%w: identifier (%s, %s)", ErrDeviceExists, ident.Domain, ident.ID)
			}
			return fmt.Errorf("inserting identifier: %w", err)
		}
	}
	return nil
}

// loadIdentifiers populates a device's identifier set.
func (r *SQLiteDeviceRepository) loadIdentifiers(ctx context.Context, device *Device) error {
	rows, err := r.db.QueryContext(ctx,
		"SELECT domain, identifier FROM device_identifiers WHERE device_id = ? ORDER BY domain, identifier",
		device.ID,
	)
	if err != nil {
		return fmt.Errorf("querying identifiers: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only iterator

	device.Identifiers = nil
	for rows.Next() {
		var ident Identifier
		if err := rows.Scan(&ident.Domain, &ident.ID); err != nil {
			return fmt.Errorf("scanning identifier: %w", err)
		}
		device.Identifiers = append(device.Identifiers, ident)
	}
	return rows.Err()
}

// queryDevices runs a multi-row device query and loads identifier sets.
func (r *SQLiteDeviceRepository) queryDevices(ctx context.Context, query string, args ...any) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only iterator

	var devices []Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *device)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range devices {
		if err := r.loadIdentifiers(ctx, &devices[i]); err != nil {
			return nil, err
		}
	}
	return devices, nil
}

// scanner abstracts sql.Row and sql.Rows for shared scanning.
type scanner interface {
	Scan(dest ...any) error
}

// scanDevice scans a single device row (without identifiers).
func scanDevice(row scanner) (*Device, error) {
	var (
		device    Device
		createdAt string
		updatedAt string
	)

	err := row.Scan(&device.ID, &device.ConfigEntryID, &device.Name,
		&device.Manufacturer, &device.Model, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	device.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	device.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	return &device, nil
}

// isUniqueConstraintError reports whether err is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
