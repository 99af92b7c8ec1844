package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// EntityRepository defines the interface for entity persistence operations.
type EntityRepository interface {
	// GetByID retrieves an entity by its ID.
	// Returns ErrEntityNotFound if the entity does not exist.
	GetByID(ctx context.Context, id string) (*Entity, error)

	// GetByUniqueID retrieves an entity by (platform, domain, unique_id).
	// Returns ErrEntityNotFound if no entity matches.
	GetByUniqueID(ctx context.Context, platform, domain, uniqueID string) (*Entity, error)

	// List retrieves all entities.
	List(ctx context.Context) ([]Entity, error)

	// ListByConfigEntry retrieves all entities belonging to a config entry.
	ListByConfigEntry(ctx context.Context, configEntryID string) ([]Entity, error)

	// Create inserts a new entity.
	// Returns ErrEntityExists on ID or unique-id collision.
	Create(ctx context.Context, entity *Entity) error

	// UpdateUniqueID changes an entity's unique identifier.
	// Returns ErrEntityNotFound if the entity does not exist and
	// ErrUniqueIDTaken if another entity already holds the new unique ID.
	UpdateUniqueID(ctx context.Context, id, uniqueID string) error

	// Delete removes an entity by ID.
	// Returns ErrEntityNotFound if the entity does not exist.
	Delete(ctx context.Context, id string) error
}

// SQLiteEntityRepository implements EntityRepository using SQLite.
type SQLiteEntityRepository struct {
	db *sql.DB
}

// NewSQLiteEntityRepository creates a new SQLite-backed entity repository.
func NewSQLiteEntityRepository(db *sql.DB) *SQLiteEntityRepository {
	return &SQLiteEntityRepository{db: db}
}

const entityColumns = `id, config_entry_id, device_id, platform, domain, unique_id, object_id, name, device_class, created_at, updated_at`

// GetByID retrieves an entity by its ID.
func (r *SQLiteEntityRepository) GetByID(ctx context.Context, id string) (*Entity, error) {
	query := "SELECT " + entityColumns + " FROM entities WHERE id = ?"

	entity, err := scanEntity(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntityNotFound
		}
		return nil, fmt.Errorf("querying entity: %w", err)
	}
	return entity, nil
}

// GetByUniqueID retrieves an entity by (platform, domain, unique_id).
func (r *SQLiteEntityRepository) GetByUniqueID(ctx context.Context, platform, domain, uniqueID string) (*Entity, error) {
	query := "SELECT " + entityColumns + " FROM entities WHERE platform = ? AND domain = ? AND unique_id = ?"

	entity, err := scanEntity(r.db.QueryRowContext(ctx, query, platform, domain, uniqueID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntityNotFound
		}
		return nil, fmt.Errorf("querying entity: %w", err)
	}
	return entity, nil
}

// List retrieves all entities.
func (r *SQLiteEntityRepository) List(ctx context.Context) ([]Entity, error) {
	query := "SELECT " + entityColumns + " FROM entities ORDER BY id ASC"
	return r.queryEntities(ctx, query)
}

// ListByConfigEntry retrieves all entities belonging to a config entry.
func (r *SQLiteEntityRepository) ListByConfigEntry(ctx context.Context, configEntryID string) ([]Entity, error) {
	query := "SELECT " + entityColumns + " FROM entities WHERE config_entry_id = ? ORDER BY id ASC"
	return r.queryEntities(ctx, query, configEntryID)
}

// Create inserts a new entity.
func (r *SQLiteEntityRepository) Create(ctx context.Context, entity *Entity) error {
	now := time.Now().UTC()
	entity.CreatedAt = now
	entity.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO entities (id, config_entry_id, device_id, platform, domain, unique_id, object_id, name, device_class, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entity.ID, entity.ConfigEntryID, entity.DeviceID, entity.Platform, entity.Domain,
		entity.UniqueID, entity.ObjectID, entity.Name, entity.DeviceClass,
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrEntityExists
		}
		return fmt.Errorf("inserting entity: %w", err)
	}
	return nil
}

// UpdateUniqueID changes an entity's unique identifier.
func (r *SQLiteEntityRepository) UpdateUniqueID(ctx context.Context, id, uniqueID string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE entities SET unique_id = ?, updated_at = ? WHERE id = ?",
		uniqueID, time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueIDTaken
		}
		return fmt.Errorf("updating entity unique id: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if rows == 0 {
		return ErrEntityNotFound
	}
	return nil
}

// Delete removes an entity by ID.
func (r *SQLiteEntityRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM entities WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting entity: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if rows == 0 {
		return ErrEntityNotFound
	}
	return nil
}

func (r *SQLiteEntityRepository) queryEntities(ctx context.Context, query string, args ...any) ([]Entity, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying entities: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only iterator

	var entities []Entity
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning entity: %w", err)
		}
		entities = append(entities, *entity)
	}
	return entities, rows.Err()
}

// scanEntity scans a single entity row.
func scanEntity(row scanner) (*Entity, error) {
	var (
		entity    Entity
		deviceID  sql.NullString
		createdAt string
		updatedAt string
	)

	err := row.Scan(&entity.ID, &entity.ConfigEntryID, &deviceID, &entity.Platform,
		&entity.Domain, &entity.UniqueID, &entity.ObjectID, &entity.Name,
		&entity.DeviceClass, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if deviceID.Valid {
		entity.DeviceID = &deviceID.String
	}
	entity.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	entity.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	return &entity, nil
}
