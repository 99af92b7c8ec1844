package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// EntityRegistry provides cached access to entity records.
//
// Entity IDs take the form "{platform}.{object_id}". When a requested
// object ID is already taken within a platform, GetOrCreate appends a
// numeric suffix ("_2", "_3", ...) until the ID is free.
type EntityRegistry struct {
	repo   EntityRepository
	mu     sync.RWMutex
	cache  map[string]*Entity
	logger Logger
	hook   EntityEventHook
}

// NewEntityRegistry creates an entity registry backed by the given repository.
// Call RefreshCache before first use.
func NewEntityRegistry(repo EntityRepository) *EntityRegistry {
	return &EntityRegistry{
		repo:   repo,
		cache:  make(map[string]*Entity),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger. Passing nil restores the no-op logger.
func (r *EntityRegistry) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	r.mu.Lock()
	r.logger = logger
	r.mu.Unlock()
}

// SetEventHook registers a hook invoked after entity mutations.
// The hook runs synchronously; keep it fast.
func (r *EntityRegistry) SetEventHook(hook EntityEventHook) {
	r.mu.Lock()
	r.hook = hook
	r.mu.Unlock()
}

// RefreshCache reloads all entities from the repository into the cache.
func (r *EntityRegistry) RefreshCache(ctx context.Context) error {
	entities, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading entities: %w", err)
	}

	cache := make(map[string]*Entity, len(entities))
	for i := range entities {
		cache[entities[i].ID] = &entities[i]
	}

	r.mu.Lock()
	r.cache = cache
	r.mu.Unlock()

	r.logger.Debug("entity cache refreshed", "count", len(cache))
	return nil
}

// Get retrieves an entity by ID from the cache.
func (r *EntityRegistry) Get(id string) (*Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entity, ok := r.cache[id]
	if !ok {
		return nil, ErrEntityNotFound
	}
	return entity.DeepCopy(), nil
}

// GetByUniqueID retrieves an entity by (platform, domain, unique_id).
func (r *EntityRegistry) GetByUniqueID(platform, domain, uniqueID string) (*Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, entity := range r.cache {
		if entity.Platform == platform && entity.Domain == domain && entity.UniqueID == uniqueID {
			return entity.DeepCopy(), nil
		}
	}
	return nil, ErrEntityNotFound
}

// List returns all entities from the cache.
func (r *EntityRegistry) List() []Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entities := make([]Entity, 0, len(r.cache))
	for _, entity := range r.cache {
		entities = append(entities, *entity.DeepCopy())
	}
	return entities
}

// ListByConfigEntry returns all entities belonging to a config entry.
func (r *EntityRegistry) ListByConfigEntry(configEntryID string) []Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var entities []Entity
	for _, entity := range r.cache {
		if entity.ConfigEntryID == configEntryID {
			entities = append(entities, *entity.DeepCopy())
		}
	}
	return entities
}

// Count returns the number of cached entities.
func (r *EntityRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}

// GetOrCreate returns the entity matching (platform, domain, unique_id),
// creating one when none exists. A new entity gets its ID assigned from the
// domain and object ID, with a numeric suffix on collision.
func (r *EntityRegistry) GetOrCreate(ctx context.Context, entity *Entity) (*Entity, error) {
	if entity.Platform == "" || entity.Domain == "" || entity.UniqueID == "" {
		return nil, fmt.Errorf("%w: platform, domain and unique_id are required", ErrInvalidEntity)
	}
	if entity.ObjectID == "" {
		return nil, fmt.Errorf("%w: object_id is required", ErrInvalidEntity)
	}

	existing, err := r.GetByUniqueID(entity.Platform, entity.Domain, entity.UniqueID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrEntityNotFound) {
		return nil, err
	}

	// Hold the write lock from object ID selection through the cache
	// insert so concurrent creates cannot claim the same entity ID.
	r.mu.Lock()
	entity.ObjectID = r.freeObjectID(entity.Platform, entity.ObjectID)
	entity.ID = entity.Platform + "." + entity.ObjectID

	if err := r.repo.Create(ctx, entity); err != nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("creating entity: %w", err)
	}

	r.cache[entity.ID] = entity.DeepCopy()
	hook := r.hook
	r.mu.Unlock()

	r.logger.Info("entity created", "entity_id", entity.ID, "unique_id", entity.UniqueID)
	if hook != nil {
		hook(ActionCreated, *entity.DeepCopy())
	}
	return entity.DeepCopy(), nil
}

// freeObjectID returns objectID, or the first suffixed variant not present
// in the cache for the given platform. Caller must hold the write lock.
func (r *EntityRegistry) freeObjectID(platform, objectID string) string {
	candidate := objectID
	for n := 2; ; n++ {
		if _, taken := r.cache[platform+"."+candidate]; !taken {
			return candidate
		}
		candidate = fmt.Sprintf("%s_%d", objectID, n)
	}
}

// UpdateUniqueID changes an entity's unique identifier, preserving its
// entity ID and name. Returns ErrUniqueIDTaken when another entity on the
// same platform and domain already holds the new unique ID.
func (r *EntityRegistry) UpdateUniqueID(ctx context.Context, id, uniqueID string) (*Entity, error) {
	r.mu.RLock()
	cached, ok := r.cache[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrEntityNotFound
	}

	if cached.UniqueID == uniqueID {
		return cached.DeepCopy(), nil
	}

	if _, err := r.GetByUniqueID(cached.Platform, cached.Domain, uniqueID); err == nil {
		return nil, ErrUniqueIDTaken
	} else if !errors.Is(err, ErrEntityNotFound) {
		return nil, err
	}

	if err := r.repo.UpdateUniqueID(ctx, id, uniqueID); err != nil {
		return nil, fmt.Errorf("updating entity unique id: %w", err)
	}

	updated := cached.DeepCopy()
	updated.UniqueID = uniqueID
	updated.UpdatedAt = time.Now().UTC()

	r.mu.Lock()
	r.cache[id] = updated
	hook := r.hook
	r.mu.Unlock()

	r.logger.Info("entity unique id updated", "entity_id", id, "unique_id", uniqueID)
	if hook != nil {
		hook(ActionUpdated, *updated.DeepCopy())
	}
	return updated.DeepCopy(), nil
}

// Remove deletes an entity.
func (r *EntityRegistry) Remove(ctx context.Context, id string) error {
	r.mu.RLock()
	cached, ok := r.cache[id]
	r.mu.RUnlock()
	if !ok {
		return ErrEntityNotFound
	}
	removed := cached.DeepCopy()

	if err := r.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting entity: %w", err)
	}

	r.mu.Lock()
	delete(r.cache, id)
	hook := r.hook
	r.mu.Unlock()

	r.logger.Info("entity removed", "entity_id", id)
	if hook != nil {
		hook(ActionRemoved, *removed)
	}
	return nil
}
