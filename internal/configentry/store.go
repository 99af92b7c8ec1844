package configentry

import (
	"context"
	"fmt"
	"sync"
)

// Logger defines the logging interface used by the Store.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Store provides config entry management with caching and thread safety.
// It wraps a Repository and adds an in-memory cache for fast lookups.
//
// The cache is populated on startup via RefreshCache() and kept in sync
// by cache-invalidating CRUD operations.
//
// All public methods are thread-safe.
type Store struct {
	repo    Repository
	cache   map[string]*ConfigEntry // Cached entries by ID
	cacheMu sync.RWMutex            // Protects cache
	logger  Logger
}

// NewStore creates a new config entry store.
// The repository is used for persistence; the store adds caching.
func NewStore(repo Repository) *Store {
	return &Store{
		repo:   repo,
		cache:  make(map[string]*ConfigEntry),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	s.logger = logger
}

// RefreshCache reloads all config entries from the repository into the cache.
// This should be called on application startup.
func (s *Store) RefreshCache(ctx context.Context) error {
	entries, err := s.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading config entries: %w", err)
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	s.cache = make(map[string]*ConfigEntry, len(entries))
	for i := range entries {
		e := entries[i]
		s.cache[e.ID] = e.DeepCopy()
	}

	s.logger.Info("config entry cache refreshed", "count", len(entries))
	return nil
}

// Get retrieves a config entry by ID.
// Returns ErrNotFound if the entry does not exist.
// The returned entry is a deep copy; callers can safely modify it.
func (s *Store) Get(_ context.Context, id string) (*ConfigEntry, error) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()

	if e, ok := s.cache[id]; ok {
		return e.DeepCopy(), nil
	}
	return nil, ErrNotFound
}

// List returns all config entries as deep copies.
func (s *Store) List(_ context.Context) []ConfigEntry {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()

	entries := make([]ConfigEntry, 0, len(s.cache))
	for _, e := range s.cache {
		entries = append(entries, *e.DeepCopy())
	}
	return entries
}

// ListByDomain returns all config entries for an integration domain.
func (s *Store) ListByDomain(_ context.Context, domain string) []ConfigEntry {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()

	var entries []ConfigEntry
	for _, e := range s.cache {
		if e.Domain == domain {
			entries = append(entries, *e.DeepCopy())
		}
	}
	return entries
}

// Count returns the number of cached config entries.
func (s *Store) Count() int {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	return len(s.cache)
}

// Create persists a new config entry and adds it to the cache.
func (s *Store) Create(ctx context.Context, entry *ConfigEntry) error {
	if entry.ID == "" || entry.Domain == "" {
		return fmt.Errorf("%w: id and domain are required", ErrInvalidEntry)
	}
	if entry.Data == nil {
		entry.Data = make(map[string]any)
	}
	if entry.Version == 0 {
		entry.Version = 1
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		return err
	}

	s.cacheMu.Lock()
	s.cache[entry.ID] = entry.DeepCopy()
	s.cacheMu.Unlock()

	s.logger.Info("config entry created", "id", entry.ID, "domain", entry.Domain)
	return nil
}

// UpdateData replaces the Data map and Version of an entry in one operation.
//
// The repository write happens before the cache is replaced, so a failed
// persist never leaves the cache ahead of the database. Migrations depend
// on this: an aborted migration must leave the stored entry untouched.
func (s *Store) UpdateData(ctx context.Context, id string, data map[string]any, version int) error {
	s.cacheMu.RLock()
	cached, ok := s.cache[id]
	var entry *ConfigEntry
	if ok {
		entry = cached.DeepCopy()
	}
	s.cacheMu.RUnlock()

	if !ok {
		return ErrNotFound
	}

	entry.Data = deepCopyMap(data)
	entry.Version = version

	if err := s.repo.Update(ctx, entry); err != nil {
		return err
	}

	s.cacheMu.Lock()
	s.cache[id] = entry.DeepCopy()
	s.cacheMu.Unlock()

	s.logger.Debug("config entry data updated", "id", id, "version", version)
	return nil
}

// Delete removes a config entry from persistence and cache.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.cacheMu.Lock()
	delete(s.cache, id)
	s.cacheMu.Unlock()

	s.logger.Info("config entry deleted", "id", id)
	return nil
}
