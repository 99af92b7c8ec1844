package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Logger is a minimal logging interface so the registries stay decoupled
// from any particular logging implementation.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger discards all log output. Used when no logger is configured.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// DeviceRegistry provides cached access to device records.
//
// The cache is the read path; all writes go through the repository first
// and update the cache only after the write succeeds, so the cache never
// gets ahead of persistent state.
type DeviceRegistry struct {
	repo   DeviceRepository
	mu     sync.RWMutex
	cache  map[string]*Device
	logger Logger
	hook   DeviceEventHook
}

// NewDeviceRegistry creates a device registry backed by the given repository.
// Call RefreshCache before first use.
func NewDeviceRegistry(repo DeviceRepository) *DeviceRegistry {
	return &DeviceRegistry{
		repo:   repo,
		cache:  make(map[string]*Device),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger. Passing nil restores the no-op logger.
func (r *DeviceRegistry) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	r.mu.Lock()
	r.logger = logger
	r.mu.Unlock()
}

// SetEventHook registers a hook invoked after device mutations.
// The hook runs synchronously; keep it fast.
func (r *DeviceRegistry) SetEventHook(hook DeviceEventHook) {
	r.mu.Lock()
	r.hook = hook
	r.mu.Unlock()
}

// RefreshCache reloads all devices from the repository into the cache.
func (r *DeviceRegistry) RefreshCache(ctx context.Context) error {
	devices, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	cache := make(map[string]*Device, len(devices))
	for i := range devices {
		cache[devices[i].ID] = &devices[i]
	}

	r.mu.Lock()
	r.cache = cache
	r.mu.Unlock()

	r.logger.Debug("device cache refreshed", "count", len(cache))
	return nil
}

// Get retrieves a device by ID from the cache.
func (r *DeviceRegistry) Get(id string) (*Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	device, ok := r.cache[id]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	return device.DeepCopy(), nil
}

// GetByIdentifier retrieves the device carrying the given identifier pair.
func (r *DeviceRegistry) GetByIdentifier(domain, id string) (*Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, device := range r.cache {
		if device.HasIdentifier(domain, id) {
			return device.DeepCopy(), nil
		}
	}
	return nil, ErrDeviceNotFound
}

// List returns all devices from the cache.
func (r *DeviceRegistry) List() []Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	devices := make([]Device, 0, len(r.cache))
	for _, device := range r.cache {
		devices = append(devices, *device.DeepCopy())
	}
	return devices
}

// ListByConfigEntry returns all devices belonging to a config entry.
func (r *DeviceRegistry) ListByConfigEntry(configEntryID string) []Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var devices []Device
	for _, device := range r.cache {
		if device.ConfigEntryID == configEntryID {
			devices = append(devices, *device.DeepCopy())
		}
	}
	return devices
}

// Count returns the number of cached devices.
func (r *DeviceRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}

// GetOrCreate returns the device matching any identifier in the given set,
// creating one when no existing device matches. A device with no ID gets
// a generated UUID.
func (r *DeviceRegistry) GetOrCreate(ctx context.Context, device *Device) (*Device, error) {
	if len(device.Identifiers) == 0 {
		return nil, fmt.Errorf("%w: identifier set must not be empty", ErrInvalidDevice)
	}

	for _, ident := range device.Identifiers {
		existing, err := r.GetByIdentifier(ident.Domain, ident.ID)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, ErrDeviceNotFound) {
			return nil, err
		}
	}

	if device.ID == "" {
		device.ID = uuid.New().String()
	}

	if err := r.repo.Create(ctx, device); err != nil {
		return nil, fmt.Errorf("creating device: %w", err)
	}

	r.mu.Lock()
	r.cache[device.ID] = device.DeepCopy()
	hook := r.hook
	r.mu.Unlock()

	r.logger.Info("device created", "device_id", device.ID, "name", device.Name)
	if hook != nil {
		hook(ActionCreated, *device.DeepCopy())
	}
	return device.DeepCopy(), nil
}

// UpdateIdentifiers replaces a device's identifier set.
func (r *DeviceRegistry) UpdateIdentifiers(ctx context.Context, id string, identifiers []Identifier) (*Device, error) {
	r.mu.RLock()
	cached, ok := r.cache[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrDeviceNotFound
	}

	if err := r.repo.UpdateIdentifiers(ctx, id, identifiers); err != nil {
		return nil, fmt.Errorf("updating device identifiers: %w", err)
	}

	updated := cached.DeepCopy()
	updated.Identifiers = append([]Identifier(nil), identifiers...)
	updated.UpdatedAt = time.Now().UTC()

	r.mu.Lock()
	r.cache[id] = updated
	hook := r.hook
	r.mu.Unlock()

	r.logger.Info("device identifiers updated", "device_id", id, "identifiers", len(identifiers))
	if hook != nil {
		hook(ActionUpdated, *updated.DeepCopy())
	}
	return updated.DeepCopy(), nil
}

// Remove deletes a device.
func (r *DeviceRegistry) Remove(ctx context.Context, id string) error {
	r.mu.RLock()
	cached, ok := r.cache[id]
	r.mu.RUnlock()
	if !ok {
		return ErrDeviceNotFound
	}
	removed := cached.DeepCopy()

	if err := r.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}

	r.mu.Lock()
	delete(r.cache, id)
	hook := r.hook
	r.mu.Unlock()

	r.logger.Info("device removed", "device_id", id)
	if hook != nil {
		hook(ActionRemoved, *removed)
	}
	return nil
}
