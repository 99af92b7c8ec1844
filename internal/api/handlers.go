package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/openhearth/hearth-core/internal/audit"
	"github.com/openhearth/hearth-core/internal/bridges/hue"
	"github.com/openhearth/hearth-core/internal/configentry"
	"github.com/openhearth/hearth-core/internal/registry"
)

// credentialKeys are config entry data keys never returned over the API.
var credentialKeys = []string{"api_key", "username", "password", "token"}

// redactEntry strips credential values from a config entry copy.
func redactEntry(entry *configentry.ConfigEntry) *configentry.ConfigEntry {
	for _, key := range credentialKeys {
		if _, ok := entry.Data[key]; ok {
			entry.Data[key] = "**redacted**"
		}
	}
	return entry
}

// handleListConfigEntries returns all config entries, optionally filtered
// by ?domain=.
func (s *Server) handleListConfigEntries(w http.ResponseWriter, r *http.Request) {
	var entries []configentry.ConfigEntry
	if domain := r.URL.Query().Get("domain"); domain != "" {
		entries = s.entries.ListByDomain(r.Context(), domain)
	} else {
		entries = s.entries.List(r.Context())
	}

	for i := range entries {
		redactEntry(&entries[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"config_entries": entries,
		"count":          len(entries),
	})
}

// handleGetConfigEntry returns a single config entry.
func (s *Server) handleGetConfigEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := s.entries.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, configentry.ErrNotFound) {
			writeNotFound(w, "config entry not found")
			return
		}
		writeInternalError(w, "loading config entry failed")
		return
	}
	writeJSON(w, http.StatusOK, redactEntry(entry))
}

// handleMigrateConfigEntry re-runs the data migration check for an entry.
// Useful after a bridge firmware upgrade, without restarting the hub.
func (s *Server) handleMigrateConfigEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	entry, err := s.entries.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, configentry.ErrNotFound) {
			writeNotFound(w, "config entry not found")
			return
		}
		writeInternalError(w, "loading config entry failed")
		return
	}

	if s.hue == nil || entry.Domain != hue.Domain {
		writeBadRequest(w, "no migration available for domain "+entry.Domain)
		return
	}

	if err := s.hue.CheckMigration(r.Context(), id); err != nil {
		if errors.Is(err, hue.ErrBridgeUnreachable) {
			writeError(w, http.StatusBadGateway, "bridge_unreachable", "bridge could not be reached")
			return
		}
		s.logger.Error("migration check failed", "entry_id", id, "error", err)
		writeInternalError(w, "migration failed")
		return
	}

	migrated, err := s.entries.Get(r.Context(), id)
	if err != nil {
		writeInternalError(w, "loading config entry failed")
		return
	}
	writeJSON(w, http.StatusOK, redactEntry(migrated))
}

// handleListDevices returns all devices, optionally filtered by
// ?config_entry_id=.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	var devices []registry.Device
	if entryID := r.URL.Query().Get("config_entry_id"); entryID != "" {
		devices = s.devices.ListByConfigEntry(entryID)
	} else {
		devices = s.devices.List()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleGetDevice returns a single device.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	device, err := s.devices.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeNotFound(w, "device not found")
		return
	}
	writeJSON(w, http.StatusOK, device)
}

// handleDeleteDevice removes a device from the registry.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	err := s.devices.Remove(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, registry.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "deleting device failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleListEntities returns all entities, optionally filtered by
// ?config_entry_id=.
func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	var entities []registry.Entity
	if entryID := r.URL.Query().Get("config_entry_id"); entryID != "" {
		entities = s.entities.ListByConfigEntry(entryID)
	} else {
		entities = s.entities.List()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entities": entities,
		"count":    len(entities),
	})
}

// handleGetEntity returns a single entity. Entity ids contain a dot
// ("light.kitchen"), which chi passes through unescaped.
func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	entity, err := s.entities.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeNotFound(w, "entity not found")
		return
	}
	writeJSON(w, http.StatusOK, entity)
}

// handleDeleteEntity removes an entity from the registry.
func (s *Server) handleDeleteEntity(w http.ResponseWriter, r *http.Request) {
	err := s.entities.Remove(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, registry.ErrEntityNotFound) {
			writeNotFound(w, "entity not found")
			return
		}
		writeInternalError(w, "deleting entity failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleListAuditLogs returns the audit trail with optional filters:
// ?action=, ?entity_type=, ?entity_id=, ?limit=, ?offset=.
func (s *Server) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	if s.auditor == nil {
		writeNotFound(w, "audit trail not enabled")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil {
			writeBadRequest(w, "limit must be an integer")
			return
		}
		filter.Limit = n
	}
	if offset := q.Get("offset"); offset != "" {
		n, err := strconv.Atoi(offset)
		if err != nil {
			writeBadRequest(w, "offset must be an integer")
			return
		}
		filter.Offset = n
	}

	result, err := s.auditor.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing audit logs failed", "error", err)
		writeInternalError(w, "listing audit logs failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
