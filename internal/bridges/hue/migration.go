package hue

import (
	"context"
	"errors"
	"fmt"

	"github.com/openhearth/hearth-core/internal/audit"
	"github.com/openhearth/hearth-core/internal/events"
	"github.com/openhearth/hearth-core/internal/registry"
)

// Config entry data keys.
const (
	keyHost           = "host"
	keyAPIKey         = "api_key"
	keyLegacyUsername = "username"
)

// migratedVersion is the config entry version after the v2 migration.
const migratedVersion = 2

// migrationStats counts what a migration run touched.
type migrationStats struct {
	devices  int
	entities int
	skipped  int
}

// CheckMigration brings a config entry up to the current data format.
//
// Two migrations run here. The credential key rename (legacy "username"
// to "api_key") always applies when the old key is present, whatever the
// entry version. The v2 resource migration runs only for version 1
// entries whose bridge firmware serves the v2 API; on success the entry
// version becomes 2, so the migration never runs twice.
//
// When the bridge cannot be reached the error is returned and the entry
// stays on version 1, so the migration is retried on the next startup.
func (i *Integration) CheckMigration(ctx context.Context, entryID string) error {
	entry, err := i.entries.Get(ctx, entryID)
	if err != nil {
		return fmt.Errorf("loading config entry: %w", err)
	}

	data := entry.Data
	if username, ok := data[keyLegacyUsername]; ok {
		data[keyAPIKey] = username
		delete(data, keyLegacyUsername)
		if err := i.entries.UpdateData(ctx, entry.ID, data, entry.Version); err != nil {
			return fmt.Errorf("renaming credential key: %w", err)
		}
		i.logger.Info("renamed legacy credential key", "entry_id", entry.ID)
	}

	if entry.Version != 1 {
		return nil
	}

	api, err := i.clientFor(data)
	if err != nil {
		return err
	}

	v2, err := api.IsV2Bridge(ctx)
	if err != nil {
		return fmt.Errorf("probing bridge api: %w", err)
	}
	if !v2 {
		i.logger.Debug("bridge firmware is v1 only, keeping entry version",
			"entry_id", entry.ID)
		return nil
	}

	stats, err := i.handleV2Migration(ctx, entry.ID, api)
	if err != nil {
		return err
	}

	if err := i.entries.UpdateData(ctx, entry.ID, data, migratedVersion); err != nil {
		return fmt.Errorf("persisting migrated entry version: %w", err)
	}

	i.logger.Info("migrated config entry to v2 resource model",
		"entry_id", entry.ID,
		"devices", stats.devices,
		"entities", stats.entities,
		"skipped", stats.skipped)

	i.recordMigration(ctx, entry.ID, stats)
	return nil
}

// handleV2Migration rewrites the registry records of one config entry
// from v1 identifiers to v2 resource guids.
//
// Devices keep their zigbee MAC identifier and gain the guid alongside
// it. Entities have their unique id replaced by the owning service guid;
// entity ids and names are untouched. Records with no counterpart in the
// resource graph are skipped with a warning.
func (i *Integration) handleV2Migration(ctx context.Context, entryID string, api BridgeAPI) (migrationStats, error) {
	var stats migrationStats

	graph, err := api.FetchResourceGraph(ctx)
	if err != nil {
		return stats, fmt.Errorf("fetching resource graph: %w", err)
	}
	lookup := graph.LegacyLookup()

	for _, device := range i.devices.ListByConfigEntry(entryID) {
		guid := ""
		for _, ident := range device.Identifiers {
			if ident.Domain != Domain {
				continue
			}
			if g, ok := lookup.Devices[ident.ID]; ok {
				guid = g
				break
			}
		}
		if guid == "" {
			stats.skipped++
			i.logger.Warn("no v2 resource found for device, skipping",
				"device_id", device.ID, "name", device.Name)
			continue
		}
		if device.HasIdentifier(Domain, guid) {
			continue
		}

		identifiers := append(device.Identifiers, registry.Identifier{Domain: Domain, ID: guid})
		if _, err := i.devices.UpdateIdentifiers(ctx, device.ID, identifiers); err != nil {
			return stats, fmt.Errorf("adding guid identifier to device %s: %w", device.ID, err)
		}
		stats.devices++
	}

	for _, entity := range i.entities.ListByConfigEntry(entryID) {
		guid, ok := lookup.Entities[entity.UniqueID]
		if !ok {
			stats.skipped++
			i.logger.Warn("no v2 resource found for entity, skipping",
				"entity_id", entity.ID, "unique_id", entity.UniqueID)
			continue
		}
		if guid == entity.UniqueID {
			continue
		}

		if _, err := i.entities.UpdateUniqueID(ctx, entity.ID, guid); err != nil {
			if errors.Is(err, registry.ErrUniqueIDTaken) {
				stats.skipped++
				i.logger.Warn("guid already claimed by another entity, skipping",
					"entity_id", entity.ID, "guid", guid)
				continue
			}
			return stats, fmt.Errorf("rewriting unique id of entity %s: %w", entity.ID, err)
		}
		stats.entities++
	}

	return stats, nil
}

// recordMigration writes the audit trail entry and publishes the
// migration event. Both are best-effort.
func (i *Integration) recordMigration(ctx context.Context, entryID string, stats migrationStats) {
	if i.auditor != nil {
		err := i.auditor.Create(ctx, &audit.AuditLog{
			Action:     audit.ActionMigrate,
			EntityType: audit.EntityTypeConfigEntry,
			EntityID:   entryID,
			Details: map[string]any{
				"bridge":            Domain,
				"from_version":      1,
				"to_version":        migratedVersion,
				"devices_migrated":  stats.devices,
				"entities_migrated": stats.entities,
				"records_skipped":   stats.skipped,
			},
		})
		if err != nil {
			i.logger.Warn("recording migration audit entry failed", "error", err)
		}
	}

	if i.publisher != nil {
		i.publisher.PublishMigration(events.MigrationEvent{
			Bridge:           Domain,
			ConfigEntryID:    entryID,
			FromVersion:      1,
			ToVersion:        migratedVersion,
			DevicesMigrated:  stats.devices,
			EntitiesMigrated: stats.entities,
		})
	}
}
