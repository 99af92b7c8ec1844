package hue

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/openhearth/hearth-core/internal/audit"
	"github.com/openhearth/hearth-core/internal/configentry"
	"github.com/openhearth/hearth-core/internal/registry"
)

// Bridge fixtures: two zigbee devices, one deviceless group, and a room
// scene, with the guids their v2 firmware reports.
const (
	lightMAC        = "00:17:88:01:09:aa:bb:65"
	lightDeviceGUID = "0b216218-d811-4c95-8c55-bbcda50f9d50"
	lightGUID       = "02cba059-9c2c-4d45-97e4-4f79b1bfbaa1"

	sensorMAC        = "00:17:aa:bb:cc:09:ac:c3"
	sensorDeviceGUID = "2330b45d-6079-4c6e-bba6-1b68afb1a0d6"
	temperatureGUID  = "66466e14-d2fa-4b96-b2a0-e10de9cd8b8b"
	lightLevelGUID   = "d504e7a4-9a18-4854-90fd-c5b6ac102c40"
	devicePowerGUID  = "669f609d-4860-4f1c-bc25-7a9cec1c3b6c"
	motionGUID       = "b6896534-016d-4052-8cb4-ef04454df62c"

	groupID          = "3"
	groupedLightGUID = "e937f8db-2f0e-49a0-936e-027e60e15b34"

	roomGUID  = "61b8a0f9-0e57-4416-b139-9d31d4a2db93"
	sceneGUID = "9d8a9a85-0f1f-4f62-b7d4-1a56d9fe012e"
)

// fixtureGraph is the resource list a migrated-capable bridge serves.
func fixtureGraph() *ResourceGraph {
	return &ResourceGraph{Resources: []Resource{
		{ID: lightDeviceGUID, Type: ResourceTypeDevice,
			Metadata: &ResourceMetadata{Name: "Hue color lamp"}},
		{ID: "aa0001", Type: ResourceTypeZigbeeConnectivity, MACAddress: lightMAC,
			Owner: &ResourceRef{RID: lightDeviceGUID, RType: ResourceTypeDevice}},
		{ID: lightGUID, Type: ResourceTypeLight, IDV1: "/lights/1",
			Owner: &ResourceRef{RID: lightDeviceGUID, RType: ResourceTypeDevice},
			Metadata: &ResourceMetadata{Name: "Hue color lamp"}},

		{ID: sensorDeviceGUID, Type: ResourceTypeDevice,
			Metadata: &ResourceMetadata{Name: "Hue motion sensor"}},
		{ID: "aa0002", Type: ResourceTypeZigbeeConnectivity, MACAddress: sensorMAC,
			Owner: &ResourceRef{RID: sensorDeviceGUID, RType: ResourceTypeDevice}},
		{ID: temperatureGUID, Type: ResourceTypeTemperature,
			Owner: &ResourceRef{RID: sensorDeviceGUID, RType: ResourceTypeDevice}},
		{ID: lightLevelGUID, Type: ResourceTypeLightLevel,
			Owner: &ResourceRef{RID: sensorDeviceGUID, RType: ResourceTypeDevice}},
		{ID: devicePowerGUID, Type: ResourceTypeDevicePower,
			Owner: &ResourceRef{RID: sensorDeviceGUID, RType: ResourceTypeDevice}},
		{ID: motionGUID, Type: ResourceTypeMotion,
			Owner: &ResourceRef{RID: sensorDeviceGUID, RType: ResourceTypeDevice}},

		{ID: groupedLightGUID, Type: ResourceTypeGroupedLight, IDV1: "/groups/" + groupID,
			Metadata: &ResourceMetadata{Name: "Living room"}},

		{ID: roomGUID, Type: ResourceTypeRoom,
			Metadata: &ResourceMetadata{Name: "Test Room"}},
		{ID: sceneGUID, Type: ResourceTypeScene,
			Group:    &ResourceRef{RID: roomGUID, RType: ResourceTypeRoom},
			Metadata: &ResourceMetadata{Name: "Regular Test Scene"}},
	}}
}

// fakeBridge is a scriptable BridgeAPI.
type fakeBridge struct {
	v2         bool
	probeErr   error
	graph      *ResourceGraph
	fetchErr   error
	probeCalls int
	fetchCalls int
}

func (f *fakeBridge) IsV2Bridge(context.Context) (bool, error) {
	f.probeCalls++
	return f.v2, f.probeErr
}

func (f *fakeBridge) FetchResourceGraph(context.Context) (*ResourceGraph, error) {
	f.fetchCalls++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.graph, nil
}

type testEnv struct {
	db       *sql.DB
	entries  *configentry.Store
	devices  *registry.DeviceRegistry
	entities *registry.EntityRegistry
	auditor  *audit.SQLiteRepository
}

// newTestEnv wires stores and registries over a fresh in-memory database.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
		CREATE TABLE config_entries (
			id TEXT PRIMARY KEY,
			domain TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			data TEXT NOT NULL DEFAULT '{}',
			version INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL DEFAULT '',
			updated_at TEXT NOT NULL DEFAULT ''
		);
		CREATE TABLE devices (
			id TEXT PRIMARY KEY,
			config_entry_id TEXT NOT NULL REFERENCES config_entries(id) ON DELETE CASCADE,
			name TEXT NOT NULL DEFAULT '',
			manufacturer TEXT NOT NULL DEFAULT '',
			model TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL DEFAULT '',
			updated_at TEXT NOT NULL DEFAULT ''
		);
		CREATE TABLE device_identifiers (
			device_id TEXT NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
			domain TEXT NOT NULL,
			identifier TEXT NOT NULL,
			PRIMARY KEY (domain, identifier)
		);
		CREATE TABLE entities (
			id TEXT PRIMARY KEY,
			config_entry_id TEXT NOT NULL REFERENCES config_entries(id) ON DELETE CASCADE,
			device_id TEXT REFERENCES devices(id) ON DELETE SET NULL,
			platform TEXT NOT NULL,
			domain TEXT NOT NULL,
			unique_id TEXT NOT NULL,
			object_id TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			device_class TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL DEFAULT '',
			updated_at TEXT NOT NULL DEFAULT '',
			UNIQUE (platform, domain, unique_id),
			UNIQUE (platform, object_id)
		);
		CREATE TABLE audit_logs (
			id TEXT PRIMARY KEY,
			action TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			entity_id TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL DEFAULT 'core',
			details TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL DEFAULT ''
		);`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("creating schema: %v", err)
	}

	env := &testEnv{
		db:       db,
		entries:  configentry.NewStore(configentry.NewSQLiteRepository(db)),
		devices:  registry.NewDeviceRegistry(registry.NewSQLiteDeviceRepository(db)),
		entities: registry.NewEntityRegistry(registry.NewSQLiteEntityRepository(db)),
		auditor:  audit.NewSQLiteRepository(db),
	}

	ctx := context.Background()
	for _, refresh := range []func(context.Context) error{
		env.entries.RefreshCache, env.devices.RefreshCache, env.entities.RefreshCache,
	} {
		if err := refresh(ctx); err != nil {
			t.Fatalf("refreshing cache: %v", err)
		}
	}
	return env
}

// integration builds an Integration whose bridge clients are the fake.
func (env *testEnv) integration(t *testing.T, bridge BridgeAPI) *Integration {
	t.Helper()
	return NewIntegration(env.entries, env.devices, env.entities,
		WithAudit(env.auditor),
		WithClientFactory(func(_, _ string) BridgeAPI { return bridge }),
	)
}

// seedV1Entry creates a version 1 config entry still carrying the legacy
// credential key.
func (env *testEnv) seedV1Entry(t *testing.T) *configentry.ConfigEntry {
	t.Helper()
	entry := &configentry.ConfigEntry{
		ID:     "hue-entry",
		Domain: Domain,
		Title:  "Hue Bridge",
		Data: map[string]any{
			"host":     "192.168.1.2",
			"username": "legacy-app-key",
		},
		Version: 1,
	}
	if err := env.entries.Create(context.Background(), entry); err != nil {
		t.Fatalf("creating config entry: %v", err)
	}
	return entry
}

// seedV1Records registers the devices and entities a v1 integration
// would have created: MAC-identified devices, MAC-keyed light, per
// device class sensor unique ids, and a numeric grouped light id.
func (env *testEnv) seedV1Records(t *testing.T, entryID string) {
	t.Helper()
	ctx := context.Background()

	lightDevice, err := env.devices.GetOrCreate(ctx, &registry.Device{
		ConfigEntryID: entryID,
		Identifiers:   []registry.Identifier{{Domain: Domain, ID: lightMAC}},
		Name:          "Hue color lamp",
	})
	if err != nil {
		t.Fatalf("seeding light device: %v", err)
	}

	sensorDevice, err := env.devices.GetOrCreate(ctx, &registry.Device{
		ConfigEntryID: entryID,
		Identifiers:   []registry.Identifier{{Domain: Domain, ID: sensorMAC}},
		Name:          "Hue motion sensor",
	})
	if err != nil {
		t.Fatalf("seeding sensor device: %v", err)
	}

	seed := []registry.Entity{
		{Platform: "light", UniqueID: lightMAC, ObjectID: "migrated_light_1",
			Name: "Migrated light 1", DeviceID: &lightDevice.ID},
		{Platform: "sensor", UniqueID: sensorMAC + "-temperature",
			ObjectID: "hue_migrated_temperature_sensor", DeviceClass: "temperature", DeviceID: &sensorDevice.ID},
		{Platform: "sensor", UniqueID: sensorMAC + "-illuminance",
			ObjectID: "hue_migrated_illuminance_sensor", DeviceClass: "illuminance", DeviceID: &sensorDevice.ID},
		{Platform: "sensor", UniqueID: sensorMAC + "-battery",
			ObjectID: "hue_migrated_battery_sensor", DeviceClass: "battery", DeviceID: &sensorDevice.ID},
		{Platform: "binary_sensor", UniqueID: sensorMAC + "-motion",
			ObjectID: "hue_migrated_motion_sensor", DeviceClass: "motion", DeviceID: &sensorDevice.ID},
		{Platform: "light", UniqueID: groupID, ObjectID: "hue_migrated_grouped_light",
			Name: "Hue migrated grouped light"},
	}
	for i := range seed {
		seed[i].ConfigEntryID = entryID
		seed[i].Domain = Domain
		if _, err := env.entities.GetOrCreate(ctx, &seed[i]); err != nil {
			t.Fatalf("seeding entity %s: %v", seed[i].ObjectID, err)
		}
	}
}

func TestCheckMigrationRenamesCredentialKey(t *testing.T) {
	env := newTestEnv(t)
	entry := env.seedV1Entry(t)
	bridge := &fakeBridge{v2: false}
	integration := env.integration(t, bridge)
	ctx := context.Background()

	if err := integration.CheckMigration(ctx, entry.ID); err != nil {
		t.Fatalf("CheckMigration() error: %v", err)
	}

	got, err := env.entries.Get(ctx, entry.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Data["api_key"] != "legacy-app-key" {
		t.Errorf("api_key = %v, want legacy-app-key", got.Data["api_key"])
	}
	if _, ok := got.Data["username"]; ok {
		t.Error("legacy username key still present")
	}
	if got.Version != 1 {
		t.Errorf("Version = %d, want 1 for a v1-only bridge", got.Version)
	}
}

func TestCheckMigrationAlreadyRenamed(t *testing.T) {
	env := newTestEnv(t)
	entry := &configentry.ConfigEntry{
		ID:      "hue-entry",
		Domain:  Domain,
		Data:    map[string]any{"host": "192.168.1.2", "api_key": "app-key"},
		Version: 2,
	}
	if err := env.entries.Create(context.Background(), entry); err != nil {
		t.Fatalf("creating config entry: %v", err)
	}

	bridge := &fakeBridge{v2: true, graph: fixtureGraph()}
	integration := env.integration(t, bridge)

	if err := integration.CheckMigration(context.Background(), entry.ID); err != nil {
		t.Fatalf("CheckMigration() error: %v", err)
	}
	if bridge.probeCalls != 0 {
		t.Errorf("probe calls = %d, want 0 for a version 2 entry", bridge.probeCalls)
	}
	if bridge.fetchCalls != 0 {
		t.Errorf("fetch calls = %d, want 0 for a version 2 entry", bridge.fetchCalls)
	}
}

func TestCheckMigrationBridgeUnreachable(t *testing.T) {
	env := newTestEnv(t)
	entry := env.seedV1Entry(t)
	bridge := &fakeBridge{probeErr: ErrBridgeUnreachable}
	integration := env.integration(t, bridge)
	ctx := context.Background()

	if err := integration.CheckMigration(ctx, entry.ID); !errors.Is(err, ErrBridgeUnreachable) {
		t.Fatalf("CheckMigration() error = %v, want ErrBridgeUnreachable", err)
	}

	got, err := env.entries.Get(ctx, entry.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Version != 1 {
		t.Errorf("Version = %d, want 1 after aborted migration", got.Version)
	}
}

func TestCheckMigrationFetchFailureKeepsVersion(t *testing.T) {
	env := newTestEnv(t)
	entry := env.seedV1Entry(t)
	env.seedV1Records(t, entry.ID)
	bridge := &fakeBridge{v2: true, fetchErr: ErrBridgeUnreachable}
	integration := env.integration(t, bridge)
	ctx := context.Background()

	if err := integration.CheckMigration(ctx, entry.ID); err == nil {
		t.Fatal("CheckMigration() succeeded despite fetch failure")
	}

	got, err := env.entries.Get(ctx, entry.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Version != 1 {
		t.Errorf("Version = %d, want 1 after aborted migration", got.Version)
	}

	// Nothing may have been rewritten.
	light, err := env.entities.Get("light.migrated_light_1")
	if err != nil {
		t.Fatalf("Get(light) error: %v", err)
	}
	if light.UniqueID != lightMAC {
		t.Errorf("light UniqueID = %q, want untouched mac", light.UniqueID)
	}
}

func TestCheckMigrationMigratesToV2(t *testing.T) {
	env := newTestEnv(t)
	entry := env.seedV1Entry(t)
	env.seedV1Records(t, entry.ID)
	bridge := &fakeBridge{v2: true, graph: fixtureGraph()}
	integration := env.integration(t, bridge)
	ctx := context.Background()

	if err := integration.CheckMigration(ctx, entry.ID); err != nil {
		t.Fatalf("CheckMigration() error: %v", err)
	}

	got, err := env.entries.Get(ctx, entry.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Version != 2 {
		t.Fatalf("Version = %d, want 2", got.Version)
	}

	t.Run("devices gain guid alongside mac", func(t *testing.T) {
		cases := []struct {
			mac  string
			guid string
		}{
			{lightMAC, lightDeviceGUID},
			{sensorMAC, sensorDeviceGUID},
		}
		for _, tc := range cases {
			device, err := env.devices.GetByIdentifier(Domain, tc.mac)
			if err != nil {
				t.Fatalf("GetByIdentifier(%s) error: %v", tc.mac, err)
			}
			if !device.HasIdentifier(Domain, tc.guid) {
				t.Errorf("device %s missing guid identifier %s", tc.mac, tc.guid)
			}
			if !device.HasIdentifier(Domain, tc.mac) {
				t.Errorf("device %s lost its mac identifier", tc.mac)
			}
		}
	})

	t.Run("entity unique ids become guids", func(t *testing.T) {
		cases := []struct {
			entityID string
			guid     string
		}{
			{"light.migrated_light_1", lightGUID},
			{"sensor.hue_migrated_temperature_sensor", temperatureGUID},
			{"sensor.hue_migrated_illuminance_sensor", lightLevelGUID},
			{"sensor.hue_migrated_battery_sensor", devicePowerGUID},
			{"binary_sensor.hue_migrated_motion_sensor", motionGUID},
			{"light.hue_migrated_grouped_light", groupedLightGUID},
		}
		for _, tc := range cases {
			entity, err := env.entities.Get(tc.entityID)
			if err != nil {
				t.Fatalf("Get(%s) error: %v", tc.entityID, err)
			}
			if entity.UniqueID != tc.guid {
				t.Errorf("%s UniqueID = %q, want %q", tc.entityID, entity.UniqueID, tc.guid)
			}
		}
	})

	t.Run("entity names survive", func(t *testing.T) {
		entity, err := env.entities.Get("light.migrated_light_1")
		if err != nil {
			t.Fatalf("Get() error: %v", err)
		}
		if entity.Name != "Migrated light 1" {
			t.Errorf("Name = %q, want Migrated light 1", entity.Name)
		}
	})

	t.Run("migration recorded in audit trail", func(t *testing.T) {
		result, err := env.auditor.List(ctx, audit.Filter{Action: audit.ActionMigrate})
		if err != nil {
			t.Fatalf("List() error: %v", err)
		}
		if result.Total != 1 {
			t.Fatalf("audit entries = %d, want 1", result.Total)
		}
		log := result.Logs[0]
		if log.EntityID != entry.ID {
			t.Errorf("audit EntityID = %q, want %q", log.EntityID, entry.ID)
		}
		if log.Details["devices_migrated"] != float64(2) {
			t.Errorf("devices_migrated = %v, want 2", log.Details["devices_migrated"])
		}
		if log.Details["entities_migrated"] != float64(6) {
			t.Errorf("entities_migrated = %v, want 6", log.Details["entities_migrated"])
		}
	})
}

func TestCheckMigrationIdempotent(t *testing.T) {
	env := newTestEnv(t)
	entry := env.seedV1Entry(t)
	env.seedV1Records(t, entry.ID)
	bridge := &fakeBridge{v2: true, graph: fixtureGraph()}
	integration := env.integration(t, bridge)
	ctx := context.Background()

	for run := 0; run < 2; run++ {
		if err := integration.CheckMigration(ctx, entry.ID); err != nil {
			t.Fatalf("CheckMigration() run %d error: %v", run+1, err)
		}
	}

	if bridge.probeCalls != 1 {
		t.Errorf("probe calls = %d, want 1; second run must be a no-op", bridge.probeCalls)
	}
	if bridge.fetchCalls != 1 {
		t.Errorf("fetch calls = %d, want 1; second run must be a no-op", bridge.fetchCalls)
	}

	got, err := env.entries.Get(ctx, entry.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Version != 2 {
		t.Errorf("Version = %d, want 2", got.Version)
	}
}

func TestCheckMigrationSkipsUnresolvableRecords(t *testing.T) {
	env := newTestEnv(t)
	entry := env.seedV1Entry(t)
	env.seedV1Records(t, entry.ID)
	ctx := context.Background()

	// A remote sensor the bridge no longer reports.
	orphan, err := env.entities.GetOrCreate(ctx, &registry.Entity{
		ConfigEntryID: entry.ID,
		Platform:      "sensor",
		Domain:        Domain,
		UniqueID:      "00:17:dd:ee:ff:00:00:01-temperature",
		ObjectID:      "stale_sensor",
		DeviceClass:   "temperature",
	})
	if err != nil {
		t.Fatalf("seeding orphan entity: %v", err)
	}

	bridge := &fakeBridge{v2: true, graph: fixtureGraph()}
	integration := env.integration(t, bridge)

	if err := integration.CheckMigration(ctx, entry.ID); err != nil {
		t.Fatalf("CheckMigration() error: %v", err)
	}

	got, err := env.entries.Get(ctx, entry.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Version != 2 {
		t.Errorf("Version = %d, want 2; skipped records must not abort migration", got.Version)
	}

	stale, err := env.entities.Get(orphan.ID)
	if err != nil {
		t.Fatalf("Get(orphan) error: %v", err)
	}
	if stale.UniqueID != "00:17:dd:ee:ff:00:00:01-temperature" {
		t.Errorf("orphan UniqueID = %q, want untouched", stale.UniqueID)
	}
}

func TestCheckMigrationMissingHost(t *testing.T) {
	env := newTestEnv(t)
	entry := &configentry.ConfigEntry{
		ID:      "hue-entry",
		Domain:  Domain,
		Data:    map[string]any{"api_key": "app-key"},
		Version: 1,
	}
	if err := env.entries.Create(context.Background(), entry); err != nil {
		t.Fatalf("creating config entry: %v", err)
	}

	integration := env.integration(t, &fakeBridge{})
	if err := integration.CheckMigration(context.Background(), entry.ID); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("CheckMigration() error = %v, want ErrInvalidConfig", err)
	}
}
