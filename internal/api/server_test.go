package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/openhearth/hearth-core/internal/audit"
	"github.com/openhearth/hearth-core/internal/configentry"
	"github.com/openhearth/hearth-core/internal/infrastructure/config"
	"github.com/openhearth/hearth-core/internal/infrastructure/logging"
	"github.com/openhearth/hearth-core/internal/registry"
)

// newTestServer builds a router over in-memory stores seeded with one
// config entry, one device, and one entity.
func newTestServer(t *testing.T) (*Server, http.Handler) {
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
			config_entry_id TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			manufacturer TEXT NOT NULL DEFAULT '',
			model TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL DEFAULT '',
			updated_at TEXT NOT NULL DEFAULT ''
		);
		CREATE TABLE device_identifiers (
			device_id TEXT NOT NULL,
			domain TEXT NOT NULL,
			identifier TEXT NOT NULL,
			PRIMARY KEY (domain, identifier)
		);
		CREATE TABLE entities (
			id TEXT PRIMARY KEY,
			config_entry_id TEXT NOT NULL,
			device_id TEXT,
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

	entries := configentry.NewStore(configentry.NewSQLiteRepository(db))
	devices := registry.NewDeviceRegistry(registry.NewSQLiteDeviceRepository(db))
	entities := registry.NewEntityRegistry(registry.NewSQLiteEntityRepository(db))

	ctx := context.Background()
	for _, refresh := range []func(context.Context) error{
		entries.RefreshCache, devices.RefreshCache, entities.RefreshCache,
	} {
		if err := refresh(ctx); err != nil {
			t.Fatalf("refreshing cache: %v", err)
		}
	}

	if err := entries.Create(ctx, &configentry.ConfigEntry{
		ID:     "entry-1",
		Domain: "hue",
		Title:  "Hue Bridge",
		Data:   map[string]any{"host": "192.168.1.2", "api_key": "secret-key"},
	}); err != nil {
		t.Fatalf("seeding config entry: %v", err)
	}

	device, err := devices.GetOrCreate(ctx, &registry.Device{
		ConfigEntryID: "entry-1",
		Identifiers:   []registry.Identifier{{Domain: "hue", ID: "00:17:88:01:09:aa:bb:65"}},
		Name:          "Hue color lamp",
	})
	if err != nil {
		t.Fatalf("seeding device: %v", err)
	}

	if _, err := entities.GetOrCreate(ctx, &registry.Entity{
		ConfigEntryID: "entry-1",
		DeviceID:      &device.ID,
		Platform:      "light",
		Domain:        "hue",
		UniqueID:      "00:17:88:01:09:aa:bb:65",
		ObjectID:      "hue_color_lamp",
		Name:          "Hue color lamp",
	}); err != nil {
		t.Fatalf("seeding entity: %v", err)
	}

	server, err := New(Deps{
		Config:   config.APIConfig{},
		WS:       config.WebSocketConfig{MaxMessageSize: 65536, PingInterval: 30, PongTimeout: 10},
		Logger:   logging.New(config.LoggingConfig{Level: "error", Format: "text"}, "test"),
		Entries:  entries,
		Devices:  devices,
		Entities: entities,
		Audit:    audit.NewSQLiteRepository(db),
		Version:  "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	server.hub = NewHub(server.wsCfg, server.logger)

	return server, server.buildRouter()
}

func doRequest(t *testing.T, handler http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response body: %v", err)
	}
	return body
}

func TestHandleHealth(t *testing.T) {
	_, handler := newTestServer(t)

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body := decodeBody(t, rec); body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
}

func TestHandleListConfigEntriesRedactsCredentials(t *testing.T) {
	_, handler := newTestServer(t)

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/config-entries")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := decodeBody(t, rec)
	if body["count"] != float64(1) {
		t.Fatalf("count = %v, want 1", body["count"])
	}
	entries := body["config_entries"].([]any)
	data := entries[0].(map[string]any)["data"].(map[string]any)
	if data["api_key"] == "secret-key" {
		t.Error("api_key returned unredacted")
	}
	if data["host"] != "192.168.1.2" {
		t.Errorf("host = %v, want unredacted value", data["host"])
	}
}

func TestHandleGetConfigEntryNotFound(t *testing.T) {
	_, handler := newTestServer(t)

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/config-entries/missing")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandleListDevices(t *testing.T) {
	_, handler := newTestServer(t)

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/devices")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body := decodeBody(t, rec); body["count"] != float64(1) {
		t.Errorf("count = %v, want 1", body["count"])
	}

	rec = doRequest(t, handler, http.MethodGet, "/api/v1/devices?config_entry_id=other")
	if body := decodeBody(t, rec); body["count"] != float64(0) {
		t.Errorf("filtered count = %v, want 0", body["count"])
	}
}

func TestHandleGetEntity(t *testing.T) {
	_, handler := newTestServer(t)

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/entities/light.hue_color_lamp")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body := decodeBody(t, rec); body["unique_id"] != "00:17:88:01:09:aa:bb:65" {
		t.Errorf("unique_id = %v, want mac", body["unique_id"])
	}

	rec = doRequest(t, handler, http.MethodGet, "/api/v1/entities/light.missing")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandleDeleteEntity(t *testing.T) {
	server, handler := newTestServer(t)

	rec := doRequest(t, handler, http.MethodDelete, "/api/v1/entities/light.hue_color_lamp")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if server.entities.Count() != 0 {
		t.Errorf("entity count = %d, want 0 after delete", server.entities.Count())
	}
}

func TestHandleMigrateUnknownDomain(t *testing.T) {
	_, handler := newTestServer(t)

	// No hue integration is wired in the test server.
	rec := doRequest(t, handler, http.MethodPost, "/api/v1/config-entries/entry-1/migrate")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 when no migration is available", rec.Code)
	}
}

func TestHandleListAuditLogsBadLimit(t *testing.T) {
	_, handler := newTestServer(t)

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/audit?limit=abc")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleListAuditLogs(t *testing.T) {
	server, handler := newTestServer(t)

	err := server.auditor.Create(context.Background(), &audit.AuditLog{
		Action:     audit.ActionMigrate,
		EntityType: audit.EntityTypeConfigEntry,
		EntityID:   "entry-1",
	})
	if err != nil {
		t.Fatalf("seeding audit log: %v", err)
	}

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/audit?action=migrate")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body := decodeBody(t, rec); body["total"] != float64(1) {
		t.Errorf("total = %v, want 1", body["total"])
	}
}

func TestMiddlewareRequestIdentity(t *testing.T) {
	_, handler := newTestServer(t)

	// A client-supplied request id is echoed back.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "req-abc123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "req-abc123" {
		t.Errorf("X-Request-ID = %q, want req-abc123", got)
	}
	if got := rec.Header().Get("Server"); got != "hearth-core/test" {
		t.Errorf("Server header = %q, want hearth-core/test", got)
	}

	// Without a client id the server mints one.
	rec = doRequest(t, handler, http.MethodGet, "/api/v1/health")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("no generated X-Request-ID on response")
	}
}
