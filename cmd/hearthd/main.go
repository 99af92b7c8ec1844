// Hearth Core - Smart Home Hub
//
// This is the main entry point for the Hearth Core application.
// Hearth Core is a local-first smart home hub designed for:
//   - Offline-first operation (no cloud dependency)
//   - Open standards (Hue CLIP, MQTT)
//   - Durable device and entity registries backed by SQLite
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/openhearth/hearth-core/migrations"

	"github.com/openhearth/hearth-core/internal/api"
	"github.com/openhearth/hearth-core/internal/audit"
	"github.com/openhearth/hearth-core/internal/bridges/hue"
	"github.com/openhearth/hearth-core/internal/configentry"
	"github.com/openhearth/hearth-core/internal/events"
	"github.com/openhearth/hearth-core/internal/infrastructure/config"
	"github.com/openhearth/hearth-core/internal/infrastructure/database"
	"github.com/openhearth/hearth-core/internal/infrastructure/logging"
	"github.com/openhearth/hearth-core/internal/infrastructure/mqtt"
	"github.com/openhearth/hearth-core/internal/registry"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Hearth Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Initialise config entry store
	entries := configentry.NewStore(configentry.NewSQLiteRepository(db.DB))
	entries.SetLogger(log)
	if refreshErr := entries.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading config entries: %w", refreshErr)
	}
	log.Info("config entry store initialised", "entries", entries.Count())

	// Initialise device registry
	deviceRegistry := registry.NewDeviceRegistry(registry.NewSQLiteDeviceRepository(db.DB))
	deviceRegistry.SetLogger(log)
	if refreshErr := deviceRegistry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading device registry: %w", refreshErr)
	}
	log.Info("device registry initialised", "devices", deviceRegistry.Count())

	// Initialise entity registry
	entityRegistry := registry.NewEntityRegistry(registry.NewSQLiteEntityRepository(db.DB))
	entityRegistry.SetLogger(log)
	if refreshErr := entityRegistry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading entity registry: %w", refreshErr)
	}
	log.Info("entity registry initialised", "entities", entityRegistry.Count())

	// Audit trail shares the registry database
	auditor := audit.NewSQLiteRepository(db.DB)

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
	} else {
		log.Info("MQTT disabled")
	}

	// Registry change events fan out to MQTT (a nil client makes the
	// publisher a no-op, so this is safe when MQTT is disabled)
	publisher := events.NewPublisher(mqttClient, log)

	// Initialise the Hue bridge integration
	var clientOpts []hue.Option
	if cfg.Bridges.Hue.RequestTimeout > 0 {
		clientOpts = append(clientOpts, hue.WithTimeout(cfg.HueRequestTimeout()))
	}
	if cfg.Bridges.Hue.AllowInsecure {
		clientOpts = append(clientOpts, hue.WithInsecureTLS())
	}
	hueIntegration := hue.NewIntegration(entries, deviceRegistry, entityRegistry,
		hue.WithLogger(log),
		hue.WithAudit(auditor),
		hue.WithEvents(publisher),
		hue.WithClientOptions(clientOpts...),
	)

	// Run bridge migrations and discovery before serving the API so
	// clients never observe a half-migrated registry
	if setupErr := hueIntegration.Setup(ctx); setupErr != nil {
		return fmt.Errorf("setting up hue integration: %w", setupErr)
	}
	log.Info("hue integration ready",
		"entries", len(entries.ListByDomain(ctx, hue.Domain)),
	)

	// Start the REST API server
	server, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Logger:   log,
		Entries:  entries,
		Devices:  deviceRegistry,
		Entities: entityRegistry,
		Audit:    auditor,
		Hue:      hueIntegration,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error stopping API server", "error", closeErr)
		}
	}()
	log.Info("API server started",
		"host", cfg.API.Host,
		"port", cfg.API.Port,
		"tls", cfg.API.TLS.Enabled,
	)

	// Registry mutations notify both MQTT subscribers and WebSocket
	// clients; each registry takes a single hook, so compose them here
	pubDeviceHook, hubDeviceHook := publisher.DeviceHook(), server.Hub().DeviceHook()
	deviceRegistry.SetEventHook(func(action registry.Action, device registry.Device) {
		pubDeviceHook(action, device)
		hubDeviceHook(action, device)
	})
	pubEntityHook, hubEntityHook := publisher.EntityHook(), server.Hub().EntityHook()
	entityRegistry.SetEventHook(func(action registry.Action, entity registry.Entity) {
		pubEntityHook(action, entity)
		hubEntityHook(action, entity)
	})

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. API server
	// 2. MQTT (if enabled)
	// 3. Database

	log.Info("Hearth Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses HEARTH_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("HEARTH_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	return nil
}
