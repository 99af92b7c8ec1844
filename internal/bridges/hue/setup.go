package hue

import (
	"context"
	"fmt"
	"strings"

	"github.com/openhearth/hearth-core/internal/audit"
	"github.com/openhearth/hearth-core/internal/configentry"
	"github.com/openhearth/hearth-core/internal/events"
	"github.com/openhearth/hearth-core/internal/registry"
)

// Domain is the integration domain for Hue bridges. It names config
// entries and registry identifier pairs owned by this package.
const Domain = "hue"

// BridgeAPI is the subset of the bridge client the integration uses.
// Tests substitute a fake to drive migration paths without a bridge.
type BridgeAPI interface {
	IsV2Bridge(ctx context.Context) (bool, error)
	FetchResourceGraph(ctx context.Context) (*ResourceGraph, error)
}

// Logger is a minimal logging interface so the integration stays
// decoupled from any particular logging implementation.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Integration wires Hue bridges into the hub's stores and registries.
type Integration struct {
	entries   *configentry.Store
	devices   *registry.DeviceRegistry
	entities  *registry.EntityRegistry
	auditor   audit.Repository
	publisher *events.Publisher
	logger    Logger
	newClient func(host, appKey string) BridgeAPI
}

// IntegrationOption configures an Integration.
type IntegrationOption func(*Integration)

// WithLogger sets the integration logger.
func WithLogger(logger Logger) IntegrationOption {
	return func(i *Integration) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// WithAudit enables audit trail entries for migrations.
func WithAudit(repo audit.Repository) IntegrationOption {
	return func(i *Integration) { i.auditor = repo }
}

// WithEvents enables MQTT migration events.
func WithEvents(publisher *events.Publisher) IntegrationOption {
	return func(i *Integration) { i.publisher = publisher }
}

// WithClientFactory replaces how bridge clients are constructed.
// Tests use this to point the integration at a fake or an httptest server.
func WithClientFactory(factory func(host, appKey string) BridgeAPI) IntegrationOption {
	return func(i *Integration) { i.newClient = factory }
}

// WithClientOptions applies options to every bridge client the default
// factory constructs.
func WithClientOptions(opts ...Option) IntegrationOption {
	return func(i *Integration) {
		i.newClient = func(host, appKey string) BridgeAPI {
			return NewClient(host, appKey, opts...)
		}
	}
}

// NewIntegration creates the Hue integration over the given stores.
func NewIntegration(entries *configentry.Store, devices *registry.DeviceRegistry, entities *registry.EntityRegistry, opts ...IntegrationOption) *Integration {
	i := &Integration{
		entries:  entries,
		devices:  devices,
		entities: entities,
		logger:   noopLogger{},
		newClient: func(host, appKey string) BridgeAPI {
			return NewClient(host, appKey)
		},
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Setup brings up every Hue config entry. Entries that fail keep the
// hub booting; the error is logged and the entry retried next startup.
func (i *Integration) Setup(ctx context.Context) error {
	for _, entry := range i.entries.ListByDomain(ctx, Domain) {
		if err := i.SetupEntry(ctx, entry.ID); err != nil {
			i.logger.Error("bridge setup failed", "entry_id", entry.ID, "error", err)
		}
	}
	return nil
}

// SetupEntry brings up one config entry: data migrations first, then
// resource discovery against v2 firmware. Blocks until both complete.
func (i *Integration) SetupEntry(ctx context.Context, entryID string) error {
	if err := i.CheckMigration(ctx, entryID); err != nil {
		return fmt.Errorf("checking migration: %w", err)
	}

	entry, err := i.entries.Get(ctx, entryID)
	if err != nil {
		return fmt.Errorf("loading config entry: %w", err)
	}
	if entry.Version < migratedVersion {
		i.logger.Info("bridge on v1 api, skipping resource discovery", "entry_id", entry.ID)
		return nil
	}

	api, err := i.clientFor(entry.Data)
	if err != nil {
		return err
	}
	graph, err := api.FetchResourceGraph(ctx)
	if err != nil {
		return fmt.Errorf("fetching resource graph: %w", err)
	}
	return i.discover(ctx, entry, graph)
}

// clientFor builds a bridge client from config entry data.
func (i *Integration) clientFor(data map[string]any) (BridgeAPI, error) {
	host, _ := data[keyHost].(string)
	apiKey, _ := data[keyAPIKey].(string)
	if host == "" || apiKey == "" {
		return nil, fmt.Errorf("%w: host and api key are required", ErrInvalidConfig)
	}
	return i.newClient(host, apiKey), nil
}

// discover creates registry records for bridge resources that are not
// yet known. GetOrCreate keys on guid unique ids, so rerunning discovery
// is a no-op for existing records.
func (i *Integration) discover(ctx context.Context, entry *configentry.ConfigEntry, graph *ResourceGraph) error {
	macByDevice := make(map[string]string)
	for _, res := range graph.Resources {
		if res.Type == ResourceTypeZigbeeConnectivity && res.Owner != nil && res.MACAddress != "" {
			macByDevice[res.Owner.RID] = res.MACAddress
		}
	}

	deviceIDByGUID := make(map[string]string)
	for _, res := range graph.ByType(ResourceTypeDevice) {
		identifiers := []registry.Identifier{{Domain: Domain, ID: res.ID}}
		if mac, ok := macByDevice[res.ID]; ok {
			identifiers = append(identifiers, registry.Identifier{Domain: Domain, ID: mac})
		}

		device := &registry.Device{
			ConfigEntryID: entry.ID,
			Identifiers:   identifiers,
			Name:          resourceName(&res),
		}
		if res.ProductData != nil {
			device.Manufacturer = res.ProductData.ManufacturerName
			device.Model = res.ProductData.ModelID
		}

		created, err := i.devices.GetOrCreate(ctx, device)
		if err != nil {
			return fmt.Errorf("registering device %s: %w", res.ID, err)
		}
		deviceIDByGUID[res.ID] = created.ID
	}

	for idx := range graph.Resources {
		res := &graph.Resources[idx]
		platform, deviceClass, ok := entityKind(res.Type)
		if !ok {
			continue
		}

		entity := &registry.Entity{
			ConfigEntryID: entry.ID,
			Platform:      platform,
			Domain:        Domain,
			UniqueID:      res.ID,
			ObjectID:      objectID(res, graph),
			Name:          entityName(res, graph),
			DeviceClass:   deviceClass,
		}
		if res.Owner != nil {
			if deviceID, found := deviceIDByGUID[res.Owner.RID]; found {
				entity.DeviceID = &deviceID
			}
		}

		if _, err := i.entities.GetOrCreate(ctx, entity); err != nil {
			return fmt.Errorf("registering entity for resource %s: %w", res.ID, err)
		}
	}

	i.logger.Info("bridge resources discovered",
		"entry_id", entry.ID,
		"devices", len(deviceIDByGUID))
	return nil
}

// entityKind maps a service resource type to the entity platform and
// device class it surfaces as. ok is false for non-entity resources.
func entityKind(t ResourceType) (platform, deviceClass string, ok bool) {
	switch t {
	case ResourceTypeLight, ResourceTypeGroupedLight:
		return "light", "", true
	case ResourceTypeTemperature, ResourceTypeLightLevel, ResourceTypeDevicePower:
		return "sensor", legacyDeviceClass(t), true
	case ResourceTypeMotion:
		return "binary_sensor", "motion", true
	case ResourceTypeScene:
		return "scene", "", true
	default:
		return "", "", false
	}
}

// resourceName returns a resource's own metadata name, or empty.
func resourceName(res *Resource) string {
	if res.Metadata != nil {
		return res.Metadata.Name
	}
	return ""
}

// entityName names a service after itself or, failing that, its owner.
// Scenes are prefixed with the name of the room or zone they belong to.
func entityName(res *Resource, graph *ResourceGraph) string {
	if res.Type == ResourceTypeScene && res.Group != nil {
		if group := graph.ByID(res.Group.RID); group != nil {
			if groupName := resourceName(group); groupName != "" {
				return groupName + " " + resourceName(res)
			}
		}
	}
	if name := resourceName(res); name != "" {
		return name
	}
	if res.Owner != nil {
		if owner := graph.Device(res.Owner.RID); owner != nil {
			return resourceName(owner)
		}
	}
	return ""
}

// objectID derives the entity id slug for a discovered resource.
func objectID(res *Resource, graph *ResourceGraph) string {
	name := entityName(res, graph)
	if name == "" {
		name = string(res.Type)
	}
	slug := slugify(name)
	if deviceClass := serviceSuffix(res.Type); deviceClass != "" {
		slug += "_" + deviceClass
	}
	return slug
}

// serviceSuffix disambiguates sensor services sharing an owner name.
func serviceSuffix(t ResourceType) string {
	switch t {
	case ResourceTypeTemperature, ResourceTypeLightLevel, ResourceTypeDevicePower, ResourceTypeMotion:
		return legacyDeviceClass(t)
	default:
		return ""
	}
}

// slugify lowercases a name and collapses non-alphanumeric runs to
// single underscores.
func slugify(name string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
