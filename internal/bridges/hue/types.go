package hue

import "strings"

// ResourceType is a CLIP v2 resource type.
type ResourceType string

// Resource types the migration and discovery flows care about.
const (
	ResourceTypeDevice             ResourceType = "device"
	ResourceTypeZigbeeConnectivity ResourceType = "zigbee_connectivity"
	ResourceTypeLight              ResourceType = "light"
	ResourceTypeTemperature        ResourceType = "temperature"
	ResourceTypeLightLevel         ResourceType = "light_level"
	ResourceTypeDevicePower        ResourceType = "device_power"
	ResourceTypeMotion             ResourceType = "motion"
	ResourceTypeGroupedLight       ResourceType = "grouped_light"
	ResourceTypeRoom               ResourceType = "room"
	ResourceTypeZone               ResourceType = "zone"
	ResourceTypeScene              ResourceType = "scene"
)

// ResourceRef points at another resource, as the bridge serialises owners.
type ResourceRef struct {
	RID   string       `json:"rid"`
	RType ResourceType `json:"rtype"`
}

// ResourceMetadata carries the user-visible name of a resource.
type ResourceMetadata struct {
	Name string `json:"name"`
}

// ProductData carries manufacturer information for device resources.
type ProductData struct {
	ManufacturerName string `json:"manufacturer_name"`
	ModelID          string `json:"model_id"`
	ProductName      string `json:"product_name"`
}

// Resource is one entry in the bridge's CLIP v2 resource list. Only the
// fields the hub reads are modelled; the bridge sends many more.
type Resource struct {
	ID          string            `json:"id"`
	Type        ResourceType      `json:"type"`
	IDV1        string            `json:"id_v1,omitempty"`
	Owner       *ResourceRef      `json:"owner,omitempty"`
	Group       *ResourceRef      `json:"group,omitempty"`
	Metadata    *ResourceMetadata `json:"metadata,omitempty"`
	ProductData *ProductData      `json:"product_data,omitempty"`

	// MACAddress is set on zigbee_connectivity resources.
	MACAddress string `json:"mac_address,omitempty"`
}

// ResourceGraph is the full resource list fetched from a v2 bridge.
type ResourceGraph struct {
	Resources []Resource
}

// ByType returns all resources of the given type.
func (g *ResourceGraph) ByType(t ResourceType) []Resource {
	var out []Resource
	for _, res := range g.Resources {
		if res.Type == t {
			out = append(out, res)
		}
	}
	return out
}

// Device returns the device resource with the given id, or nil.
func (g *ResourceGraph) Device(id string) *Resource {
	for i := range g.Resources {
		if g.Resources[i].Type == ResourceTypeDevice && g.Resources[i].ID == id {
			return &g.Resources[i]
		}
	}
	return nil
}

// ByID returns the resource with the given id regardless of type, or nil.
func (g *ResourceGraph) ByID(id string) *Resource {
	for i := range g.Resources {
		if g.Resources[i].ID == id {
			return &g.Resources[i]
		}
	}
	return nil
}

// LegacyLookup indexes a resource graph by the identifiers the v1 API
// exposed, so records created against v1 firmware can be resolved to
// their v2 guids.
type LegacyLookup struct {
	// Devices maps a device's zigbee MAC address to its v2 guid.
	Devices map[string]string

	// Entities maps a legacy entity unique id to the owning service guid.
	// Keys are the MAC for lights, "{mac}-{device_class}" for sensors,
	// and the bare numeric group id for grouped lights.
	Entities map[string]string
}

// LegacyLookup builds the legacy-identifier index for the graph.
func (g *ResourceGraph) LegacyLookup() *LegacyLookup {
	// The MAC lives on a device's zigbee_connectivity service, keyed back
	// to the device through the service's owner reference.
	macByDevice := make(map[string]string)
	for _, res := range g.Resources {
		if res.Type == ResourceTypeZigbeeConnectivity && res.Owner != nil && res.MACAddress != "" {
			macByDevice[res.Owner.RID] = res.MACAddress
		}
	}

	lookup := &LegacyLookup{
		Devices:  make(map[string]string),
		Entities: make(map[string]string),
	}
	for deviceID, mac := range macByDevice {
		lookup.Devices[mac] = deviceID
	}

	for _, res := range g.Resources {
		switch res.Type {
		case ResourceTypeLight:
			if res.Owner == nil {
				continue
			}
			if mac, ok := macByDevice[res.Owner.RID]; ok {
				lookup.Entities[mac] = res.ID
			}
		case ResourceTypeTemperature, ResourceTypeLightLevel, ResourceTypeDevicePower, ResourceTypeMotion:
			if res.Owner == nil {
				continue
			}
			if mac, ok := macByDevice[res.Owner.RID]; ok {
				lookup.Entities[mac+"-"+legacyDeviceClass(res.Type)] = res.ID
			}
		case ResourceTypeGroupedLight:
			// v1 groups carried a bare numeric id, preserved in id_v1.
			if groupID, ok := strings.CutPrefix(res.IDV1, "/groups/"); ok && groupID != "" {
				lookup.Entities[groupID] = res.ID
			}
		}
	}
	return lookup
}

// legacyDeviceClass maps a v2 sensor resource type to the device class
// the v1 API used in sensor unique ids.
func legacyDeviceClass(t ResourceType) string {
	switch t {
	case ResourceTypeLightLevel:
		return "illuminance"
	case ResourceTypeDevicePower:
		return "battery"
	default:
		return string(t)
	}
}
