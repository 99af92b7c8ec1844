package events

import (
	"testing"

	"github.com/openhearth/hearth-core/internal/registry"
)

func TestNilClientIsNoOp(t *testing.T) {
	p := NewPublisher(nil, nil)

	// None of these may panic or block when no broker is configured.
	p.DeviceHook()(registry.ActionCreated, registry.Device{ID: "dev-1"})
	p.EntityHook()(registry.ActionUpdated, registry.Entity{ID: "light.lamp"})
	p.PublishMigration(MigrationEvent{Bridge: "hue", ConfigEntryID: "entry-1"})
}

func TestHooksAreNonNil(t *testing.T) {
	p := NewPublisher(nil, nil)

	if p.DeviceHook() == nil {
		t.Error("DeviceHook() returned nil")
	}
	if p.EntityHook() == nil {
		t.Error("EntityHook() returned nil")
	}
}
