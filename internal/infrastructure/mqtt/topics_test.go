package mqtt

import "testing"

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"registry event", topics.RegistryEvent("device", "updated"), "hearth/registry/device/updated"},
		{"registry entity", topics.RegistryEvent("entity", "created"), "hearth/registry/entity/created"},
		{"registry wildcard", topics.RegistryEvents(), "hearth/registry/#"},
		{"bridge event", topics.BridgeEvent("hue", "migration"), "hearth/bridge/hue/migration"},
		{"system status", topics.SystemStatus(), "hearth/system/status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}
