package database

import (
	"testing"
)

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		wantVersion   string
		wantName      string
		wantDirection string
		wantOK        bool
	}{
		{
			name:          "valid up migration",
			input:         "20260830_120000_initial_schema.up.sql",
			wantVersion:   "20260830_120000",
			wantName:      "initial_schema",
			wantDirection: "up",
			wantOK:        true,
		},
		{
			name:          "valid down migration",
			input:         "20260830_120000_initial_schema.down.sql",
			wantVersion:   "20260830_120000",
			wantName:      "initial_schema",
			wantDirection: "down",
			wantOK:        true,
		},
		{
			name:          "multi word name",
			input:         "20260901_083000_add_entity_indexes.up.sql",
			wantVersion:   "20260901_083000",
			wantName:      "add_entity_indexes",
			wantDirection: "up",
			wantOK:        true,
		},
		{
			name:   "missing direction",
			input:  "20260830_120000_initial_schema.sql",
			wantOK: false,
		},
		{
			name:   "missing name",
			input:  "20260830_120000.up.sql",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, name, direction, ok := parseMigrationFilename(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if version != tt.wantVersion {
				t.Errorf("version = %q, want %q", version, tt.wantVersion)
			}
			if name != tt.wantName {
				t.Errorf("name = %q, want %q", name, tt.wantName)
			}
			if direction != tt.wantDirection {
				t.Errorf("direction = %q, want %q", direction, tt.wantDirection)
			}
		})
	}
}
