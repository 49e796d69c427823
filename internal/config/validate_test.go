package config

import (
	"strings"
	"testing"

	"github.com/starpal/starpal/internal/core"
	"gopkg.in/yaml.v3"
)

type knownModule struct{}

func (knownModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "test.known",
		New: func() core.Module { return knownModule{} },
	}
}

func init() {
	core.RegisterModule(knownModule{})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr string
	}{
		{
			name: "valid",
			cfg: &Config{
				Version: "1",
				Modules: map[string]yaml.Node{"test.known": {}},
			},
		},
		{
			name:    "missing version",
			cfg:     &Config{Modules: map[string]yaml.Node{"test.known": {}}},
			wantErr: "version field is required",
		},
		{
			name: "unsupported version",
			cfg: &Config{
				Version: "2",
				Modules: map[string]yaml.Node{"test.known": {}},
			},
			wantErr: "unsupported version",
		},
		{
			name:    "no modules",
			cfg:     &Config{Version: "1"},
			wantErr: "at least one module",
		},
		{
			name: "unknown module",
			cfg: &Config{
				Version: "1",
				Modules: map[string]yaml.Node{"test.unknown": {}},
			},
			wantErr: `unknown module "test.unknown"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
