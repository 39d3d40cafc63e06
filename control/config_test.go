// File: control/config_test.go
// License: Apache-2.0

package control

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const tomlConfig = `journal_size = 32

[pool]
slots = 12
buffer_capacity = 1048576
grow_step = 4
acquire_timeout = "25ms"

[producer]
frame_rate = 200.0
frame_bytes = 1048576

[logging]
level = "debug"
format = "json"
`

const yamlConfig = `journal_size: 32
pool:
  slots: 12
  buffer_capacity: 1048576
  grow_step: 4
producer:
  frame_rate: 200
  frame_bytes: 1048576
logging:
  level: debug
  format: json
`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_TOML(t *testing.T) {
	cfg, err := Load(writeTemp(t, "session.toml", tomlConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Pool.Slots != 12 || cfg.Pool.BufferCapacity != 1<<20 {
		t.Errorf("pool section not decoded: %+v", cfg.Pool)
	}
	if cfg.Pool.AcquireTimeout.Std() != 25*time.Millisecond {
		t.Errorf("expected 25ms acquire timeout, got %v", cfg.Pool.AcquireTimeout)
	}
	if cfg.Producer.FrameRate != 200 {
		t.Errorf("producer section not decoded: %+v", cfg.Producer)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("logging section not decoded: %+v", cfg.Logging)
	}
	if cfg.JournalSize != 32 {
		t.Errorf("expected journal size 32, got %d", cfg.JournalSize)
	}
}

func TestLoad_YAML(t *testing.T) {
	cfg, err := Load(writeTemp(t, "session.yaml", yamlConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Pool.Slots != 12 || cfg.Producer.FrameBytes != 1<<20 {
		t.Errorf("yaml config not decoded: %+v", cfg)
	}
	// Fields absent from the file keep their defaults.
	if cfg.Pool.AcquireTimeout != Default().Pool.AcquireTimeout {
		t.Errorf("default acquire timeout lost: %v", cfg.Pool.AcquireTimeout)
	}
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	if _, err := Load(writeTemp(t, "session.ini", "slots=1")); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"zero slots", func(c *Config) { c.Pool.Slots = 0 }, false},
		{"zero capacity", func(c *Config) { c.Pool.BufferCapacity = 0 }, false},
		{"negative timeout", func(c *Config) { c.Pool.AcquireTimeout = Duration(-time.Second) }, false},
		{"frame smaller than header", func(c *Config) { c.Producer.FrameBytes = 4 }, false},
		{"frame larger than buffer", func(c *Config) { c.Producer.FrameBytes = c.Pool.BufferCapacity + 1 }, false},
		{"zero journal", func(c *Config) { c.JournalSize = 0 }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tc.ok && err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
