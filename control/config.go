// File: control/config.go
// Package control holds configuration, metrics and backpressure
// diagnostics for the acquisition pipeline.
// License: Apache-2.0

package control

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Duration decodes "25ms"-style strings from both TOML and YAML.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler (used by the TOML
// decoder).
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// PoolConfig sizes the frame buffer pool. The only knobs are slot count
// and per-buffer fixed capacity, plus the growth step used when operators
// deliberately enlarge a running session.
type PoolConfig struct {
	Slots          int `toml:"slots" yaml:"slots"`
	BufferCapacity int `toml:"buffer_capacity" yaml:"buffer_capacity"`
	GrowStep       int `toml:"grow_step" yaml:"grow_step"`

	// AcquireTimeout bounds producer-side waits. Keep it well under the
	// upstream source's retention window; a camera ring buffer typically
	// holds ~200ms of frames before silently overwriting them.
	AcquireTimeout Duration `toml:"acquire_timeout" yaml:"acquire_timeout"`
}

// ProducerConfig drives the simulated frame source.
type ProducerConfig struct {
	FrameRate  float64 `toml:"frame_rate" yaml:"frame_rate"`
	FrameBytes int     `toml:"frame_bytes" yaml:"frame_bytes"`
}

// LoggingConfig mirrors the fields slog needs.
type LoggingConfig struct {
	// Level is one of: debug, info, warn, error.
	Level string `toml:"level" yaml:"level"`
	// Format is one of: json, text.
	Format string `toml:"format" yaml:"format"`
}

// Config is the full acquisition-session configuration.
type Config struct {
	Pool        PoolConfig     `toml:"pool" yaml:"pool"`
	Producer    ProducerConfig `toml:"producer" yaml:"producer"`
	Logging     LoggingConfig  `toml:"logging" yaml:"logging"`
	JournalSize int            `toml:"journal_size" yaml:"journal_size"`
}

// Default returns a runnable configuration: thirty 8 MiB frame buffers,
// the shape used for a full-frame scientific camera at moderate rates.
func Default() *Config {
	return &Config{
		Pool: PoolConfig{
			Slots:          30,
			BufferCapacity: 8 * 1024 * 1024,
			GrowStep:       8,
			AcquireTimeout: Duration(50 * time.Millisecond),
		},
		Producer: ProducerConfig{
			FrameRate:  100,
			FrameBytes: 8 * 1024 * 1024,
		},
		Logging:     LoggingConfig{Level: "info", Format: "text"},
		JournalSize: 256,
	}
}

// Load reads a config file, choosing the decoder by extension
// (.toml, .yaml, .yml). Unset fields keep their defaults.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if err := toml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("config: unsupported extension %q (expected .toml or .yaml/.yml)", ext)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the pool would refuse anyway, with
// better messages.
func (c *Config) Validate() error {
	if c.Pool.Slots < 1 {
		return fmt.Errorf("config: pool.slots must be at least 1, got %d", c.Pool.Slots)
	}
	if c.Pool.BufferCapacity < 1 {
		return fmt.Errorf("config: pool.buffer_capacity must be at least 1, got %d", c.Pool.BufferCapacity)
	}
	if c.Pool.AcquireTimeout < 0 {
		return fmt.Errorf("config: pool.acquire_timeout must not be negative")
	}
	if c.Producer.FrameBytes < 8 {
		return fmt.Errorf("config: producer.frame_bytes must be at least 8 (the frame header size), got %d",
			c.Producer.FrameBytes)
	}
	if c.Producer.FrameBytes > c.Pool.BufferCapacity {
		return fmt.Errorf("config: producer.frame_bytes (%d) exceeds pool.buffer_capacity (%d)",
			c.Producer.FrameBytes, c.Pool.BufferCapacity)
	}
	if c.JournalSize < 1 {
		return fmt.Errorf("config: journal_size must be at least 1, got %d", c.JournalSize)
	}
	return nil
}
