// File: control/fileconfig.go
// Package control
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Immutable bootstrap configuration, loadable from TOML.

package control

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config holds the parameters fixed for the lifetime of one bridge unit.
type Config struct {
	// SourceName identifies the inbound WebSocket-side endpoint.
	SourceName string `toml:"source_name"`
	// TargetName identifies the outbound HTTP-side endpoint.
	TargetName string `toml:"target_name"`

	// SlabTotalCapacity and SlabSlotCapacity size the payload staging slab;
	// both must be powers of two.
	SlabTotalCapacity int `toml:"slab_total_capacity"`
	SlabSlotCapacity  int `toml:"slab_slot_capacity"`

	// RingCapacity bounds each endpoint's frame ring.
	RingCapacity int `toml:"ring_capacity"`

	// LogLevel is a zerolog level name: trace, debug, info, warn, error.
	LogLevel string `toml:"log_level"`
}

// DefaultConfig returns sane defaults for typical relay workloads.
func DefaultConfig() *Config {
	return &Config{
		SourceName:        "ws",
		TargetName:        "http",
		SlabTotalCapacity: 1 << 20, // 1 MiB staging slab
		SlabSlotCapacity:  1 << 14, // 16 KiB per slot, 64 slots
		RingCapacity:      1024,
		LogLevel:          "info",
	}
}

// LoadConfig reads a TOML file over the defaults. A missing path returns
// defaults unchanged.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file: %w", err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields the slab and ring constructors would reject,
// so misconfiguration fails before any component is built.
func (c *Config) Validate() error {
	if c.SourceName == "" || c.TargetName == "" {
		return fmt.Errorf("config: source_name and target_name are required")
	}
	if c.SourceName == c.TargetName {
		return fmt.Errorf("config: source_name and target_name must differ")
	}
	if !isPowerOfTwo(c.SlabTotalCapacity) || !isPowerOfTwo(c.SlabSlotCapacity) {
		return fmt.Errorf("config: slab capacities must be powers of two")
	}
	if c.SlabSlotCapacity > c.SlabTotalCapacity {
		return fmt.Errorf("config: slab_slot_capacity exceeds slab_total_capacity")
	}
	if c.RingCapacity < 2 {
		return fmt.Errorf("config: ring_capacity must be at least 2")
	}
	return nil
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
