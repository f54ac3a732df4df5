// Package config loads CLEO's YAML-configured, non-spec-mandated settings:
// the host address table and general engine options. Anything spec.md §6
// pins to a specific on-disk format (cheat persistence, settings.json, the
// release cache, .fxt files, the archive directory) is handled by its own
// package instead, in that exact format.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EngineConfig is the top-level configuration for one CLEO instance.
type EngineConfig struct {
	// CatalogueRoot is the CLEO/ directory (spec.md §6). Empty means
	// "derive from the host's documents location".
	CatalogueRoot string `yaml:"catalogue_root"`

	Host      HostConfig      `yaml:"host"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Streaming StreamingConfig `yaml:"streaming"`
	Updater   UpdaterConfig   `yaml:"updater"`
}

// HostConfig is the symbolic-name → absolute-offset address table (spec.md
// §1: "a table of symbolic names → absolute offsets", §4 component 1). It
// holds no slide; the slide is given to hostbind.Table separately.
type HostConfig struct {
	Targets map[string]uint64 `yaml:"targets"`
}

// LoggingConfig mirrors pkg/logging.Config with yaml tags so it can be
// embedded in one engine config file.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// MetricsConfig controls the optional Prometheus HTTP endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// StreamingConfig controls the archive streaming engine's bookkeeping.
type StreamingConfig struct {
	// StreamCount is the number of stream records init_streams allocates.
	StreamCount int `yaml:"stream_count"`
}

// UpdaterConfig controls the release checker.
type UpdaterConfig struct {
	Endpoint string `yaml:"endpoint"`
	CacheTTL string `yaml:"cache_ttl"` // parsed with ParseDuration, e.g. "6h"
}

// Load reads and parses a YAML engine config file, expanding environment
// variables the way the teacher's config loader does.
func Load(path string) (*EngineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg EngineConfig
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, nil
}

// ParseDuration parses a duration string, falling back to a default on
// malformed input instead of failing outright — this value only controls a
// cache TTL, never correctness.
func ParseDuration(s string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return fallback
}
