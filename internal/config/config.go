// Package config holds the handful of options the core reads, per
// spec.md §6. Everything else is UI configuration the core never sees.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete set of options recognized by the core.
type Config struct {
	StorePath string `yaml:"store_path"`

	SnapshotCount            int  `yaml:"snapshot_count"`
	SnapshotIntervalSeconds  int  `yaml:"snapshot_interval_seconds"`
	PeriodicSnapshotsEnabled bool `yaml:"periodic_snapshots_enabled"`

	MetadataHotCapacity int `yaml:"metadata_hot_capacity"`
	HashHotCapacity     int `yaml:"hash_hot_capacity"`

	BatchDefaultSize int  `yaml:"batch_default_size"`
	BatchMaxWorkers  int  `yaml:"batch_max_workers"`
	BatchSmartMode   bool `yaml:"batch_smart_mode"`

	PreviewCacheTTLMs int      `yaml:"preview_cache_ttl_ms"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
}

// Default returns the configuration the application ships with absent a
// config file.
func Default() *Config {
	return &Config{
		StorePath:                defaultStorePath(),
		SnapshotCount:            5,
		SnapshotIntervalSeconds:  3600,
		PeriodicSnapshotsEnabled: true,
		MetadataHotCapacity:      2048,
		HashHotCapacity:          2048,
		BatchDefaultSize:         100,
		BatchMaxWorkers:          4,
		BatchSmartMode:           true,
		PreviewCacheTTLMs:        100,
		AllowedExtensions:        nil,
	}
}

// PreviewCacheTTL returns the configured preview/validation memoization TTL.
func (c *Config) PreviewCacheTTL() time.Duration {
	if c.PreviewCacheTTLMs <= 0 {
		return 100 * time.Millisecond
	}
	return time.Duration(c.PreviewCacheTTLMs) * time.Millisecond
}

// SnapshotInterval returns the configured periodic snapshot interval, or 0
// if periodic snapshots are disabled by interval.
func (c *Config) SnapshotInterval() time.Duration {
	return time.Duration(c.SnapshotIntervalSeconds) * time.Second
}

// Load reads a Config from a YAML file, overlaying it on Default() so an
// incomplete file still produces sane values.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultStorePath() string {
	base, err := os.UserConfigDir()
	if err != nil || base == "" {
		base = "."
	}
	return base + "/oncutf/oncutf_data.db"
}
