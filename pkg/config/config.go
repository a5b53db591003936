// Package config provides configuration file support for drover,
// including versioned migration of older config layouts.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/drover-project/drover/pkg/errclass"
	"github.com/drover-project/drover/pkg/fsutil"
	"github.com/drover-project/drover/pkg/model"
)

// CurrentVersion is the config layout version this build reads and writes.
const CurrentVersion = 2

// Config represents the drover configuration, stored at
// <root>/.drover/config.yaml.
type Config struct {
	Version      int                `yaml:"version"`
	Coordination CoordinationConfig `yaml:"coordination"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// CoordinationConfig configures the shared lock directory and timing.
type CoordinationConfig struct {
	Dir                      string `yaml:"dir"`
	StaleTimeoutMinutes      int    `yaml:"stale_timeout_minutes"`
	HeartbeatIntervalSeconds int    `yaml:"heartbeat_interval_seconds"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json, text
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Coordination: CoordinationConfig{
			Dir:                      ".drover/coordination",
			StaleTimeoutMinutes:      120,
			HeartbeatIntervalSeconds: 300,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Policy converts the timing settings to a CoordinationPolicy.
func (c *Config) Policy() model.CoordinationPolicy {
	p := model.DefaultPolicy()
	if c.Coordination.StaleTimeoutMinutes > 0 {
		p.StaleTimeout = time.Duration(c.Coordination.StaleTimeoutMinutes) * time.Minute
	}
	if c.Coordination.HeartbeatIntervalSeconds > 0 {
		p.HeartbeatInterval = time.Duration(c.Coordination.HeartbeatIntervalSeconds) * time.Second
	}
	return p
}

// Path returns the config file location under root.
func Path(root string) string {
	return filepath.Join(root, ".drover", "config.yaml")
}

// Load loads configuration from <root>/.drover/config.yaml. A missing
// file yields defaults. A file at an older layout version is migrated
// in place (with a backup) before being returned; a newer version is
// refused.
func Load(root string) (*Config, error) {
	cfgPath := Path(root)

	data, err := os.ReadFile(cfgPath)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	version, err := detectVersion(data)
	if err != nil {
		return nil, err
	}
	switch {
	case version > CurrentVersion:
		return nil, errclass.ErrConfigVersion.WithMessagef(
			"config version %d is newer than supported version %d", version, CurrentVersion)
	case version < CurrentVersion:
		return Migrate(root, data, version)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errclass.ErrConfigInvalid.WithMessagef("parse config: %v", err)
	}
	return cfg, nil
}

// Save writes configuration atomically to <root>/.drover/config.yaml.
func Save(root string, cfg *Config) error {
	cfgPath := Path(root)
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := fsutil.AtomicWrite(cfgPath, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// detectVersion reads only the version field. A config written before
// versioning was introduced has no version field and counts as v1.
func detectVersion(data []byte) (int, error) {
	var probe struct {
		Version int `yaml:"version"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return 0, errclass.ErrConfigInvalid.WithMessagef("parse config: %v", err)
	}
	if probe.Version == 0 {
		return 1, nil
	}
	return probe.Version, nil
}
