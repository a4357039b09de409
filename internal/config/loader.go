// Package config loads the service configuration file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Defaults applied by WithDefaults.
const (
	DefaultAddr          = ":8080"
	DefaultLogLevel      = "info"
	DefaultMaxWait       = 30 * time.Second
	DefaultMaxQueueDepth = 32
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by WithDefaults.
type Config struct {
	Addr            string `json:"addr" yaml:"addr" toml:"addr"`
	ModelRepository string `json:"model_repository" yaml:"model_repository" toml:"model_repository"`
	LogLevel        string `json:"log_level" yaml:"log_level" toml:"log_level"`
	// Models limits loading to the named models; empty loads the whole repository.
	Models []string `json:"models" yaml:"models" toml:"models"`
	// MaxWait is a duration string, e.g. "30s".
	MaxWait         string   `json:"max_wait" yaml:"max_wait" toml:"max_wait"`
	MaxQueueDepth   int      `json:"max_queue_depth" yaml:"max_queue_depth" toml:"max_queue_depth"`
	StateCacheBytes int      `json:"state_cache_bytes" yaml:"state_cache_bytes" toml:"state_cache_bytes"`
	PinnedInput     bool     `json:"pinned_input" yaml:"pinned_input" toml:"pinned_input"`
	CORSOrigins     []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	if _, err := cfg.MaxWaitDuration(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// WithDefaults returns cfg with unset fields filled in.
func (c Config) WithDefaults() Config {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.MaxQueueDepth <= 0 {
		c.MaxQueueDepth = DefaultMaxQueueDepth
	}
	if c.MaxWait == "" {
		c.MaxWait = DefaultMaxWait.String()
	}
	return c
}

// MaxWaitDuration parses MaxWait. An empty value yields DefaultMaxWait.
func (c Config) MaxWaitDuration() (time.Duration, error) {
	if c.MaxWait == "" {
		return DefaultMaxWait, nil
	}
	d, err := time.ParseDuration(c.MaxWait)
	if err != nil {
		return 0, fmt.Errorf("max_wait: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("max_wait must not be negative, got %s", c.MaxWait)
	}
	return d, nil
}
