// Package config provides configuration management.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"cu-planner/core/types"
	"cu-planner/internal/errors"
	"cu-planner/internal/logging"
)

// Environment variables that override file settings
const (
	EnvLogLevel   = "CU_PLANNER_LOG_LEVEL"
	EnvMaxUnits   = "CU_PLANNER_MAX_UNITS"
	EnvServerAddr = "CU_PLANNER_SERVER_ADDR"
)

// Config is the main application configuration
type Config struct {
	// Version is the configuration version
	Version string `json:"version" yaml:"version"`

	// Budget is the default budget for inline cost sequences
	Budget types.Budget `json:"budget" yaml:"budget"`

	// OffsetPolicy is the default offset policy
	OffsetPolicy types.OffsetPolicy `json:"offset_policy" yaml:"offset_policy"`

	// Output contains output configuration
	Output OutputConfig `json:"output" yaml:"output"`

	// Scenarios contains scenario loading configuration
	Scenarios ScenarioConfig `json:"scenarios" yaml:"scenarios"`

	// Cache contains cache configuration
	Cache CacheConfig `json:"cache" yaml:"cache"`

	// Server contains HTTP server configuration
	Server ServerConfig `json:"server" yaml:"server"`

	// Logging contains logging configuration
	Logging logging.Config `json:"logging" yaml:"logging"`
}

// OutputConfig contains output-related settings
type OutputConfig struct {
	// DefaultFormat is the default output format
	DefaultFormat string `json:"default_format" yaml:"default_format"`

	// ShowWindows lists every window in CLI output
	ShowWindows bool `json:"show_windows" yaml:"show_windows"`
}

// ScenarioConfig contains scenario-related settings
type ScenarioConfig struct {
	// Directory holds additional .hcl scenario files, registered at startup
	Directory string `json:"directory,omitempty" yaml:"directory,omitempty"`
}

// CacheConfig contains cache-related settings
type CacheConfig struct {
	// Enabled enables result caching
	Enabled bool `json:"enabled" yaml:"enabled"`

	// MaxEntries bounds the number of cached results
	MaxEntries int `json:"max_entries" yaml:"max_entries"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	// Addr is the listen address
	Addr string `json:"addr" yaml:"addr"`

	// ReadTimeoutSeconds bounds reading a request
	ReadTimeoutSeconds int `json:"read_timeout_seconds" yaml:"read_timeout_seconds"`

	// WriteTimeoutSeconds bounds writing a response
	WriteTimeoutSeconds int `json:"write_timeout_seconds" yaml:"write_timeout_seconds"`

	// MaxBodyBytes bounds request bodies
	MaxBodyBytes int64 `json:"max_body_bytes" yaml:"max_body_bytes"`
}

// Default returns a default configuration
func Default() *Config {
	return &Config{
		Version: "1.0",
		Budget: types.Budget{
			MaxUnits:        1_000_000,
			SecurityPadding: 2000,
		},
		OffsetPolicy: types.OffsetFirstWindow,
		Output: OutputConfig{
			DefaultFormat: "cli",
			ShowWindows:   true,
		},
		Cache: CacheConfig{
			Enabled:    true,
			MaxEntries: 1024,
		},
		Server: ServerConfig{
			Addr:                ":8080",
			ReadTimeoutSeconds:  30,
			WriteTimeoutSeconds: 60,
			MaxBodyBytes:        8 << 20,
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load loads configuration from a file, then applies environment overrides.
// A missing file yields the defaults. Files ending in .yaml or .yml are YAML,
// anything else JSON.
func Load(path string) (*Config, error) {
	config := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decode(path, data, config); err != nil {
			return nil, err
		}
	case os.IsNotExist(err):
	default:
		return nil, errors.Config("reading config file "+path, err)
	}

	if err := config.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func decode(path string, data []byte, config *Config) error {
	if isYAML(path) {
		if err := yaml.Unmarshal(data, config); err != nil {
			return errors.Config("parsing yaml config "+path, err)
		}
		return nil
	}
	if err := json.Unmarshal(data, config); err != nil {
		return errors.Config("parsing json config "+path, err)
	}
	return nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// ApplyEnv applies environment overrides read through lookup
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := lookup(EnvMaxUnits); ok && v != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return errors.Config(EnvMaxUnits+" is not an integer", err).WithContext("value", v)
		}
		c.Budget.MaxUnits = n
	}
	if v, ok := lookup(EnvServerAddr); ok && v != "" {
		c.Server.Addr = v
	}
	return nil
}

// Validate rejects configurations the planner cannot run with
func (c *Config) Validate() error {
	cfg := c.Budget.Configuration()
	cfg.OffsetPolicy = c.OffsetPolicy
	if err := cfg.Validate(); err != nil {
		return errors.Config("default budget is unusable", err)
	}
	if c.Cache.MaxEntries < 0 {
		return errors.New(errors.TypeConfig, "cache max_entries must not be negative")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return errors.New(errors.TypeConfig, "server max_body_bytes must be positive")
	}
	return nil
}

// CacheSize returns the engine cache size, 0 when caching is disabled
func (c *Config) CacheSize() int {
	if !c.Cache.Enabled {
		return 0
	}
	return c.Cache.MaxEntries
}

// Save saves configuration to a file, as YAML or JSON by extension
func (c *Config) Save(path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Config("creating config directory", err)
	}

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return errors.Config("encoding config", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Config("writing config file "+path, err)
	}
	return nil
}

// DefaultPath returns the per-user config file location
func DefaultPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "cu-planner.yaml"
	}
	return filepath.Join(homeDir, ".cu-planner", "config.yaml")
}

// Global configuration instance
var globalConfig = Default()

// Get returns the global configuration
func Get() *Config {
	return globalConfig
}

// Set sets the global configuration
func Set(config *Config) {
	globalConfig = config
}
