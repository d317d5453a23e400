/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
Package config provides configuration management for FlySearch.

The configuration system supports multiple sources with clear precedence:
 1. Command-line flags (highest priority)
 2. Environment variables
 3. Configuration file
 4. Default values (lowest priority)

Configuration File Format:
The configuration file uses TOML and is decoded with github.com/BurntSushi/toml.

Example configuration file:

	# FlySearch Configuration
	log_level = "info"
	log_json = false
	fetch_concurrency = 16
	fast_path = true
	collation = "default"
	locale = "en_US"
	query_timeout = "30s"
	data_file = "/var/lib/flysearch/fixture.yaml"
	listen_addr = ":8890"
	metrics_enabled = true
	metrics_addr = ":9094"
	catalog_cache_size = 256

Environment Variables:
  - FLYSEARCH_LOG_LEVEL: Log level (debug, info, warn, error)
  - FLYSEARCH_LOG_JSON: Enable JSON logging (true/false)
  - FLYSEARCH_FETCH_CONCURRENCY: Maximum concurrent storage fetches per stage
  - FLYSEARCH_FAST_PATH: Enable the single-table fast path (true/false)
  - FLYSEARCH_COLLATION: String collation (default, binary, nocase, unicode)
  - FLYSEARCH_LOCALE: Locale used by the unicode collation
  - FLYSEARCH_QUERY_TIMEOUT: Per-query timeout applied by the CLI and server
  - FLYSEARCH_DATA_FILE: YAML fixture loaded into the in-memory store
  - FLYSEARCH_LISTEN_ADDR: HTTP listen address for the query server
  - FLYSEARCH_METRICS_ENABLED: Expose Prometheus metrics (true/false)
  - FLYSEARCH_METRICS_ADDR: Metrics listen address
  - FLYSEARCH_CATALOG_CACHE_SIZE: Hash attribute cache entries (0 disables)
  - FLYSEARCH_CONFIG_FILE: Path to configuration file
*/
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/pflag"

	ferrors "flysearch/internal/errors"
)

// Environment variable prefix; the rest of the name is the upper-cased key.
const EnvPrefix = "FLYSEARCH_"

// EnvConfigFile names the configuration file to load.
const EnvConfigFile = "FLYSEARCH_CONFIG_FILE"

// Default configuration file paths (searched in order).
var DefaultConfigPaths = []string{
	"/etc/flysearch/flysearch.toml",
	"$HOME/.config/flysearch/flysearch.toml",
	"./flysearch.toml",
}

// Duration is a time.Duration that decodes from TOML strings such as "30s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config holds all configuration values for FlySearch.
type Config struct {
	// Logging
	LogLevel string `toml:"log_level" json:"log_level"`
	LogJSON  bool   `toml:"log_json" json:"log_json"`

	// Search pipeline
	FetchConcurrency int      `toml:"fetch_concurrency" json:"fetch_concurrency"` // 0 = unbounded
	FastPath         bool     `toml:"fast_path" json:"fast_path"`
	Collation        string   `toml:"collation" json:"collation"`
	Locale           string   `toml:"locale" json:"locale"`
	QueryTimeout     Duration `toml:"query_timeout" json:"query_timeout"`
	CatalogCacheSize int      `toml:"catalog_cache_size" json:"catalog_cache_size"`

	// Data
	DataFile string `toml:"data_file" json:"data_file"`

	// Network
	ListenAddr     string `toml:"listen_addr" json:"listen_addr"`
	MetricsEnabled bool   `toml:"metrics_enabled" json:"metrics_enabled"`
	MetricsAddr    string `toml:"metrics_addr" json:"metrics_addr"`

	// Metadata
	ConfigFile string `toml:"-" json:"-"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:         "info",
		LogJSON:          false,
		FetchConcurrency: 16,
		FastPath:         true,
		Collation:        "default",
		Locale:           "en_US",
		QueryTimeout:     Duration{30 * time.Second},
		CatalogCacheSize: 256,
		ListenAddr:       ":8890",
		MetricsEnabled:   false,
		MetricsAddr:      ":9094",
	}
}

// Manager handles configuration loading, validation, and access.
type Manager struct {
	config *Config
	mu     sync.RWMutex

	onReload []func(*Config)

	// flags holds the values applied by ApplyFlags; Reload re-applies them
	// so command-line overrides survive a reload.
	flags map[string]string
}

// NewManager creates a new configuration manager with default values.
func NewManager() *Manager {
	return &Manager{
		config: DefaultConfig(),
	}
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg := *m.config
	return &cfg
}

// Set replaces the configuration.
func (m *Manager) Set(cfg *Config) {
	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
}

// OnReload registers a callback to be called when configuration is reloaded.
func (m *Manager) OnReload(fn func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReload = append(m.onReload, fn)
}

func (m *Manager) notifyReload() {
	m.mu.RLock()
	callbacks := make([]func(*Config), len(m.onReload))
	copy(callbacks, m.onReload)
	cfg := *m.config
	m.mu.RUnlock()

	for _, fn := range callbacks {
		fn(&cfg)
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []string

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("invalid log_level: %s (must be debug, info, warn, or error)", c.LogLevel))
	}

	if c.FetchConcurrency < 0 {
		errs = append(errs, fmt.Sprintf("invalid fetch_concurrency: %d (must be >= 0)", c.FetchConcurrency))
	}
	if c.CatalogCacheSize < 0 {
		errs = append(errs, fmt.Sprintf("invalid catalog_cache_size: %d (must be >= 0)", c.CatalogCacheSize))
	}
	if c.QueryTimeout.Duration < 0 {
		errs = append(errs, fmt.Sprintf("invalid query_timeout: %s (must be >= 0)", c.QueryTimeout))
	}

	switch strings.ToLower(c.Collation) {
	case "default", "binary", "nocase", "unicode":
	default:
		errs = append(errs, fmt.Sprintf("invalid collation: %s (must be default, binary, nocase, or unicode)", c.Collation))
	}

	if c.MetricsEnabled && c.MetricsAddr == "" {
		errs = append(errs, "metrics_addr is required when metrics_enabled is true")
	}

	if len(errs) > 0 {
		return ferrors.NewValidationError("configuration validation failed").
			WithDetail(strings.Join(errs, "; "))
	}
	return nil
}

// LoadFromFile loads configuration from a TOML file on top of the defaults.
func (m *Manager) LoadFromFile(path string) error {
	path = os.ExpandEnv(path)

	cfg := DefaultConfig()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return ferrors.Wrapf(err, "failed to load config file %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return ferrors.InvalidValue(path, fmt.Sprintf("unknown keys %v", undecoded))
	}

	cfg.ConfigFile = path
	m.Set(cfg)
	return nil
}

// LoadFromEnv loads configuration from FLYSEARCH_* environment variables.
// This merges with the existing configuration.
func (m *Manager) LoadFromEnv() error {
	cfg := m.Get()
	for _, key := range Keys() {
		v, ok := os.LookupEnv(EnvPrefix + strings.ToUpper(key))
		if !ok || v == "" {
			continue
		}
		if err := applyConfigValue(cfg, key, v); err != nil {
			return err
		}
	}
	m.Set(cfg)
	return nil
}

// FindConfigFile searches for a configuration file in default locations.
// Returns the path to the first file found, or empty string if none found.
func FindConfigFile() string {
	if envPath := os.Getenv(EnvConfigFile); envPath != "" {
		if _, err := os.Stat(os.ExpandEnv(envPath)); err == nil {
			return os.ExpandEnv(envPath)
		}
	}
	for _, path := range DefaultConfigPaths {
		expandedPath := os.ExpandEnv(path)
		if _, err := os.Stat(expandedPath); err == nil {
			return expandedPath
		}
	}
	return ""
}

// Load loads configuration from all sources with proper precedence.
// Order: defaults -> config file -> environment variables.
// Command-line flags are applied afterwards with ApplyFlags.
func (m *Manager) Load(path string) error {
	if path == "" {
		path = FindConfigFile()
	}
	if path != "" {
		if err := m.LoadFromFile(path); err != nil {
			return err
		}
	}
	return m.LoadFromEnv()
}

// Reload reloads configuration from file and environment, re-applies the
// command-line flags and notifies registered listeners. On error the
// previous configuration is kept.
func (m *Manager) Reload() error {
	prev := m.Get()
	m.Set(DefaultConfig())
	if err := m.Load(prev.ConfigFile); err != nil {
		m.Set(prev)
		return err
	}
	cfg := m.Get()
	m.mu.RLock()
	for key, value := range m.flags {
		if err := applyConfigValue(cfg, key, value); err != nil {
			m.mu.RUnlock()
			m.Set(prev)
			return err
		}
	}
	m.mu.RUnlock()
	if err := cfg.Validate(); err != nil {
		m.Set(prev)
		return err
	}
	m.Set(cfg)
	m.notifyReload()
	return nil
}

// reloadable lists the keys a running server picks up on Reload. Every
// other key only takes effect after a restart.
var reloadable = map[string]bool{
	"log_level": true,
	"log_json":  true,
	"data_file": true,
}

// Reloadable reports whether a change to key takes effect without a
// restart.
func Reloadable(key string) bool {
	return reloadable[key]
}

// Changed returns the keys whose values differ between c and other, in
// Keys order.
func (c *Config) Changed(other *Config) []string {
	var keys []string
	for _, key := range Keys() {
		if c.value(key) != other.value(key) {
			keys = append(keys, key)
		}
	}
	return keys
}

// flagUsage documents every configuration key; it doubles as the key list.
var flagUsage = map[string]string{
	"log_level":          "log level (debug, info, warn, error)",
	"log_json":           "emit JSON log lines",
	"fetch_concurrency":  "maximum concurrent storage fetches per stage (0 = unbounded)",
	"fast_path":          "enable the single-table fast path",
	"collation":          "string collation (default, binary, nocase, unicode)",
	"locale":             "locale for the unicode collation",
	"query_timeout":      "per-query timeout",
	"catalog_cache_size": "hash attribute cache entries (0 disables)",
	"data_file":          "YAML fixture loaded into the in-memory store",
	"listen_addr":        "HTTP listen address",
	"metrics_enabled":    "expose Prometheus metrics",
	"metrics_addr":       "metrics listen address",
}

// Keys returns every configuration key in a stable order.
func Keys() []string {
	return []string{
		"log_level", "log_json", "fetch_concurrency", "fast_path", "collation", "locale",
		"query_timeout", "catalog_cache_size", "data_file", "listen_addr",
		"metrics_enabled", "metrics_addr",
	}
}

// BindFlags registers one flag per configuration key on fs, using the
// current values as defaults. Flag names use dashes instead of underscores.
func (m *Manager) BindFlags(fs *pflag.FlagSet) {
	cfg := m.Get()
	for _, key := range Keys() {
		name := strings.ReplaceAll(key, "_", "-")
		if fs.Lookup(name) != nil {
			continue
		}
		fs.String(name, cfg.value(key), flagUsage[key])
	}
}

// ApplyFlags copies every flag the user actually set into the configuration.
func (m *Manager) ApplyFlags(fs *pflag.FlagSet) error {
	cfg := m.Get()
	applied := make(map[string]string)
	var err error
	fs.Visit(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		key := strings.ReplaceAll(f.Name, "-", "_")
		if _, known := flagUsage[key]; !known {
			return
		}
		err = applyConfigValue(cfg, key, f.Value.String())
		if err == nil {
			applied[key] = f.Value.String()
		}
	})
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.config = cfg
	m.flags = applied
	m.mu.Unlock()
	return nil
}

// applyConfigValue parses value and assigns it to the field named by key.
func applyConfigValue(cfg *Config, key, value string) error {
	parseBool := func() (bool, error) {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return false, ferrors.InvalidValue(key, fmt.Sprintf("expected a boolean, got %q", value))
		}
		return b, nil
	}
	parseInt := func() (int, error) {
		n, err := strconv.Atoi(value)
		if err != nil {
			return 0, ferrors.InvalidValue(key, fmt.Sprintf("expected an integer, got %q", value))
		}
		return n, nil
	}

	var err error
	switch key {
	case "log_level":
		cfg.LogLevel = value
	case "log_json":
		cfg.LogJSON, err = parseBool()
	case "fetch_concurrency":
		cfg.FetchConcurrency, err = parseInt()
	case "fast_path":
		cfg.FastPath, err = parseBool()
	case "collation":
		cfg.Collation = value
	case "locale":
		cfg.Locale = value
	case "query_timeout":
		if perr := cfg.QueryTimeout.UnmarshalText([]byte(value)); perr != nil {
			err = ferrors.InvalidValue(key, perr.Error())
		}
	case "catalog_cache_size":
		cfg.CatalogCacheSize, err = parseInt()
	case "data_file":
		cfg.DataFile = value
	case "listen_addr":
		cfg.ListenAddr = value
	case "metrics_enabled":
		cfg.MetricsEnabled, err = parseBool()
	case "metrics_addr":
		cfg.MetricsAddr = value
	default:
		err = ferrors.InvalidValue(key, "unknown configuration key")
	}
	return err
}

// value renders the field named by key as a string.
func (c *Config) value(key string) string {
	switch key {
	case "log_level":
		return c.LogLevel
	case "log_json":
		return strconv.FormatBool(c.LogJSON)
	case "fetch_concurrency":
		return strconv.Itoa(c.FetchConcurrency)
	case "fast_path":
		return strconv.FormatBool(c.FastPath)
	case "collation":
		return c.Collation
	case "locale":
		return c.Locale
	case "query_timeout":
		return c.QueryTimeout.String()
	case "catalog_cache_size":
		return strconv.Itoa(c.CatalogCacheSize)
	case "data_file":
		return c.DataFile
	case "listen_addr":
		return c.ListenAddr
	case "metrics_enabled":
		return strconv.FormatBool(c.MetricsEnabled)
	case "metrics_addr":
		return c.MetricsAddr
	}
	return ""
}

// String returns a string representation of the configuration.
func (c *Config) String() string {
	var sb strings.Builder
	sb.WriteString("FlySearch Configuration:\n")
	for _, key := range Keys() {
		sb.WriteString(fmt.Sprintf("  %-20s %s\n", key+":", c.value(key)))
	}
	if c.ConfigFile != "" {
		sb.WriteString(fmt.Sprintf("  %-20s %s\n", "config_file:", c.ConfigFile))
	}
	return sb.String()
}

// ToTOML returns the configuration as a TOML document.
func (c *Config) ToTOML() (string, error) {
	var sb strings.Builder
	sb.WriteString("# FlySearch Configuration File\n\n")
	if err := toml.NewEncoder(&sb).Encode(c); err != nil {
		return "", ferrors.Wrapf(err, "failed to encode configuration")
	}
	return sb.String(), nil
}
