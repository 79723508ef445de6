// Package config loads the gateway configuration.
//
// DESIGN: YAML file with ${VAR} / ${VAR:-default} expansion, layered as:
//  1. Default()        built-in defaults (defaults.go)
//  2. YAML file        values present in the file override defaults
//  3. Environment      ETENDO_CLASSIC_URL, ETENDO_CLASSIC_HOST, ... always win
//
// Validate() is called by Load/LoadFromBytes; a Config built in code (tests)
// should call it explicitly.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables consumed by the gateway.
const (
	EnvLegacyURL    = "ETENDO_CLASSIC_URL"
	EnvLegacyHost   = "ETENDO_CLASSIC_HOST"
	EnvPort         = "ERP_GATEWAY_PORT"
	EnvRedisAddress = "REDIS_ADDRESS"
)

// ErrMissingLegacyURL is returned when no legacy server URL is configured.
var ErrMissingLegacyURL = errors.New("legacy.url (" + EnvLegacyURL + ") is required")

// Config is the complete gateway configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Legacy     LegacyConfig     `yaml:"legacy"`
	Session    SessionConfig    `yaml:"session"`
	Cache      CacheConfig      `yaml:"cache"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
}

// ServerConfig configures the inbound HTTP server.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LegacyConfig points at the legacy ERP server.
type LegacyConfig struct {
	// URL is the internally reachable base URL used for outbound calls.
	URL string `yaml:"url"`
	// Host is the browser-reachable base URL used as the HTML rewrite target.
	// Defaults to URL.
	Host string `yaml:"host"`
	// APIPath is the servlet path the ERP slugs live under.
	APIPath string        `yaml:"api_path"`
	Timeout time.Duration `yaml:"timeout"`
}

// APIBase returns the URL proxied slugs are appended to.
func (l LegacyConfig) APIBase() string {
	base := strings.TrimRight(l.URL, "/")
	if p := strings.Trim(l.APIPath, "/"); p != "" {
		base += "/" + p
	}
	return base
}

// BrowserBase returns the base URL that rewritten HTML should point at.
func (l LegacyConfig) BrowserBase() string {
	if strings.TrimSpace(l.Host) != "" {
		return strings.TrimRight(l.Host, "/")
	}
	return strings.TrimRight(l.URL, "/")
}

// SessionConfig selects and tunes the session store backend.
type SessionConfig struct {
	Backend         string        `yaml:"backend"` // memory | sqlite
	Path            string        `yaml:"path"`    // sqlite database file
	TTL             time.Duration `yaml:"ttl"`     // 0 = never expire
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// CacheConfig selects and tunes the GET response cache.
type CacheConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Backend         string        `yaml:"backend"` // memory | redis
	TTL             time.Duration `yaml:"ttl"`
	MaxEntries      int           `yaml:"max_entries"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	Redis           RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// MonitoringConfig configures logging, metrics and request telemetry.
type MonitoringConfig struct {
	LogLevel       string `yaml:"log_level"`  // debug | info | warn | error
	LogFormat      string `yaml:"log_format"` // json | console; empty = auto
	LogOutput      string `yaml:"log_output"` // stdout | stderr | file path
	MetricsEnabled bool   `yaml:"metrics_enabled"`
	TelemetryPath  string `yaml:"telemetry_path"` // JSONL request log; empty = off

	// TelemetryStdout also logs a one-line summary per request event.
	TelemetryStdout bool `yaml:"telemetry_stdout"`
}

// Default returns a configuration populated with built-in defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            DefaultPort,
			ReadTimeout:     DefaultReadTimeout,
			WriteTimeout:    DefaultWriteTimeout,
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Legacy: LegacyConfig{
			APIPath: DefaultLegacyAPIPath,
			Timeout: DefaultLegacyTimeout,
		},
		Session: SessionConfig{
			Backend:         BackendMemory,
			Path:            DefaultSessionDBPath,
			TTL:             DefaultSessionTTL,
			CleanupInterval: DefaultCleanupInterval,
		},
		Cache: CacheConfig{
			Enabled:         true,
			Backend:         BackendMemory,
			TTL:             DefaultCacheTTL,
			MaxEntries:      DefaultCacheMaxEntries,
			CleanupInterval: DefaultCleanupInterval,
		},
		Monitoring: MonitoringConfig{
			LogLevel:       "info",
			LogOutput:      "stdout",
			MetricsEnabled: true,
		},
	}
}

// Load reads and validates the YAML file at path. An empty path yields
// defaults plus environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		return LoadFromBytes(nil)
	}
	// #nosec G304 -- path is an operator-supplied config file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes parses YAML bytes on top of Default(), applies environment
// overrides and validates the result.
func LoadFromBytes(data []byte) (*Config, error) {
	cfg := Default()
	if len(data) > 0 {
		expanded := ExpandEnvWithDefaults(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides file values with the gateway environment variables.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvLegacyURL)); v != "" {
		c.Legacy.URL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLegacyHost)); v != "" {
		c.Legacy.Host = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvPort)); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvRedisAddress)); v != "" {
		c.Cache.Redis.Address = v
	}
}

// Validate checks the configuration for values the gateway cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Legacy.URL) == "" {
		return ErrMissingLegacyURL
	}
	if err := validateAbsoluteURL("legacy.url", c.Legacy.URL); err != nil {
		return err
	}
	if c.Legacy.Host != "" {
		if err := validateAbsoluteURL("legacy.host", c.Legacy.Host); err != nil {
			return err
		}
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	switch c.Session.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.Session.Path == "" {
			return errors.New("session.path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("session.backend %q: want %s or %s", c.Session.Backend, BackendMemory, BackendSQLite)
	}
	switch c.Cache.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Cache.Enabled && c.Cache.Redis.Address == "" {
			return errors.New("cache.redis.address (" + EnvRedisAddress + ") is required for the redis backend")
		}
	default:
		return fmt.Errorf("cache.backend %q: want %s or %s", c.Cache.Backend, BackendMemory, BackendRedis)
	}
	if c.Session.TTL < 0 || c.Cache.TTL < 0 {
		return errors.New("ttl values must not be negative")
	}
	return nil
}

func validateAbsoluteURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s %q: scheme must be http or https", field, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%s %q: host is required", field, raw)
	}
	return nil
}
