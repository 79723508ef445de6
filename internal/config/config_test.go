package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearGatewayEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvLegacyURL, EnvLegacyHost, EnvPort, EnvRedisAddress} {
		t.Setenv(k, "")
	}
}

func TestLoadFromBytes_DefaultsAndEnv(t *testing.T) {
	clearGatewayEnv(t)
	t.Setenv(EnvLegacyURL, "http://tomcat:8080/etendo")

	cfg, err := LoadFromBytes(nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.Equal(t, "http://tomcat:8080/etendo", cfg.Legacy.URL)
	assert.Equal(t, "http://tomcat:8080/etendo", cfg.Legacy.BrowserBase(), "host falls back to url")
	assert.Equal(t, "http://tomcat:8080/etendo/sws/com.etendoerp.metadata", cfg.Legacy.APIBase())
	assert.Equal(t, BackendMemory, cfg.Session.Backend)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, DefaultCacheTTL, cfg.Cache.TTL)
	assert.Equal(t, time.Duration(0), cfg.Session.TTL)
}

func TestLoadFromBytes_YAMLWithExpansion(t *testing.T) {
	clearGatewayEnv(t)
	t.Setenv("ERP_TEST_PORT", "4100")

	data := []byte(`
server:
  port: ${ERP_TEST_PORT}
  read_timeout: 10s
legacy:
  url: ${ERP_TEST_LEGACY:-http://localhost:8080/etendo}
  host: https://erp.example.com/etendo/
  timeout: 15s
session:
  backend: sqlite
  path: /tmp/sessions.db
  ttl: 12h
cache:
  ttl: 30s
  max_entries: 50
monitoring:
  log_level: debug
  log_format: json
`)

	cfg, err := LoadFromBytes(data)
	require.NoError(t, err)

	assert.Equal(t, 4100, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, DefaultWriteTimeout, cfg.Server.WriteTimeout, "absent keys keep defaults")
	assert.Equal(t, "http://localhost:8080/etendo", cfg.Legacy.URL)
	assert.Equal(t, "https://erp.example.com/etendo", cfg.Legacy.BrowserBase())
	assert.Equal(t, 15*time.Second, cfg.Legacy.Timeout)
	assert.Equal(t, "http://localhost:8080/etendo/sws/com.etendoerp.metadata", cfg.Legacy.APIBase())
	assert.Equal(t, BackendSQLite, cfg.Session.Backend)
	assert.Equal(t, 12*time.Hour, cfg.Session.TTL)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 50, cfg.Cache.MaxEntries)
	assert.Equal(t, "debug", cfg.Monitoring.LogLevel)
}

func TestLoadFromBytes_EnvOverridesFile(t *testing.T) {
	clearGatewayEnv(t)
	t.Setenv(EnvLegacyURL, "http://internal:8080/etendo")
	t.Setenv(EnvLegacyHost, "https://public.example.com/etendo")
	t.Setenv(EnvPort, "5000")

	cfg, err := LoadFromBytes([]byte("legacy:\n  url: http://file:8080/etendo\n"))
	require.NoError(t, err)

	assert.Equal(t, "http://internal:8080/etendo", cfg.Legacy.URL)
	assert.Equal(t, "https://public.example.com/etendo", cfg.Legacy.BrowserBase())
	assert.Equal(t, 5000, cfg.Server.Port)
}

func TestValidate(t *testing.T) {
	clearGatewayEnv(t)

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing url", func(c *Config) { c.Legacy.URL = "" }, true},
		{"relative url", func(c *Config) { c.Legacy.URL = "/etendo" }, true},
		{"bad host scheme", func(c *Config) { c.Legacy.Host = "ftp://x/etendo" }, true},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, true},
		{"unknown session backend", func(c *Config) { c.Session.Backend = "etcd" }, true},
		{"sqlite without path", func(c *Config) { c.Session.Backend = BackendSQLite; c.Session.Path = "" }, true},
		{"redis without address", func(c *Config) { c.Cache.Backend = BackendRedis }, true},
		{"redis disabled cache", func(c *Config) { c.Cache.Backend = BackendRedis; c.Cache.Enabled = false }, false},
		{"negative ttl", func(c *Config) { c.Cache.TTL = -time.Second }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Legacy.URL = "http://localhost:8080/etendo"
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	cfg := Default()
	assert.ErrorIs(t, cfg.Validate(), ErrMissingLegacyURL)
}

func TestLoad_File(t *testing.T) {
	clearGatewayEnv(t)
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte("legacy:\n  url: http://localhost:8080/etendo\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/etendo", cfg.Legacy.URL)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestExpandEnvWithDefaults(t *testing.T) {
	t.Setenv("ERP_SET", "value")
	t.Setenv("ERP_EMPTY", "")

	assert.Equal(t, "value", ExpandEnvWithDefaults("${ERP_SET}"))
	assert.Equal(t, "value", ExpandEnvWithDefaults("${ERP_SET:-fallback}"))
	assert.Equal(t, "fallback", ExpandEnvWithDefaults("${ERP_EMPTY:-fallback}"))
	assert.Equal(t, "", ExpandEnvWithDefaults("${ERP_UNSET_VAR_X}"))
	assert.Equal(t, "a-value-b", ExpandEnvWithDefaults("a-${ERP_SET}-b"))
	assert.Equal(t, "$HOME", ExpandEnvWithDefaults("$HOME"), "only braced references expand")
}

func TestLoadEnvFiles_DoesNotOverrideExisting(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("ERP_FROM_FILE=file\nERP_PRESET=file\n"), 0o600))

	t.Setenv("ERP_PRESET", "process")
	t.Setenv("ERP_FROM_FILE", "")
	require.NoError(t, os.Unsetenv("ERP_FROM_FILE"))

	LoadEnvFiles(envFile, filepath.Join(dir, "missing.env"))

	assert.Equal(t, "file", os.Getenv("ERP_FROM_FILE"))
	assert.Equal(t, "process", os.Getenv("ERP_PRESET"))
}

func TestLegacyConfig_APIBase(t *testing.T) {
	tests := []struct {
		url, apiPath, want string
	}{
		{"http://h:8080/etendo", "/sws/com.etendoerp.metadata", "http://h:8080/etendo/sws/com.etendoerp.metadata"},
		{"http://h:8080/etendo/", "sws/x/", "http://h:8080/etendo/sws/x"},
		{"http://h:8080/etendo", "", "http://h:8080/etendo"},
	}
	for _, tt := range tests {
		l := LegacyConfig{URL: tt.url, APIPath: tt.apiPath}
		assert.Equal(t, tt.want, l.APIBase())
	}
}
