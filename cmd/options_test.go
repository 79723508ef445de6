package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOptions(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    cliOptions
		wantErr bool
	}{
		{"empty", nil, cliOptions{}, false},
		{"all short", []string{"-c", "gw.yaml", "-p", "4000", "-d"}, cliOptions{configPath: "gw.yaml", port: 4000, debug: true}, false},
		{"long", []string{"--config", "x.yaml", "--port", "8081"}, cliOptions{configPath: "x.yaml", port: 8081}, false},
		{"missing config value", []string{"-c"}, cliOptions{}, true},
		{"bad port", []string{"-p", "http"}, cliOptions{}, true},
		{"port out of range", []string{"-p", "70000"}, cliOptions{}, true},
		{"unknown flag", []string{"--verbose"}, cliOptions{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseOptions(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsFlag(t *testing.T) {
	assert.True(t, isFlag("-c"))
	assert.True(t, isFlag("--port"))
	assert.False(t, isFlag("serve"))
	assert.False(t, isFlag("--help"))
	assert.False(t, isFlag(""))
}

func TestLoadConfig_CLIOverrides(t *testing.T) {
	t.Setenv("ETENDO_CLASSIC_URL", "http://localhost:8080/etendo")
	t.Setenv("ERP_GATEWAY_PORT", "")
	t.Chdir(t.TempDir())

	cfg, err := loadConfig(cliOptions{port: 4555, debug: true})
	require.NoError(t, err)
	assert.Equal(t, 4555, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Monitoring.LogLevel)
}
