package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "/api/pricing/", cfg.Upstream.Path)
	assert.Equal(t, "USD", cfg.Refresh.DefaultCurrency)
	assert.Equal(t, 60, cfg.Refresh.Interval)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_YAMLFile(t *testing.T) {
	path := writeFile(t, "config.yaml", `
upstream:
  base_url: https://pricing.example.com
  timeout: 3
refresh:
  interval: 0
  default_currency: inr
cache:
  ttl: 15
features:
  snapshot_history: false
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://pricing.example.com", cfg.Upstream.BaseURL)
	assert.Equal(t, 3, cfg.Upstream.Timeout)
	assert.Equal(t, 0, cfg.Refresh.Interval)
	assert.Equal(t, "inr", cfg.Refresh.DefaultCurrency)
	assert.Equal(t, 15, cfg.Cache.TTL)
	assert.Equal(t, map[string]bool{"snapshot_history": false}, cfg.Features)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_JSONFile(t *testing.T) {
	path := writeFile(t, "config.json", `{"server":{"port":"9090"},"rate_limit":{"enabled":true,"rate":3,"window":10}}`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 3, cfg.RateLimit.Rate)
	assert.Equal(t, 10, cfg.RateLimit.Window)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "config.json", `{"server":{"port":"9090"},"refresh":{"default_currency":"EUR"}}`)
	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("DEFAULT_CURRENCY", "INR")
	t.Setenv("FEATURE_RESPONSE_CACHE", "false")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, "INR", cfg.Refresh.DefaultCurrency)
	assert.Equal(t, false, cfg.Features["response_cache"])
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := LoadConfig("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty port", func(c *Config) { c.Server.Port = "" }},
		{"empty upstream", func(c *Config) { c.Upstream.BaseURL = "" }},
		{"negative interval", func(c *Config) { c.Refresh.Interval = -1 }},
		{"unsupported currency", func(c *Config) { c.Refresh.DefaultCurrency = "GBP" }},
		{"negative ttl", func(c *Config) { c.Cache.TTL = -5 }},
		{"empty database", func(c *Config) { c.Database.Path = "" }},
		{"zero rate", func(c *Config) { c.RateLimit.Enabled = true; c.RateLimit.Rate = 0 }},
		{"tracing without endpoint", func(c *Config) { c.Tracing.Enabled = true; c.Tracing.Endpoint = "" }},
		{"sample ratio above one", func(c *Config) { c.Tracing.SampleRatio = 1.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
