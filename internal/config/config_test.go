package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ModePoll, cfg.Source.Mode)
	assert.Equal(t, 20*time.Second, cfg.Source.PollInterval.Std())
	assert.Equal(t, 20*time.Second, cfg.Persist.Interval.Std())
	assert.Equal(t, 30*time.Second, cfg.Collect.StatsInterval.Std())
	assert.Equal(t, 1*time.Second, cfg.Server.BroadcastInterval.Std())
	assert.Equal(t, 5*time.Second, cfg.Source.ReconnectBase.Std())
	assert.Equal(t, 60*time.Second, cfg.Source.ReconnectMax.Std())
	assert.Equal(t, 1000, cfg.Collect.TradeWindow)
	assert.Equal(t, ":8080", cfg.Server.Listen)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
source:
  mode: stream
  ws_endpoint: wss://example.test/feed
  poll_interval: 45s
collect:
  trade_window: 50
  min_market_cap: "5000"
persist:
  formats: [json, csv]
server:
  listen: ":9090"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ModeStream, cfg.Source.Mode)
	assert.Equal(t, 45*time.Second, cfg.Source.PollInterval.Std())
	assert.Equal(t, 50, cfg.Collect.TradeWindow)
	assert.Equal(t, "5000", cfg.MinMarketCapDecimal().String())
	assert.Equal(t, []string{"json", "csv"}, cfg.Persist.Formats)
	assert.Equal(t, ":9090", cfg.Server.Listen)
	// Untouched fields keep their defaults.
	assert.Equal(t, 24, cfg.Collect.NewLaunchHours)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("source:\n  api_key: from-file\n"), 0o644))

	t.Setenv("PUMPWATCH_API_KEY", "from-env")
	t.Setenv("PUMPWATCH_TRADE_WINDOW", "77")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Source.APIKey)
	assert.Equal(t, 77, cfg.Collect.TradeWindow)
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown mode", func(c *Config) { c.Source.Mode = "carrier-pigeon" }},
		{"stream without endpoint", func(c *Config) { c.Source.Mode = ModeStream; c.Source.WSEndpoint = "" }},
		{"poll without base url", func(c *Config) { c.Source.BaseURL = "" }},
		{"zero trade window", func(c *Config) { c.Collect.TradeWindow = 0 }},
		{"bad threshold", func(c *Config) { c.Collect.MinMarketCap = "lots" }},
		{"unknown format", func(c *Config) { c.Persist.Formats = []string{"xml"} }},
		{"no sinks", func(c *Config) { c.Persist.Formats = nil }},
		{"no listen addr", func(c *Config) { c.Server.Listen = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("source: [not a map"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestDuration_Unmarshal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("persist:\n  interval: not-a-duration\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
