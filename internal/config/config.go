// Package config defines the collector configuration and provides
// loading and validation helpers.
package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Source modes.
const (
	ModePoll   = "poll"
	ModeStream = "stream"
)

// Duration wraps time.Duration so YAML values like "20s" parse.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the root configuration. Fields come from a YAML file and
// are then overridden by PUMPWATCH_* environment variables.
type Config struct {
	Source  SourceConfig  `yaml:"source"`
	Collect CollectConfig `yaml:"collect"`
	Persist PersistConfig `yaml:"persist"`
	Server  ServerConfig  `yaml:"server"`
}

// SourceConfig describes the upstream gateway.
type SourceConfig struct {
	// Mode selects poll (REST lists) or stream (WebSocket push).
	Mode          string   `yaml:"mode"`
	BaseURL       string   `yaml:"base_url"`
	WSEndpoint    string   `yaml:"ws_endpoint"`
	APIKey        string   `yaml:"api_key"`
	RateLimit     float64  `yaml:"rate_limit"`
	PollInterval  Duration `yaml:"poll_interval"`
	PageLimit     int      `yaml:"page_limit"`
	ReconnectBase Duration `yaml:"reconnect_base"`
	ReconnectMax  Duration `yaml:"reconnect_max"`
}

// CollectConfig tunes what gets kept.
type CollectConfig struct {
	TradeWindow    int      `yaml:"trade_window"`
	TradesPerPoll  int      `yaml:"trades_per_poll"`
	NewLaunchHours int      `yaml:"new_launch_hours"`
	MinMarketCap   string   `yaml:"min_market_cap"`
	MinVolume      string   `yaml:"min_volume"`
	StatsInterval  Duration `yaml:"stats_interval"`
}

// PersistConfig selects persistence sinks. File formats run always;
// the database sinks attach only when their DSN is set.
type PersistConfig struct {
	Interval      Duration `yaml:"interval"`
	Dir           string   `yaml:"dir"`
	Formats       []string `yaml:"formats"`
	PostgresDSN   string   `yaml:"postgres_dsn"`
	ClickHouseDSN string   `yaml:"clickhouse_dsn"`
}

// ServerConfig tunes the HTTP surface.
type ServerConfig struct {
	Listen            string   `yaml:"listen"`
	BroadcastInterval Duration `yaml:"broadcast_interval"`
	NewFlagTTL        Duration `yaml:"new_flag_ttl"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Source: SourceConfig{
			Mode:          ModePoll,
			BaseURL:       "https://frontend-api.pump.fun",
			WSEndpoint:    "wss://pumpportal.fun/api/data",
			RateLimit:     5,
			PollInterval:  Duration(20 * time.Second),
			PageLimit:     100,
			ReconnectBase: Duration(5 * time.Second),
			ReconnectMax:  Duration(60 * time.Second),
		},
		Collect: CollectConfig{
			TradeWindow:    1000,
			TradesPerPoll:  10,
			NewLaunchHours: 24,
			StatsInterval:  Duration(30 * time.Second),
		},
		Persist: PersistConfig{
			Interval: Duration(20 * time.Second),
			Dir:      "data",
			Formats:  []string{"json"},
		},
		Server: ServerConfig{
			Listen:            ":8080",
			BroadcastInterval: Duration(1 * time.Second),
			NewFlagTTL:        Duration(30 * time.Second),
		},
	}
}

// Validate checks the configuration for values the collector cannot
// run with.
func (c *Config) Validate() error {
	switch c.Source.Mode {
	case ModePoll:
		if c.Source.BaseURL == "" {
			return fmt.Errorf("source.base_url is required in poll mode")
		}
	case ModeStream:
		if c.Source.WSEndpoint == "" {
			return fmt.Errorf("source.ws_endpoint is required in stream mode")
		}
	default:
		return fmt.Errorf("source.mode must be %q or %q, got %q", ModePoll, ModeStream, c.Source.Mode)
	}

	if c.Collect.TradeWindow <= 0 {
		return fmt.Errorf("collect.trade_window must be positive")
	}
	if c.Collect.NewLaunchHours <= 0 {
		return fmt.Errorf("collect.new_launch_hours must be positive")
	}
	for _, field := range []struct{ name, val string }{
		{"collect.min_market_cap", c.Collect.MinMarketCap},
		{"collect.min_volume", c.Collect.MinVolume},
	} {
		if field.val == "" {
			continue
		}
		if _, err := decimal.NewFromString(field.val); err != nil {
			return fmt.Errorf("%s: invalid decimal %q", field.name, field.val)
		}
	}

	if len(c.Persist.Formats) == 0 && c.Persist.PostgresDSN == "" && c.Persist.ClickHouseDSN == "" {
		return fmt.Errorf("persist: at least one sink is required")
	}
	for _, f := range c.Persist.Formats {
		if f != "json" && f != "csv" {
			return fmt.Errorf("persist.formats: unknown format %q", f)
		}
	}

	if c.Server.Listen == "" {
		return fmt.Errorf("server.listen is required")
	}
	return nil
}

// MinMarketCapDecimal returns the parsed threshold, zero when unset.
func (c *Config) MinMarketCapDecimal() decimal.Decimal {
	return parseDecimal(c.Collect.MinMarketCap)
}

// MinVolumeDecimal returns the parsed threshold, zero when unset.
func (c *Config) MinVolumeDecimal() decimal.Decimal {
	return parseDecimal(c.Collect.MinVolume)
}

func parseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
