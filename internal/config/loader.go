package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load builds the configuration: defaults, then the YAML file at path
// (skipped when path is empty), then PUMPWATCH_* environment variable
// overrides. A .env file in the working directory is loaded first so
// it can supply those variables. The result is not validated; call
// Config.Validate after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Load .env if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// applyEnvOverrides overwrites fields whose PUMPWATCH_* variable is set,
// so operators can inject secrets without touching the YAML file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Source.Mode, "PUMPWATCH_MODE")
	setStr(&cfg.Source.BaseURL, "PUMPWATCH_BASE_URL")
	setStr(&cfg.Source.WSEndpoint, "PUMPWATCH_WS_ENDPOINT")
	setStr(&cfg.Source.APIKey, "PUMPWATCH_API_KEY")

	setInt(&cfg.Collect.TradeWindow, "PUMPWATCH_TRADE_WINDOW")
	setInt(&cfg.Collect.NewLaunchHours, "PUMPWATCH_NEW_LAUNCH_HOURS")
	setStr(&cfg.Collect.MinMarketCap, "PUMPWATCH_MIN_MARKET_CAP")
	setStr(&cfg.Collect.MinVolume, "PUMPWATCH_MIN_VOLUME")

	setStr(&cfg.Persist.Dir, "PUMPWATCH_DATA_DIR")
	setStr(&cfg.Persist.PostgresDSN, "PUMPWATCH_POSTGRES_DSN")
	setStr(&cfg.Persist.ClickHouseDSN, "PUMPWATCH_CLICKHOUSE_DSN")

	setStr(&cfg.Server.Listen, "PUMPWATCH_LISTEN")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
