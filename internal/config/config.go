// Package config defines all configuration for the book engine. Config is
// loaded from a YAML file (default: configs/config.yaml) with sensitive
// fields overridable via POLY_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Book      BookConfig      `mapstructure:"book"`
	Market    MarketConfig    `mapstructure:"market"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
}

// APIConfig holds Polymarket API endpoints. Only the market-data surface
// is used: GET /book for snapshots, the Gamma API for instrument
// descriptors, and the market WS channel for deltas.
type APIConfig struct {
	CLOBBaseURL  string `mapstructure:"clob_base_url"`
	GammaBaseURL string `mapstructure:"gamma_base_url"`
	WSMarketURL  string `mapstructure:"ws_market_url"`
}

// BookConfig tunes the Book Registry's depth and staleness. The engine reads
// MaxDepthPerSide and StaleIdleThreshold; DefaultFeeBps is only range-checked
// by Validate and EnforceTickAlignment is not read at all: simulate and
// recommend requests carry their own fee_bps, and tick alignment is always
// enforced by the decoder.
type BookConfig struct {
	MaxDepthPerSide      int           `mapstructure:"max_depth_per_side"`
	StaleIdleThreshold   time.Duration `mapstructure:"stale_idle_threshold"`
	DefaultFeeBps        int64         `mapstructure:"default_fee_bps"`
	EnforceTickAlignment bool          `mapstructure:"enforce_tick_alignment"`
}

// MarketConfig controls which instruments the engine tracks. The engine
// polls the Gamma API for each listed market's tick-size descriptor and
// registers it with the Book Registry before subscribing to its feed.
type MarketConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	ConditionIDs []string      `mapstructure:"condition_ids"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DashboardConfig controls the query-surface HTTP/WS server.
type DashboardConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load reads config from a YAML file with env var overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("POLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if lvl := os.Getenv("POLY_LOG_LEVEL"); lvl != "" {
		cfg.Logging.Level = lvl
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.API.CLOBBaseURL == "" {
		return fmt.Errorf("api.clob_base_url is required")
	}
	if c.API.GammaBaseURL == "" {
		return fmt.Errorf("api.gamma_base_url is required")
	}
	if c.Book.MaxDepthPerSide <= 0 {
		return fmt.Errorf("book.max_depth_per_side must be > 0")
	}
	if c.Book.StaleIdleThreshold <= 0 {
		return fmt.Errorf("book.stale_idle_threshold must be > 0")
	}
	if c.Book.DefaultFeeBps < 0 {
		return fmt.Errorf("book.default_fee_bps must be >= 0")
	}
	return nil
}
