package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	DataSource struct {
		QuoteBaseURL   string `yaml:"quote_base_url"`
		HistoryBaseURL string `yaml:"history_base_url"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"data_source"`
	Refresh struct {
		IntervalSeconds int  `yaml:"interval_seconds"`
		RunOnStart      bool `yaml:"run_on_start"`
	} `yaml:"refresh"`
	Market struct {
		Timezone      string `yaml:"timezone"`
		EstimateStart string `yaml:"estimate_start"`
		OrderCutoff   string `yaml:"order_cutoff"`
	} `yaml:"market"`
	Trading struct {
		StrictSell bool `yaml:"strict_sell"`
		// Days an unresolved pending intent is retried; 0 retries forever.
		PendingExpiryDays int `yaml:"pending_expiry_days"`
	} `yaml:"trading"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Proxy string `yaml:"proxy"`
}

// MinRefreshIntervalSeconds is the floor applied to the refresh interval,
// both from config and from the persisted user setting.
const MinRefreshIntervalSeconds = 5

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("FUNDWATCH_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("QUOTE_BASE_URL"); v != "" {
		cfg.DataSource.QuoteBaseURL = v
	}
	if v := os.Getenv("HISTORY_BASE_URL"); v != "" {
		cfg.DataSource.HistoryBaseURL = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("REFRESH_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Refresh.IntervalSeconds = n
		}
	}
	if v := os.Getenv("RUN_ON_START"); v == "true" {
		cfg.Refresh.RunOnStart = true
	}

	// Defaults
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8310"
	}
	if cfg.DataSource.QuoteBaseURL == "" {
		cfg.DataSource.QuoteBaseURL = "https://fundgz.1234567.com.cn"
	}
	if cfg.DataSource.HistoryBaseURL == "" {
		cfg.DataSource.HistoryBaseURL = "https://api.fund.eastmoney.com"
	}
	if cfg.DataSource.TimeoutSeconds == 0 {
		cfg.DataSource.TimeoutSeconds = 10
	}
	if cfg.Refresh.IntervalSeconds == 0 {
		cfg.Refresh.IntervalSeconds = 30
	}
	if cfg.Market.Timezone == "" {
		cfg.Market.Timezone = "Asia/Shanghai"
	}
	if cfg.Market.EstimateStart == "" {
		cfg.Market.EstimateStart = "09:30"
	}
	if cfg.Market.OrderCutoff == "" {
		cfg.Market.OrderCutoff = "15:00"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/fundwatch.db"
	}

	return cfg, nil
}

// Validate checks that all required fields are set and sane.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.DataSource.QuoteBaseURL == "" {
		return fmt.Errorf("data_source.quote_base_url is required")
	}
	if c.DataSource.TimeoutSeconds <= 0 {
		return fmt.Errorf("data_source.timeout_seconds must be positive")
	}
	if c.Refresh.IntervalSeconds < MinRefreshIntervalSeconds {
		return fmt.Errorf("refresh.interval_seconds must be at least %d", MinRefreshIntervalSeconds)
	}
	if c.Trading.PendingExpiryDays < 0 {
		return fmt.Errorf("trading.pending_expiry_days must not be negative")
	}
	return nil
}
