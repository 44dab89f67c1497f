// Package config loads mallardmetrics' configuration from environment
// variables (optionally bootstrapped from a .env file), layering koanf's
// env provider over a struct of defaults per spec §6.4.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "MALLARD_"

// Config holds every configurable value spec §6.4 defines.
type Config struct {
	Addr    string `koanf:"addr"`
	Env     string `koanf:"env"`
	DataDir string `koanf:"data_dir"`

	Secret string `koanf:"secret"`

	AllowedOrigins []string `koanf:"allowed_origins"`
	FilterBots     bool     `koanf:"filter_bots"`

	RateLimitRPS      float64 `koanf:"rate_limit_rps"`
	RateLimitBurst    float64 `koanf:"rate_limit_burst"`
	MaxBodyBytes      int64   `koanf:"max_body_bytes"`
	FlushThreshold    int     `koanf:"flush_threshold"`
	FlushIntervalSec  int     `koanf:"flush_interval_secs"`
	ShutdownTimeoutSec int    `koanf:"shutdown_timeout_secs"`
	RetentionDays     int     `koanf:"retention_days"`
	CacheTTLSec       int     `koanf:"cache_ttl_secs"`

	GeoIPDatabasePath string `koanf:"geoip_database_path"`

	LogLevel string `koanf:"log_level"`

	BehavioralQueriesEnabled bool `koanf:"behavioral_queries_enabled"`
}

// defaults mirrors spec §6.4's default column.
func defaults() Config {
	return Config{
		Addr:               "0.0.0.0:8000",
		Env:                "development",
		DataDir:            "data",
		AllowedOrigins:     nil,
		FilterBots:         true,
		RateLimitRPS:       0,
		RateLimitBurst:     20,
		MaxBodyBytes:       64 * 1024,
		FlushThreshold:     1000,
		FlushIntervalSec:   60,
		ShutdownTimeoutSec: 30,
		RetentionDays:      0,
		CacheTTLSec:        60,
		GeoIPDatabasePath:  "",
		LogLevel:           "info",

		BehavioralQueriesEnabled: true,
	}
}

// Load builds a Config from defaults overridden by MALLARD_-prefixed
// environment variables, bootstrapping a .env file first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	envProvider := env.ProviderWithValue(envPrefix, ".", func(key, value string) (string, interface{}) {
		normalized := strings.ToLower(strings.TrimPrefix(key, envPrefix))
		if normalized == "allowed_origins" {
			return normalized, strings.Split(value, ",")
		}
		return normalized, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load config from environment: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// FlushInterval is the periodic flush cadence as a time.Duration.
func (c *Config) FlushInterval() time.Duration {
	return time.Duration(c.FlushIntervalSec) * time.Second
}

// ShutdownTimeout bounds the final shutdown flush.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSec) * time.Second
}

// CacheTTL is the query-result cache's time-to-live.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSec) * time.Second
}

// IsDevelopment reports whether Env is "development".
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
