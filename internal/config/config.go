package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port          int              `json:"port"`
	LogConfig     logger.LogConfig `json:"log_config"`
	Database      DatabaseConfig   `json:"database"`
	Generation    GenerationConfig `json:"generation"`
	Pricing       PricingConfig    `json:"pricing"`
	Schedule      ScheduleConfig   `json:"schedule"`
	CORSAllowlist []string         `json:"cors_allowlist"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

type GenerationConfig struct {
	BaseURL        string `json:"base_url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

type PricingConfig struct {
	CacheSize       int `json:"cache_size"`
	CacheTTLSeconds int `json:"cache_ttl_seconds"`
}

type ScheduleConfig struct {
	SourceCleanupSpec     string `json:"source_cleanup_spec"`
	SourceCleanupMinHours int    `json:"source_cleanup_min_hours"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.Generation.BaseURL == "" {
		return nil, fmt.Errorf("generation.base_url is required")
	}
	if cfg.Generation.TimeoutSeconds == 0 {
		cfg.Generation.TimeoutSeconds = 30
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.Pricing.CacheSize == 0 {
		cfg.Pricing.CacheSize = 256
	}
	if cfg.Pricing.CacheTTLSeconds == 0 {
		cfg.Pricing.CacheTTLSeconds = 60
	}
	if cfg.Schedule.SourceCleanupSpec == "" {
		cfg.Schedule.SourceCleanupSpec = "0 4 * * *"
	}
	if cfg.Schedule.SourceCleanupMinHours == 0 {
		cfg.Schedule.SourceCleanupMinHours = 24
	}
	return &cfg, nil
}
