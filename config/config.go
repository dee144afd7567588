package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"safeguard-backend/internal/channel"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Channels   ChannelsConfig   `yaml:"channels"`
	Tracker    TrackerConfig    `yaml:"tracker"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RequestIPHeader string  `yaml:"request_ip_header"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"` // postgres (default) or sqlite
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	EnableTimescale        bool   `yaml:"enable_timescale"`
}

// ChannelsConfig wires the SMS delivery channels. Primary is always tried
// first; the fallback only runs after a primary failure.
type ChannelsConfig struct {
	Primary            channel.BulkSMSConfig `yaml:"primary"`
	Fallback           channel.TwilioConfig  `yaml:"fallback"`
	SendTimeoutSeconds int                   `yaml:"send_timeout_seconds"`
	SendTimeout        time.Duration         `yaml:"-"` // Ignored by YAML parser
}

// TrackerConfig holds the location ingestion configuration.
type TrackerConfig struct {
	HistoryKeep int `yaml:"history_keep"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or console
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}

	if cfg.Channels.SendTimeoutSeconds <= 0 {
		cfg.Channels.SendTimeoutSeconds = 15
	}
	cfg.Channels.SendTimeout = time.Duration(cfg.Channels.SendTimeoutSeconds) * time.Second

	if cfg.Tracker.HistoryKeep <= 0 {
		cfg.Tracker.HistoryKeep = 500
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		cfg.WorkerPool.Size = 1
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	return &cfg, nil
}
