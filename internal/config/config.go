package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port           int           `yaml:"port"`
	AdminAPIKey    string        `yaml:"admin_api_key"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	PoolSize int    `yaml:"pool_size"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type SigningConfig struct {
	PrivateKeyFile string `yaml:"private_key_file"` // empty on verify-only deployments
	PublicKeyFile  string `yaml:"public_key_file"`
	IssuerTag      string `yaml:"issuer_tag"`
	Audience       string `yaml:"audience"`
}

type PolicyConfig struct {
	// OneActivePerSubjectTier rejects issuance while the subject already
	// holds a non-revoked, non-expired license of the same tier.
	OneActivePerSubjectTier bool `yaml:"one_active_per_subject_tier"`
}

type RateLimitConfig struct {
	VerifyPerMinute int `yaml:"verify_per_minute"` // 0 disables limiting
}

type ExpiryConfig struct {
	ScanInterval time.Duration `yaml:"scan_interval"`
	AlertWindow  time.Duration `yaml:"alert_window"`
}

type AlertsConfig struct {
	TelegramToken  string `yaml:"telegram_token"` // empty disables alerts
	TelegramChatID int64  `yaml:"telegram_chat_id"`
}

type WorkerConfig struct {
	AuditWriters int `yaml:"audit_writers"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Signing   SigningConfig   `yaml:"signing"`
	Policy    PolicyConfig    `yaml:"policy"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Expiry    ExpiryConfig    `yaml:"expiry"`
	Alerts    AlertsConfig    `yaml:"alerts"`
	Worker    WorkerConfig    `yaml:"worker"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads and validates the yaml config once at process start.
// The resulting struct is passed by reference into constructors; nothing
// in the core reads configuration ambiently.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RequestTimeout <= 0 {
		cfg.Server.RequestTimeout = 10 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.PoolSize <= 0 {
		cfg.Database.PoolSize = 10
	}
	if cfg.Signing.IssuerTag == "" {
		cfg.Signing.IssuerTag = "license-authority"
	}
	if cfg.Signing.Audience == "" {
		cfg.Signing.Audience = "license-authority/clients"
	}
	if cfg.Expiry.ScanInterval <= 0 {
		cfg.Expiry.ScanInterval = time.Hour
	}
	if cfg.Expiry.AlertWindow <= 0 {
		cfg.Expiry.AlertWindow = 7 * 24 * time.Hour
	}
	if cfg.Worker.AuditWriters <= 0 {
		cfg.Worker.AuditWriters = 4
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Signing.PublicKeyFile == "" {
		return nil, errors.New("signing.public_key_file is required")
	}
	if cfg.Server.AdminAPIKey == "" {
		return nil, errors.New("server.admin_api_key is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
