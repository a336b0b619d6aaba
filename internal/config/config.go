// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/robfig/cron/v3"

	"github.com/olegiv/folio-go/internal/auth"
	"github.com/olegiv/folio-go/internal/webhook"
)

// Supported backend drivers
var (
	dbDrivers      = []string{"sqlite", "pgx", "postgres", "mysql"}
	storageDrivers = []string{"local", "s3"}
	logLevels      = []string{"debug", "info", "warn", "error"}
)

// Page size bounds
const (
	MinPageSize = 1
	MaxPageSize = 200
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	Env        string `env:"FOLIO_ENV" envDefault:"development"`
	LogLevel   string `env:"FOLIO_LOG_LEVEL" envDefault:"info"`
	ServerHost string `env:"FOLIO_SERVER_HOST" envDefault:"localhost"`
	ServerPort int    `env:"FOLIO_SERVER_PORT" envDefault:"8080"`

	// Database
	DBDriver string `env:"FOLIO_DB_DRIVER" envDefault:"sqlite"`
	DBDSN    string `env:"FOLIO_DB_DSN" envDefault:"./data/folio.db"`

	// Media bucket
	StorageDriver string `env:"FOLIO_STORAGE_DRIVER" envDefault:"local"`
	StorageDir    string `env:"FOLIO_STORAGE_DIR" envDefault:"./data/storage"`
	Bucket        string `env:"FOLIO_BUCKET" envDefault:"media"`
	PublicBaseURL string `env:"FOLIO_PUBLIC_BASE_URL" envDefault:"http://localhost:8080/storage/v1"`
	S3Endpoint    string `env:"FOLIO_S3_ENDPOINT"`
	S3AccessKey   string `env:"FOLIO_S3_ACCESS_KEY"`
	S3SecretKey   string `env:"FOLIO_S3_SECRET_KEY"`
	S3Region      string `env:"FOLIO_S3_REGION"`
	S3UseSSL      bool   `env:"FOLIO_S3_USE_SSL" envDefault:"true"`

	// Cache configuration
	RedisURL     string `env:"FOLIO_REDIS_URL"`                          // Optional Redis URL for shared caching
	CachePrefix  string `env:"FOLIO_CACHE_PREFIX" envDefault:"folio:"`   // Redis key prefix
	CacheTTL     int    `env:"FOLIO_CACHE_TTL" envDefault:"300"`         // Catalog cache TTL in seconds
	CacheMaxSize int    `env:"FOLIO_CACHE_MAX_SIZE" envDefault:"10000"`  // Max memory cache entries

	// Admin bearer token, stored as an argon2id or bcrypt hash. Empty disables admin routes.
	AdminTokenHash string `env:"FOLIO_ADMIN_TOKEN_HASH"`

	// Catalog
	PageSize     int    `env:"FOLIO_PAGE_SIZE" envDefault:"24"`
	FallbackPath string `env:"FOLIO_FALLBACK_PATH" envDefault:"./data/fallback.yaml"`
	SnapshotCron string `env:"FOLIO_SNAPSHOT_CRON" envDefault:"0 */6 * * *"`

	// Event log retention in days; 0 keeps events forever.
	EventRetentionDays int `env:"FOLIO_EVENT_RETENTION_DAYS" envDefault:"30"`

	// API rate limiting per client IP
	APIRPS   float64 `env:"FOLIO_API_RPS" envDefault:"10"`
	APIBurst int     `env:"FOLIO_API_BURST" envDefault:"20"`

	// Change notifications. No URLs disables webhooks.
	WebhookURLs   []string `env:"FOLIO_WEBHOOK_URLS" envSeparator:","`
	WebhookSecret string   `env:"FOLIO_WEBHOOK_SECRET"`
	WebhookEvents []string `env:"FOLIO_WEBHOOK_EVENTS" envSeparator:","` // Empty means every event
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedisCache returns true if Redis caching is configured.
func (c Config) UseRedisCache() bool {
	return c.RedisURL != ""
}

// AdminEnabled returns true if an admin token hash is configured.
func (c Config) AdminEnabled() bool {
	return c.AdminTokenHash != ""
}

// WebhooksEnabled returns true if at least one webhook URL is configured.
func (c Config) WebhooksEnabled() bool {
	return len(c.WebhookURLs) > 0
}

// CacheTTLDuration returns the catalog cache TTL.
func (c Config) CacheTTLDuration() time.Duration {
	return time.Duration(c.CacheTTL) * time.Second
}

// EventRetention returns how long events are kept, or 0 for forever.
func (c Config) EventRetention() time.Duration {
	return time.Duration(c.EventRetentionDays) * 24 * time.Hour
}

// SlogLevel maps LogLevel to a slog level.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	cfg.StorageDriver = strings.ToLower(strings.TrimSpace(cfg.StorageDriver))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.WebhookURLs = trimList(cfg.WebhookURLs)
	cfg.WebhookEvents = trimList(cfg.WebhookEvents)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if !cfg.AdminEnabled() {
		slog.Warn("FOLIO_ADMIN_TOKEN_HASH is not set; admin routes are disabled; " +
			"generate one with: folio hash-token")
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if !oneOf(c.DBDriver, dbDrivers) {
		return fmt.Errorf("FOLIO_DB_DRIVER must be one of %s, got %q", strings.Join(dbDrivers, ", "), c.DBDriver)
	}
	if strings.TrimSpace(c.DBDSN) == "" {
		return fmt.Errorf("FOLIO_DB_DSN must not be empty")
	}
	if !oneOf(c.StorageDriver, storageDrivers) {
		return fmt.Errorf("FOLIO_STORAGE_DRIVER must be one of %s, got %q", strings.Join(storageDrivers, ", "), c.StorageDriver)
	}
	if !oneOf(c.LogLevel, logLevels) {
		return fmt.Errorf("FOLIO_LOG_LEVEL must be one of %s, got %q", strings.Join(logLevels, ", "), c.LogLevel)
	}
	if strings.TrimSpace(c.Bucket) == "" {
		return fmt.Errorf("FOLIO_BUCKET must not be empty")
	}
	if u, err := url.Parse(c.PublicBaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("FOLIO_PUBLIC_BASE_URL must be an absolute http(s) URL, got %q", c.PublicBaseURL)
	}
	if c.StorageDriver == "s3" && (c.S3Endpoint == "" || c.S3AccessKey == "" || c.S3SecretKey == "") {
		return fmt.Errorf("FOLIO_S3_ENDPOINT, FOLIO_S3_ACCESS_KEY and FOLIO_S3_SECRET_KEY are required for the s3 storage driver")
	}
	if c.PageSize < MinPageSize || c.PageSize > MaxPageSize {
		return fmt.Errorf("FOLIO_PAGE_SIZE must be between %d and %d, got %d", MinPageSize, MaxPageSize, c.PageSize)
	}
	if c.CacheTTL < 0 || c.CacheMaxSize < 0 {
		return fmt.Errorf("FOLIO_CACHE_TTL and FOLIO_CACHE_MAX_SIZE must not be negative")
	}
	if c.SnapshotCron != "" {
		if _, err := cron.ParseStandard(c.SnapshotCron); err != nil {
			return fmt.Errorf("FOLIO_SNAPSHOT_CRON is not a valid cron expression: %w", err)
		}
	}
	if c.EventRetentionDays < 0 {
		return fmt.Errorf("FOLIO_EVENT_RETENTION_DAYS must not be negative")
	}
	if c.APIRPS <= 0 || c.APIBurst <= 0 {
		return fmt.Errorf("FOLIO_API_RPS and FOLIO_API_BURST must be positive")
	}
	for _, raw := range c.WebhookURLs {
		if u, err := url.Parse(raw); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("FOLIO_WEBHOOK_URLS entries must be absolute http(s) URLs, got %q", raw)
		}
	}
	for _, ev := range c.WebhookEvents {
		if !oneOf(ev, webhook.AllEvents) {
			return fmt.Errorf("FOLIO_WEBHOOK_EVENTS must list events from %s, got %q", strings.Join(webhook.AllEvents, ", "), ev)
		}
	}
	if c.WebhooksEnabled() && c.WebhookSecret == "" {
		slog.Warn("FOLIO_WEBHOOK_SECRET is not set; webhook payloads are signed with an empty key")
	}
	if c.AdminEnabled() {
		if err := auth.ValidateHash(c.AdminTokenHash); err != nil {
			return fmt.Errorf("FOLIO_ADMIN_TOKEN_HASH is not an argon2id or bcrypt hash: %w", err)
		}
	}
	return nil
}

func oneOf(s string, allowed []string) bool {
	for _, a := range allowed {
		if s == a {
			return true
		}
	}
	return false
}

// trimList trims every entry and drops empty ones.
func trimList(list []string) []string {
	var out []string
	for _, s := range list {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
