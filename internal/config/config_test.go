// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set %s: %v", key, err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.DBDriver != "sqlite" {
		t.Errorf("DBDriver = %q, want %q", cfg.DBDriver, "sqlite")
	}
	if cfg.DBDSN != "./data/folio.db" {
		t.Errorf("DBDSN = %q, want %q", cfg.DBDSN, "./data/folio.db")
	}
	if cfg.StorageDriver != "local" {
		t.Errorf("StorageDriver = %q, want %q", cfg.StorageDriver, "local")
	}
	if cfg.Bucket != "media" {
		t.Errorf("Bucket = %q, want %q", cfg.Bucket, "media")
	}
	if cfg.ServerHost != "localhost" {
		t.Errorf("ServerHost = %q, want %q", cfg.ServerHost, "localhost")
	}
	if cfg.ServerPort != 8080 {
		t.Errorf("ServerPort = %d, want %d", cfg.ServerPort, 8080)
	}
	if cfg.Env != "development" {
		t.Errorf("Env = %q, want %q", cfg.Env, "development")
	}
	if cfg.PageSize != 24 {
		t.Errorf("PageSize = %d, want %d", cfg.PageSize, 24)
	}
	if cfg.SnapshotCron != "0 */6 * * *" {
		t.Errorf("SnapshotCron = %q, want %q", cfg.SnapshotCron, "0 */6 * * *")
	}
	if cfg.AdminEnabled() {
		t.Error("AdminEnabled() = true, want false")
	}
	if cfg.UseRedisCache() {
		t.Error("UseRedisCache() = true, want false")
	}
}

func TestLoad_CustomValues(t *testing.T) {
	os.Clearenv()
	hash, err := bcrypt.GenerateFromPassword([]byte("admin-token"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("GenerateFromPassword: %v", err)
	}
	setEnv(t, "FOLIO_DB_DRIVER", "PGX")
	setEnv(t, "FOLIO_DB_DSN", "postgres://folio@localhost/folio")
	setEnv(t, "FOLIO_STORAGE_DRIVER", "s3")
	setEnv(t, "FOLIO_S3_ENDPOINT", "localhost:9000")
	setEnv(t, "FOLIO_S3_ACCESS_KEY", "minio")
	setEnv(t, "FOLIO_S3_SECRET_KEY", "minio-secret")
	setEnv(t, "FOLIO_S3_USE_SSL", "false")
	setEnv(t, "FOLIO_REDIS_URL", "redis://localhost:6379/0")
	setEnv(t, "FOLIO_CACHE_TTL", "60")
	setEnv(t, "FOLIO_ADMIN_TOKEN_HASH", string(hash))
	setEnv(t, "FOLIO_LOG_LEVEL", "Debug")
	setEnv(t, "FOLIO_PAGE_SIZE", "12")
	setEnv(t, "FOLIO_SERVER_PORT", "3000")
	setEnv(t, "FOLIO_WEBHOOK_URLS", "https://hooks.example.com/rebuild, ,http://localhost:9999/hook")
	setEnv(t, "FOLIO_WEBHOOK_SECRET", "whsec")
	setEnv(t, "FOLIO_WEBHOOK_EVENTS", "record.published,record.deleted")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.DBDriver != "pgx" {
		t.Errorf("DBDriver = %q, want %q", cfg.DBDriver, "pgx")
	}
	if cfg.S3UseSSL {
		t.Error("S3UseSSL = true, want false")
	}
	if !cfg.UseRedisCache() {
		t.Error("UseRedisCache() = false, want true")
	}
	if !cfg.AdminEnabled() {
		t.Error("AdminEnabled() = false, want true")
	}
	if cfg.CacheTTLDuration() != time.Minute {
		t.Errorf("CacheTTLDuration() = %v, want %v", cfg.CacheTTLDuration(), time.Minute)
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("SlogLevel() = %v, want %v", cfg.SlogLevel(), slog.LevelDebug)
	}
	if cfg.PageSize != 12 {
		t.Errorf("PageSize = %d, want %d", cfg.PageSize, 12)
	}
	if cfg.ServerAddr() != "localhost:3000" {
		t.Errorf("ServerAddr() = %q, want %q", cfg.ServerAddr(), "localhost:3000")
	}
	if !cfg.WebhooksEnabled() || len(cfg.WebhookURLs) != 2 {
		t.Errorf("WebhookURLs = %q, want 2 entries", cfg.WebhookURLs)
	}
	if len(cfg.WebhookEvents) != 2 || cfg.WebhookEvents[1] != "record.deleted" {
		t.Errorf("WebhookEvents = %q", cfg.WebhookEvents)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown db driver", map[string]string{"FOLIO_DB_DRIVER": "oracle"}},
		{"empty dsn", map[string]string{"FOLIO_DB_DSN": " "}},
		{"unknown storage driver", map[string]string{"FOLIO_STORAGE_DRIVER": "ftp"}},
		{"s3 without credentials", map[string]string{"FOLIO_STORAGE_DRIVER": "s3", "FOLIO_S3_ENDPOINT": "localhost:9000"}},
		{"relative public url", map[string]string{"FOLIO_PUBLIC_BASE_URL": "/storage/v1"}},
		{"blank bucket", map[string]string{"FOLIO_BUCKET": " "}},
		{"bad snapshot cron", map[string]string{"FOLIO_SNAPSHOT_CRON": "every six hours"}},
		{"zero page size", map[string]string{"FOLIO_PAGE_SIZE": "0"}},
		{"huge page size", map[string]string{"FOLIO_PAGE_SIZE": "1000"}},
		{"bad log level", map[string]string{"FOLIO_LOG_LEVEL": "verbose"}},
		{"plain admin token", map[string]string{"FOLIO_ADMIN_TOKEN_HASH": "secret"}},
		{"zero rps", map[string]string{"FOLIO_API_RPS": "0"}},
		{"negative retention", map[string]string{"FOLIO_EVENT_RETENTION_DAYS": "-1"}},
		{"non-numeric port", map[string]string{"FOLIO_SERVER_PORT": "http"}},
		{"relative webhook url", map[string]string{"FOLIO_WEBHOOK_URLS": "/hook"}},
		{"unknown webhook event", map[string]string{"FOLIO_WEBHOOK_URLS": "https://x.test/h", "FOLIO_WEBHOOK_EVENTS": "page.created"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			for k, v := range tt.env {
				setEnv(t, k, v)
			}

			if _, err := Load(); err == nil {
				t.Fatal("Load() should fail")
			}
		})
	}
}

func TestConfig_IsDevelopment(t *testing.T) {
	tests := []struct {
		env  string
		want bool
	}{
		{"development", true},
		{"production", false},
		{"staging", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := Config{Env: tt.env}
			if got := cfg.IsDevelopment(); got != tt.want {
				t.Errorf("IsDevelopment() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfig_EventRetention(t *testing.T) {
	tests := []struct {
		days int
		want time.Duration
	}{
		{0, 0},
		{1, 24 * time.Hour},
		{30, 30 * 24 * time.Hour},
	}

	for _, tt := range tests {
		cfg := Config{EventRetentionDays: tt.days}
		if got := cfg.EventRetention(); got != tt.want {
			t.Errorf("EventRetention(%d days) = %v, want %v", tt.days, got, tt.want)
		}
	}
}

func TestConfig_SlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := Config{LogLevel: tt.level}
			if got := cfg.SlogLevel(); got != tt.want {
				t.Errorf("SlogLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}
