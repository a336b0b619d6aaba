// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/olegiv/folio-go/internal/cache"
	"github.com/olegiv/folio-go/internal/catalog"
	"github.com/olegiv/folio-go/internal/config"
	"github.com/olegiv/folio-go/internal/imaging"
	"github.com/olegiv/folio-go/internal/logging"
	"github.com/olegiv/folio-go/internal/media"
	"github.com/olegiv/folio-go/internal/model"
	"github.com/olegiv/folio-go/internal/service"
	"github.com/olegiv/folio-go/internal/storage"
	"github.com/olegiv/folio-go/internal/store"
	"github.com/olegiv/folio-go/internal/webhook"
)

// imageQuality is the JPEG quality used when re-encoding uploads.
const imageQuality = 85

// app holds the wired dependencies shared by every command.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	db      *store.DB
	store   *store.Store
	events  *service.EventService
	cache   cache.Cacher
	backend *cache.CatalogCache

	resolver   *media.Resolver
	normalizer *catalog.Normalizer
	bucket     storage.Bucket
	local      *storage.Local // nil unless the local driver is used

	coordinators map[model.Kind]*service.Coordinator
	snapshots    *service.Snapshotter

	webhooks  *webhook.Dispatcher // nil unless webhooks are enabled
	debouncer *webhook.Debouncer
}

type appOptions struct {
	// migrate runs pending migrations before anything else touches the
	// database.
	migrate bool
	// withBucket connects the media bucket. Read-only commands skip it.
	withBucket bool
	// withWebhooks starts the change notification dispatcher.
	withWebhooks bool
}

// newApp loads configuration and wires the catalog engine.
func newApp(ctx context.Context, opts appOptions) (*app, error) {
	// Load .env files if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})
	logger := slog.New(textHandler)
	slog.SetDefault(logger)

	driver, err := store.ParseDriver(cfg.DBDriver)
	if err != nil {
		return nil, err
	}
	if driver == store.DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.DBDSN), 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	slog.Info("initializing database", "driver", driver)
	db, err := store.Open(ctx, driver, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("initializing database: %w", err)
	}
	a := &app{cfg: cfg, db: db}

	if opts.migrate {
		slog.Info("running database migrations")
		if err := store.Migrate(db); err != nil {
			a.close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	a.store = store.New(db)

	// Upgrade logger to also write WARN and ERROR logs to the event log
	logger = slog.New(logging.NewEventLogHandler(textHandler, a.store))
	slog.SetDefault(logger)
	a.logger = logger
	a.events = service.NewEventService(a.store, logger)

	cacheCfg := cache.CacheConfig{
		Type:             cache.CacheBackendMemory,
		RedisURL:         cfg.RedisURL,
		Prefix:           cfg.CachePrefix,
		DefaultTTL:       cfg.CacheTTLDuration(),
		MaxSize:          cfg.CacheMaxSize,
		CleanupInterval:  time.Minute,
		FallbackToMemory: true,
	}
	if cfg.UseRedisCache() {
		cacheCfg.Type = cache.CacheBackendRedis
	}
	res, err := cache.NewCacheWithInfo(cacheCfg)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("initializing cache: %w", err)
	}
	a.cache = res.Cache
	a.backend = cache.NewCatalogCache(a.store, res.Cache, cfg.CacheTTLDuration(), logger)
	if res.BackendType == cache.CacheBackendRedis {
		slog.Info("cache initialized", "backend", "redis", "url", cache.SanitizeRedisURL(cfg.RedisURL))
	} else {
		slog.Info("cache initialized", "backend", "memory", "fallback", res.IsFallback)
	}

	a.resolver = media.NewResolver(media.BucketConfig{
		PublicBaseURL: cfg.PublicBaseURL,
		Bucket:        cfg.Bucket,
	})
	a.normalizer = catalog.NewNormalizer(a.resolver, catalog.NewPolicy())

	if opts.withBucket {
		if err := a.openBucket(ctx); err != nil {
			a.close()
			return nil, err
		}
	}

	a.snapshots, err = service.NewSnapshotter(a.store, a.normalizer, cfg.FallbackPath, cfg.PageSize, logger)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("loading fallback dataset: %w", err)
	}

	var notifier service.Notifier
	if opts.withWebhooks && cfg.WebhooksEnabled() {
		endpoints := make([]webhook.Endpoint, 0, len(cfg.WebhookURLs))
		for _, u := range cfg.WebhookURLs {
			endpoints = append(endpoints, webhook.Endpoint{
				URL:    u,
				Secret: cfg.WebhookSecret,
				Events: cfg.WebhookEvents,
			})
		}
		a.webhooks = webhook.NewDispatcher(endpoints, logger, webhook.DefaultConfig())
		a.webhooks.Start(ctx)
		a.debouncer = webhook.NewDebouncer(a.webhooks, webhook.DefaultDebounceConfig())
		notifier = a.debouncer
	}

	a.coordinators = make(map[model.Kind]*service.Coordinator, len(model.Kinds))
	cleanup := logging.NewCleanupLog(logger)
	images := imaging.NewProcessor(imageQuality)
	for _, kind := range model.Kinds {
		a.coordinators[kind] = service.NewCoordinator(kind, service.Deps{
			Backend:  a.backend,
			Bucket:   a.bucket,
			Resolver: a.resolver,
			Images:   images,
			Cleanup:  cleanup,
			Events:   a.events,
			Notifier: notifier,
			Logger:   logger,
		})
	}

	return a, nil
}

func (a *app) openBucket(ctx context.Context) error {
	switch a.cfg.StorageDriver {
	case "s3":
		s3, err := storage.NewS3(ctx, storage.S3Config{
			Endpoint:     a.cfg.S3Endpoint,
			AccessKey:    a.cfg.S3AccessKey,
			SecretKey:    a.cfg.S3SecretKey,
			Region:       a.cfg.S3Region,
			UseSSL:       a.cfg.S3UseSSL,
			CreateBucket: a.cfg.IsDevelopment(),
		}, a.resolver)
		if err != nil {
			return fmt.Errorf("connecting to object store: %w", err)
		}
		a.bucket = s3
		slog.Info("media bucket ready", "driver", "s3", "endpoint", a.cfg.S3Endpoint, "bucket", s3.Name())
	default:
		local, err := storage.NewLocal(a.cfg.StorageDir, a.resolver)
		if err != nil {
			return fmt.Errorf("opening local bucket: %w", err)
		}
		a.bucket = local
		a.local = local
		slog.Info("media bucket ready", "driver", "local", "dir", local.Root(), "bucket", local.Name())
	}
	return nil
}

// coordinator returns the coordinator for a kind given on the command line.
func (a *app) coordinator(name string) (*service.Coordinator, error) {
	kind, ok := model.ParseKind(name)
	if !ok {
		return nil, fmt.Errorf("unknown catalog kind %q", name)
	}
	return a.coordinators[kind], nil
}

func (a *app) close() {
	if a.debouncer != nil {
		a.debouncer.Stop()
	}
	if a.webhooks != nil {
		a.webhooks.Stop()
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			slog.Error("error closing cache", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}
}
