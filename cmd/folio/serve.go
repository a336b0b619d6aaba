// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/olegiv/folio-go/internal/handler/api"
	"github.com/olegiv/folio-go/internal/middleware"
	"github.com/olegiv/folio-go/internal/scheduler"
)

type serveCommand struct {
	SeedDemo bool `long:"seed-demo" description:"Insert the demo records before serving"`
}

func (c *serveCommand) Execute([]string) error {
	ctx := rootCtx

	a, err := newApp(ctx, appOptions{migrate: true, withBucket: true, withWebhooks: true})
	if err != nil {
		return err
	}
	defer a.close()

	info := versionInfo()
	slog.Info("starting folio", "version", info.Version, "commit", info.GitCommit, "env", a.cfg.Env)

	if c.SeedDemo {
		if err := seedDemo(ctx, a); err != nil {
			return err
		}
	}

	sched := scheduler.New(a.logger)
	if err := sched.Register(scheduler.SnapshotJob(a.cfg.SnapshotCron, a.snapshots, a.logger)); err != nil {
		return fmt.Errorf("registering snapshot job: %w", err)
	}
	if retention := a.cfg.EventRetention(); retention > 0 {
		if err := sched.Register(scheduler.EventRetentionJob(retention, a.events, a.logger)); err != nil {
			return fmt.Errorf("registering event retention job: %w", err)
		}
	}
	sched.Start()
	defer sched.Stop()

	// A missing fallback file is written once at startup so the first
	// backend outage already has something to serve.
	if a.snapshots.Empty() {
		go func() {
			if err := sched.TriggerNow(ctx, scheduler.JobSnapshot); err != nil && !errors.Is(err, scheduler.ErrJobRunning) {
				slog.Warn("initial fallback snapshot failed", "error", err)
			}
		}()
	}

	auth := middleware.NewTokenAuth(a.cfg.AdminTokenHash)

	healthCfg := api.HealthConfig{
		DB:      a.store,
		Cache:   a.cache,
		Version: info.Version,
	}
	routerCfg := api.RouterConfig{
		API: api.NewHandler(api.Config{
			Backend:      a.backend,
			Normalizer:   a.normalizer,
			Coordinators: a.coordinators,
			Events:       a.events,
			Fallback:     a.snapshots,
			PageSize:     a.cfg.PageSize,
			Logger:       a.logger,
		}),
		Auth:          auth,
		RateLimiter:   middleware.NewRateLimiter(a.cfg.APIRPS, a.cfg.APIBurst),
		Bucket:        a.cfg.Bucket,
		IsDevelopment: a.cfg.IsDevelopment(),
	}
	if a.local != nil {
		routerCfg.Files = a.local.Handler()
		healthCfg.StorageDir = a.local.Root()
	}
	routerCfg.Health = api.NewHealthHandler(healthCfg)

	srv := &http.Server{
		Addr:              a.cfg.ServerAddr(),
		Handler:           api.NewRouter(routerCfg),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		slog.Info("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}
