// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/olegiv/folio-go/internal/middleware"
)

// Route patterns
const (
	RouteKind       = "/{kind}"
	RouteKindID     = "/{kind}/{id}"
	RouteToggle     = "/{kind}/{id}/toggle"
	RouteMove       = "/{kind}/{id}/move"
	RouteDuplicates = "/{kind}/duplicates"
	RoutePurge      = "/{kind}/duplicates/purge"
	RouteEvents     = "/events"
)

// StoragePrefix is the path under which the local bucket is served. It
// matches the object paths produced by the media resolver.
const StoragePrefix = "/storage/v1/object/public/"

// RouterConfig holds everything NewRouter mounts.
type RouterConfig struct {
	API    *Handler
	Health *HealthHandler
	Auth   *middleware.TokenAuth
	// RateLimiter, when set, limits /api/v1 per client.
	RateLimiter *middleware.RateLimiter
	// Files serves local bucket objects by key. Nil when an external
	// object store holds the media.
	Files  http.Handler
	Bucket string
	// RequestTimeout bounds API requests. Zero means 30 seconds.
	RequestTimeout time.Duration
	IsDevelopment  bool
}

// NewRouter builds the HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.GetHead)
	r.Use(chimw.Compress(5, "application/json"))

	security := middleware.DefaultSecurityHeadersConfig(cfg.IsDevelopment)
	security.ExcludePaths = []string{"/storage/"}
	r.Use(middleware.SecurityHeaders(security))
	r.Use(cfg.Auth.ResolveRole)

	if cfg.Health != nil {
		r.Get("/health", cfg.Health.Health)
		r.Get("/health/live", cfg.Health.Liveness)
		r.Get("/health/ready", cfg.Health.Readiness)
	}

	if cfg.Files != nil && cfg.Bucket != "" {
		prefix := StoragePrefix + cfg.Bucket
		r.With(middleware.StaticCache(31536000, true)).
			Handle(prefix+"/*", http.StripPrefix(prefix, cfg.Files))
	}

	h := cfg.API
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
		if cfg.RateLimiter != nil {
			r.Use(cfg.RateLimiter.Middleware())
		}

		// Public reads; the caller's role narrows what they see.
		r.Get(RouteKind, h.ListRecords)
		r.Get(RouteKindID, h.GetRecord)

		r.Group(func(r chi.Router) {
			r.Use(cfg.Auth.RequireAdmin)

			r.Get(RouteEvents, h.ListEvents)
			r.Post(RouteKind, h.UpsertRecord)
			r.Patch(RouteKindID, h.UpsertRecord)
			r.Delete(RouteKindID, h.DeleteRecord)
			r.Post(RouteToggle, h.TogglePublish)
			r.Post(RouteMove, h.MoveRecord)
			r.Get(RouteDuplicates, h.ListDuplicates)
			r.Post(RoutePurge, h.PurgeDuplicates)
		})
	})

	return r
}
