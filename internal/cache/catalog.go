// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/olegiv/folio-go/internal/model"
)

const catalogKeyPrefix = "catalog:"

// CatalogCache wraps a model.Backend and caches published-only selects.
// Any successful mutation on a table drops that table's cached pages.
// Admin reads (unfiltered) always go to the backend.
type CatalogCache struct {
	backend model.Backend
	pages   *TypedCache[[]model.Record]
	cache   Cacher
	logger  *slog.Logger
}

// NewCatalogCache creates a caching decorator around backend.
func NewCatalogCache(backend model.Backend, c Cacher, ttl time.Duration, logger *slog.Logger) *CatalogCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogCache{
		backend: backend,
		pages:   NewTypedCache[[]model.Record](c, ttl),
		cache:   c,
		logger:  logger,
	}
}

func tablePrefix(table string) string {
	return catalogKeyPrefix + table + ":"
}

func cacheable(q model.Query) bool {
	return q.Filter.PublishedOnly && len(q.Filter.IDs) == 0
}

// Select serves published-only queries from the cache.
func (c *CatalogCache) Select(ctx context.Context, q model.Query) ([]model.Record, error) {
	if !cacheable(q) {
		return c.backend.Select(ctx, q)
	}

	recs, err := c.pages.GetOrSet(ctx, catalogKeyPrefix+q.CacheKey(), func() (*[]model.Record, error) {
		rows, err := c.backend.Select(ctx, q)
		if err != nil {
			return nil, err
		}
		return &rows, nil
	})
	if err != nil {
		return nil, err
	}
	return *recs, nil
}

// Get reads through to the backend.
func (c *CatalogCache) Get(ctx context.Context, table, id string) (model.Record, error) {
	return c.backend.Get(ctx, table, id)
}

// Insert creates a row and invalidates the table.
func (c *CatalogCache) Insert(ctx context.Context, table string, rec model.Record) (model.Record, error) {
	out, err := c.backend.Insert(ctx, table, rec)
	if err == nil {
		c.Invalidate(ctx, table)
	}
	return out, err
}

// Update patches a row and invalidates the table.
func (c *CatalogCache) Update(ctx context.Context, table, id string, patch model.Patch) (model.Record, error) {
	out, err := c.backend.Update(ctx, table, id, patch)
	if err == nil {
		c.Invalidate(ctx, table)
	}
	return out, err
}

// Delete removes a row and invalidates the table.
func (c *CatalogCache) Delete(ctx context.Context, table, id string) (model.Record, error) {
	out, err := c.backend.Delete(ctx, table, id)
	if err == nil {
		c.Invalidate(ctx, table)
	}
	return out, err
}

// Invalidate drops every cached page of table. Failures are logged only;
// entries still expire with their TTL.
func (c *CatalogCache) Invalidate(ctx context.Context, table string) {
	if err := c.cache.DeleteByPrefix(ctx, tablePrefix(table)); err != nil {
		c.logger.Warn("catalog cache invalidation failed",
			"category", "cache", "table", table, "error", err)
	}
}

// InvalidateAll drops every cached catalog page.
func (c *CatalogCache) InvalidateAll(ctx context.Context) error {
	return c.cache.DeleteByPrefix(ctx, catalogKeyPrefix)
}

var _ model.Backend = (*CatalogCache)(nil)
