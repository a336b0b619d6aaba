// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package service provides the mutation coordinator: admin writes against
// the backend, the media uploads and storage cleanup that go with them,
// and reconciliation of attached page stores.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/olegiv/folio-go/internal/catalog"
	"github.com/olegiv/folio-go/internal/imaging"
	"github.com/olegiv/folio-go/internal/logging"
	"github.com/olegiv/folio-go/internal/media"
	"github.com/olegiv/folio-go/internal/model"
	"github.com/olegiv/folio-go/internal/storage"
	"github.com/olegiv/folio-go/internal/webhook"
)

// CleanupReporter receives storage cleanup failures. logging.CleanupLog
// is the production implementation.
type CleanupReporter interface {
	ReportCleanup(ctx context.Context, f *model.CleanupFailure)
}

// Result is the outcome of a successful mutation.
type Result struct {
	Record  model.Record          `json:"record"`
	Message string                `json:"message"`
	Cleanup *model.CleanupFailure `json:"-"`
}

// Deps holds the collaborators of a Coordinator.
type Deps struct {
	Backend  model.Backend
	Bucket   storage.Bucket
	Resolver *media.Resolver
	// Images prepares uploaded images and renders cover thumbnails.
	// When nil, images are uploaded as received and no thumbnail is made.
	Images  *imaging.Processor
	Cleanup CleanupReporter
	// Events, when set, receives an audit entry per mutation.
	Events *EventService
	// Notifier, when set, receives a webhook event per mutation.
	Notifier Notifier
	Logger   *slog.Logger
}

// Notifier publishes catalog change events. webhook.Debouncer and
// webhook.Dispatcher implement it.
type Notifier interface {
	DispatchEvent(ctx context.Context, eventType string, data any) error
}

// Coordinator performs admin mutations on one catalog kind.
type Coordinator struct {
	kind     model.Kind
	table    string
	backend  model.Backend
	bucket   storage.Bucket
	resolver *media.Resolver
	images   *imaging.Processor
	cleanup  CleanupReporter
	events   *EventService
	notifier Notifier
	logger   *slog.Logger

	mu     sync.RWMutex
	stores map[*catalog.PageStore]struct{}
}

// NewCoordinator creates a coordinator for kind.
func NewCoordinator(kind model.Kind, deps Deps) *Coordinator {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Cleanup == nil {
		deps.Cleanup = logging.NewCleanupLog(deps.Logger)
	}
	return &Coordinator{
		kind:     kind,
		table:    kind.Table(),
		backend:  deps.Backend,
		bucket:   deps.Bucket,
		resolver: deps.Resolver,
		images:   deps.Images,
		cleanup:  deps.Cleanup,
		events:   deps.Events,
		notifier: deps.Notifier,
		logger:   deps.Logger.With("kind", string(kind)),
		stores:   make(map[*catalog.PageStore]struct{}),
	}
}

// Kind returns the catalog kind this coordinator mutates.
func (c *Coordinator) Kind() model.Kind {
	return c.kind
}

// Attach registers a page store to be reconciled after every successful
// mutation. Stores of another kind are ignored. The returned func detaches.
func (c *Coordinator) Attach(store *catalog.PageStore) (detach func()) {
	if store == nil || store.Kind() != c.kind {
		return func() {}
	}
	c.mu.Lock()
	c.stores[store] = struct{}{}
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.stores, store)
		c.mu.Unlock()
	}
}

func (c *Coordinator) attached() []*catalog.PageStore {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*catalog.PageStore, 0, len(c.stores))
	for s := range c.stores {
		out = append(out, s)
	}
	return out
}

func (c *Coordinator) applyLocal(id string, change catalog.Change) {
	for _, s := range c.attached() {
		s.ApplyLocalMutation(id, change)
	}
}

// current returns the record from an attached store snapshot, or reads it
// from the backend when no store has it loaded.
func (c *Coordinator) current(ctx context.Context, id string) (model.Record, error) {
	for _, s := range c.attached() {
		if rec, ok := s.Lookup(id); ok {
			return rec, nil
		}
	}
	rec, err := c.backend.Get(ctx, c.table, id)
	if err != nil {
		return model.Record{}, fmt.Errorf("loading %s %s: %w", c.kind, id, err)
	}
	return rec, nil
}

// removeKeys deletes keys from the bucket. A failure is reported through
// the cleanup channel and returned for the Result, never as an error.
func (c *Coordinator) removeKeys(ctx context.Context, recordID string, keys []string) *model.CleanupFailure {
	if len(keys) == 0 || c.bucket == nil {
		return nil
	}
	if err := c.bucket.Remove(ctx, keys...); err != nil {
		failure := &model.CleanupFailure{
			Table:    c.table,
			RecordID: recordID,
			Keys:     append([]string(nil), keys...),
			Err:      err,
		}
		c.cleanup.ReportCleanup(ctx, failure)
		return failure
	}
	return nil
}

// audit records a successful mutation in the event log and notifies
// webhook subscribers.
func (c *Coordinator) audit(ctx context.Context, event, message string, rec model.Record) {
	if c.events != nil {
		_ = c.events.LogCatalogEvent(ctx, model.EventLevelInfo, message, map[string]any{
			"table":     c.table,
			"record_id": rec.ID,
			"title":     rec.Title,
		})
	}
	if c.notifier != nil {
		if err := c.notifier.DispatchEvent(ctx, event, webhook.NewRecordEventData(c.kind, rec)); err != nil {
			c.logger.Warn("webhook dispatch failed", "event", event, "record_id", rec.ID, "error", err)
		}
	}
}

func (c *Coordinator) readOnly(id string) error {
	if model.IsDemoID(id) {
		return fmt.Errorf("%s %s: %w", c.kind, id, model.ErrReadOnly)
	}
	return nil
}
