// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/olegiv/folio-go/internal/model"
	"github.com/olegiv/folio-go/internal/store"
)

// EventService writes audit entries to the event log.
type EventService struct {
	store  *store.Store
	logger *slog.Logger
}

// NewEventService creates a new EventService.
func NewEventService(s *store.Store, logger *slog.Logger) *EventService {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventService{store: s, logger: logger}
}

// LogEvent creates a new event log entry.
func (s *EventService) LogEvent(ctx context.Context, level, category, message string, metadata map[string]any) error {
	metadataJSON := "{}"
	if metadata != nil {
		if b, err := json.Marshal(metadata); err == nil {
			metadataJSON = string(b)
		}
	}

	err := s.store.CreateEvent(ctx, store.CreateEventParams{
		Level:     level,
		Category:  category,
		Message:   message,
		Metadata:  metadataJSON,
		CreatedAt: time.Now(),
	})
	if err != nil {
		// Info level keeps this out of the event log handler.
		s.logger.Info("failed to log event", "message", message, "error", err)
		return err
	}
	return nil
}

// LogCatalogEvent logs a catalog mutation.
func (s *EventService) LogCatalogEvent(ctx context.Context, level, message string, metadata map[string]any) error {
	return s.LogEvent(ctx, level, model.EventCategoryCatalog, message, metadata)
}

// LogSystemEvent logs a system event.
func (s *EventService) LogSystemEvent(ctx context.Context, level, message string, metadata map[string]any) error {
	return s.LogEvent(ctx, level, model.EventCategorySystem, message, metadata)
}

// List returns the newest events matching the filters.
func (s *EventService) List(ctx context.Context, arg store.ListEventsParams) ([]model.Event, error) {
	return s.store.ListEvents(ctx, arg)
}

// DeleteOldEvents removes events older than the specified duration.
func (s *EventService) DeleteOldEvents(ctx context.Context, olderThan time.Duration) (int64, error) {
	return s.store.DeleteEventsBefore(ctx, time.Now().Add(-olderThan))
}
