// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package webhook notifies external endpoints of catalog changes, typically
// to trigger a rebuild of a statically generated site.
package webhook

import (
	"time"

	"github.com/olegiv/folio-go/internal/model"
)

// Catalog event types
const (
	EventRecordCreated     = "record.created"
	EventRecordUpdated     = "record.updated"
	EventRecordPublished   = "record.published"
	EventRecordUnpublished = "record.unpublished"
	EventRecordDeleted     = "record.deleted"
	EventPing              = "ping"
)

// AllEvents lists every event type an endpoint may subscribe to.
var AllEvents = []string{
	EventRecordCreated,
	EventRecordUpdated,
	EventRecordPublished,
	EventRecordUnpublished,
	EventRecordDeleted,
}

// Event represents a webhook event to be dispatched.
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// NewEvent creates a new webhook event.
func NewEvent(eventType string, data any) *Event {
	return &Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// RecordEventData describes the record a catalog event is about.
type RecordEventData struct {
	ID          string     `json:"id"`
	Kind        model.Kind `json:"kind"`
	Table       string     `json:"table"`
	Title       string     `json:"title"`
	IsPublished bool       `json:"is_published"`
	Sort        int        `json:"sort"`
}

// NewRecordEventData builds the event payload for rec.
func NewRecordEventData(kind model.Kind, rec model.Record) RecordEventData {
	return RecordEventData{
		ID:          rec.ID,
		Kind:        kind,
		Table:       kind.Table(),
		Title:       rec.Title,
		IsPublished: rec.IsPublished,
		Sort:        rec.Sort,
	}
}

// PingEventData is sent by Dispatcher.Ping.
type PingEventData struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
