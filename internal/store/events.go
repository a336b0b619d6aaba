// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/olegiv/folio-go/internal/model"
)

// CreateEventParams holds the fields of a new event log entry.
type CreateEventParams struct {
	Level     string
	Category  string
	Message   string
	Metadata  string
	CreatedAt time.Time
}

// CreateEvent appends an entry to the event log.
func (s *Store) CreateEvent(ctx context.Context, arg CreateEventParams) error {
	if arg.CreatedAt.IsZero() {
		arg.CreatedAt = s.now()
	}
	if arg.Metadata == "" {
		arg.Metadata = "{}"
	}
	_, err := s.db.ExecContext(ctx,
		s.db.rebind("INSERT INTO events (level, category, message, metadata, created_at) VALUES (?, ?, ?, ?, ?)"),
		arg.Level, arg.Category, arg.Message, arg.Metadata, arg.CreatedAt.UTC(),
	)
	return mapError("create event", err)
}

// ListEventsParams filters the event log.
type ListEventsParams struct {
	Level    string
	Category string
	Limit    int
	Offset   int
}

// ListEvents returns events newest first.
func (s *Store) ListEvents(ctx context.Context, arg ListEventsParams) ([]model.Event, error) {
	query := "SELECT id, level, category, message, COALESCE(metadata, '{}'), created_at FROM events WHERE 1 = 1"
	var args []any
	if arg.Level != "" {
		query += " AND level = ?"
		args = append(args, arg.Level)
	}
	if arg.Category != "" {
		query += " AND category = ?"
		args = append(args, arg.Category)
	}
	if arg.Limit <= 0 {
		arg.Limit = 50
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, arg.Limit, arg.Offset)

	rows, err := s.db.QueryContext(ctx, s.db.rebind(query), args...)
	if err != nil {
		return nil, mapError("list events", err)
	}
	defer func() { _ = rows.Close() }()

	var events []model.Event
	for rows.Next() {
		var e model.Event
		if err := rows.Scan(&e.ID, &e.Level, &e.Category, &e.Message, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		e.CreatedAt = e.CreatedAt.UTC()
		events = append(events, e)
	}
	return events, mapError("list events", rows.Err())
}

// DeleteEventsBefore prunes log entries older than cutoff and returns how
// many were removed.
func (s *Store) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.db.rebind("DELETE FROM events WHERE created_at < ?"), cutoff.UTC())
	if err != nil {
		return 0, mapError("delete events", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted events: %w", err)
	}
	return n, nil
}
