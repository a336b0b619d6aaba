// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package testutil

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/olegiv/folio-go/internal/model"
)

// Backend is an in-memory model.Backend for tests. It records the order of
// write calls and can be made to fail or block.
type Backend struct {
	mu     sync.Mutex
	tables map[string][]model.Record
	calls  []string

	selects atomic.Int32

	// Journal, when set, also receives every write call.
	Journal *Journal

	// Gate, when set, blocks every Select until it is closed or the
	// context is done.
	Gate chan struct{}

	SelectErr error
	GetErr    error
	InsertErr error
	UpdateErr error
	DeleteErr error
}

// NewBackend creates a backend seeded with recs. Each record is stored in
// its kind's table.
func NewBackend(recs ...model.Record) *Backend {
	b := &Backend{tables: make(map[string][]model.Record)}
	for _, r := range recs {
		table := r.Kind.Table()
		b.tables[table] = append(b.tables[table], r.Clone())
	}
	return b
}

// SelectCalls returns how many times Select was called.
func (b *Backend) SelectCalls() int {
	return int(b.selects.Load())
}

// Calls returns the write calls made so far, e.g. "insert works".
func (b *Backend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

// Rows returns a copy of the table contents.
func (b *Backend) Rows(table string) []model.Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]model.Record, 0, len(b.tables[table]))
	for _, r := range b.tables[table] {
		out = append(out, r.Clone())
	}
	return out
}

// Select implements model.Backend.
func (b *Backend) Select(ctx context.Context, q model.Query) ([]model.Record, error) {
	b.selects.Add(1)
	if b.Gate != nil {
		select {
		case <-b.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if b.SelectErr != nil {
		return nil, b.SelectErr
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	var rows []model.Record
	for _, r := range b.tables[q.Table] {
		if q.Filter.Matches(r) {
			rows = append(rows, r.Clone())
		}
	}
	model.SortRecords(rows, q.Order)
	if q.Offset >= len(rows) {
		return []model.Record{}, nil
	}
	rows = rows[q.Offset:]
	if q.Limit > 0 && q.Limit < len(rows) {
		rows = rows[:q.Limit]
	}
	return rows, nil
}

// Get implements model.Backend.
func (b *Backend) Get(_ context.Context, table, id string) (model.Record, error) {
	if b.GetErr != nil {
		return model.Record{}, b.GetErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.indexLocked(table, id)
	if i < 0 {
		return model.Record{}, model.ErrNotFound
	}
	return b.tables[table][i].Clone(), nil
}

// Insert implements model.Backend.
func (b *Backend) Insert(_ context.Context, table string, rec model.Record) (model.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recordLocked("insert " + table)
	if b.InsertErr != nil {
		return model.Record{}, b.InsertErr
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if b.indexLocked(table, rec.ID) >= 0 {
		return model.Record{}, &model.ConflictError{Detail: fmt.Sprintf("duplicate key %q", rec.ID)}
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	if kind, ok := model.KindForTable(table); ok {
		rec.Kind = kind
	}
	b.tables[table] = append(b.tables[table], rec.Clone())
	return rec, nil
}

// Update implements model.Backend.
func (b *Backend) Update(_ context.Context, table, id string, patch model.Patch) (model.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recordLocked("update " + table)
	if b.UpdateErr != nil {
		return model.Record{}, b.UpdateErr
	}
	i := b.indexLocked(table, id)
	if i < 0 {
		return model.Record{}, model.ErrNotFound
	}
	rec := patch.Apply(b.tables[table][i])
	rec.UpdatedAt = time.Now().UTC()
	b.tables[table][i] = rec
	return rec.Clone(), nil
}

// Delete implements model.Backend.
func (b *Backend) Delete(_ context.Context, table, id string) (model.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recordLocked("delete " + table)
	if b.DeleteErr != nil {
		return model.Record{}, b.DeleteErr
	}
	i := b.indexLocked(table, id)
	if i < 0 {
		return model.Record{}, model.ErrNotFound
	}
	rec := b.tables[table][i]
	b.tables[table] = append(b.tables[table][:i:i], b.tables[table][i+1:]...)
	return rec, nil
}

func (b *Backend) recordLocked(call string) {
	b.calls = append(b.calls, call)
	b.Journal.Add(call)
}

func (b *Backend) indexLocked(table, id string) int {
	for i, r := range b.tables[table] {
		if r.ID == id {
			return i
		}
	}
	return -1
}
