// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package catalog

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/olegiv/folio-go/internal/model"
)

// DefaultPageSize is the number of records requested per page.
const DefaultPageSize = 24

// Status is the load state of a PageStore.
type Status int

// Load states
const (
	StatusIdle Status = iota
	StatusLoading
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusError:
		return "error"
	default:
		return "idle"
	}
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot is an immutable copy of the store state handed to observers.
type Snapshot struct {
	Kind     model.Kind         `json:"kind"`
	Records  []NormalizedRecord `json:"-"`
	Visible  []NormalizedRecord `json:"records"`
	Cursor   int                `json:"cursor"`
	HasMore  bool               `json:"has_more"`
	Filter   ClientFilter       `json:"filter"`
	Status   Status             `json:"status"`
	Err      string             `json:"error,omitempty"`
	Fallback bool               `json:"fallback,omitempty"`
}

// Find returns the loaded record with the given id.
func (s Snapshot) Find(id string) (NormalizedRecord, bool) {
	for _, r := range s.Records {
		if r.ID == id {
			return r, true
		}
	}
	return NormalizedRecord{}, false
}

// Change is a local mutation applied to a loaded record. Exactly one of
// Record, Patch or Removed should be set.
type Change struct {
	// Record replaces the entry with a fresh backend row.
	Record *model.Record
	// Patch is applied to the loaded entry.
	Patch *model.Patch
	// Removed drops the entry.
	Removed bool
}

// PageStoreOptions configures a PageStore.
type PageStoreOptions struct {
	Kind     model.Kind
	Role     model.Role
	PageSize int
	Order    model.Order
	Fallback FallbackSource
	Logger   *slog.Logger
}

// PageStore accumulates pages of one catalog kind for one role. It is safe
// for concurrent use; backend calls run outside the lock.
type PageStore struct {
	backend    model.Backend
	normalizer *Normalizer
	kind       model.Kind
	role       model.Role
	pageSize   int
	order      model.Order
	fallback   FallbackSource
	logger     *slog.Logger

	mu           sync.Mutex
	records      []NormalizedRecord
	cursor       int
	hasMore      bool
	started      bool
	filter       ClientFilter
	visible      []NormalizedRecord
	status       Status
	errMsg       string
	fallbackMode bool
	loading      bool
	closed       bool
	gen          uint64
	cancel       context.CancelFunc
	subs         map[int]func(Snapshot)
	nextSub      int
}

// NewPageStore creates an empty store. Nothing is fetched until the first
// LoadNextPage.
func NewPageStore(backend model.Backend, normalizer *Normalizer, opts PageStoreOptions) *PageStore {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &PageStore{
		backend:    backend,
		normalizer: normalizer,
		kind:       opts.Kind,
		role:       opts.Role,
		pageSize:   opts.PageSize,
		order:      opts.Order,
		fallback:   opts.Fallback,
		logger:     opts.Logger,
		hasMore:    true,
		subs:       make(map[int]func(Snapshot)),
	}
}

// Kind returns the catalog kind held by the store.
func (s *PageStore) Kind() model.Kind {
	return s.kind
}

// Role returns the role the store loads for.
func (s *PageStore) Role() model.Role {
	return s.role
}

// Snapshot returns the current state.
func (s *PageStore) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Lookup returns the raw record loaded under id.
func (s *PageStore) Lookup(id string) (model.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.records[i].Record.Clone(), true
	}
	return model.Record{}, false
}

// Subscribe registers fn to receive a snapshot after every change of
// records, visible set or status. The returned func unregisters it.
func (s *PageStore) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// LoadNextPage fetches the next page and merges it. It is a no-op while a
// load is in flight or when nothing more is available. A failure moves the
// store to StatusError and leaves the loaded records untouched; calling
// again clears the error and retries the same range.
func (s *PageStore) LoadNextPage(ctx context.Context) Snapshot {
	s.mu.Lock()
	if s.closed || s.loading || s.fallbackMode || (s.started && !s.hasMore) {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap
	}
	s.loading = true
	s.status = StatusLoading
	s.errMsg = ""
	gen := s.gen
	offset := s.cursor
	first := !s.started
	fetchCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	notify := s.notifyLocked()
	s.mu.Unlock()
	notify()

	page, err := FetchPage(fetchCtx, s.backend, s.normalizer, PageRequest{
		Kind:   s.kind,
		Role:   s.role,
		Order:  s.order,
		Offset: offset,
		Limit:  s.pageSize,
	})
	cancel()

	s.mu.Lock()
	if gen != s.gen {
		// Superseded by SetFilter, Reset or Close.
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap
	}
	s.loading = false
	s.cancel = nil

	switch {
	case err != nil && first && Unreachable(ctx, err) && s.loadFallbackLocked():
		s.logger.Warn("catalog backend unavailable, serving fallback",
			"kind", s.kind, "error", err)
	case err != nil:
		s.status = StatusError
		s.errMsg = model.UserMessage(err)
		if !errors.Is(err, context.Canceled) {
			s.logger.Warn("catalog page load failed",
				"kind", s.kind, "offset", offset, "error", err)
		}
	default:
		s.started = true
		for _, rec := range page.Records {
			s.upsertLocked(rec)
		}
		s.cursor += s.pageSize
		s.hasMore = page.HasMore
		s.status = StatusIdle
		s.refreshVisibleLocked()
	}
	snap := s.snapshotLocked()
	notify = s.notifyLocked()
	s.mu.Unlock()
	notify()
	return snap
}

// SetFilter replaces the client-side filter. Any in-flight load is
// cancelled and its result discarded.
func (s *PageStore) SetFilter(search, category string) {
	s.mu.Lock()
	s.supersedeLocked()
	s.filter = ClientFilter{Search: search, Category: category}
	s.refreshVisibleLocked()
	notify := s.notifyLocked()
	s.mu.Unlock()
	notify()
}

// Reset drops every loaded record and starts over from the first page.
// A store serving its fallback dataset keeps serving it.
func (s *PageStore) Reset() {
	s.mu.Lock()
	s.supersedeLocked()
	s.records = nil
	if !s.fallbackMode || !s.loadFallbackLocked() {
		s.cursor = 0
		s.hasMore = true
		s.started = false
		s.status = StatusIdle
		s.errMsg = ""
	}
	s.refreshVisibleLocked()
	notify := s.notifyLocked()
	s.mu.Unlock()
	notify()
}

// Close cancels any in-flight load and drops every subscriber. Later calls
// to LoadNextPage do nothing.
func (s *PageStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.supersedeLocked()
	s.closed = true
	s.subs = make(map[int]func(Snapshot))
}

// ApplyLocalMutation reflects a successful mutation in the loaded set
// without a refetch. Relative order of the other records is preserved.
// A record the store's role may no longer see is removed.
func (s *PageStore) ApplyLocalMutation(id string, c Change) {
	s.mu.Lock()
	if !s.applyLocked(id, c) {
		s.mu.Unlock()
		return
	}
	s.refreshVisibleLocked()
	notify := s.notifyLocked()
	s.mu.Unlock()
	notify()
}

func (s *PageStore) applyLocked(id string, c Change) bool {
	visibleTo := s.normalizer.Policy().QueryFilter(s.role)
	i := s.indexLocked(id)
	switch {
	case c.Removed:
		if i < 0 {
			return false
		}
		s.removeAtLocked(i)
	case c.Record != nil:
		rec := c.Record.Clone()
		if !visibleTo.Matches(rec) {
			if i < 0 {
				return false
			}
			s.removeAtLocked(i)
			return true
		}
		s.upsertLocked(s.normalizer.Normalize(rec, s.role))
	case c.Patch != nil:
		if i < 0 {
			return false
		}
		rec := c.Patch.Apply(s.records[i].Record)
		if !visibleTo.Matches(rec) {
			s.removeAtLocked(i)
			return true
		}
		s.records[i] = s.normalizer.Normalize(rec, s.role)
	default:
		return false
	}
	return true
}

func (s *PageStore) supersedeLocked() {
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.loading {
		s.loading = false
		s.status = StatusIdle
	}
}

func (s *PageStore) loadFallbackLocked() bool {
	if s.fallback == nil {
		return false
	}
	recs, ok := s.fallback.Records(s.kind)
	if !ok {
		return false
	}
	s.fallbackMode = true
	s.started = true
	s.hasMore = false
	s.status = StatusIdle
	s.errMsg = ""
	s.records = s.normalizer.NormalizeAll(recs, s.role)
	s.cursor = len(s.records)
	s.refreshVisibleLocked()
	return true
}

func (s *PageStore) indexLocked(id string) int {
	for i := range s.records {
		if s.records[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *PageStore) upsertLocked(rec NormalizedRecord) {
	if i := s.indexLocked(rec.ID); i >= 0 {
		s.records[i] = rec
		return
	}
	s.records = append(s.records, rec)
}

func (s *PageStore) removeAtLocked(i int) {
	s.records = append(s.records[:i:i], s.records[i+1:]...)
}

func (s *PageStore) refreshVisibleLocked() {
	s.visible = s.filter.Apply(s.records)
}

func (s *PageStore) snapshotLocked() Snapshot {
	return Snapshot{
		Kind:     s.kind,
		Records:  append([]NormalizedRecord(nil), s.records...),
		Visible:  append([]NormalizedRecord(nil), s.visible...),
		Cursor:   s.cursor,
		HasMore:  s.hasMore,
		Filter:   s.filter,
		Status:   s.status,
		Err:      s.errMsg,
		Fallback: s.fallbackMode,
	}
}

// notifyLocked captures the current snapshot and subscribers. The returned
// func delivers it and must be called after the lock is released, so
// observers may call back into the store.
func (s *PageStore) notifyLocked() func() {
	if len(s.subs) == 0 {
		return func() {}
	}
	snap := s.snapshotLocked()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	return func() {
		for _, fn := range fns {
			fn(snap)
		}
	}
}
