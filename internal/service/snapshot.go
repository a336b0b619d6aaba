// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/olegiv/folio-go/internal/catalog"
	"github.com/olegiv/folio-go/internal/model"
)

// Snapshotter exports the published catalog to the YAML fallback file and
// serves the last written dataset as a catalog.FallbackSource.
type Snapshotter struct {
	backend    model.Backend
	normalizer *catalog.Normalizer
	path       string
	pageSize   int
	logger     *slog.Logger

	current atomic.Pointer[catalog.YAMLFallback]
}

var _ catalog.FallbackSource = (*Snapshotter)(nil)

// NewSnapshotter creates a snapshotter writing to path and loads the
// dataset already there, if any.
func NewSnapshotter(backend model.Backend, normalizer *catalog.Normalizer, path string, pageSize int, logger *slog.Logger) (*Snapshotter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Snapshotter{
		backend:    backend,
		normalizer: normalizer,
		path:       path,
		pageSize:   pageSize,
		logger:     logger,
	}
	fb, err := catalog.LoadYAMLFallback(path)
	if err != nil {
		return nil, err
	}
	s.current.Store(fb)
	return s, nil
}

// Path returns the fallback file location.
func (s *Snapshotter) Path() string {
	return s.path
}

// Records implements catalog.FallbackSource.
func (s *Snapshotter) Records(kind model.Kind) ([]model.Record, bool) {
	fb := s.current.Load()
	if fb == nil {
		return nil, false
	}
	return fb.Records(kind)
}

// Empty reports whether the current dataset holds no records at all.
func (s *Snapshotter) Empty() bool {
	for _, kind := range model.Kinds {
		if _, ok := s.Records(kind); ok {
			return false
		}
	}
	return true
}

// Run fetches every published record, writes the dataset and swaps it in.
// A failed fetch aborts the run and leaves the previous file in place.
func (s *Snapshotter) Run(ctx context.Context) (int, error) {
	byKind := make(map[model.Kind][]catalog.NormalizedRecord, len(model.Kinds))
	total := 0
	for _, kind := range model.Kinds {
		recs, err := catalog.FetchAll(ctx, s.backend, s.normalizer, kind, model.RoleAnonymous, s.pageSize)
		if err != nil {
			return 0, fmt.Errorf("snapshot of %s: %w", kind, err)
		}
		if len(recs) > 0 {
			byKind[kind] = recs
			total += len(recs)
		}
	}

	if err := catalog.WriteYAMLFallback(s.path, catalog.BuildFallbackDataset(byKind)); err != nil {
		return 0, err
	}
	fb, err := catalog.LoadYAMLFallback(s.path)
	if err != nil {
		return 0, err
	}
	s.current.Store(fb)
	s.logger.Info("fallback snapshot written", "path", s.path, "records", total)
	return total, nil
}
