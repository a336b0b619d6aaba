// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/olegiv/folio-go/internal/model"
)

// FallbackSource supplies static records when the backend cannot be
// reached on the first page.
type FallbackSource interface {
	Records(kind model.Kind) ([]model.Record, bool)
}

// FallbackEntry is one minimal static record.
type FallbackEntry struct {
	ID       string `yaml:"id,omitempty"`
	Title    string `yaml:"title"`
	Year     string `yaml:"year,omitempty"`
	Category string `yaml:"category,omitempty"`
	Image    string `yaml:"image,omitempty"`
}

// FallbackDataset maps a kind (or its table name) to its static entries.
type FallbackDataset map[string][]FallbackEntry

// YAMLFallback is a FallbackSource backed by a YAML document.
type YAMLFallback struct {
	data map[model.Kind][]model.Record
}

// ParseYAMLFallback decodes a fallback document.
func ParseYAMLFallback(b []byte) (*YAMLFallback, error) {
	var ds FallbackDataset
	if err := yaml.Unmarshal(b, &ds); err != nil {
		return nil, fmt.Errorf("parsing fallback dataset: %w", err)
	}
	fb := &YAMLFallback{data: make(map[model.Kind][]model.Record)}
	for name, entries := range ds {
		kind, ok := model.ParseKind(name)
		if !ok {
			return nil, fmt.Errorf("fallback dataset: unknown kind %q", name)
		}
		recs := make([]model.Record, 0, len(entries))
		for i, e := range entries {
			recs = append(recs, e.record(kind, i))
		}
		fb.data[kind] = recs
	}
	return fb, nil
}

// LoadYAMLFallback reads the fallback document at path. A missing file
// yields an empty dataset.
func LoadYAMLFallback(path string) (*YAMLFallback, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &YAMLFallback{data: map[model.Kind][]model.Record{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading fallback dataset: %w", err)
	}
	return ParseYAMLFallback(b)
}

// Records returns the static records of kind.
func (f *YAMLFallback) Records(kind model.Kind) ([]model.Record, bool) {
	recs, ok := f.data[kind]
	if !ok || len(recs) == 0 {
		return nil, false
	}
	out := make([]model.Record, len(recs))
	for i, r := range recs {
		out[i] = r.Clone()
	}
	return out, true
}

// Fallback records are always published and read-only.
func (e FallbackEntry) record(kind model.Kind, i int) model.Record {
	id := strings.TrimSpace(e.ID)
	if id == "" {
		id = "fallback-" + string(kind) + "-" + strconv.Itoa(i+1)
	}
	if !strings.HasPrefix(id, model.DemoIDPrefix) {
		id = model.DemoIDPrefix + id
	}
	return model.Record{
		ID:          id,
		Kind:        kind,
		Title:       e.Title,
		Year:        e.Year,
		Category:    e.Category,
		CoverURL:    e.Image,
		Sort:        i,
		IsPublished: true,
	}
}

// BuildFallbackDataset reduces records to fallback entries. The first
// resolved image of each record becomes its image.
func BuildFallbackDataset(byKind map[model.Kind][]NormalizedRecord) FallbackDataset {
	ds := make(FallbackDataset, len(byKind))
	for kind, recs := range byKind {
		entries := make([]FallbackEntry, 0, len(recs))
		for _, r := range recs {
			e := FallbackEntry{
				Title:    r.Title,
				Year:     r.Year,
				Category: r.Category,
			}
			if len(r.ResolvedImages) > 0 {
				e.Image = r.ResolvedImages[0]
			}
			entries = append(entries, e)
		}
		ds[kind.Table()] = entries
	}
	return ds
}

// WriteYAMLFallback writes ds to path atomically.
func WriteYAMLFallback(path string, ds FallbackDataset) error {
	b, err := yaml.Marshal(ds)
	if err != nil {
		return fmt.Errorf("encoding fallback dataset: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating fallback directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".fallback-*.yaml")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing fallback dataset: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing fallback dataset: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replacing fallback dataset: %w", err)
	}
	return nil
}
