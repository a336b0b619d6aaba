// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package model defines the catalog records, queries and error types shared
// by the backend, the catalog engine and the HTTP layer.
package model

import (
	"strings"
	"time"
)

// Kind identifies one catalog collection.
type Kind string

// Catalog kinds
const (
	KindWork        Kind = "work"
	KindNews        Kind = "news"
	KindPublication Kind = "publication"
	KindDocument    Kind = "document"
	KindPhoto       Kind = "photo"
)

// Kinds lists every catalog kind in display order.
var Kinds = []Kind{KindWork, KindNews, KindPublication, KindDocument, KindPhoto}

var kindTables = map[Kind]string{
	KindWork:        "works",
	KindNews:        "news",
	KindPublication: "publications",
	KindDocument:    "documents",
	KindPhoto:       "photos",
}

// Table returns the backend table holding records of this kind.
func (k Kind) Table() string {
	return kindTables[k]
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	_, ok := kindTables[k]
	return ok
}

// ParseKind accepts a kind name or its table name.
func ParseKind(s string) (Kind, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if k := Kind(s); k.Valid() {
		return k, true
	}
	for k, table := range kindTables {
		if table == s {
			return k, true
		}
	}
	return "", false
}

// KindForTable returns the kind stored in table.
func KindForTable(table string) (Kind, bool) {
	for k, t := range kindTables {
		if t == table {
			return k, true
		}
	}
	return "", false
}

// DemoIDPrefix marks synthetic placeholder records. They are always read-only.
const DemoIDPrefix = "demo-"

// Record is one persisted catalog item. Every copy held outside the backend
// is a snapshot and may be stale.
type Record struct {
	ID          string    `json:"id" yaml:"id,omitempty"`
	Kind        Kind      `json:"kind" yaml:"kind,omitempty"`
	Title       string    `json:"title" yaml:"title"`
	Body        string    `json:"body,omitempty" yaml:"body,omitempty"`
	Year        string    `json:"year,omitempty" yaml:"year,omitempty"`
	Category    string    `json:"category,omitempty" yaml:"category,omitempty"`
	PublishedOn string    `json:"published_on,omitempty" yaml:"published_on,omitempty"`
	CoverURL    string    `json:"cover_url,omitempty" yaml:"cover_url,omitempty"`
	ThumbURL    string    `json:"thumb_url,omitempty" yaml:"thumb_url,omitempty"`
	PDFURL      string    `json:"pdf_url,omitempty" yaml:"pdf_url,omitempty"`
	Images      []string  `json:"images,omitempty" yaml:"images,omitempty"`
	ExtraImages []string  `json:"extra_images,omitempty" yaml:"-"`
	Sort        int       `json:"sort" yaml:"sort,omitempty"`
	IsPublished bool      `json:"is_published" yaml:"-"`
	CreatedAt   time.Time `json:"created_at" yaml:"-"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"-"`
}

// IsDemoID reports whether id names a synthetic placeholder record.
func IsDemoID(id string) bool {
	return strings.HasPrefix(id, DemoIDPrefix)
}

// IsDemo reports whether the record is a synthetic placeholder.
func (r *Record) IsDemo() bool {
	return IsDemoID(r.ID)
}

// MediaRefs returns every media reference held by the record, in the order
// cover, thumbnail, gallery, joined image rows, pdf. Blank entries are skipped.
func (r *Record) MediaRefs() []string {
	refs := make([]string, 0, 3+len(r.Images)+len(r.ExtraImages))
	add := func(s string) {
		if strings.TrimSpace(s) != "" {
			refs = append(refs, s)
		}
	}
	add(r.CoverURL)
	add(r.ThumbURL)
	for _, img := range r.Images {
		add(img)
	}
	for _, img := range r.ExtraImages {
		add(img)
	}
	add(r.PDFURL)
	return refs
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	if r.Images != nil {
		r.Images = append([]string(nil), r.Images...)
	}
	if r.ExtraImages != nil {
		r.ExtraImages = append([]string(nil), r.ExtraImages...)
	}
	return r
}

// Patch describes a partial update. Nil fields are left untouched.
type Patch struct {
	Title       *string   `json:"title,omitempty"`
	Body        *string   `json:"body,omitempty"`
	Year        *string   `json:"year,omitempty"`
	Category    *string   `json:"category,omitempty"`
	PublishedOn *string   `json:"published_on,omitempty"`
	CoverURL    *string   `json:"cover_url,omitempty"`
	ThumbURL    *string   `json:"thumb_url,omitempty"`
	PDFURL      *string   `json:"pdf_url,omitempty"`
	Images      *[]string `json:"images,omitempty"`
	Sort        *int      `json:"sort,omitempty"`
	IsPublished *bool     `json:"is_published,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Body == nil && p.Year == nil && p.Category == nil &&
		p.PublishedOn == nil && p.CoverURL == nil && p.ThumbURL == nil &&
		p.PDFURL == nil && p.Images == nil && p.Sort == nil && p.IsPublished == nil
}

// Apply returns a copy of r with the patch applied.
func (p Patch) Apply(r Record) Record {
	out := r.Clone()
	if p.Title != nil {
		out.Title = *p.Title
	}
	if p.Body != nil {
		out.Body = *p.Body
	}
	if p.Year != nil {
		out.Year = *p.Year
	}
	if p.Category != nil {
		out.Category = *p.Category
	}
	if p.PublishedOn != nil {
		out.PublishedOn = *p.PublishedOn
	}
	if p.CoverURL != nil {
		out.CoverURL = *p.CoverURL
	}
	if p.ThumbURL != nil {
		out.ThumbURL = *p.ThumbURL
	}
	if p.PDFURL != nil {
		out.PDFURL = *p.PDFURL
	}
	if p.Images != nil {
		out.Images = append([]string(nil), (*p.Images)...)
	}
	if p.Sort != nil {
		out.Sort = *p.Sort
	}
	if p.IsPublished != nil {
		out.IsPublished = *p.IsPublished
	}
	return out
}

// Ptr returns a pointer to v. Handy for building patches.
func Ptr[T any](v T) *T {
	return &v
}
