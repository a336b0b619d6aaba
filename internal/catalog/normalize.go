// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package catalog implements the read side of the content catalog: record
// normalization, the visibility policy, the paginated page store and the
// duplicate detector.
package catalog

import (
	"bytes"
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/olegiv/folio-go/internal/media"
	"github.com/olegiv/folio-go/internal/model"
)

// DefaultExcerptLength is the excerpt size in runes.
const DefaultExcerptLength = 160

// DisplayDateLayout is the layout used for DisplayDate.
const DisplayDateLayout = "2 January 2006"

// Status labels shown to admins.
const (
	StatusPublished = "Published"
	StatusDraft     = "Draft"
)

// NormalizedRecord is a record enriched for rendering. It is derived data
// and is never written back to the backend.
type NormalizedRecord struct {
	model.Record
	ResolvedImages []string  `json:"resolved_images"`
	PDFLink        string    `json:"pdf_link,omitempty"`
	StatusLabel    string    `json:"status_label,omitempty"`
	Actions        ActionSet `json:"actions"`
	BodyHTML       string    `json:"body_html,omitempty"`
	Excerpt        string    `json:"excerpt,omitempty"`
	DisplayDate    string    `json:"display_date,omitempty"`
}

// Normalizer turns raw records into NormalizedRecords.
type Normalizer struct {
	resolver   *media.Resolver
	policy     *Policy
	md         goldmark.Markdown
	sanitizer  *bluemonday.Policy
	stripper   *bluemonday.Policy
	excerptLen int
}

// NewNormalizer creates a normalizer using resolver for media references
// and policy for allowed actions.
func NewNormalizer(resolver *media.Resolver, policy *Policy) *Normalizer {
	if policy == nil {
		policy = NewPolicy()
	}
	return &Normalizer{
		resolver: resolver,
		policy:   policy,
		md: goldmark.New(
			goldmark.WithExtensions(extension.Linkify, extension.Strikethrough),
		),
		sanitizer:  bluemonday.UGCPolicy(),
		stripper:   bluemonday.StrictPolicy(),
		excerptLen: DefaultExcerptLength,
	}
}

// Policy returns the policy used for allowed actions.
func (n *Normalizer) Policy() *Policy {
	return n.policy
}

// Resolver returns the media resolver.
func (n *Normalizer) Resolver() *media.Resolver {
	return n.resolver
}

// Normalize derives the renderable form of rec for role. It never fails:
// a body that cannot be rendered is left without HTML.
func (n *Normalizer) Normalize(rec model.Record, role model.Role) NormalizedRecord {
	out := NormalizedRecord{
		Record:         rec.Clone(),
		ResolvedImages: n.resolveImages(rec),
		PDFLink:        n.resolver.DisplayURL(rec.PDFURL),
		Actions:        n.policy.AllowedActions(role, rec),
		DisplayDate:    displayDate(rec),
	}
	if role == model.RoleAdmin {
		if rec.IsPublished {
			out.StatusLabel = StatusPublished
		} else {
			out.StatusLabel = StatusDraft
		}
	}
	if strings.TrimSpace(rec.Body) != "" {
		out.BodyHTML = n.renderBody(rec.Body)
		out.Excerpt = n.excerpt(out.BodyHTML)
	}
	return out
}

// NormalizeAll normalizes a slice of records.
func (n *Normalizer) NormalizeAll(recs []model.Record, role model.Role) []NormalizedRecord {
	out := make([]NormalizedRecord, 0, len(recs))
	for _, r := range recs {
		out = append(out, n.Normalize(r, role))
	}
	return out
}

func (n *Normalizer) resolveImages(rec model.Record) []string {
	candidates := make([]string, 0, 2+len(rec.Images)+len(rec.ExtraImages))
	candidates = append(candidates, rec.CoverURL, rec.ThumbURL)
	candidates = append(candidates, rec.Images...)
	candidates = append(candidates, rec.ExtraImages...)

	seen := make(map[string]struct{}, len(candidates))
	resolved := make([]string, 0, len(candidates))
	for _, c := range candidates {
		u := n.resolver.DisplayURL(c)
		if u == "" {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		resolved = append(resolved, u)
	}
	return resolved
}

func (n *Normalizer) renderBody(body string) string {
	var buf bytes.Buffer
	if err := n.md.Convert([]byte(body), &buf); err != nil {
		return ""
	}
	return n.sanitizer.Sanitize(buf.String())
}

func (n *Normalizer) excerpt(bodyHTML string) string {
	text := html.UnescapeString(n.stripper.Sanitize(bodyHTML))
	return truncateWords(strings.Join(strings.Fields(text), " "), n.excerptLen)
}

// truncateWords cuts s to at most limit runes on a word boundary and
// appends an ellipsis when anything was removed.
func truncateWords(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	cut := string(runes[:limit])
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,.;:") + "…"
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseDate parses the date formats the backends store.
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func displayDate(rec model.Record) string {
	if t, ok := parseDate(rec.PublishedOn); ok {
		return t.Format(DisplayDateLayout)
	}
	return strings.TrimSpace(rec.Year)
}
