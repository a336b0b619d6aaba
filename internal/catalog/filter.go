// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package catalog

import "strings"

// CategoryAll matches every category.
const CategoryAll = "all"

// ClientFilter narrows the loaded records without another backend round
// trip. It never widens what the visibility policy let through.
type ClientFilter struct {
	Search   string `json:"search,omitempty"`
	Category string `json:"category,omitempty"`
}

// NormalizeCategory trims and lowercases a category name.
func NormalizeCategory(c string) string {
	return strings.ToLower(strings.TrimSpace(c))
}

// IsZero reports whether the filter matches everything.
func (f ClientFilter) IsZero() bool {
	cat := NormalizeCategory(f.Category)
	return strings.TrimSpace(f.Search) == "" && (cat == "" || cat == CategoryAll)
}

// Matches reports whether rec passes the filter.
func (f ClientFilter) Matches(rec NormalizedRecord) bool {
	cat := NormalizeCategory(f.Category)
	if cat != "" && cat != CategoryAll && NormalizeCategory(rec.Category) != cat {
		return false
	}
	search := strings.ToLower(strings.TrimSpace(f.Search))
	if search == "" {
		return true
	}
	haystack := strings.ToLower(rec.Title + " " + rec.Year + " " + rec.Category)
	return strings.Contains(haystack, search)
}

// Apply returns the records passing the filter, in order.
func (f ClientFilter) Apply(recs []NormalizedRecord) []NormalizedRecord {
	if f.IsZero() {
		return append([]NormalizedRecord(nil), recs...)
	}
	out := make([]NormalizedRecord, 0, len(recs))
	for _, r := range recs {
		if f.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}

// Categories lists the distinct normalized categories of recs in first-seen
// order.
func Categories(recs []NormalizedRecord) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range recs {
		c := NormalizeCategory(r.Category)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
