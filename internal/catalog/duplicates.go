// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package catalog

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/olegiv/folio-go/internal/model"
)

const fingerprintSep = "\x1f"

// DuplicateGroup is a set of records sharing a fingerprint.
type DuplicateGroup struct {
	Fingerprint string         `json:"fingerprint"`
	Keep        model.Record   `json:"keep"`
	Discard     []model.Record `json:"discard"`
}

// Fingerprint returns the content fingerprint of rec, or "" when the record
// has no title, body or date.
func Fingerprint(rec model.Record) string {
	title := normalizeText(rec.Title)
	body := normalizeText(rec.Body)
	date := dayOf(rec.PublishedOn)
	if title == "" && body == "" && date == "" {
		return ""
	}
	return title + fingerprintSep + body + fingerprintSep + date
}

// FindDuplicates returns the records that should be discarded, in input
// order. In each group of equal fingerprints the newest record by
// CreatedAt is kept; ties go to the greatest id. Records with an empty
// fingerprint are never duplicates.
func FindDuplicates(recs []model.Record) []model.Record {
	groups := GroupDuplicates(recs)
	drop := make(map[string]bool)
	for _, g := range groups {
		for _, r := range g.Discard {
			drop[r.ID] = true
		}
	}
	var out []model.Record
	for _, r := range recs {
		if drop[r.ID] {
			out = append(out, r)
		}
	}
	return out
}

// GroupDuplicates returns every group with more than one member, ordered
// by the position of its first member in recs.
func GroupDuplicates(recs []model.Record) []DuplicateGroup {
	byPrint := make(map[string][]model.Record)
	var order []string
	for _, r := range recs {
		fp := Fingerprint(r)
		if fp == "" {
			continue
		}
		if _, ok := byPrint[fp]; !ok {
			order = append(order, fp)
		}
		byPrint[fp] = append(byPrint[fp], r)
	}

	var groups []DuplicateGroup
	for _, fp := range order {
		members := byPrint[fp]
		if len(members) < 2 {
			continue
		}
		ranked := append([]model.Record(nil), members...)
		sort.SliceStable(ranked, func(i, j int) bool {
			return newer(ranked[i], ranked[j])
		})
		groups = append(groups, DuplicateGroup{
			Fingerprint: fp,
			Keep:        ranked[0],
			Discard:     ranked[1:],
		})
	}
	return groups
}

func newer(a, b model.Record) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// normalizeText folds case and compatibility forms and collapses
// whitespace. Control characters count as whitespace, which keeps
// fingerprintSep out of every field.
func normalizeText(s string) string {
	s = strings.ToLower(norm.NFKC.String(s))
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	}), " ")
}

func dayOf(s string) string {
	if t, ok := parseDate(s); ok {
		return t.Format("2006-01-02")
	}
	s = normalizeText(s)
	if len(s) > 10 {
		return s[:10]
	}
	return s
}
