// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"context"
	"fmt"
	"sort"
)

// Filter is the backend-side row predicate. It is pushed into the query so
// that ranges and counts match what the caller may see.
type Filter struct {
	PublishedOnly bool
	IDs           []string
}

// Matches evaluates the filter against an in-memory record.
func (f Filter) Matches(r Record) bool {
	if f.PublishedOnly && !r.IsPublished {
		return false
	}
	if len(f.IDs) > 0 {
		for _, id := range f.IDs {
			if id == r.ID {
				return true
			}
		}
		return false
	}
	return true
}

// Key is a stable string form of the filter, used for cache keys.
func (f Filter) Key() string {
	ids := append([]string(nil), f.IDs...)
	sort.Strings(ids)
	return fmt.Sprintf("pub=%t;ids=%v", f.PublishedOnly, ids)
}

// Order selects the row ordering of a query.
type Order int

// Supported orderings
const (
	// OrderSortCreatedDesc orders by sort ascending, newest first on ties.
	OrderSortCreatedDesc Order = iota
	// OrderCreatedDesc orders by creation time, newest first.
	OrderCreatedDesc
)

// Query is one select against a catalog table.
type Query struct {
	Table  string
	Filter Filter
	Order  Order
	Offset int
	Limit  int // 0 = no limit
}

// CacheKey returns a key identifying the query result.
func (q Query) CacheKey() string {
	return fmt.Sprintf("%s:%s:o=%d:%d+%d", q.Table, q.Filter.Key(), q.Order, q.Offset, q.Limit)
}

// Backend is the relational store the catalog reads from and mutates.
// Implementations must be safe for concurrent use.
type Backend interface {
	Select(ctx context.Context, q Query) ([]Record, error)
	Get(ctx context.Context, table, id string) (Record, error)
	Insert(ctx context.Context, table string, rec Record) (Record, error)
	Update(ctx context.Context, table, id string, patch Patch) (Record, error)
	// Delete removes the row and returns it as it was before deletion.
	Delete(ctx context.Context, table, id string) (Record, error)
}

// SortRecords orders records in place the way the backend orders them.
func SortRecords(recs []Record, order Order) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if order == OrderSortCreatedDesc && a.Sort != b.Sort {
			return a.Sort < b.Sort
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
}
