// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/olegiv/folio-go/internal/model"
)

func newTypedRecords(t *testing.T) (*TypedCache[[]model.Record], context.Context) {
	t.Helper()
	memCache := NewSimpleMemoryCache(time.Hour)
	t.Cleanup(func() { _ = memCache.Close() })
	return NewTypedCache[[]model.Record](memCache, time.Hour), context.Background()
}

func TestTypedCache_BasicOperations(t *testing.T) {
	c, ctx := newTypedRecords(t)

	recs := []model.Record{
		{ID: "w1", Kind: model.KindWork, Title: "Harbour", Images: []string{"a.jpg", "b.jpg"}},
		{ID: "w2", Kind: model.KindWork, Title: "Dunes", IsPublished: true},
	}

	if err := c.Set(ctx, "works:page:0", &recs); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, found := c.Get(ctx, "works:page:0")
	if !found {
		t.Fatal("expected to find works:page:0")
	}
	if len(*got) != 2 {
		t.Fatalf("got %d records, want 2", len(*got))
	}
	if (*got)[0].Title != "Harbour" || len((*got)[0].Images) != 2 {
		t.Errorf("first record = %+v", (*got)[0])
	}
	if !(*got)[1].IsPublished {
		t.Error("is_published lost in round trip")
	}
}

func TestTypedCache_CacheMiss(t *testing.T) {
	c, ctx := newTypedRecords(t)

	if _, found := c.Get(ctx, "nonexistent"); found {
		t.Error("expected not to find nonexistent key")
	}
}

func TestTypedCache_CorruptEntryIsMiss(t *testing.T) {
	memCache := NewSimpleMemoryCache(time.Hour)
	defer func() { _ = memCache.Close() }()
	ctx := context.Background()

	_ = memCache.Set(ctx, "broken", []byte("{not json"), 0)
	c := NewTypedCache[[]model.Record](memCache, time.Hour)

	if _, found := c.Get(ctx, "broken"); found {
		t.Error("undecodable entry should be reported as a miss")
	}
}

func TestTypedCache_DeleteAndHas(t *testing.T) {
	c, ctx := newTypedRecords(t)

	recs := []model.Record{{ID: "n1", Title: "Opening"}}
	_ = c.Set(ctx, "news:1", &recs)

	if !c.Has(ctx, "news:1") {
		t.Error("expected news:1 to exist")
	}
	if err := c.Delete(ctx, "news:1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if c.Has(ctx, "news:1") {
		t.Error("expected news:1 to be deleted")
	}
}

func TestTypedCache_SetWithTTL(t *testing.T) {
	c, ctx := newTypedRecords(t)

	recs := []model.Record{{ID: "p1"}}
	if err := c.SetWithTTL(ctx, "photos:1", &recs, 50*time.Millisecond); err != nil {
		t.Fatalf("SetWithTTL failed: %v", err)
	}

	if _, found := c.Get(ctx, "photos:1"); !found {
		t.Error("expected photos:1 to exist immediately")
	}

	time.Sleep(60 * time.Millisecond)

	if _, found := c.Get(ctx, "photos:1"); found {
		t.Error("expected photos:1 to be expired")
	}
}

func TestTypedCache_GetOrSet(t *testing.T) {
	c, ctx := newTypedRecords(t)

	callCount := 0
	loader := func() (*[]model.Record, error) {
		callCount++
		recs := []model.Record{{ID: "d1", Title: "Statement"}}
		return &recs, nil
	}

	got, err := c.GetOrSet(ctx, "documents:0", loader)
	if err != nil {
		t.Fatalf("GetOrSet failed: %v", err)
	}
	if callCount != 1 {
		t.Errorf("expected loader to be called once, got %d", callCount)
	}
	if (*got)[0].ID != "d1" {
		t.Errorf("got id %q, want d1", (*got)[0].ID)
	}

	if _, err := c.GetOrSet(ctx, "documents:0", loader); err != nil {
		t.Fatalf("GetOrSet failed: %v", err)
	}
	if callCount != 1 {
		t.Errorf("expected loader to still be called once, got %d", callCount)
	}
}

func TestTypedCache_GetOrSetError(t *testing.T) {
	c, ctx := newTypedRecords(t)

	expectedErr := errors.New("backend unavailable")
	_, err := c.GetOrSet(ctx, "works:0", func() (*[]model.Record, error) {
		return nil, expectedErr
	})
	if !errors.Is(err, expectedErr) {
		t.Errorf("expected %v, got %v", expectedErr, err)
	}

	if c.Has(ctx, "works:0") {
		t.Error("expected key to not be cached after error")
	}
}
