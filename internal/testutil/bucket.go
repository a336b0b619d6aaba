// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/olegiv/folio-go/internal/storage"
)

// Bucket is an in-memory storage.Bucket for tests.
type Bucket struct {
	mu      sync.Mutex
	name    string
	objects map[string][]byte
	types   map[string]string
	removes [][]string

	// Journal, when set, receives "upload <key>" and "remove <n>" entries.
	Journal *Journal

	UploadErr error
	RemoveErr error
}

// NewBucket creates an empty bucket.
func NewBucket(name string) *Bucket {
	return &Bucket{
		name:    name,
		objects: make(map[string][]byte),
		types:   make(map[string]string),
	}
}

// Name implements storage.Bucket.
func (b *Bucket) Name() string {
	return b.name
}

// PublicURL implements storage.Bucket.
func (b *Bucket) PublicURL(key string) string {
	return fmt.Sprintf("https://cdn.test/storage/v1/object/public/%s/%s", b.name, strings.TrimLeft(key, "/"))
}

// Upload implements storage.Bucket.
func (b *Bucket) Upload(ctx context.Context, key string, data []byte, opts storage.UploadOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Journal.Add("upload " + key)
	if b.UploadErr != nil {
		return b.UploadErr
	}
	if _, ok := b.objects[key]; ok && !opts.Upsert {
		return storage.ErrObjectExists
	}
	b.objects[key] = append([]byte(nil), data...)
	b.types[key] = opts.ContentType
	return nil
}

// Remove implements storage.Bucket. Every call is recorded, failing or not.
func (b *Bucket) Remove(_ context.Context, keys ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removes = append(b.removes, append([]string(nil), keys...))
	b.Journal.Add(fmt.Sprintf("remove %d", len(keys)))
	if b.RemoveErr != nil {
		return b.RemoveErr
	}
	for _, k := range keys {
		delete(b.objects, k)
		delete(b.types, k)
	}
	return nil
}

// Keys returns the stored keys, sorted.
func (b *Bucket) Keys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	keys := make([]string, 0, len(b.objects))
	for k := range b.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Object returns the data and content type stored under key.
func (b *Bucket) Object(key string) ([]byte, string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	return data, b.types[key], ok
}

// Put stores an object directly, bypassing the journal.
func (b *Bucket) Put(key string, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
}

// Removes returns the key lists passed to each Remove call.
func (b *Bucket) Removes() [][]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([][]string, len(b.removes))
	for i, r := range b.removes {
		out[i] = append([]string(nil), r...)
	}
	return out
}

var _ storage.Bucket = (*Bucket)(nil)
