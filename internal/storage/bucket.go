// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package storage provides the media bucket: a local filesystem bucket for
// single-node installs and an S3-compatible bucket backed by MinIO's client.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/olegiv/folio-go/internal/util"
)

// ErrObjectExists is returned by Upload when the key is taken and the
// upload was not an upsert.
var ErrObjectExists = errors.New("object already exists")

// UploadOptions controls a single upload.
type UploadOptions struct {
	ContentType  string
	CacheControl string
	// Upsert replaces an existing object instead of failing.
	Upsert bool
}

// Bucket is an object store namespace holding catalog media.
type Bucket interface {
	// Name returns the bucket name.
	Name() string
	// Upload stores data under key.
	Upload(ctx context.Context, key string, data []byte, opts UploadOptions) error
	// Remove deletes keys. Missing objects are not an error. Every key is
	// attempted even when some fail; the failures are joined.
	Remove(ctx context.Context, keys ...string) error
	// PublicURL returns the absolute URL of key. It performs no I/O.
	PublicURL(key string) string
}

// CleanKey validates a storage key and returns it without leading slashes.
func CleanKey(key string) (string, error) {
	k := strings.TrimLeft(strings.TrimSpace(key), "/")
	if k == "" {
		return "", fmt.Errorf("empty storage key")
	}
	if util.HasTraversal(k) || strings.Contains(k, "\\") {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return k, nil
}
