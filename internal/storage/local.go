// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/olegiv/folio-go/internal/media"
	"github.com/olegiv/folio-go/internal/util"
)

// Local is a bucket stored on the local filesystem under <dir>/<bucket>.
type Local struct {
	root     string
	name     string
	resolver *media.Resolver
}

var _ Bucket = (*Local)(nil)

// NewLocal creates the bucket directory if needed. Public URLs are built
// by resolver, which must be configured for the same bucket.
func NewLocal(dir string, resolver *media.Resolver) (*Local, error) {
	name := resolver.Bucket()
	if name == "" {
		return nil, fmt.Errorf("local bucket: empty bucket name")
	}
	root, err := util.JoinKey(dir, name)
	if err != nil {
		return nil, fmt.Errorf("local bucket: %w", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating bucket directory: %w", err)
	}
	return &Local{root: root, name: name, resolver: resolver}, nil
}

// Name implements Bucket.
func (l *Local) Name() string {
	return l.name
}

// Root returns the directory holding the objects.
func (l *Local) Root() string {
	return l.root
}

// PublicURL implements Bucket.
func (l *Local) PublicURL(key string) string {
	return l.resolver.PublicURL(key)
}

// Upload implements Bucket. The object is written to a temp file first and
// renamed into place.
func (l *Local) Upload(ctx context.Context, key string, data []byte, opts UploadOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := l.path(key)
	if err != nil {
		return err
	}
	if !opts.Upsert {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s: %w", key, ErrObjectExists)
		}
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating object directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("creating temp object: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing object %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing object %s: %w", key, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("storing object %s: %w", key, err)
	}
	return nil
}

// Remove implements Bucket. Emptied directories are pruned.
func (l *Local) Remove(ctx context.Context, keys ...string) error {
	var errs []error
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		path, err := l.path(key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("removing %s: %w", key, err))
			continue
		}
		l.pruneDirs(filepath.Dir(path))
	}
	return errors.Join(errs...)
}

// Exists reports whether key is stored.
func (l *Local) Exists(key string) bool {
	path, err := l.path(key)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Handler serves objects by key. Directory listings are refused.
func (l *Local) Handler() http.Handler {
	fileServer := http.FileServer(http.Dir(l.root))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") || util.HasTraversal(r.URL.Path) {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("X-Content-Type-Options", "nosniff")
		fileServer.ServeHTTP(w, r)
	})
}

func (l *Local) path(key string) (string, error) {
	k, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	return util.JoinKey(l.root, k)
}

// pruneDirs removes empty directories up to the bucket root.
func (l *Local) pruneDirs(dir string) {
	for dir != l.root && strings.HasPrefix(dir, l.root) {
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}
