// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package media converts stored media references into display URLs and back
// into bucket storage keys. Everything here is pure string handling.
package media

import (
	"net/url"
	"strings"
)

// RefKind is the interpretation of a stored media reference.
type RefKind int

// Reference kinds. Exactly one applies to any string.
const (
	RefEmpty RefKind = iota
	RefSiteRelative
	RefExternalURL
	RefBucketKey
)

func (k RefKind) String() string {
	switch k {
	case RefSiteRelative:
		return "site-relative"
	case RefExternalURL:
		return "external-url"
	case RefBucketKey:
		return "bucket-key"
	default:
		return "empty"
	}
}

// Ref is a classified media reference.
type Ref struct {
	Raw  string
	Kind RefKind
	// Key is the storage key when the bucket owns the object, else empty.
	Key string
	// URL is the renderable address, empty only for RefEmpty.
	URL string
}

// BucketConfig describes where bucket objects are publicly served from.
type BucketConfig struct {
	// PublicBaseURL is the storage API root, e.g. https://x.supabase.co/storage/v1.
	PublicBaseURL string
	Bucket        string
}

// Resolver classifies references against one bucket.
type Resolver struct {
	base   string
	bucket string
}

// NewResolver creates a resolver for the given bucket.
func NewResolver(cfg BucketConfig) *Resolver {
	return &Resolver{
		base:   strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/"),
		bucket: strings.Trim(strings.TrimSpace(cfg.Bucket), "/"),
	}
}

// Bucket returns the bucket name.
func (r *Resolver) Bucket() string {
	return r.bucket
}

// Classify interprets raw. First match wins: site-relative path, absolute
// http(s) URL, otherwise a bucket-relative key.
func (r *Resolver) Classify(raw string) Ref {
	s := strings.TrimSpace(raw)
	switch {
	case s == "":
		return Ref{Raw: raw, Kind: RefEmpty}
	case strings.HasPrefix(s, "/"):
		return Ref{Raw: raw, Kind: RefSiteRelative, URL: s}
	case hasHTTPScheme(s):
		return Ref{Raw: raw, Kind: RefExternalURL, URL: s, Key: r.keyFromURL(s)}
	default:
		return Ref{Raw: raw, Kind: RefBucketKey, URL: r.PublicURL(s), Key: s}
	}
}

// DisplayURL returns a renderable URL for ref, or "" when ref is blank.
func (r *Resolver) DisplayURL(ref string) string {
	return r.Classify(ref).URL
}

// StorageKey returns the bucket key behind ref, or "" when the bucket does
// not own the referenced object.
func (r *Resolver) StorageKey(ref string) string {
	return r.Classify(ref).Key
}

// StorageKeys returns the distinct storage keys reachable from refs,
// in first-seen order.
func (r *Resolver) StorageKeys(refs []string) []string {
	seen := make(map[string]bool, len(refs))
	keys := make([]string, 0, len(refs))
	for _, ref := range refs {
		key := r.StorageKey(ref)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
	}
	return keys
}

// PublicURL builds the public object URL for a storage key.
func (r *Resolver) PublicURL(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return r.base + "/object/public/" + url.PathEscape(r.bucket) + "/" + strings.Join(segments, "/")
}

// keyFromURL extracts the key from public or signed object URLs of our
// bucket. Any other URL is externally hosted.
func (r *Resolver) keyFromURL(raw string) string {
	if r.bucket == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	p := u.EscapedPath()
	bucket := url.PathEscape(r.bucket)
	for _, marker := range []string{"/object/public/", "/object/sign/"} {
		idx := strings.Index(p, marker+bucket+"/")
		if idx < 0 {
			continue
		}
		escaped := p[idx+len(marker)+len(bucket)+1:]
		key, err := url.PathUnescape(escaped)
		if err != nil || key == "" {
			return ""
		}
		return key
	}
	return ""
}

func hasHTTPScheme(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
