// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package util

import (
	"fmt"
	"path/filepath"
	"strings"
)

// isSep reports whether r separates path segments in a storage key or an
// uploaded filename. Browsers on Windows may send backslash paths.
func isSep(r rune) bool {
	return r == '/' || r == '\\'
}

// UploadBaseName returns the last segment of an uploaded filename, dropping
// any client-side directories in either slash style.
func UploadBaseName(filename string) (string, error) {
	segments := strings.FieldsFunc(strings.TrimSpace(filename), isSep)
	if len(segments) == 0 {
		return "", fmt.Errorf("invalid filename: %q", filename)
	}
	base := strings.TrimSpace(segments[len(segments)-1])
	if base == "" || base == "." || base == ".." {
		return "", fmt.Errorf("invalid filename: %q", filename)
	}
	return base, nil
}

// HasTraversal reports whether key has a ".." segment. Keys are matched
// segment by segment without cleaning, so "works/../x" is rejected even
// though it would stay inside the bucket.
func HasTraversal(key string) bool {
	for _, seg := range strings.FieldsFunc(key, isSep) {
		if seg == ".." {
			return true
		}
	}
	return false
}

// JoinKey maps a slash-separated storage key to a file below root and
// fails when the result would leave root.
func JoinKey(root, key string) (string, error) {
	if HasTraversal(key) {
		return "", fmt.Errorf("path traversal detected in %q", key)
	}
	full := filepath.Join(root, filepath.FromSlash(key))
	if err := within(root, full); err != nil {
		return "", err
	}
	return full, nil
}

func within(root, target string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("invalid base path: %w", err)
	}
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return fmt.Errorf("invalid target path: %w", err)
	}
	rel, err := filepath.Rel(absRoot, absTarget)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path traversal detected: path escapes base directory")
	}
	return nil
}
