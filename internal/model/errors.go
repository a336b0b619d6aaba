// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrReadOnly is returned when a mutation targets a read-only record.
var ErrReadOnly = errors.New("record is read-only")

// TransientError reports that the backend or bucket could not be reached.
// The user may retry the same action; it is never retried automatically.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: service unavailable: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// ValidationError reports invalid input caught before any network call.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "invalid input"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, name := range sortedKeys(e.Fields) {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// ConflictError reports a write rejected by the backend, e.g. a constraint
// violation. Detail is the backend's own message.
type ConflictError struct {
	Detail string
	Err    error
}

func (e *ConflictError) Error() string {
	return "conflict: " + e.Detail
}

func (e *ConflictError) Unwrap() error { return e.Err }

// CleanupFailure records a storage deletion that failed after the row
// mutation succeeded. It is logged, never returned as an operation failure.
type CleanupFailure struct {
	Table    string
	RecordID string
	Keys     []string
	Err      error
}

func (e *CleanupFailure) Error() string {
	return fmt.Sprintf("storage cleanup for %s/%s failed (%d keys): %v", e.Table, e.RecordID, len(e.Keys), e.Err)
}

func (e *CleanupFailure) Unwrap() error { return e.Err }

// IsTransient reports whether err is a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// UserMessage builds a message suitable for display from any error in the
// taxonomy. Unknown errors keep their text; stack traces never appear.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var (
		ve *ValidationError
		ce *ConflictError
		te *TransientError
	)
	switch {
	case errors.As(err, &ve):
		return ve.Error()
	case errors.As(err, &ce):
		return ce.Detail
	case errors.As(err, &te):
		return "The service could not be reached. Please try again."
	case errors.Is(err, ErrNotFound):
		return "The record no longer exists."
	case errors.Is(err, ErrReadOnly):
		return "This record is read-only."
	default:
		return err.Error()
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
