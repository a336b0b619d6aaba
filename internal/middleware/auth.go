// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/olegiv/folio-go/internal/auth"
	"github.com/olegiv/folio-go/internal/model"
)

// TokenAuth resolves the caller's role from a bearer token checked against
// the configured hash of the admin token (argon2id or bcrypt).
type TokenAuth struct {
	hash string

	// verified holds sha256 digests of tokens that already passed the hash check.
	verified sync.Map
}

// NewTokenAuth creates a resolver for hash. An empty hash disables admin
// access: every caller is anonymous.
func NewTokenAuth(hash string) *TokenAuth {
	return &TokenAuth{hash: hash}
}

// HashToken returns the hash to configure for token.
func HashToken(token string) (string, error) {
	return auth.HashToken(token)
}

// Enabled reports whether an admin token is configured.
func (a *TokenAuth) Enabled() bool {
	return len(a.hash) > 0
}

// Verify reports whether token is the admin token.
func (a *TokenAuth) Verify(token string) bool {
	if !a.Enabled() || token == "" {
		return false
	}
	sum := sha256.Sum256([]byte(token))
	digest := hex.EncodeToString(sum[:])
	if _, ok := a.verified.Load(digest); ok {
		return true
	}
	ok, err := auth.VerifyToken(token, a.hash)
	if err != nil {
		slog.Error("admin token hash cannot be verified", "error", err)
		return false
	}
	if !ok {
		return false
	}
	a.verified.Store(digest, struct{}{})
	return true
}

// bearerToken extracts the token from an "Authorization: Bearer" header.
func bearerToken(r *http.Request) (token string, present bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", true
	}
	return strings.TrimSpace(parts[1]), true
}

// ResolveRole stores the caller's role in the request context. A missing
// or invalid token leaves the caller anonymous.
func (a *TokenAuth) ResolveRole(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role := model.RoleAnonymous
		if token, ok := bearerToken(r); ok {
			if a.Verify(token) {
				role = model.RoleAdmin
			} else {
				slog.Debug("rejected admin token", "ip", getClientIP(r), "path", r.URL.Path)
			}
		}
		next.ServeHTTP(w, r.WithContext(WithRole(r.Context(), role)))
	})
}

// RequireAdmin rejects callers that did not resolve to the admin role.
// It must run after ResolveRole.
func (a *TokenAuth) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetRole(r) == model.RoleAdmin {
			next.ServeHTTP(w, r)
			return
		}
		switch _, present := bearerToken(r); {
		case !a.Enabled():
			WriteAPIError(w, http.StatusForbidden, CodeForbidden, "Admin access is disabled", nil)
		case !present:
			WriteAPIError(w, http.StatusUnauthorized, CodeUnauthorized, "Missing Authorization header", nil)
		default:
			slog.Warn("admin request with invalid token", "ip", getClientIP(r), "path", r.URL.Path)
			WriteAPIError(w, http.StatusUnauthorized, CodeUnauthorized, "Invalid admin token", nil)
		}
	})
}

// WithRole returns a context carrying role.
func WithRole(ctx context.Context, role model.Role) context.Context {
	return context.WithValue(ctx, ContextKeyRole, role)
}

// GetRole returns the role stored by ResolveRole, anonymous when unset.
func GetRole(r *http.Request) model.Role {
	role, ok := r.Context().Value(ContextKeyRole).(model.Role)
	if !ok {
		return model.RoleAnonymous
	}
	return role
}
