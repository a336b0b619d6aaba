// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

// Role is the caller's role as far as the catalog is concerned.
type Role int

// Caller roles
const (
	RoleAnonymous Role = iota
	RoleAdmin
)

func (r Role) String() string {
	if r == RoleAdmin {
		return "admin"
	}
	return "anonymous"
}
