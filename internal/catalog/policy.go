// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package catalog

import (
	"encoding/json"
	"strings"

	"github.com/olegiv/folio-go/internal/model"
)

// Action is a mutation a caller may perform on a record.
type Action string

// Mutation actions
const (
	ActionEdit   Action = "edit"
	ActionToggle Action = "toggle"
	ActionDelete Action = "delete"
)

// ActionSet is a set of actions.
type ActionSet uint8

const (
	actionEditBit ActionSet = 1 << iota
	actionToggleBit
	actionDeleteBit
)

// AllActions is the full admin action set.
const AllActions = actionEditBit | actionToggleBit | actionDeleteBit

// Has reports whether a is in the set.
func (s ActionSet) Has(a Action) bool {
	switch a {
	case ActionEdit:
		return s&actionEditBit != 0
	case ActionToggle:
		return s&actionToggleBit != 0
	case ActionDelete:
		return s&actionDeleteBit != 0
	default:
		return false
	}
}

// Empty reports whether no action is allowed.
func (s ActionSet) Empty() bool {
	return s == 0
}

// List returns the actions in a stable order.
func (s ActionSet) List() []Action {
	out := make([]Action, 0, 3)
	for _, a := range []Action{ActionEdit, ActionToggle, ActionDelete} {
		if s.Has(a) {
			out = append(out, a)
		}
	}
	return out
}

// MarshalJSON encodes the set as a list of action names.
func (s ActionSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.List())
}

// UnmarshalJSON decodes a list of action names. Unknown names are ignored.
func (s *ActionSet) UnmarshalJSON(b []byte) error {
	var names []Action
	if err := json.Unmarshal(b, &names); err != nil {
		return err
	}
	var set ActionSet
	for _, a := range names {
		switch a {
		case ActionEdit:
			set |= actionEditBit
		case ActionToggle:
			set |= actionToggleBit
		case ActionDelete:
			set |= actionDeleteBit
		}
	}
	*s = set
	return nil
}

// Policy decides which records a role may query and mutate.
type Policy struct {
	readOnlyPrefix string
}

// NewPolicy creates the default visibility policy. Records whose id starts
// with model.DemoIDPrefix are read-only for everybody.
func NewPolicy() *Policy {
	return &Policy{readOnlyPrefix: model.DemoIDPrefix}
}

// QueryFilter returns the backend filter for role. It must be pushed into
// the backend query so that ranges and hasMore reflect what role can see.
func (p *Policy) QueryFilter(role model.Role) model.Filter {
	if role == model.RoleAdmin {
		return model.Filter{}
	}
	return model.Filter{PublishedOnly: true}
}

// AllowedActions returns the actions role may perform on rec.
func (p *Policy) AllowedActions(role model.Role, rec model.Record) ActionSet {
	if role != model.RoleAdmin {
		return 0
	}
	if p.ReadOnly(rec) {
		return 0
	}
	return AllActions
}

// ReadOnly reports whether rec is a synthetic placeholder.
func (p *Policy) ReadOnly(rec model.Record) bool {
	return p.readOnlyPrefix != "" && strings.HasPrefix(rec.ID, p.readOnlyPrefix)
}
