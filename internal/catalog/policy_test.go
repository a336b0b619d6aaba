// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package catalog

import (
	"encoding/json"
	"testing"

	"github.com/olegiv/folio-go/internal/model"
)

func TestPolicy_AnonymousFilter(t *testing.T) {
	p := NewPolicy()
	recs := []model.Record{
		{ID: "1", IsPublished: true},
		{ID: "2", IsPublished: false},
		{ID: "3", IsPublished: true},
		{ID: "4"},
	}

	f := p.QueryFilter(model.RoleAnonymous)
	var got []string
	for _, r := range recs {
		if f.Matches(r) {
			got = append(got, r.ID)
		}
		if !p.AllowedActions(model.RoleAnonymous, r).Empty() {
			t.Errorf("anonymous actions for %s not empty", r.ID)
		}
	}
	if len(got) != 2 || got[0] != "1" || got[1] != "3" {
		t.Errorf("visible = %v, want [1 3]", got)
	}
}

func TestPolicy_AdminActions(t *testing.T) {
	p := NewPolicy()

	tests := []struct {
		name string
		rec  model.Record
		want []Action
	}{
		{"regular", model.Record{ID: "abc"}, []Action{ActionEdit, ActionToggle, ActionDelete}},
		{"draft", model.Record{ID: "abc", IsPublished: false}, []Action{ActionEdit, ActionToggle, ActionDelete}},
		{"demo", model.Record{ID: "demo-1"}, []Action{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.AllowedActions(model.RoleAdmin, tt.rec).List()
			if len(got) != len(tt.want) {
				t.Fatalf("actions = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("actions[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}

	if !p.QueryFilter(model.RoleAdmin).Matches(model.Record{IsPublished: false}) {
		t.Error("admin filter should include drafts")
	}
}

func TestActionSet_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(AllActions)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(b) != `["edit","toggle","delete"]` {
		t.Errorf("json = %s", b)
	}

	b, err = json.Marshal(ActionSet(0))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(b) != `[]` {
		t.Errorf("json = %s, want []", b)
	}
}

func TestActionSet_UnmarshalJSON(t *testing.T) {
	var s ActionSet
	if err := json.Unmarshal([]byte(`["delete","edit","publish"]`), &s); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !s.Has(ActionDelete) || !s.Has(ActionEdit) || s.Has(ActionToggle) {
		t.Errorf("set = %v, want edit and delete", s.List())
	}
	if err := json.Unmarshal([]byte(`"edit"`), &s); err == nil {
		t.Error("Unmarshal of a string succeeded, want error")
	}
}
