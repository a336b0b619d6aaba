// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package catalog

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/olegiv/folio-go/internal/model"
)

// PageRequest selects one page of a catalog kind for a role.
type PageRequest struct {
	Kind   model.Kind
	Role   model.Role
	Order  model.Order
	Offset int
	Limit  int
}

// Page is one normalized page.
type Page struct {
	Records []NormalizedRecord
	HasMore bool
}

// Unreachable reports whether err means the backend could not be reached,
// as opposed to the caller giving up or the request being rejected. Only
// such failures justify serving the fallback dataset.
func Unreachable(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	return model.IsTransient(err) || errors.As(err, &netErr)
}

// FetchPage runs the page query through the visibility policy and
// normalizes the rows. HasMore is true when a full page came back.
func FetchPage(ctx context.Context, backend model.Backend, n *Normalizer, req PageRequest) (Page, error) {
	if !req.Kind.Valid() {
		return Page{}, fmt.Errorf("unknown catalog kind %q", req.Kind)
	}
	if req.Limit <= 0 {
		req.Limit = DefaultPageSize
	}
	if req.Offset < 0 {
		req.Offset = 0
	}
	rows, err := backend.Select(ctx, model.Query{
		Table:  req.Kind.Table(),
		Filter: n.Policy().QueryFilter(req.Role),
		Order:  req.Order,
		Offset: req.Offset,
		Limit:  req.Limit,
	})
	if err != nil {
		return Page{}, fmt.Errorf("loading %s page at %d: %w", req.Kind, req.Offset, err)
	}
	for i := range rows {
		if rows[i].Kind == "" {
			rows[i].Kind = req.Kind
		}
	}
	return Page{
		Records: n.NormalizeAll(rows, req.Role),
		HasMore: len(rows) == req.Limit,
	}, nil
}

// FetchAll pages through every record of kind visible to role.
func FetchAll(ctx context.Context, backend model.Backend, n *Normalizer, kind model.Kind, role model.Role, pageSize int) ([]NormalizedRecord, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	var all []NormalizedRecord
	for offset := 0; ; offset += pageSize {
		page, err := FetchPage(ctx, backend, n, PageRequest{
			Kind:   kind,
			Role:   role,
			Offset: offset,
			Limit:  pageSize,
		})
		if err != nil {
			return nil, err
		}
		all = append(all, page.Records...)
		if !page.HasMore {
			return all, nil
		}
	}
}
