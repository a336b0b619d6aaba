// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/folio-go/internal/catalog"
	"github.com/olegiv/folio-go/internal/middleware"
	"github.com/olegiv/folio-go/internal/model"
)

// ListRecords handles GET /api/v1/{kind}.
//
// Query parameters: offset, limit, q (search) and category. The search and
// category filter narrow the fetched page only; paging always follows the
// backend order. When the backend cannot be reached for the first page,
// the static fallback dataset is served instead.
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	kind, ok := requireKind(w, r)
	if !ok {
		return
	}
	role := middleware.GetRole(r)

	offset, err := queryInt(r, "offset", 0, 0, 0)
	if err != nil {
		WriteBadRequest(w, "Invalid offset", map[string]string{"offset": err.Error()})
		return
	}
	limit, err := queryInt(r, "limit", h.pageSize, 1, MaxPageSize)
	if err != nil {
		WriteBadRequest(w, "Invalid limit", map[string]string{"limit": err.Error()})
		return
	}
	filter := catalog.ClientFilter{
		Search:   r.URL.Query().Get("q"),
		Category: r.URL.Query().Get("category"),
	}

	page, err := catalog.FetchPage(r.Context(), h.backend, h.normalizer, catalog.PageRequest{
		Kind:   kind,
		Role:   role,
		Offset: offset,
		Limit:  limit,
	})
	meta := &Meta{Offset: offset, Limit: limit}
	if err != nil {
		recs, ok := h.fallbackPage(kind, role, offset)
		if !ok || !catalog.Unreachable(r.Context(), err) {
			h.writeServiceError(w, r, err, "")
			return
		}
		h.logger.Warn("catalog backend unavailable, serving fallback", "kind", kind, "error", err)
		page = catalog.Page{Records: recs}
		meta.Fallback = true
	}

	visible := filter.Apply(page.Records)
	meta.Count = len(visible)
	meta.HasMore = page.HasMore
	meta.Categories = catalog.Categories(page.Records)
	WriteSuccess(w, visible, meta)
}

func (h *Handler) fallbackPage(kind model.Kind, role model.Role, offset int) ([]catalog.NormalizedRecord, bool) {
	if h.fallback == nil || offset != 0 {
		return nil, false
	}
	recs, ok := h.fallback.Records(kind)
	if !ok {
		return nil, false
	}
	return h.normalizer.NormalizeAll(recs, role), true
}

// GetRecord handles GET /api/v1/{kind}/{id}. Records the caller may not
// see are reported as missing.
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	kind, ok := requireKind(w, r)
	if !ok {
		return
	}
	role := middleware.GetRole(r)
	id := chi.URLParam(r, "id")

	rec, err := h.backend.Get(r.Context(), kind.Table(), id)
	if errors.Is(err, model.ErrNotFound) && model.IsDemoID(id) {
		rec, err = h.fallbackRecord(kind, id)
	}
	if err != nil {
		h.writeServiceError(w, r, err, "")
		return
	}
	if !h.normalizer.Policy().QueryFilter(role).Matches(rec) {
		WriteNotFound(w, model.UserMessage(model.ErrNotFound))
		return
	}
	WriteSuccess(w, h.normalizer.Normalize(rec, role), nil)
}

func (h *Handler) fallbackRecord(kind model.Kind, id string) (model.Record, error) {
	if h.fallback != nil {
		recs, _ := h.fallback.Records(kind)
		for _, rec := range recs {
			if rec.ID == id {
				return rec, nil
			}
		}
	}
	return model.Record{}, model.ErrNotFound
}
