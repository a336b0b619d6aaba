// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/folio-go/internal/model"
	"github.com/olegiv/folio-go/internal/service"
	"github.com/olegiv/folio-go/internal/store"
)

// MutationResponse is the body returned by mutation endpoints.
type MutationResponse struct {
	Record  model.Record `json:"record"`
	Message string       `json:"message"`
	// CleanupPending is set when the mutation succeeded but some media
	// could not be removed from the bucket.
	CleanupPending bool `json:"cleanup_pending,omitempty"`
}

// BatchResponse is the body returned by the duplicate purge endpoint.
type BatchResponse struct {
	Deleted        []model.Record    `json:"deleted"`
	Failed         map[string]string `json:"failed,omitempty"`
	CleanupPending bool              `json:"cleanup_pending,omitempty"`
}

// maxUpsertBody bounds a whole upsert request, files included.
const maxUpsertBody = 4 * service.MaxUploadSize

// multipart form fields that carry files
const (
	fieldCover   = "cover"
	fieldGallery = "gallery"
	fieldPDF     = "pdf"
)

// UpsertRecord handles POST /api/v1/{kind} and PATCH /api/v1/{kind}/{id}.
//
// POST creates a record, or updates one when the form carries an id field.
// The body is either multipart/form-data (fields plus cover, gallery and
// pdf files) or a JSON patch.
func (h *Handler) UpsertRecord(w http.ResponseWriter, r *http.Request) {
	c, ok := h.requireCoordinator(w, r)
	if !ok {
		return
	}

	req, err := parseUpsert(w, r)
	if err != nil {
		WriteBadRequest(w, "Invalid request body", map[string]string{"body": err.Error()})
		return
	}
	if id := chi.URLParam(r, "id"); id != "" {
		req.id = id
	}

	res, err := c.Upsert(r.Context(), req.id, req.patch, req.files)
	if err != nil {
		h.writeServiceError(w, r, err, res.Message)
		return
	}
	resp := MutationResponse{Record: res.Record, Message: res.Message, CleanupPending: res.Cleanup != nil}
	if req.id == "" {
		WriteCreated(w, resp)
		return
	}
	WriteSuccess(w, resp, nil)
}

// TogglePublish handles POST /api/v1/{kind}/{id}/toggle.
func (h *Handler) TogglePublish(w http.ResponseWriter, r *http.Request) {
	c, ok := h.requireCoordinator(w, r)
	if !ok {
		return
	}
	res, err := c.TogglePublish(r.Context(), chi.URLParam(r, "id"))
	h.writeResult(w, r, res, err)
}

// MoveRecord handles POST /api/v1/{kind}/{id}/move?direction=up|down.
func (h *Handler) MoveRecord(w http.ResponseWriter, r *http.Request) {
	c, ok := h.requireCoordinator(w, r)
	if !ok {
		return
	}
	dir, ok := service.ParseDirection(r.URL.Query().Get("direction"))
	if !ok {
		WriteBadRequest(w, "Invalid direction", map[string]string{"direction": "must be up or down"})
		return
	}
	res, err := c.Move(r.Context(), chi.URLParam(r, "id"), dir)
	h.writeResult(w, r, res, err)
}

// DeleteRecord handles DELETE /api/v1/{kind}/{id}.
func (h *Handler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	c, ok := h.requireCoordinator(w, r)
	if !ok {
		return
	}
	res, err := c.DeleteRecord(r.Context(), chi.URLParam(r, "id"))
	h.writeResult(w, r, res, err)
}

// ListDuplicates handles GET /api/v1/{kind}/duplicates.
func (h *Handler) ListDuplicates(w http.ResponseWriter, r *http.Request) {
	c, ok := h.requireCoordinator(w, r)
	if !ok {
		return
	}
	groups, err := c.Duplicates(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err, "")
		return
	}
	WriteSuccess(w, groups, &Meta{Count: len(groups), Limit: len(groups)})
}

// PurgeDuplicates handles POST /api/v1/{kind}/duplicates/purge. Partial
// failures are reported in the body with a 200 status.
func (h *Handler) PurgeDuplicates(w http.ResponseWriter, r *http.Request) {
	c, ok := h.requireCoordinator(w, r)
	if !ok {
		return
	}
	res, err := c.PurgeDuplicates(r.Context())
	if err != nil && len(res.Failed) == 0 {
		h.writeServiceError(w, r, err, "")
		return
	}
	WriteSuccess(w, BatchResponse{
		Deleted:        res.Deleted,
		Failed:         res.Failed,
		CleanupPending: res.Cleanup != nil,
	}, nil)
}

// ListEvents handles GET /api/v1/events.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		WriteNotFound(w, "Event log is not available")
		return
	}
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

	events, err := h.events.List(r.Context(), store.ListEventsParams{
		Level:    r.URL.Query().Get("level"),
		Category: r.URL.Query().Get("category"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		h.writeServiceError(w, r, err, "")
		return
	}
	WriteSuccess(w, events, &Meta{Offset: offset, Limit: limit, Count: len(events), HasMore: len(events) == limit})
}

func (h *Handler) writeResult(w http.ResponseWriter, r *http.Request, res service.Result, err error) {
	if err != nil {
		h.writeServiceError(w, r, err, res.Message)
		return
	}
	WriteSuccess(w, MutationResponse{
		Record:         res.Record,
		Message:        res.Message,
		CleanupPending: res.Cleanup != nil,
	}, nil)
}

type upsertRequest struct {
	id    string
	patch model.Patch
	files []model.MediaFile
}

func parseUpsert(w http.ResponseWriter, r *http.Request) (upsertRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpsertBody)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		return parseMultipartUpsert(r)
	case "application/json", "":
		var body struct {
			ID string `json:"id"`
			model.Patch
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return upsertRequest{}, errors.New("malformed JSON")
		}
		return upsertRequest{id: body.ID, patch: body.Patch}, nil
	default:
		return upsertRequest{}, fmt.Errorf("unsupported content type %q", mediaType)
	}
}

func parseMultipartUpsert(r *http.Request) (upsertRequest, error) {
	if err := r.ParseMultipartForm(service.MaxUploadSize); err != nil {
		return upsertRequest{}, errors.New("file too large or invalid form")
	}
	form := r.MultipartForm

	req := upsertRequest{id: strings.TrimSpace(formValue(form, "id"))}
	p := &req.patch
	p.Title = formString(form, "title")
	p.Body = formString(form, "body")
	p.Year = formString(form, "year")
	p.Category = formString(form, "category")
	p.PublishedOn = formString(form, "published_on")
	p.PDFURL = formString(form, "pdf_url")

	if v := formString(form, "sort"); v != nil {
		n, err := strconv.Atoi(strings.TrimSpace(*v))
		if err != nil {
			return upsertRequest{}, errors.New("sort must be a whole number")
		}
		p.Sort = &n
	}
	if v := formString(form, "is_published"); v != nil {
		b, err := parseFormBool(*v)
		if err != nil {
			return upsertRequest{}, errors.New("is_published must be a boolean")
		}
		p.IsPublished = &b
	}

	roles := []struct {
		field string
		role  model.MediaRole
	}{
		{fieldCover, model.MediaCover},
		{fieldGallery, model.MediaGallery},
		{fieldPDF, model.MediaPDF},
	}
	for _, fr := range roles {
		for _, fh := range form.File[fr.field] {
			f, err := readFormFile(fh, fr.role)
			if err != nil {
				return upsertRequest{}, err
			}
			req.files = append(req.files, f)
		}
	}
	return req, nil
}

func formValue(form *multipart.Form, name string) string {
	if v := form.Value[name]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// formString returns nil when the field is absent so that it stays
// untouched by the patch.
func formString(form *multipart.Form, name string) *string {
	v, ok := form.Value[name]
	if !ok || len(v) == 0 {
		return nil
	}
	return model.Ptr(v[0])
}

func parseFormBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "yes":
		return true, nil
	case "off", "no":
		return false, nil
	}
	return strconv.ParseBool(s)
}

func readFormFile(fh *multipart.FileHeader, role model.MediaRole) (model.MediaFile, error) {
	f, err := fh.Open()
	if err != nil {
		return model.MediaFile{}, fmt.Errorf("could not read %s", fh.Filename)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return model.MediaFile{}, fmt.Errorf("could not read %s", fh.Filename)
	}
	return model.MediaFile{
		Role:        role,
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
