// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package api provides the REST API of the catalog.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/folio-go/internal/catalog"
	"github.com/olegiv/folio-go/internal/model"
	"github.com/olegiv/folio-go/internal/service"
)

// MaxPageSize caps the limit query parameter.
const MaxPageSize = 200

// Config holds the dependencies of the API handlers.
type Config struct {
	// Backend serves reads; it is usually the cached backend.
	Backend      model.Backend
	Normalizer   *catalog.Normalizer
	Coordinators map[model.Kind]*service.Coordinator
	// Events lists the event log. Nil disables the events endpoint.
	Events *service.EventService
	// Fallback serves a static first page when the backend is unreachable.
	Fallback catalog.FallbackSource
	PageSize int
	Logger   *slog.Logger
}

// Handler holds shared dependencies for all API handlers.
type Handler struct {
	backend      model.Backend
	normalizer   *catalog.Normalizer
	coordinators map[model.Kind]*service.Coordinator
	events       *service.EventService
	fallback     catalog.FallbackSource
	pageSize     int
	logger       *slog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(cfg Config) *Handler {
	if cfg.PageSize <= 0 {
		cfg.PageSize = catalog.DefaultPageSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Handler{
		backend:      cfg.Backend,
		normalizer:   cfg.Normalizer,
		coordinators: cfg.Coordinators,
		events:       cfg.Events,
		fallback:     cfg.Fallback,
		pageSize:     cfg.PageSize,
		logger:       cfg.Logger,
	}
}

// Response is the standard API response wrapper.
type Response struct {
	Data any   `json:"data,omitempty"`
	Meta *Meta `json:"meta,omitempty"`
}

// Meta contains pagination and other metadata.
type Meta struct {
	Offset     int      `json:"offset"`
	Limit      int      `json:"limit"`
	Count      int      `json:"count"`
	HasMore    bool     `json:"has_more"`
	Categories []string `json:"categories,omitempty"`
	Fallback   bool     `json:"fallback,omitempty"`
}

// ErrorResponse is the standard API error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a successful JSON response.
func WriteSuccess(w http.ResponseWriter, data any, meta *Meta) {
	WriteJSON(w, http.StatusOK, Response{Data: data, Meta: meta})
}

// WriteCreated writes a 201 Created JSON response.
func WriteCreated(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusCreated, Response{Data: data})
}

// WriteError writes an error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, code, message string, details map[string]string) {
	WriteJSON(w, statusCode, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// WriteBadRequest writes a 400 Bad Request response.
func WriteBadRequest(w http.ResponseWriter, message string, details map[string]string) {
	WriteError(w, http.StatusBadRequest, "bad_request", message, details)
}

// WriteNotFound writes a 404 Not Found response.
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, "not_found", message, nil)
}

// WriteInternalError writes a 500 Internal Server Error response.
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "internal_error", message, nil)
}

// WriteValidationError writes a 400 response with field errors.
func WriteValidationError(w http.ResponseWriter, fieldErrors map[string]string) {
	WriteError(w, http.StatusBadRequest, "validation_error", "Validation failed", fieldErrors)
}

// writeServiceError maps the error taxonomy onto HTTP statuses. message is
// the user-facing text from the operation result, if any.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, message string) {
	if message == "" {
		message = model.UserMessage(err)
	}
	var (
		ve *model.ValidationError
		ce *model.ConflictError
	)
	switch {
	case errors.As(err, &ve):
		WriteValidationError(w, ve.Fields)
	case errors.Is(err, model.ErrNotFound):
		WriteNotFound(w, message)
	case errors.Is(err, model.ErrReadOnly):
		WriteError(w, http.StatusForbidden, "read_only", message, nil)
	case errors.As(err, &ce):
		WriteError(w, http.StatusConflict, "conflict", message, nil)
	case model.IsTransient(err), errors.Is(err, context.DeadlineExceeded):
		WriteError(w, http.StatusServiceUnavailable, "unavailable", model.UserMessage(&model.TransientError{Err: err}), nil)
	default:
		h.logger.Error("api request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		WriteInternalError(w, "Something went wrong")
	}
}

// requireKind resolves the {kind} URL parameter. It writes a 404 and
// returns false for unknown kinds.
func requireKind(w http.ResponseWriter, r *http.Request) (model.Kind, bool) {
	kind, ok := model.ParseKind(chi.URLParam(r, "kind"))
	if !ok {
		WriteNotFound(w, "Unknown catalog kind")
		return "", false
	}
	return kind, true
}

// requireCoordinator resolves the coordinator for the {kind} URL parameter.
func (h *Handler) requireCoordinator(w http.ResponseWriter, r *http.Request) (*service.Coordinator, bool) {
	kind, ok := requireKind(w, r)
	if !ok {
		return nil, false
	}
	c, ok := h.coordinators[kind]
	if !ok {
		WriteNotFound(w, "Unknown catalog kind")
		return nil, false
	}
	return c, true
}

// queryInt parses an integer query parameter, returning def when absent.
func queryInt(r *http.Request, name string, def, lo, hi int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("must be a whole number")
	}
	if n < lo {
		return 0, fmt.Errorf("must be at least %d", lo)
	}
	if hi > 0 && n > hi {
		return 0, fmt.Errorf("must be at most %d", hi)
	}
	return n, nil
}
