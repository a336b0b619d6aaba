// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/olegiv/folio-go/internal/catalog"
	"github.com/olegiv/folio-go/internal/media"
	"github.com/olegiv/folio-go/internal/middleware"
	"github.com/olegiv/folio-go/internal/model"
	"github.com/olegiv/folio-go/internal/service"
	"github.com/olegiv/folio-go/internal/testutil"
)

const testAdminToken = "s3cret-admin-token"

// testAdminHash is computed once; hashing is slow on purpose.
var testAdminHash = func() string {
	hash, err := middleware.HashToken(testAdminToken)
	if err != nil {
		panic(err)
	}
	return hash
}()

type testServer struct {
	router   http.Handler
	backend  *testutil.Backend
	bucket   *testutil.Bucket
	fallback catalog.FallbackSource
}

type testServerOption func(*Config, *HealthConfig)

func withFallback(src catalog.FallbackSource) testServerOption {
	return func(c *Config, _ *HealthConfig) { c.Fallback = src }
}

func newTestServer(t *testing.T, recs []model.Record, opts ...testServerOption) *testServer {
	t.Helper()

	backend := testutil.NewBackend(recs...)
	bucket := testutil.NewBucket("media")
	resolver := media.NewResolver(media.BucketConfig{
		PublicBaseURL: "https://cdn.test/storage/v1",
		Bucket:        "media",
	})
	normalizer := catalog.NewNormalizer(resolver, catalog.NewPolicy())
	logger := testutil.TestLoggerSilent()

	coordinators := make(map[model.Kind]*service.Coordinator, len(model.Kinds))
	for _, kind := range model.Kinds {
		coordinators[kind] = service.NewCoordinator(kind, service.Deps{
			Backend:  backend,
			Bucket:   bucket,
			Resolver: resolver,
			Logger:   logger,
		})
	}

	cfg := Config{
		Backend:      backend,
		Normalizer:   normalizer,
		Coordinators: coordinators,
		PageSize:     10,
		Logger:       logger,
	}
	healthCfg := HealthConfig{DB: pingerFunc(func(context.Context) error { return nil }), Version: "test"}
	for _, opt := range opts {
		opt(&cfg, &healthCfg)
	}

	router := NewRouter(RouterConfig{
		API:           NewHandler(cfg),
		Health:        NewHealthHandler(healthCfg),
		Auth:          middleware.NewTokenAuth(testAdminHash),
		IsDevelopment: true,
	})
	return &testServer{router: router, backend: backend, bucket: bucket, fallback: cfg.Fallback}
}

func (s *testServer) do(t *testing.T, method, target string, body io.Reader, contentType string, admin bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if admin {
		req.Header.Set("Authorization", "Bearer "+testAdminToken)
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func (s *testServer) get(t *testing.T, target string, admin bool) *httptest.ResponseRecorder {
	t.Helper()
	return s.do(t, http.MethodGet, target, nil, "", admin)
}

func (s *testServer) postJSON(t *testing.T, target string, v any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return s.do(t, http.MethodPost, target, bytes.NewReader(body), "application/json", true)
}

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

type listResponse struct {
	Data []catalog.NormalizedRecord `json:"data"`
	Meta Meta                       `json:"meta"`
}

type mutationEnvelope struct {
	Data MutationResponse `json:"data"`
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding %q: %v", rr.Body.String(), err)
	}
	return v
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("Status = %d, want %d; body: %s", rr.Code, want, rr.Body.String())
	}
}

func assertErrorCode(t *testing.T, rr *httptest.ResponseRecorder, want string) {
	t.Helper()
	resp := decode[ErrorResponse](t, rr)
	if resp.Error.Code != want {
		t.Errorf("error code = %q, want %q", resp.Error.Code, want)
	}
}

func work(id string, sort int, published bool) model.Record {
	return model.Record{
		ID:          id,
		Kind:        model.KindWork,
		Title:       "Work " + id,
		Sort:        sort,
		IsPublished: published,
		CreatedAt:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func ids(recs []catalog.NormalizedRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}

func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: uint8(y * 30), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encoding jpeg: %v", err)
	}
	return buf.Bytes()
}

func TestListRecords_Visibility(t *testing.T) {
	srv := newTestServer(t, []model.Record{work("w1", 0, true), work("w2", 1, false), work("w3", 2, true)})

	tests := []struct {
		name  string
		admin bool
		want  []string
	}{
		{"anonymous sees published", false, []string{"w1", "w3"}},
		{"admin sees drafts", true, []string{"w1", "w2", "w3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := srv.get(t, "/api/v1/work", tt.admin)
			assertStatus(t, rr, http.StatusOK)

			resp := decode[listResponse](t, rr)
			if got := strings.Join(ids(resp.Data), ","); got != strings.Join(tt.want, ",") {
				t.Errorf("ids = %s, want %s", got, strings.Join(tt.want, ","))
			}
			if resp.Meta.Count != len(tt.want) {
				t.Errorf("Meta.Count = %d, want %d", resp.Meta.Count, len(tt.want))
			}
			for _, rec := range resp.Data {
				if !tt.admin && !rec.Actions.Empty() {
					t.Errorf("anonymous record %s has actions %v", rec.ID, rec.Actions.List())
				}
				if tt.admin && !rec.Actions.Has(catalog.ActionDelete) {
					t.Errorf("admin record %s lacks delete action", rec.ID)
				}
			}
		})
	}
}

func TestListRecords_Paging(t *testing.T) {
	srv := newTestServer(t, []model.Record{work("w1", 0, true), work("w2", 1, true), work("w3", 2, true)})

	rr := srv.get(t, "/api/v1/work?limit=2", false)
	assertStatus(t, rr, http.StatusOK)
	first := decode[listResponse](t, rr)
	if !first.Meta.HasMore || len(first.Data) != 2 {
		t.Fatalf("first page = %v has_more=%v, want 2 records and more", ids(first.Data), first.Meta.HasMore)
	}

	rr = srv.get(t, "/api/v1/work?limit=2&offset=2", false)
	assertStatus(t, rr, http.StatusOK)
	second := decode[listResponse](t, rr)
	if second.Meta.HasMore || len(second.Data) != 1 || second.Data[0].ID != "w3" {
		t.Errorf("second page = %v has_more=%v, want [w3] and no more", ids(second.Data), second.Meta.HasMore)
	}
}

func TestListRecords_FilterAndCategories(t *testing.T) {
	a := work("w1", 0, true)
	a.Title = "Harbour at dusk"
	a.Category = "Painting"
	b := work("w2", 1, true)
	b.Title = "Dunes"
	b.Category = "Drawing"
	srv := newTestServer(t, []model.Record{a, b})

	rr := srv.get(t, "/api/v1/work?q=harbour", false)
	assertStatus(t, rr, http.StatusOK)
	resp := decode[listResponse](t, rr)
	if len(resp.Data) != 1 || resp.Data[0].ID != "w1" {
		t.Errorf("search result = %v, want [w1]", ids(resp.Data))
	}
	if len(resp.Meta.Categories) != 2 {
		t.Errorf("Meta.Categories = %v, want both categories of the page", resp.Meta.Categories)
	}

	rr = srv.get(t, "/api/v1/works?category=drawing", false)
	assertStatus(t, rr, http.StatusOK)
	resp = decode[listResponse](t, rr)
	if len(resp.Data) != 1 || resp.Data[0].ID != "w2" {
		t.Errorf("category result = %v, want [w2]", ids(resp.Data))
	}
}

func TestListRecords_BadRequests(t *testing.T) {
	srv := newTestServer(t, nil)

	tests := []struct {
		name   string
		target string
		status int
	}{
		{"unknown kind", "/api/v1/paintings", http.StatusNotFound},
		{"zero limit", "/api/v1/work?limit=0", http.StatusBadRequest},
		{"limit too large", "/api/v1/work?limit=500", http.StatusBadRequest},
		{"negative offset", "/api/v1/work?offset=-1", http.StatusBadRequest},
		{"non-numeric offset", "/api/v1/work?offset=abc", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := srv.get(t, tt.target, false)
			assertStatus(t, rr, tt.status)
		})
	}
}

func TestListRecords_FallbackOnFirstPage(t *testing.T) {
	fb, err := catalog.ParseYAMLFallback([]byte(`
work:
  - title: Harbour at dusk
    year: "2019"
    image: works/a/cover.jpg
`))
	if err != nil {
		t.Fatalf("ParseYAMLFallback: %v", err)
	}
	srv := newTestServer(t, nil, withFallback(fb))
	srv.backend.SelectErr = &model.TransientError{Err: errors.New("connection refused")}

	rr := srv.get(t, "/api/v1/work", false)
	assertStatus(t, rr, http.StatusOK)
	resp := decode[listResponse](t, rr)
	if !resp.Meta.Fallback {
		t.Error("Meta.Fallback = false, want true")
	}
	if resp.Meta.HasMore {
		t.Error("Meta.HasMore = true, want false for fallback data")
	}
	if len(resp.Data) != 1 || !model.IsDemoID(resp.Data[0].ID) {
		t.Fatalf("fallback records = %v, want one demo record", ids(resp.Data))
	}
	if want := "https://cdn.test/storage/v1/object/public/media/works/a/cover.jpg"; len(resp.Data[0].ResolvedImages) == 0 || resp.Data[0].ResolvedImages[0] != want {
		t.Errorf("ResolvedImages = %v, want [%s]", resp.Data[0].ResolvedImages, want)
	}

	// Later pages are never replaced by the fallback.
	rr = srv.get(t, "/api/v1/work?offset=10", false)
	assertStatus(t, rr, http.StatusServiceUnavailable)
	assertErrorCode(t, rr, "unavailable")

	// A kind with no fallback entries reports the failure.
	rr = srv.get(t, "/api/v1/news", false)
	assertStatus(t, rr, http.StatusServiceUnavailable)

	// A rejected query is not an outage and keeps its own status.
	srv.backend.SelectErr = errors.New("no such column: sort")
	rr = srv.get(t, "/api/v1/work", false)
	assertStatus(t, rr, http.StatusInternalServerError)
}

func TestGetRecord(t *testing.T) {
	srv := newTestServer(t, []model.Record{work("w1", 0, true), work("w2", 1, false)})

	tests := []struct {
		name   string
		target string
		admin  bool
		status int
	}{
		{"published anonymous", "/api/v1/work/w1", false, http.StatusOK},
		{"draft anonymous", "/api/v1/work/w2", false, http.StatusNotFound},
		{"draft admin", "/api/v1/work/w2", true, http.StatusOK},
		{"missing", "/api/v1/work/nope", true, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := srv.get(t, tt.target, tt.admin)
			assertStatus(t, rr, tt.status)
		})
	}
}

func TestAdminRoutes_RequireToken(t *testing.T) {
	srv := newTestServer(t, []model.Record{work("w1", 0, true)})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong token", "Bearer nope", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodDelete, "/api/v1/work/w1", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			srv.router.ServeHTTP(rr, req)
			assertStatus(t, rr, tt.status)
		})
	}

	if rows := srv.backend.Rows("works"); len(rows) != 1 {
		t.Errorf("rows = %d, want the record untouched", len(rows))
	}
}

func TestUpsertRecord_JSON(t *testing.T) {
	srv := newTestServer(t, []model.Record{work("w1", 0, true)})

	rr := srv.postJSON(t, "/api/v1/work", map[string]any{"title": "Dunes", "year": "2021", "is_published": true})
	assertStatus(t, rr, http.StatusCreated)
	created := decode[mutationEnvelope](t, rr).Data
	if created.Record.ID == "" || created.Record.Title != "Dunes" {
		t.Fatalf("created record = %+v", created.Record)
	}

	rr = srv.postJSON(t, "/api/v1/work", map[string]any{"id": "w1", "title": "Renamed"})
	assertStatus(t, rr, http.StatusOK)
	if got := decode[mutationEnvelope](t, rr).Data.Record.Title; got != "Renamed" {
		t.Errorf("updated title = %q, want Renamed", got)
	}

	body := strings.NewReader(`{"category":"Painting"}`)
	rr = srv.do(t, http.MethodPatch, "/api/v1/work/w1", body, "application/json", true)
	assertStatus(t, rr, http.StatusOK)
	if got := decode[mutationEnvelope](t, rr).Data.Record.Category; got != "Painting" {
		t.Errorf("patched category = %q, want Painting", got)
	}
}

func TestUpsertRecord_Multipart(t *testing.T) {
	srv := newTestServer(t, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("title", "Harbour")
	_ = mw.WriteField("is_published", "on")
	fw, err := mw.CreateFormFile("cover", "harbour.jpg")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	_, _ = fw.Write(testJPEG(t))
	_ = mw.Close()

	rr := srv.do(t, http.MethodPost, "/api/v1/work", &buf, mw.FormDataContentType(), true)
	assertStatus(t, rr, http.StatusCreated)

	rec := decode[mutationEnvelope](t, rr).Data.Record
	if !rec.IsPublished {
		t.Error("IsPublished = false, want true")
	}
	keys := srv.bucket.Keys()
	if len(keys) != 1 || !strings.HasPrefix(keys[0], "works/"+rec.ID+"/") {
		t.Fatalf("bucket keys = %v, want one cover under works/%s/", keys, rec.ID)
	}
	if rec.CoverURL == "" {
		t.Error("CoverURL is empty after upload")
	}
}

func TestUpsertRecord_Errors(t *testing.T) {
	srv := newTestServer(t, []model.Record{work("w1", 0, true)})

	tests := []struct {
		name        string
		target      string
		body        string
		contentType string
		status      int
		code        string
	}{
		{"missing title", "/api/v1/work", `{"year":"2021"}`, "application/json", http.StatusBadRequest, "validation_error"},
		{"bad year", "/api/v1/work", `{"title":"x","year":"last year"}`, "application/json", http.StatusBadRequest, "validation_error"},
		{"malformed json", "/api/v1/work", `{`, "application/json", http.StatusBadRequest, "bad_request"},
		{"unsupported type", "/api/v1/work", `title=x`, "text/plain", http.StatusBadRequest, "bad_request"},
		{"unknown record", "/api/v1/work/nope", `{"title":"x"}`, "application/json", http.StatusNotFound, "not_found"},
		{"demo record", "/api/v1/work/demo-1", `{"title":"x"}`, "application/json", http.StatusForbidden, "read_only"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := http.MethodPost
			if strings.Count(tt.target, "/") > 3 {
				method = http.MethodPatch
			}
			rr := srv.do(t, method, tt.target, strings.NewReader(tt.body), tt.contentType, true)
			assertStatus(t, rr, tt.status)
			assertErrorCode(t, rr, tt.code)
		})
	}
}

func TestTogglePublish(t *testing.T) {
	srv := newTestServer(t, []model.Record{work("w1", 0, true)})

	rr := srv.do(t, http.MethodPost, "/api/v1/work/w1/toggle", nil, "", true)
	assertStatus(t, rr, http.StatusOK)
	resp := decode[mutationEnvelope](t, rr).Data
	if resp.Record.IsPublished || resp.Message != "Unpublished" {
		t.Errorf("toggle = %+v, want unpublished", resp)
	}

	// The record is now hidden from anonymous readers.
	rr = srv.get(t, "/api/v1/work/w1", false)
	assertStatus(t, rr, http.StatusNotFound)
}

func TestMoveRecord(t *testing.T) {
	srv := newTestServer(t, []model.Record{work("w1", 0, true), work("w2", 1, true)})

	rr := srv.do(t, http.MethodPost, "/api/v1/work/w2/move?direction=sideways", nil, "", true)
	assertStatus(t, rr, http.StatusBadRequest)

	rr = srv.do(t, http.MethodPost, "/api/v1/work/w2/move?direction=up", nil, "", true)
	assertStatus(t, rr, http.StatusOK)

	rr = srv.get(t, "/api/v1/work", false)
	resp := decode[listResponse](t, rr)
	if got := strings.Join(ids(resp.Data), ","); got != "w2,w1" {
		t.Errorf("order after move = %s, want w2,w1", got)
	}
}

func TestDeleteRecord(t *testing.T) {
	rec := work("w1", 0, true)
	rec.CoverURL = "works/w1/cover.jpg"
	srv := newTestServer(t, []model.Record{rec})
	srv.bucket.Put("works/w1/cover.jpg", []byte("img"))

	rr := srv.do(t, http.MethodDelete, "/api/v1/work/w1", nil, "", true)
	assertStatus(t, rr, http.StatusOK)
	if rows := srv.backend.Rows("works"); len(rows) != 0 {
		t.Errorf("rows = %d, want 0", len(rows))
	}
	if keys := srv.bucket.Keys(); len(keys) != 0 {
		t.Errorf("bucket keys = %v, want none", keys)
	}

	rr = srv.do(t, http.MethodDelete, "/api/v1/work/w1", nil, "", true)
	assertStatus(t, rr, http.StatusNotFound)

	rr = srv.do(t, http.MethodDelete, "/api/v1/work/demo-3", nil, "", true)
	assertStatus(t, rr, http.StatusForbidden)
}

func TestDuplicates(t *testing.T) {
	older := work("w1", 0, true)
	older.Title = "Harbour"
	newer := work("w2", 1, true)
	newer.Title = " harbour "
	newer.CreatedAt = older.CreatedAt.Add(time.Hour)
	srv := newTestServer(t, []model.Record{older, newer, work("w3", 2, true)})

	rr := srv.get(t, "/api/v1/work/duplicates", true)
	assertStatus(t, rr, http.StatusOK)
	groups := decode[struct {
		Data []catalog.DuplicateGroup `json:"data"`
	}](t, rr).Data
	if len(groups) != 1 || groups[0].Keep.ID != "w2" {
		t.Fatalf("groups = %+v, want one group keeping w2", groups)
	}

	rr = srv.do(t, http.MethodPost, "/api/v1/work/duplicates/purge", nil, "", true)
	assertStatus(t, rr, http.StatusOK)
	purged := decode[struct {
		Data BatchResponse `json:"data"`
	}](t, rr).Data
	if len(purged.Deleted) != 1 || purged.Deleted[0].ID != "w1" {
		t.Errorf("deleted = %+v, want [w1]", purged.Deleted)
	}
	if rows := srv.backend.Rows("works"); len(rows) != 2 {
		t.Errorf("rows = %d, want 2", len(rows))
	}
}

func TestListEvents_Disabled(t *testing.T) {
	srv := newTestServer(t, nil)

	rr := srv.get(t, "/api/v1/events", true)
	assertStatus(t, rr, http.StatusNotFound)

	rr = srv.get(t, "/api/v1/events", false)
	assertStatus(t, rr, http.StatusUnauthorized)
}
