// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/folio-go/internal/catalog"
	"github.com/olegiv/folio-go/internal/imaging"
	"github.com/olegiv/folio-go/internal/media"
	"github.com/olegiv/folio-go/internal/model"
	"github.com/olegiv/folio-go/internal/testutil"
	"github.com/olegiv/folio-go/internal/webhook"
)

type cleanupRecorder struct {
	mu       sync.Mutex
	failures []*model.CleanupFailure
}

func (r *cleanupRecorder) ReportCleanup(_ context.Context, f *model.CleanupFailure) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, f)
}

func (r *cleanupRecorder) all() []*model.CleanupFailure {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*model.CleanupFailure(nil), r.failures...)
}

type notifyRecorder struct {
	mu     sync.Mutex
	events []string
	data   []webhook.RecordEventData
}

func (r *notifyRecorder) DispatchEvent(_ context.Context, eventType string, data any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventType)
	if d, ok := data.(webhook.RecordEventData); ok {
		r.data = append(r.data, d)
	}
	return nil
}

func (r *notifyRecorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type fixture struct {
	backend  *testutil.Backend
	bucket   *testutil.Bucket
	journal  *testutil.Journal
	cleanups *cleanupRecorder
	notes    *notifyRecorder
	resolver *media.Resolver
	coord    *Coordinator
}

func newFixture(t *testing.T, images *imaging.Processor, recs ...model.Record) *fixture {
	t.Helper()
	journal := &testutil.Journal{}
	backend := testutil.NewBackend(recs...)
	backend.Journal = journal
	bucket := testutil.NewBucket("media")
	bucket.Journal = journal
	resolver := media.NewResolver(media.BucketConfig{
		PublicBaseURL: "https://cdn.test/storage/v1",
		Bucket:        "media",
	})
	cleanups := &cleanupRecorder{}
	notes := &notifyRecorder{}
	coord := NewCoordinator(model.KindWork, Deps{
		Backend:  backend,
		Bucket:   bucket,
		Resolver: resolver,
		Images:   images,
		Cleanup:  cleanups,
		Notifier: notes,
		Logger:   testutil.TestLoggerSilent(),
	})
	return &fixture{
		backend:  backend,
		bucket:   bucket,
		journal:  journal,
		cleanups: cleanups,
		notes:    notes,
		resolver: resolver,
		coord:    coord,
	}
}

// attach loads a page store for role and registers it with the coordinator.
func (f *fixture) attach(t *testing.T, role model.Role) *catalog.PageStore {
	t.Helper()
	normalizer := catalog.NewNormalizer(f.resolver, catalog.NewPolicy())
	store := catalog.NewPageStore(f.backend, normalizer, catalog.PageStoreOptions{
		Kind:     model.KindWork,
		Role:     role,
		PageSize: 50,
		Logger:   testutil.TestLoggerSilent(),
	})
	store.LoadNextPage(context.Background())
	t.Cleanup(f.coord.Attach(store))
	t.Cleanup(store.Close)
	return store
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

func testJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func TestDeleteRecord_RemovesMediaAfterRow(t *testing.T) {
	rec := work("w1", 0, true)
	rec.CoverURL = "https://cdn.test/storage/v1/object/public/media/works/w1/cover.jpg"
	rec.Images = []string{"works/w1/a.jpg", "works/w1/b.jpg"}
	f := newFixture(t, nil, rec)
	store := f.attach(t, model.RoleAdmin)
	for _, k := range []string{"works/w1/cover.jpg", "works/w1/a.jpg", "works/w1/b.jpg"} {
		f.bucket.Put(k, []byte("x"))
	}

	res, err := f.coord.DeleteRecord(context.Background(), "w1")
	require.NoError(t, err)

	assert.Equal(t, "Deleted", res.Message)
	assert.Nil(t, res.Cleanup)
	assert.Equal(t, []string{"delete works", "remove 3"}, f.journal.Entries())
	assert.Equal(t, [][]string{{"works/w1/cover.jpg", "works/w1/a.jpg", "works/w1/b.jpg"}}, f.bucket.Removes())
	assert.Empty(t, f.bucket.Keys())
	_, ok := store.Lookup("w1")
	assert.False(t, ok)
}

func TestDeleteRecord_BucketFailureStillSucceeds(t *testing.T) {
	rec := work("w1", 0, true)
	rec.CoverURL = "https://cdn.test/storage/v1/object/public/media/works/w1/cover.jpg"
	rec.ThumbURL = "works/w1/cover.jpg"
	rec.Images = []string{"works/w1/a.jpg", "works/w1/b.jpg"}
	f := newFixture(t, nil, rec)
	store := f.attach(t, model.RoleAdmin)
	f.bucket.RemoveErr = errors.New("bucket unavailable")

	res, err := f.coord.DeleteRecord(context.Background(), "w1")
	require.NoError(t, err)

	assert.Equal(t, []string{"delete works"}, f.backend.Calls())
	require.Len(t, f.bucket.Removes(), 1)
	assert.Equal(t, []string{"works/w1/cover.jpg", "works/w1/a.jpg", "works/w1/b.jpg"}, f.bucket.Removes()[0])

	require.NotNil(t, res.Cleanup)
	assert.Equal(t, "w1", res.Cleanup.RecordID)
	assert.Equal(t, "works", res.Cleanup.Table)
	assert.Len(t, res.Cleanup.Keys, 3)

	failures := f.cleanups.all()
	require.Len(t, failures, 1)
	assert.Same(t, res.Cleanup, failures[0])

	_, ok := store.Lookup("w1")
	assert.False(t, ok)
	assert.Empty(t, f.backend.Rows("works"))
}

func TestDeleteRecord_RowFailureSkipsCleanup(t *testing.T) {
	rec := work("w1", 0, true)
	rec.CoverURL = "works/w1/cover.jpg"
	f := newFixture(t, nil, rec)
	store := f.attach(t, model.RoleAdmin)
	f.backend.DeleteErr = &model.TransientError{Op: "delete", Err: errors.New("timeout")}

	res, err := f.coord.DeleteRecord(context.Background(), "w1")
	require.Error(t, err)

	assert.True(t, model.IsTransient(err))
	assert.Contains(t, res.Message, "try again")
	assert.Empty(t, f.bucket.Removes())
	_, ok := store.Lookup("w1")
	assert.True(t, ok)
}

func TestDeleteRecord_ExternalMediaNotRemoved(t *testing.T) {
	rec := work("w1", 0, true)
	rec.CoverURL = "https://elsewhere.example/pic.jpg"
	rec.PDFURL = "/docs/cv.pdf"
	f := newFixture(t, nil, rec)

	res, err := f.coord.DeleteRecord(context.Background(), "w1")
	require.NoError(t, err)
	assert.Nil(t, res.Cleanup)
	assert.Empty(t, f.bucket.Removes())
}

func TestMutations_DemoRecordsAreReadOnly(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		run  func() (Result, error)
	}{
		{"delete", func() (Result, error) { return f.coord.DeleteRecord(ctx, "demo-work-1") }},
		{"toggle", func() (Result, error) { return f.coord.TogglePublish(ctx, "demo-work-1") }},
		{"move", func() (Result, error) { return f.coord.Move(ctx, "demo-work-1", Up) }},
		{"update", func() (Result, error) {
			return f.coord.Upsert(ctx, "demo-work-1", model.Patch{Title: model.Ptr("x")}, nil)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tt.run()
			assert.ErrorIs(t, err, model.ErrReadOnly)
			assert.Equal(t, "This record is read-only.", res.Message)
		})
	}
	assert.Empty(t, f.journal.Entries())
}

func TestTogglePublish(t *testing.T) {
	f := newFixture(t, nil, work("w1", 0, false))
	admin := f.attach(t, model.RoleAdmin)
	public := f.attach(t, model.RoleAnonymous)
	ctx := context.Background()

	_, ok := public.Lookup("w1")
	require.False(t, ok)

	res, err := f.coord.TogglePublish(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, "Published", res.Message)
	assert.True(t, res.Record.IsPublished)
	assert.Equal(t, []string{"update works"}, f.backend.Calls())

	rec, ok := admin.Lookup("w1")
	require.True(t, ok)
	assert.True(t, rec.IsPublished)
	_, ok = public.Lookup("w1")
	assert.True(t, ok)

	res, err = f.coord.TogglePublish(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, "Unpublished", res.Message)
	_, ok = public.Lookup("w1")
	assert.False(t, ok)
}

func TestMutations_NotifyWebhooks(t *testing.T) {
	f := newFixture(t, nil, work("w1", 0, false), work("w2", 1, true))
	ctx := context.Background()

	_, err := f.coord.TogglePublish(ctx, "w1")
	require.NoError(t, err)
	_, err = f.coord.TogglePublish(ctx, "w1")
	require.NoError(t, err)
	_, err = f.coord.Upsert(ctx, "w1", model.Patch{Title: model.Ptr("Renamed")}, nil)
	require.NoError(t, err)
	_, err = f.coord.Move(ctx, "w2", Up)
	require.NoError(t, err)
	_, err = f.coord.DeleteRecord(ctx, "w2")
	require.NoError(t, err)

	assert.Equal(t, []string{
		webhook.EventRecordPublished,
		webhook.EventRecordUnpublished,
		webhook.EventRecordUpdated,
		webhook.EventRecordUpdated,
		webhook.EventRecordDeleted,
	}, f.notes.all())
	assert.Equal(t, "Renamed", f.notes.data[2].Title)
	assert.Equal(t, "works", f.notes.data[4].Table)

	// Failed mutations notify nobody.
	_, err = f.coord.DeleteRecord(ctx, "missing")
	require.Error(t, err)
	assert.Len(t, f.notes.all(), 5)
}

func TestTogglePublish_FailureLeavesLocalState(t *testing.T) {
	f := newFixture(t, nil, work("w1", 0, true))
	store := f.attach(t, model.RoleAdmin)
	f.backend.UpdateErr = &model.ConflictError{Detail: "permission denied for table works"}

	res, err := f.coord.TogglePublish(context.Background(), "w1")
	require.Error(t, err)
	assert.Equal(t, "permission denied for table works", res.Message)

	rec, ok := store.Lookup("w1")
	require.True(t, ok)
	assert.True(t, rec.IsPublished)
}

func TestTogglePublish_ReadsBackendWhenNotLoaded(t *testing.T) {
	f := newFixture(t, nil, work("w1", 0, true))

	res, err := f.coord.TogglePublish(context.Background(), "w1")
	require.NoError(t, err)
	assert.False(t, res.Record.IsPublished)

	_, err = f.coord.TogglePublish(context.Background(), "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestMove(t *testing.T) {
	tests := []struct {
		name     string
		id       string
		dir      Direction
		wantMsg  string
		wantSort map[string]int
	}{
		{"up", "w2", Up, "Moved", map[string]int{"w1": 1, "w2": 0, "w3": 2}},
		{"down", "w2", Down, "Moved", map[string]int{"w1": 0, "w2": 2, "w3": 1}},
		{"first up", "w1", Up, "Already in place", map[string]int{"w1": 0, "w2": 1, "w3": 2}},
		{"last down", "w3", Down, "Already in place", map[string]int{"w1": 0, "w2": 1, "w3": 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil, work("w1", 0, true), work("w2", 1, true), work("w3", 2, true))
			store := f.attach(t, model.RoleAdmin)

			res, err := f.coord.Move(context.Background(), tt.id, tt.dir)
			require.NoError(t, err)
			assert.Equal(t, tt.wantMsg, res.Message)

			for _, r := range f.backend.Rows("works") {
				assert.Equal(t, tt.wantSort[r.ID], r.Sort, r.ID)
				local, ok := store.Lookup(r.ID)
				require.True(t, ok)
				assert.Equal(t, r.Sort, local.Sort, r.ID)
			}
		})
	}
}

func TestMove_BreaksTies(t *testing.T) {
	older := work("w1", 0, true)
	newer := work("w2", 0, true)
	newer.CreatedAt = older.CreatedAt.Add(time.Hour)
	f := newFixture(t, nil, older, newer)

	// newer sorts first on equal sort values.
	res, err := f.coord.Move(context.Background(), "w1", Up)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Record.Sort)
	assert.Equal(t, []string{"update works", "update works"}, f.backend.Calls())

	rows, err := f.backend.Select(context.Background(), model.Query{Table: "works", Order: model.OrderSortCreatedDesc})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "w1", rows[0].ID)
	assert.Equal(t, 1, rows[1].Sort)
}

func TestUpsert_NewRecordUploadsAfterInsert(t *testing.T) {
	f := newFixture(t, nil)
	store := f.attach(t, model.RoleAdmin)

	res, err := f.coord.Upsert(context.Background(), "", model.Patch{Title: model.Ptr("Harbour")}, []model.MediaFile{
		{Role: model.MediaCover, Filename: "Cover Photo.JPG", ContentType: "image/jpeg", Data: []byte("jpeg bytes")},
	})
	require.NoError(t, err)
	assert.Equal(t, "Created", res.Message)

	id := res.Record.ID
	require.NotEmpty(t, id)
	key := res.Record.CoverURL
	assert.True(t, strings.HasPrefix(key, "works/"+id+"/"), key)
	assert.True(t, strings.HasSuffix(key, "-cover-photo.jpg"), key)

	assert.Equal(t, []string{"insert works", "upload " + key, "update works"}, f.journal.Entries())

	rows := f.backend.Rows("works")
	require.Len(t, rows, 1)
	assert.Equal(t, key, rows[0].CoverURL)
	assert.Equal(t, []string{key}, f.bucket.Keys())

	local, ok := store.Lookup(id)
	require.True(t, ok)
	assert.Equal(t, key, local.CoverURL)
}

func TestUpsert_NewRecordWithThumbnail(t *testing.T) {
	f := newFixture(t, imaging.NewProcessor(85))

	res, err := f.coord.Upsert(context.Background(), "", model.Patch{Title: model.Ptr("Dunes")}, []model.MediaFile{
		{Role: model.MediaCover, Filename: "dunes.jpg", Data: testJPEG(t, 900, 700)},
		{Role: model.MediaGallery, Filename: "detail.jpg", Data: testJPEG(t, 40, 40)},
	})
	require.NoError(t, err)

	rec := res.Record
	require.NotEmpty(t, rec.CoverURL)
	require.NotEmpty(t, rec.ThumbURL)
	require.Len(t, rec.Images, 1)
	assert.True(t, strings.HasSuffix(rec.ThumbURL, "-dunes-thumb.jpg"), rec.ThumbURL)
	assert.Equal(t, strings.TrimSuffix(rec.CoverURL, "-dunes.jpg"), strings.TrimSuffix(rec.ThumbURL, "-dunes-thumb.jpg"))

	entries := f.journal.Entries()
	require.Len(t, entries, 5)
	assert.Equal(t, "insert works", entries[0])
	assert.Equal(t, "update works", entries[4])
	assert.ElementsMatch(t, []string{
		"upload " + rec.CoverURL,
		"upload " + rec.ThumbURL,
		"upload " + rec.Images[0],
	}, entries[1:4])

	thumb, ct, ok := f.bucket.Object(rec.ThumbURL)
	require.True(t, ok)
	assert.Equal(t, model.MimeTypeJPEG, ct)
	cfg, _, err := image.DecodeConfig(bytes.NewReader(thumb))
	require.NoError(t, err)
	assert.Equal(t, model.ThumbnailVariant.Width, cfg.Width)
	assert.Less(t, cfg.Height, model.ThumbnailVariant.Height)
}

func TestUpsert_NewRecordUploadFailureKeepsRow(t *testing.T) {
	f := newFixture(t, nil)
	f.bucket.UploadErr = errors.New("bucket unavailable")

	res, err := f.coord.Upsert(context.Background(), "", model.Patch{Title: model.Ptr("Harbour")}, []model.MediaFile{
		{Role: model.MediaPDF, Filename: "cv.pdf", ContentType: model.MimeTypePDF, Data: []byte("%PDF-1.4")},
	})
	require.Error(t, err)

	assert.NotEmpty(t, res.Record.ID)
	assert.Empty(t, res.Record.PDFURL)
	assert.Len(t, f.backend.Rows("works"), 1)
	assert.Equal(t, []string{"insert works"}, f.backend.Calls())
}

func TestUpsert_ExistingReplacesCover(t *testing.T) {
	rec := work("w1", 0, true)
	rec.CoverURL = "works/w1/old.jpg"
	rec.Images = []string{"works/w1/g.jpg"}
	f := newFixture(t, nil, rec)
	f.bucket.Put("works/w1/old.jpg", []byte("old"))
	f.bucket.Put("works/w1/g.jpg", []byte("g"))
	store := f.attach(t, model.RoleAdmin)

	res, err := f.coord.Upsert(context.Background(), "w1", model.Patch{Title: model.Ptr("Renamed")}, []model.MediaFile{
		{Role: model.MediaCover, Filename: "new.png", ContentType: "image/png", Data: []byte("png bytes")},
	})
	require.NoError(t, err)
	assert.Equal(t, "Saved", res.Message)
	assert.Nil(t, res.Cleanup)

	newKey := res.Record.CoverURL
	assert.True(t, strings.HasSuffix(newKey, "-new.png"), newKey)
	assert.Equal(t, "Renamed", res.Record.Title)
	assert.Equal(t, []string{"works/w1/g.jpg"}, res.Record.Images)

	assert.Equal(t, []string{"upload " + newKey, "update works", "remove 1"}, f.journal.Entries())
	assert.Equal(t, [][]string{{"works/w1/old.jpg"}}, f.bucket.Removes())
	assert.ElementsMatch(t, []string{newKey, "works/w1/g.jpg"}, f.bucket.Keys())

	local, ok := store.Lookup("w1")
	require.True(t, ok)
	assert.Equal(t, "Renamed", local.Title)
}

func TestUpsert_ExistingAppendsGallery(t *testing.T) {
	rec := work("w1", 0, true)
	rec.Images = []string{"works/w1/g.jpg"}
	f := newFixture(t, nil, rec)

	res, err := f.coord.Upsert(context.Background(), "w1", model.Patch{}, []model.MediaFile{
		{Role: model.MediaGallery, Filename: "more.gif", ContentType: "image/gif", Data: []byte("gif")},
	})
	require.NoError(t, err)
	require.Len(t, res.Record.Images, 2)
	assert.Equal(t, "works/w1/g.jpg", res.Record.Images[0])
	assert.Empty(t, f.bucket.Removes())
}

func TestUpsert_ExistingUploadFailureSkipsUpdate(t *testing.T) {
	rec := work("w1", 0, true)
	rec.CoverURL = "works/w1/old.jpg"
	f := newFixture(t, nil, rec)
	f.bucket.UploadErr = errors.New("bucket unavailable")

	_, err := f.coord.Upsert(context.Background(), "w1", model.Patch{}, []model.MediaFile{
		{Role: model.MediaCover, Filename: "new.jpg", ContentType: "image/jpeg", Data: []byte("x")},
	})
	require.Error(t, err)
	assert.Empty(t, f.backend.Calls())
	assert.Equal(t, "works/w1/old.jpg", f.backend.Rows("works")[0].CoverURL)
}

func TestUpsert_ExistingUpdateFailureRemovesUploads(t *testing.T) {
	f := newFixture(t, nil, work("w1", 0, true))
	f.backend.UpdateErr = errors.New("connection reset")

	_, err := f.coord.Upsert(context.Background(), "w1", model.Patch{}, []model.MediaFile{
		{Role: model.MediaCover, Filename: "new.jpg", ContentType: "image/jpeg", Data: []byte("x")},
	})
	require.Error(t, err)
	assert.Empty(t, f.bucket.Keys())
	assert.Len(t, f.bucket.Removes(), 1)
}

func TestUpsert_ValidationFailsBeforeNetwork(t *testing.T) {
	tests := []struct {
		name      string
		id        string
		patch     model.Patch
		files     []model.MediaFile
		wantField string
	}{
		{
			name:      "missing title",
			patch:     model.Patch{},
			wantField: "title",
		},
		{
			name:      "blank title",
			patch:     model.Patch{Title: model.Ptr("   ")},
			wantField: "title",
		},
		{
			name:      "bad year",
			patch:     model.Patch{Title: model.Ptr("x"), Year: model.Ptr("last year")},
			wantField: "year",
		},
		{
			name:      "bad date",
			patch:     model.Patch{Title: model.Ptr("x"), PublishedOn: model.Ptr("31/01/2024")},
			wantField: "published_on",
		},
		{
			name:      "negative sort",
			patch:     model.Patch{Title: model.Ptr("x"), Sort: model.Ptr(-1)},
			wantField: "sort",
		},
		{
			name:  "pdf as cover",
			patch: model.Patch{Title: model.Ptr("x")},
			files: []model.MediaFile{
				{Role: model.MediaCover, Filename: "cv.pdf", ContentType: model.MimeTypePDF, Data: []byte("%PDF")},
			},
			wantField: "files.0",
		},
		{
			name:  "two covers",
			patch: model.Patch{Title: model.Ptr("x")},
			files: []model.MediaFile{
				{Role: model.MediaCover, Filename: "a.jpg", ContentType: "image/jpeg", Data: []byte("a")},
				{Role: model.MediaCover, Filename: "b.jpg", ContentType: "image/jpeg", Data: []byte("b")},
			},
			wantField: "files",
		},
		{
			name:      "empty update",
			id:        "w1",
			patch:     model.Patch{},
			wantField: "patch",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil, work("w1", 0, true))

			_, err := f.coord.Upsert(context.Background(), tt.id, tt.patch, tt.files)
			var ve *model.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, ve.Fields, tt.wantField)
			assert.Empty(t, f.journal.Entries())
		})
	}
}

func TestDeleteMany(t *testing.T) {
	a := work("w1", 0, true)
	a.CoverURL = "works/w1/a.jpg"
	b := work("w2", 1, true)
	b.Images = []string{"works/w2/b.jpg", "works/w1/a.jpg"}
	f := newFixture(t, nil, a, b, work("w3", 2, true))
	store := f.attach(t, model.RoleAdmin)

	res, err := f.coord.DeleteMany(context.Background(), []string{"w1", "demo-work-1", "w2", "missing"})
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrReadOnly)
	assert.ErrorIs(t, err, model.ErrNotFound)

	require.Len(t, res.Deleted, 2)
	assert.Len(t, res.Failed, 2)
	assert.Contains(t, res.Failed, "demo-work-1")
	assert.Contains(t, res.Failed, "missing")

	assert.Equal(t, [][]string{{"works/w1/a.jpg", "works/w2/b.jpg"}}, f.bucket.Removes())

	snap := store.Snapshot()
	require.Len(t, snap.Records, 1)
	assert.Equal(t, "w3", snap.Records[0].ID)
}

func TestAttach_IgnoresOtherKinds(t *testing.T) {
	f := newFixture(t, nil, work("w1", 0, true))
	normalizer := catalog.NewNormalizer(f.resolver, catalog.NewPolicy())
	news := catalog.NewPageStore(f.backend, normalizer, catalog.PageStoreOptions{
		Kind: model.KindNews,
		Role: model.RoleAdmin,
	})
	detach := f.coord.Attach(news)
	detach()
	assert.Empty(t, f.coord.attached())
}
