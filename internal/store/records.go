// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/olegiv/folio-go/internal/model"
)

const recordColumns = `id, title, COALESCE(body, ''), year, category, published_on,
	cover_url, thumb_url, pdf_url, COALESCE(images, '[]'), sort, is_published,
	created_at, updated_at`

// Store is the SQL implementation of model.Backend. It also persists the
// event log.
type Store struct {
	db  *DB
	now func() time.Time
}

var _ model.Backend = (*Store)(nil)

// New creates a store over db.
func New(db *DB) *Store {
	return &Store{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// DB returns the underlying handle.
func (s *Store) DB() *DB {
	return s.db
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return mapError("ping", s.db.PingContext(ctx))
}

// checkTable guards every query that splices a table name.
func checkTable(table string) (model.Kind, error) {
	kind, ok := model.KindForTable(table)
	if !ok {
		return "", fmt.Errorf("unknown catalog table %q", table)
	}
	return kind, nil
}

// Select implements model.Backend.
func (s *Store) Select(ctx context.Context, q model.Query) ([]model.Record, error) {
	kind, err := checkTable(q.Table)
	if err != nil {
		return nil, err
	}

	var (
		where []string
		args  []any
	)
	if q.Filter.PublishedOnly {
		where = append(where, "is_published = ?")
		args = append(args, true)
	}
	if len(q.Filter.IDs) > 0 {
		where = append(where, "id IN ("+placeholders(len(q.Filter.IDs))+")")
		for _, id := range q.Filter.IDs {
			args = append(args, id)
		}
	}

	query := "SELECT " + recordColumns + " FROM " + q.Table
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	switch q.Order {
	case model.OrderCreatedDesc:
		query += " ORDER BY created_at DESC, id DESC"
	default:
		query += " ORDER BY sort ASC, created_at DESC, id DESC"
	}
	if q.Limit > 0 || q.Offset > 0 {
		limit := q.Limit
		if limit <= 0 {
			limit = math.MaxInt32
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, q.Offset)
	}

	rows, err := s.db.QueryContext(ctx, s.db.rebind(query), args...)
	if err != nil {
		return nil, mapError("select "+q.Table, err)
	}
	defer func() { _ = rows.Close() }()

	var recs []model.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", q.Table, err)
		}
		rec.Kind = kind
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("select "+q.Table, err)
	}

	if err := s.attachImages(ctx, q.Table, recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// Get implements model.Backend.
func (s *Store) Get(ctx context.Context, table, id string) (model.Record, error) {
	return s.get(ctx, s.db, table, id)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) get(ctx context.Context, q queryer, table, id string) (model.Record, error) {
	kind, err := checkTable(table)
	if err != nil {
		return model.Record{}, err
	}
	row := q.QueryRowContext(ctx, s.db.rebind("SELECT "+recordColumns+" FROM "+table+" WHERE id = ?"), id)
	rec, err := scanRecord(row)
	if err != nil {
		return model.Record{}, mapError("get "+table, err)
	}
	rec.Kind = kind

	recs := []model.Record{rec}
	if err := s.attachImagesWith(ctx, q, table, recs); err != nil {
		return model.Record{}, err
	}
	return recs[0], nil
}

// Insert implements model.Backend. A missing id is generated.
func (s *Store) Insert(ctx context.Context, table string, rec model.Record) (model.Record, error) {
	kind, err := checkTable(table)
	if err != nil {
		return model.Record{}, err
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := s.now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	rec.Kind = kind

	images, err := encodeImages(rec.Images)
	if err != nil {
		return model.Record{}, err
	}

	query := "INSERT INTO " + table + ` (id, title, body, year, category, published_on,
		cover_url, thumb_url, pdf_url, images, sort, is_published, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, s.db.rebind(query),
		rec.ID, rec.Title, rec.Body, rec.Year, rec.Category, rec.PublishedOn,
		rec.CoverURL, rec.ThumbURL, rec.PDFURL, images, rec.Sort, rec.IsPublished,
		rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return model.Record{}, mapError("insert "+table, err)
	}
	rec.ExtraImages = nil
	return rec, nil
}

// Update implements model.Backend and returns the row as stored.
func (s *Store) Update(ctx context.Context, table, id string, patch model.Patch) (model.Record, error) {
	if _, err := checkTable(table); err != nil {
		return model.Record{}, err
	}

	var (
		sets []string
		args []any
	)
	set := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if patch.Title != nil {
		set("title", *patch.Title)
	}
	if patch.Body != nil {
		set("body", *patch.Body)
	}
	if patch.Year != nil {
		set("year", *patch.Year)
	}
	if patch.Category != nil {
		set("category", *patch.Category)
	}
	if patch.PublishedOn != nil {
		set("published_on", *patch.PublishedOn)
	}
	if patch.CoverURL != nil {
		set("cover_url", *patch.CoverURL)
	}
	if patch.ThumbURL != nil {
		set("thumb_url", *patch.ThumbURL)
	}
	if patch.PDFURL != nil {
		set("pdf_url", *patch.PDFURL)
	}
	if patch.Images != nil {
		images, err := encodeImages(*patch.Images)
		if err != nil {
			return model.Record{}, err
		}
		set("images", images)
	}
	if patch.Sort != nil {
		set("sort", *patch.Sort)
	}
	if patch.IsPublished != nil {
		set("is_published", *patch.IsPublished)
	}
	set("updated_at", s.now())
	args = append(args, id)

	query := "UPDATE " + table + " SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	if _, err := s.db.ExecContext(ctx, s.db.rebind(query), args...); err != nil {
		return model.Record{}, mapError("update "+table, err)
	}
	// Affected-row counts are unreliable across drivers (MySQL reports 0 for
	// unchanged rows), so existence is decided by reading the row back.
	return s.Get(ctx, table, id)
}

// Delete implements model.Backend. The row and its image rows are removed
// in one transaction; the row is returned as it was.
func (s *Store) Delete(ctx context.Context, table, id string) (model.Record, error) {
	if _, err := checkTable(table); err != nil {
		return model.Record{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Record{}, mapError("delete "+table, err)
	}
	defer func() { _ = tx.Rollback() }()

	rec, err := s.get(ctx, tx, table, id)
	if err != nil {
		return model.Record{}, err
	}
	if _, err := tx.ExecContext(ctx, s.db.rebind("DELETE FROM record_images WHERE record_table = ? AND record_id = ?"), table, id); err != nil {
		return model.Record{}, mapError("delete "+table, err)
	}
	if _, err := tx.ExecContext(ctx, s.db.rebind("DELETE FROM "+table+" WHERE id = ?"), id); err != nil {
		return model.Record{}, mapError("delete "+table, err)
	}
	if err := tx.Commit(); err != nil {
		return model.Record{}, mapError("delete "+table, err)
	}
	return rec, nil
}

// AddImage appends a secondary image row to a record.
func (s *Store) AddImage(ctx context.Context, table, id, url string) error {
	if _, err := checkTable(table); err != nil {
		return err
	}
	query := `INSERT INTO record_images (record_table, record_id, url, position)
		SELECT ?, ?, ?, COALESCE(MAX(position), -1) + 1 FROM record_images
		WHERE record_table = ? AND record_id = ?`
	_, err := s.db.ExecContext(ctx, s.db.rebind(query), table, id, url, table, id)
	return mapError("add image", err)
}

// Count returns the number of rows in table matching filter.
func (s *Store) Count(ctx context.Context, table string, filter model.Filter) (int, error) {
	if _, err := checkTable(table); err != nil {
		return 0, err
	}
	query := "SELECT COUNT(*) FROM " + table
	var args []any
	if filter.PublishedOnly {
		query += " WHERE is_published = ?"
		args = append(args, true)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, s.db.rebind(query), args...).Scan(&n); err != nil {
		return 0, mapError("count "+table, err)
	}
	return n, nil
}

func (s *Store) attachImages(ctx context.Context, table string, recs []model.Record) error {
	return s.attachImagesWith(ctx, s.db, table, recs)
}

func (s *Store) attachImagesWith(ctx context.Context, q queryer, table string, recs []model.Record) error {
	if len(recs) == 0 {
		return nil
	}
	index := make(map[string]int, len(recs))
	args := []any{table}
	for i, r := range recs {
		index[r.ID] = i
		args = append(args, r.ID)
	}
	query := "SELECT record_id, url FROM record_images WHERE record_table = ? AND record_id IN (" +
		placeholders(len(recs)) + ") ORDER BY record_id, position"
	rows, err := q.QueryContext(ctx, s.db.rebind(query), args...)
	if err != nil {
		return mapError("select record_images", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id, url string
		if err := rows.Scan(&id, &url); err != nil {
			return fmt.Errorf("scanning record image: %w", err)
		}
		if i, ok := index[id]; ok {
			recs[i].ExtraImages = append(recs[i].ExtraImages, url)
		}
	}
	return mapError("select record_images", rows.Err())
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (model.Record, error) {
	var (
		rec    model.Record
		images string
	)
	err := sc.Scan(
		&rec.ID, &rec.Title, &rec.Body, &rec.Year, &rec.Category, &rec.PublishedOn,
		&rec.CoverURL, &rec.ThumbURL, &rec.PDFURL, &images, &rec.Sort, &rec.IsPublished,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return model.Record{}, err
	}
	rec.Images, err = decodeImages(images)
	if err != nil {
		return model.Record{}, err
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return rec, nil
}

func encodeImages(images []string) (string, error) {
	if len(images) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(images)
	if err != nil {
		return "", fmt.Errorf("encoding images: %w", err)
	}
	return string(b), nil
}

func decodeImages(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "[]" || s == "null" {
		return nil, nil
	}
	var images []string
	if err := json.Unmarshal([]byte(s), &images); err != nil {
		return nil, fmt.Errorf("decoding images: %w", err)
	}
	return images, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
