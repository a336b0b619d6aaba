// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/olegiv/folio-go/internal/model"
)

type demoRecord struct {
	kind model.Kind
	rec  model.Record
}

// SeedDemo inserts the read-only placeholder records shown on an empty
// site. Records that already exist are left alone.
func SeedDemo(ctx context.Context, s *Store) error {
	slog.Info("seeding demo content")

	created := 0
	for _, d := range getDemoRecords() {
		table := d.kind.Table()
		if _, err := s.Get(ctx, table, d.rec.ID); err == nil {
			continue
		} else if !errors.Is(err, model.ErrNotFound) {
			return fmt.Errorf("checking demo record %s: %w", d.rec.ID, err)
		}
		if _, err := s.Insert(ctx, table, d.rec); err != nil {
			return fmt.Errorf("inserting demo record %s: %w", d.rec.ID, err)
		}
		created++
	}

	slog.Info("demo content seeded", "created", created)
	return nil
}

func getDemoRecords() []demoRecord {
	return []demoRecord{
		{model.KindWork, model.Record{
			ID: model.DemoIDPrefix + "work-1", Title: "Untitled (Blue)", Year: "2021",
			Category: "painting", CoverURL: "/assets/demo/work-1.jpg", Sort: 1, IsPublished: true,
		}},
		{model.KindWork, model.Record{
			ID: model.DemoIDPrefix + "work-2", Title: "Study for a Landscape", Year: "2019",
			Category: "drawing", CoverURL: "/assets/demo/work-2.jpg", Sort: 2, IsPublished: true,
		}},
		{model.KindNews, model.Record{
			ID: model.DemoIDPrefix + "news-1", Title: "Studio open day", PublishedOn: "2024-06-01",
			Body: "The studio opens its doors on the **first Saturday** of June.", IsPublished: true,
		}},
		{model.KindPublication, model.Record{
			ID: model.DemoIDPrefix + "publication-1", Title: "Notes on Colour", Year: "2022",
			Body: "An essay on pigment, light and memory.", IsPublished: true,
		}},
		{model.KindDocument, model.Record{
			ID: model.DemoIDPrefix + "document-1", Title: "Curriculum Vitae", Year: "2024",
			PDFURL: "/assets/demo/cv.pdf", IsPublished: true,
		}},
		{model.KindPhoto, model.Record{
			ID: model.DemoIDPrefix + "photo-1", Title: "Installation view", Year: "2023",
			Category: "exhibition", CoverURL: "/assets/demo/photo-1.jpg", IsPublished: true,
		}},
	}
}
