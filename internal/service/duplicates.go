// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"fmt"

	"github.com/olegiv/folio-go/internal/catalog"
	"github.com/olegiv/folio-go/internal/model"
)

// Duplicates groups the records of the coordinator's kind by content
// fingerprint. Unpublished records take part.
func (c *Coordinator) Duplicates(ctx context.Context) ([]catalog.DuplicateGroup, error) {
	rows, err := c.allRows(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.GroupDuplicates(rows), nil
}

// PurgeDuplicates deletes every record FindDuplicates marks for discard,
// keeping the newest of each group. Read-only records are reported as
// failures and left in place.
func (c *Coordinator) PurgeDuplicates(ctx context.Context) (BatchResult, error) {
	rows, err := c.allRows(ctx)
	if err != nil {
		return BatchResult{}, err
	}
	discard := catalog.FindDuplicates(rows)
	if len(discard) == 0 {
		return BatchResult{}, nil
	}
	ids := make([]string, 0, len(discard))
	for _, r := range discard {
		ids = append(ids, r.ID)
	}
	c.logger.Info("purging duplicates", "count", len(ids))
	return c.DeleteMany(ctx, ids)
}

func (c *Coordinator) allRows(ctx context.Context) ([]model.Record, error) {
	rows, err := c.backend.Select(ctx, model.Query{Table: c.table, Order: model.OrderCreatedDesc})
	if err != nil {
		return nil, fmt.Errorf("loading %s records: %w", c.kind, err)
	}
	return rows, nil
}
