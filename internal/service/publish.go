// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/olegiv/folio-go/internal/catalog"
	"github.com/olegiv/folio-go/internal/model"
	"github.com/olegiv/folio-go/internal/webhook"
)

// Direction moves a record one place in the manual order.
type Direction int

// Directions
const (
	Up Direction = iota
	Down
)

// ParseDirection accepts "up" or "down".
func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "up":
		return Up, true
	case "down":
		return Down, true
	default:
		return 0, false
	}
}

// TogglePublish flips is_published with a single backend update. Local
// state changes only after the backend confirms the write.
func (c *Coordinator) TogglePublish(ctx context.Context, id string) (Result, error) {
	if err := c.readOnly(id); err != nil {
		return Result{Message: model.UserMessage(err)}, err
	}

	cur, err := c.current(ctx, id)
	if err != nil {
		return Result{Message: model.UserMessage(err)}, err
	}

	updated, err := c.backend.Update(ctx, c.table, id, model.Patch{IsPublished: model.Ptr(!cur.IsPublished)})
	if err != nil {
		err = fmt.Errorf("toggling publish on %s %s: %w", c.kind, id, err)
		return Result{Message: model.UserMessage(err)}, err
	}

	c.applyLocal(id, catalog.Change{Record: &updated})

	msg, event := "Unpublished", webhook.EventRecordUnpublished
	if updated.IsPublished {
		msg, event = "Published", webhook.EventRecordPublished
	}
	c.audit(ctx, event, "record "+strings.ToLower(msg), updated)
	return Result{Record: updated, Message: msg}, nil
}

// Move swaps the sort value of a record with its neighbour in the admin
// order. The two updates are not transactional; concurrent reorders are
// last-write-wins.
func (c *Coordinator) Move(ctx context.Context, id string, dir Direction) (Result, error) {
	if err := c.readOnly(id); err != nil {
		return Result{Message: model.UserMessage(err)}, err
	}

	rows, err := c.backend.Select(ctx, model.Query{Table: c.table, Order: model.OrderSortCreatedDesc})
	if err != nil {
		err = fmt.Errorf("loading %s order: %w", c.kind, err)
		return Result{Message: model.UserMessage(err)}, err
	}

	i := -1
	for j, r := range rows {
		if r.ID == id {
			i = j
			break
		}
	}
	if i < 0 {
		err := fmt.Errorf("moving %s %s: %w", c.kind, id, model.ErrNotFound)
		return Result{Message: model.UserMessage(err)}, err
	}

	j := i - 1
	if dir == Down {
		j = i + 1
	}
	if j < 0 || j >= len(rows) {
		return Result{Record: rows[i], Message: "Already in place"}, nil
	}

	self, other := rows[i], rows[j]
	selfSort, otherSort := other.Sort, self.Sort
	if selfSort == otherSort {
		// Equal sort values order by creation time; break the tie.
		if dir == Up {
			otherSort++
		} else {
			selfSort++
		}
	}

	movedOther := other
	if otherSort != other.Sort {
		movedOther, err = c.backend.Update(ctx, c.table, other.ID, model.Patch{Sort: model.Ptr(otherSort)})
		if err != nil {
			err = fmt.Errorf("reordering %s %s: %w", c.kind, other.ID, err)
			return Result{Message: model.UserMessage(err)}, err
		}
		c.applyLocal(other.ID, catalog.Change{Record: &movedOther})
	}

	moved, err := c.backend.Update(ctx, c.table, id, model.Patch{Sort: model.Ptr(selfSort)})
	if err != nil {
		err = fmt.Errorf("reordering %s %s: %w", c.kind, id, err)
		return Result{Message: model.UserMessage(err)}, err
	}
	c.applyLocal(id, catalog.Change{Record: &moved})
	c.audit(ctx, webhook.EventRecordUpdated, "record moved", moved)

	return Result{Record: moved, Message: "Moved"}, nil
}
