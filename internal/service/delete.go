// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/olegiv/folio-go/internal/catalog"
	"github.com/olegiv/folio-go/internal/model"
	"github.com/olegiv/folio-go/internal/webhook"
)

// DeleteRecord deletes the row, then removes its media from the bucket.
// The row delete is authoritative: when it fails nothing else happens.
// A failed bucket remove is reported through the cleanup channel and the
// operation still succeeds.
func (c *Coordinator) DeleteRecord(ctx context.Context, id string) (Result, error) {
	if err := c.readOnly(id); err != nil {
		return Result{Message: model.UserMessage(err)}, err
	}

	deleted, err := c.backend.Delete(ctx, c.table, id)
	if err != nil {
		err = fmt.Errorf("deleting %s %s: %w", c.kind, id, err)
		return Result{Message: model.UserMessage(err)}, err
	}

	keys := c.resolver.StorageKeys(deleted.MediaRefs())
	cleanup := c.removeKeys(ctx, id, keys)

	c.applyLocal(id, catalog.Change{Removed: true})
	c.audit(ctx, webhook.EventRecordDeleted, "record deleted", deleted)

	return Result{Record: deleted, Message: "Deleted", Cleanup: cleanup}, nil
}

// BatchResult is the outcome of DeleteMany.
type BatchResult struct {
	Deleted []model.Record        `json:"deleted"`
	Failed  map[string]string     `json:"failed,omitempty"`
	Cleanup *model.CleanupFailure `json:"-"`
}

// DeleteMany deletes each row in turn and then issues a single bucket
// remove for the media of every deleted row. A failed row delete does not
// stop the batch; the joined failures are returned with the partial result.
func (c *Coordinator) DeleteMany(ctx context.Context, ids []string) (BatchResult, error) {
	res := BatchResult{Failed: make(map[string]string)}
	var (
		errs []error
		refs []string
	)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := c.readOnly(id); err != nil {
			res.Failed[id] = model.UserMessage(err)
			errs = append(errs, err)
			continue
		}
		deleted, err := c.backend.Delete(ctx, c.table, id)
		if err != nil {
			err = fmt.Errorf("deleting %s %s: %w", c.kind, id, err)
			res.Failed[id] = model.UserMessage(err)
			errs = append(errs, err)
			continue
		}
		res.Deleted = append(res.Deleted, deleted)
		refs = append(refs, deleted.MediaRefs()...)
		c.applyLocal(id, catalog.Change{Removed: true})
		c.audit(ctx, webhook.EventRecordDeleted, "record deleted", deleted)
	}

	if keys := c.resolver.StorageKeys(refs); len(keys) > 0 {
		res.Cleanup = c.removeKeys(ctx, batchID(res.Deleted), keys)
	}
	if len(res.Failed) == 0 {
		res.Failed = nil
	}
	return res, errors.Join(errs...)
}

func batchID(recs []model.Record) string {
	if len(recs) == 1 {
		return recs[0].ID
	}
	return fmt.Sprintf("batch of %d", len(recs))
}
