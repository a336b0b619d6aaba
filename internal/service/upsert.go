// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/olegiv/folio-go/internal/catalog"
	"github.com/olegiv/folio-go/internal/model"
	"github.com/olegiv/folio-go/internal/webhook"
)

// Field limits
const (
	MaxTitleLength    = 300
	MaxCategoryLength = 80
	MaxBodyLength     = 100000
)

var yearPattern = regexp.MustCompile(`^\d{4}(\s*[-–]\s*\d{4})?$`)

var notBlank = validation.By(func(value any) error {
	if s, ok := value.(*string); ok && s != nil && strings.TrimSpace(*s) == "" {
		return errors.New("cannot be blank")
	}
	return nil
})

// Upsert creates a record when id is empty and updates it otherwise.
//
// A new record is inserted first, because media keys are namespaced by
// the record id; the files are then uploaded and the row is updated with
// their keys. For an existing record the files are uploaded first, the
// row is patched, and only then are replaced media removed, best effort.
func (c *Coordinator) Upsert(ctx context.Context, id string, patch model.Patch, files []model.MediaFile) (Result, error) {
	isNew := id == ""
	if !isNew {
		if err := c.readOnly(id); err != nil {
			return Result{Message: model.UserMessage(err)}, err
		}
	}

	if err := validateUpsert(isNew, patch, files); err != nil {
		return Result{Message: model.UserMessage(err)}, err
	}
	pending, err := c.prepare(files)
	if err != nil {
		return Result{Message: model.UserMessage(err)}, err
	}

	if isNew {
		return c.create(ctx, patch, pending)
	}
	return c.update(ctx, id, patch, pending)
}

func (c *Coordinator) create(ctx context.Context, patch model.Patch, pending []*pendingUpload) (Result, error) {
	created, err := c.backend.Insert(ctx, c.table, patch.Apply(model.Record{Kind: c.kind}))
	if err != nil {
		err = fmt.Errorf("creating %s: %w", c.kind, err)
		return Result{Message: model.UserMessage(err)}, err
	}

	if len(pending) == 0 {
		c.applyLocal(created.ID, catalog.Change{Record: &created})
		c.audit(ctx, webhook.EventRecordCreated, "record created", created)
		return Result{Record: created, Message: "Created"}, nil
	}

	keys, err := c.upload(ctx, created.ID, pending)
	if err != nil {
		// The row exists without its media; show it so it can be fixed.
		c.applyLocal(created.ID, catalog.Change{Record: &created})
		err = fmt.Errorf("attaching media to %s %s: %w", c.kind, created.ID, err)
		return Result{Record: created, Message: model.UserMessage(err)}, err
	}

	updated, err := c.backend.Update(ctx, c.table, created.ID, keys.patch(created, model.Patch{}))
	if err != nil {
		c.removeKeys(context.WithoutCancel(ctx), created.ID, keys.all)
		c.applyLocal(created.ID, catalog.Change{Record: &created})
		err = fmt.Errorf("attaching media to %s %s: %w", c.kind, created.ID, err)
		return Result{Record: created, Message: model.UserMessage(err)}, err
	}

	c.applyLocal(updated.ID, catalog.Change{Record: &updated})
	c.audit(ctx, webhook.EventRecordCreated, "record created", updated)
	return Result{Record: updated, Message: "Created"}, nil
}

func (c *Coordinator) update(ctx context.Context, id string, patch model.Patch, pending []*pendingUpload) (Result, error) {
	prev, err := c.backend.Get(ctx, c.table, id)
	if err != nil {
		err = fmt.Errorf("loading %s %s: %w", c.kind, id, err)
		return Result{Message: model.UserMessage(err)}, err
	}

	keys, err := c.upload(ctx, id, pending)
	if err != nil {
		err = fmt.Errorf("uploading media for %s %s: %w", c.kind, id, err)
		return Result{Message: model.UserMessage(err)}, err
	}

	updated, err := c.backend.Update(ctx, c.table, id, keys.patch(prev, patch))
	if err != nil {
		c.removeKeys(context.WithoutCancel(ctx), id, keys.all)
		err = fmt.Errorf("updating %s %s: %w", c.kind, id, err)
		return Result{Message: model.UserMessage(err)}, err
	}

	cleanup := c.removeKeys(ctx, id, c.replacedKeys(prev, updated))

	c.applyLocal(id, catalog.Change{Record: &updated})
	c.audit(ctx, webhook.EventRecordUpdated, "record updated", updated)
	return Result{Record: updated, Message: "Saved", Cleanup: cleanup}, nil
}

// replacedKeys returns the storage keys referenced by prev that updated no
// longer references. Joined image rows are never touched by an update and
// stay protected.
func (c *Coordinator) replacedKeys(prev, updated model.Record) []string {
	own := func(r model.Record) []string {
		r.ExtraImages = nil
		return r.MediaRefs()
	}
	keep := make(map[string]bool)
	for _, k := range c.resolver.StorageKeys(append(own(updated), append(prev.ExtraImages, updated.ExtraImages...)...)) {
		keep[k] = true
	}
	var stale []string
	for _, k := range c.resolver.StorageKeys(own(prev)) {
		if !keep[k] {
			stale = append(stale, k)
		}
	}
	return stale
}

func validateUpsert(isNew bool, p model.Patch, files []model.MediaFile) error {
	titleRules := []validation.Rule{notBlank, validation.RuneLength(1, MaxTitleLength)}
	if isNew {
		titleRules = append([]validation.Rule{validation.Required.Error("title is required")}, titleRules...)
	} else {
		titleRules = append([]validation.Rule{validation.NilOrNotEmpty}, titleRules...)
	}

	errs := validation.Errors{}
	err := validation.ValidateStruct(&p,
		validation.Field(&p.Title, titleRules...),
		validation.Field(&p.Body, validation.RuneLength(0, MaxBodyLength)),
		validation.Field(&p.Year, validation.Match(yearPattern).Error("must be a year like 2024 or 2019-2021")),
		validation.Field(&p.Category, validation.RuneLength(0, MaxCategoryLength)),
		validation.Field(&p.PublishedOn, validation.Date("2006-01-02").Error("must be a date like 2024-01-31")),
		validation.Field(&p.Sort, validation.Min(0)),
	)
	if err != nil {
		var verrs validation.Errors
		if !errors.As(err, &verrs) {
			return err
		}
		for k, v := range verrs {
			errs[k] = v
		}
	}

	var covers, pdfs int
	for i, f := range files {
		name := fmt.Sprintf("files.%d", i)
		if err := validateFile(f); err != nil {
			errs[name] = err
			continue
		}
		switch f.Role {
		case model.MediaCover:
			covers++
		case model.MediaPDF:
			pdfs++
		}
	}
	if covers > 1 {
		errs["files"] = errors.New("only one cover image is allowed")
	}
	if pdfs > 1 {
		errs["files"] = errors.New("only one PDF is allowed")
	}

	if !isNew && p.IsEmpty() && len(files) == 0 {
		errs["patch"] = errors.New("nothing to update")
	}

	if len(errs) == 0 {
		return nil
	}
	fields := make(map[string]string, len(errs))
	for k, v := range errs {
		fields[k] = v.Error()
	}
	return &model.ValidationError{Fields: fields}
}

func validateFile(f model.MediaFile) error {
	ct := detectContentType(f)
	return validation.ValidateStruct(&f,
		validation.Field(&f.Role, validation.Required, validation.In(model.MediaCover, model.MediaGallery, model.MediaPDF)),
		validation.Field(&f.Filename, validation.Required),
		validation.Field(&f.Data, validation.Required, validation.Length(1, MaxUploadSize).Error("file is too large")),
		validation.Field(&f.ContentType, validation.By(func(any) error {
			switch {
			case !model.IsSupportedMimeType(ct):
				return fmt.Errorf("file type %s is not allowed", ct)
			case f.Role == model.MediaPDF && ct != model.MimeTypePDF:
				return errors.New("must be a PDF")
			case f.Role != model.MediaPDF && !model.IsImageMimeType(ct):
				return errors.New("must be an image")
			}
			return nil
		})),
	)
}
