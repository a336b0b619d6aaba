// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/olegiv/folio-go/internal/model"
	"github.com/olegiv/folio-go/internal/storage"
	"github.com/olegiv/folio-go/internal/util"
)

// Upload limits
const (
	MaxUploadSize      = 20 * 1024 * 1024 // 20MB
	maxParallelUploads = 4
	uploadCacheControl = "public, max-age=31536000, immutable"
)

// pendingUpload is a prepared file waiting for its record id.
type pendingUpload struct {
	role        model.MediaRole
	thumb       bool
	name        string // slug + suffix, without uuid and extension
	ext         string
	contentType string
	data        []byte
	key         string
}

// mediaKeys holds the storage keys written for one upsert.
type mediaKeys struct {
	cover   string
	thumb   string
	pdf     string
	gallery []string
	all     []string
}

// ObjectKey builds a storage key "<table>/<id>/<uuid>-<slug><ext>".
func ObjectKey(table, id, prefix, name, ext string) string {
	return fmt.Sprintf("%s/%s/%s-%s%s", table, id, prefix, name, ext)
}

// detectContentType fills in a missing or generic content type from the data.
func detectContentType(f model.MediaFile) string {
	ct := strings.ToLower(strings.TrimSpace(f.ContentType))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct == "" || ct == "application/octet-stream" {
		ct = http.DetectContentType(f.Data)
		if i := strings.Index(ct, ";"); i >= 0 {
			ct = ct[:i]
		}
	}
	return ct
}

func extFor(filename, contentType string) string {
	switch contentType {
	case model.MimeTypePDF:
		return ".pdf"
	case model.MimeTypePNG:
		return ".png"
	case model.MimeTypeGIF:
		return ".gif"
	case model.MimeTypeWebP:
		return ".webp"
	case model.MimeTypeJPEG:
		return ".jpg"
	}
	return strings.ToLower(filepath.Ext(filename))
}

func fileSlug(filename string) string {
	base, err := util.UploadBaseName(filename)
	if err != nil {
		return "file"
	}
	slug := util.SlugifyLimit(strings.TrimSuffix(base, filepath.Ext(base)), util.MaxSlugLength)
	if slug == "" {
		return "file"
	}
	return slug
}

// prepare turns validated files into uploads. Images are re-encoded with
// their EXIF orientation applied, and a cover image gets a thumbnail.
// Nothing here touches the network.
func (c *Coordinator) prepare(files []model.MediaFile) ([]*pendingUpload, error) {
	out := make([]*pendingUpload, 0, len(files)+1)
	for i, f := range files {
		ct := detectContentType(f)
		p := &pendingUpload{
			role:        f.Role,
			name:        fileSlug(f.Filename),
			ext:         extFor(f.Filename, ct),
			contentType: ct,
			data:        f.Data,
		}

		if c.images != nil && model.IsImageMimeType(ct) {
			res, err := c.images.Prepare(bytes.NewReader(f.Data))
			if err != nil {
				return nil, &model.ValidationError{Fields: map[string]string{
					fmt.Sprintf("files.%d", i): "could not read image: " + err.Error(),
				}}
			}
			p.data, p.contentType, p.ext = res.Data, res.MimeType, res.Ext

			if f.Role == model.MediaCover {
				thumb, err := c.images.Thumbnail(res.Data, model.ThumbnailVariant)
				if err != nil {
					return nil, fmt.Errorf("rendering thumbnail for %s: %w", f.Filename, err)
				}
				out = append(out, &pendingUpload{
					role:        f.Role,
					thumb:       true,
					name:        p.name + "-thumb",
					ext:         thumb.Ext,
					contentType: thumb.MimeType,
					data:        thumb.Data,
				})
			}
		}
		out = append(out, p)
	}
	return out, nil
}

// upload assigns keys under the record's namespace and uploads every file,
// at most maxParallelUploads at a time. On failure the files already
// stored are removed again, best effort.
func (c *Coordinator) upload(ctx context.Context, id string, pending []*pendingUpload) (mediaKeys, error) {
	var keys mediaKeys
	if len(pending) == 0 {
		return keys, nil
	}

	// A thumbnail shares the uuid of its cover.
	var coverPrefix string
	for _, p := range pending {
		prefix := uuid.NewString()
		if p.role == model.MediaCover {
			if coverPrefix == "" {
				coverPrefix = prefix
			}
			prefix = coverPrefix
		}
		p.key = ObjectKey(c.table, id, prefix, p.name, p.ext)
	}

	done := make([]bool, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelUploads)
	for i, p := range pending {
		g.Go(func() error {
			err := c.bucket.Upload(gctx, p.key, p.data, storage.UploadOptions{
				ContentType:  p.contentType,
				CacheControl: uploadCacheControl,
			})
			if err != nil {
				return fmt.Errorf("uploading %s: %w", p.key, err)
			}
			done[i] = true
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		var stored []string
		for i, ok := range done {
			if ok {
				stored = append(stored, pending[i].key)
			}
		}
		c.removeKeys(context.WithoutCancel(ctx), id, stored)
		return keys, err
	}

	for _, p := range pending {
		keys.all = append(keys.all, p.key)
		switch {
		case p.role == model.MediaCover && p.thumb:
			keys.thumb = p.key
		case p.role == model.MediaCover:
			keys.cover = p.key
		case p.role == model.MediaPDF:
			keys.pdf = p.key
		default:
			keys.gallery = append(keys.gallery, p.key)
		}
	}
	return keys, nil
}

// patch merges the uploaded keys into base. Gallery keys are appended to
// the images list of base, or of prev when base leaves images untouched.
func (k mediaKeys) patch(prev model.Record, base model.Patch) model.Patch {
	out := base
	if k.cover != "" {
		out.CoverURL = model.Ptr(k.cover)
	}
	if k.thumb != "" {
		out.ThumbURL = model.Ptr(k.thumb)
	}
	if k.pdf != "" {
		out.PDFURL = model.Ptr(k.pdf)
	}
	if len(k.gallery) > 0 {
		images := prev.Images
		if base.Images != nil {
			images = *base.Images
		}
		merged := append(append([]string(nil), images...), k.gallery...)
		out.Images = &merged
	}
	return out
}
