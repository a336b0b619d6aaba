// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "strings"

// Supported MIME types
const (
	MimeTypeJPEG = "image/jpeg"
	MimeTypePNG  = "image/png"
	MimeTypeGIF  = "image/gif"
	MimeTypeWebP = "image/webp"
	MimeTypePDF  = "application/pdf"
)

// MediaRole says which field of a record an uploaded file is attached to.
type MediaRole string

// Media roles
const (
	MediaCover   MediaRole = "cover"
	MediaGallery MediaRole = "gallery"
	MediaPDF     MediaRole = "pdf"
)

// ImageVariantConfig defines settings for generating image variants.
type ImageVariantConfig struct {
	Width   int
	Height  int
	Quality int
	Crop    bool // true = crop to exact size, false = fit within bounds
}

// ThumbnailVariant is the variant generated for cover uploads.
var ThumbnailVariant = ImageVariantConfig{Width: 600, Height: 600, Quality: 80, Crop: false}

// MediaFile is one file attached to an upsert.
type MediaFile struct {
	Role        MediaRole `json:"role"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Data        []byte    `json:"data"`
}

// IsImage returns true if the file is an image.
func (f *MediaFile) IsImage() bool {
	return IsImageMimeType(f.ContentType)
}

// IsImageMimeType reports whether mimeType is a processable image type.
func IsImageMimeType(mimeType string) bool {
	switch mimeType {
	case MimeTypeJPEG, MimeTypePNG, MimeTypeGIF, MimeTypeWebP:
		return true
	default:
		return false
	}
}

// IsSupportedMimeType checks if a MIME type is accepted for upload.
func IsSupportedMimeType(mimeType string) bool {
	mimeType = strings.TrimSpace(strings.ToLower(mimeType))
	return IsImageMimeType(mimeType) || mimeType == MimeTypePDF
}
