// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package imaging prepares uploaded images for the bucket: EXIF
// auto-orientation, metadata stripping and thumbnail generation.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/webp" // WebP decoder

	"github.com/olegiv/folio-go/internal/model"
)

// ErrUnsupportedFormat is returned for data that is not a decodable image.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Result is an encoded image ready for upload.
type Result struct {
	Data     []byte
	Width    int
	Height   int
	MimeType string
	Ext      string // with leading dot
}

// Processor handles image processing operations using pure Go libraries.
type Processor struct {
	quality int
}

// NewProcessor creates a new image processor. Originals are re-encoded at
// the given JPEG quality (95 when zero).
func NewProcessor(quality int) *Processor {
	if quality <= 0 || quality > 100 {
		quality = 95
	}
	return &Processor{quality: quality}
}

// Prepare decodes an uploaded image, applies its EXIF orientation and
// re-encodes it in its own format. The output carries no EXIF metadata.
func (p *Processor) Prepare(r io.Reader) (*Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading image data: %w", err)
	}

	format := detectFormat(data)
	if format == "" {
		return nil, ErrUnsupportedFormat
	}

	img, err := decodeOriented(data)
	if err != nil {
		return nil, err
	}

	return encodeResult(img, format, p.quality)
}

// Thumbnail renders a variant of data according to cfg. Images already
// inside the bounds are only re-encoded. Thumbnails are always JPEG, except
// PNG and GIF sources which keep their format for transparency.
func (p *Processor) Thumbnail(data []byte, cfg model.ImageVariantConfig) (*Result, error) {
	format := detectFormat(data)
	if format == "" {
		return nil, ErrUnsupportedFormat
	}

	img, err := decodeOriented(data)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	switch {
	case cfg.Crop:
		img = imaging.Fill(img, cfg.Width, cfg.Height, imaging.Center, imaging.Lanczos)
	case bounds.Dx() > cfg.Width || bounds.Dy() > cfg.Height:
		img = imaging.Fit(img, cfg.Width, cfg.Height, imaging.Lanczos)
	}

	if format == "webp" {
		format = "jpeg"
	}
	return encodeResult(img, format, cfg.Quality)
}

// Dimensions returns the size of encoded image data without a full decode.
func (p *Processor) Dimensions(data []byte) (width, height int, err error) {
	config, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("reading image config: %w", err)
	}
	return config.Width, config.Height, nil
}

// IsImage checks if a MIME type represents an image that can be processed.
func (p *Processor) IsImage(mimeType string) bool {
	return model.IsImageMimeType(mimeType)
}

func decodeOriented(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return applyOrientation(img, readExifOrientation(bytes.NewReader(data))), nil
}

func encodeResult(img image.Image, format string, quality int) (*Result, error) {
	out, err := encodeImage(img, format, quality)
	if err != nil {
		return nil, fmt.Errorf("encoding image: %w", err)
	}
	if format == "webp" {
		format = "jpeg"
	}
	b := img.Bounds()
	return &Result{
		Data:     out,
		Width:    b.Dx(),
		Height:   b.Dy(),
		MimeType: formatToMimeType(format),
		Ext:      formatToExt(format),
	}, nil
}

// readExifOrientation reads the EXIF orientation tag from image data.
// Returns 1 (normal) if orientation cannot be determined.
func readExifOrientation(r io.Reader) int {
	x, err := exif.Decode(r)
	if err != nil {
		return 1
	}

	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}

	orientation, err := tag.Int(0)
	if err != nil {
		return 1
	}

	return orientation
}

// applyOrientation applies EXIF orientation transformation to an image.
// Orientation values:
// 1: Normal
// 2: Flip horizontal
// 3: Rotate 180°
// 4: Flip vertical
// 5: Rotate 90° CW + flip horizontal
// 6: Rotate 90° CW
// 7: Rotate 90° CCW + flip horizontal
// 8: Rotate 90° CCW
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.FlipH(imaging.Rotate270(img))
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.FlipH(imaging.Rotate90(img))
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

// encodeImage encodes an image with the specified format and quality.
// WebP has no pure Go encoder and is written as JPEG.
func encodeImage(img image.Image, format string, quality int) ([]byte, error) {
	var buf bytes.Buffer
	var err error

	switch format {
	case "png":
		err = png.Encode(&buf, img)
	case "gif":
		err = gif.Encode(&buf, img, nil)
	default:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality})
	}
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// detectFormat detects the image format from raw bytes.
func detectFormat(data []byte) string {
	contentType := http.DetectContentType(data)
	// Explicitly reject TIFF (CVE-2023-36308 in disintegration/imaging)
	if strings.Contains(contentType, "tiff") {
		return ""
	}
	switch {
	case strings.Contains(contentType, "jpeg"):
		return "jpeg"
	case strings.Contains(contentType, "png"):
		return "png"
	case strings.Contains(contentType, "gif"):
		return "gif"
	case strings.Contains(contentType, "webp"):
		return "webp"
	default:
		return ""
	}
}

// FormatFromFilename extracts the image format from a filename extension.
func FormatFromFilename(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "jpeg"
	case ".png":
		return "png"
	case ".gif":
		return "gif"
	case ".webp":
		return "webp"
	default:
		return ""
	}
}

func formatToExt(format string) string {
	switch format {
	case "png":
		return ".png"
	case "gif":
		return ".gif"
	default:
		return ".jpg"
	}
}

// formatToMimeType converts format string to MIME type.
func formatToMimeType(format string) string {
	switch format {
	case "jpeg", "jpg":
		return model.MimeTypeJPEG
	case "png":
		return model.MimeTypePNG
	case "gif":
		return model.MimeTypeGIF
	case "webp":
		return model.MimeTypeWebP
	default:
		return "application/octet-stream"
	}
}
