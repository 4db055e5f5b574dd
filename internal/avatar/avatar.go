// Package avatar validates uploaded profile pictures and re-encodes them so
// nothing but plain pixel data is ever stored.
package avatar

import (
	"bytes"
	"errors"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"
)

const (
	DefaultMaxBytes     = 2 << 20
	DefaultMaxDimension = 4000
	jpegQuality         = 85
)

var (
	ErrTooLarge          = errors.New("avatar_too_large")
	ErrInvalidType       = errors.New("avatar_invalid_type")
	ErrInvalidDimensions = errors.New("avatar_invalid_dimensions")
	ErrProcessingFailed  = errors.New("avatar_processing_failed")
)

var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// Image is a re-encoded avatar ready to store.
type Image struct {
	Data        []byte
	Ext         string
	ContentType string
	Width       int
	Height      int
}

type Processor struct {
	maxBytes     int64
	maxDimension int
}

func NewProcessor(maxBytes int64, maxDimension int) *Processor {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if maxDimension <= 0 {
		maxDimension = DefaultMaxDimension
	}
	return &Processor{maxBytes: maxBytes, maxDimension: maxDimension}
}

func (p *Processor) MaxBytes() int64 {
	return p.maxBytes
}

// Process reads an upload, checks size, sniffed type and dimensions, and
// re-encodes it. WebP input comes out as PNG.
func (p *Processor) Process(r io.Reader) (*Image, error) {
	data, err := io.ReadAll(io.LimitReader(r, p.maxBytes+1))
	if err != nil {
		return nil, ErrProcessingFailed
	}
	if int64(len(data)) > p.maxBytes {
		return nil, ErrTooLarge
	}

	mime := mimetype.Detect(data)
	if !allowedTypes[mime.String()] {
		return nil, ErrInvalidType
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, ErrProcessingFailed
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > p.maxDimension || cfg.Height > p.maxDimension {
		return nil, ErrInvalidDimensions
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, ErrProcessingFailed
	}

	var buf bytes.Buffer
	out := &Image{Width: cfg.Width, Height: cfg.Height}
	switch mime.String() {
	case "image/jpeg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality})
		out.Ext, out.ContentType = "jpg", "image/jpeg"
	case "image/gif":
		err = gif.Encode(&buf, img, nil)
		out.Ext, out.ContentType = "gif", "image/gif"
	default:
		err = png.Encode(&buf, img)
		out.Ext, out.ContentType = "png", "image/png"
	}
	if err != nil {
		return nil, ErrProcessingFailed
	}

	out.Data = buf.Bytes()
	return out, nil
}
