package service

import (
	"bytes"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// Preview dimensions and encoding for image uploads.
const (
	PreviewMaxWidth    = 480
	PreviewMaxHeight   = 480
	PreviewJPEGQuality = 82
)

// ThumbnailProcessor renders previews of uploaded images.
type ThumbnailProcessor interface {
	// GenerateThumbnail returns a JPEG fitting within maxWidth x maxHeight
	// and the source image's width and height.
	GenerateThumbnail(data io.Reader, maxWidth, maxHeight int) ([]byte, int, int, error)
}

type imagingProcessor struct{}

// NewImagingProcessor creates a ThumbnailProcessor backed by imaging.
func NewImagingProcessor() ThumbnailProcessor {
	return imagingProcessor{}
}

func (imagingProcessor) GenerateThumbnail(data io.Reader, maxWidth, maxHeight int) ([]byte, int, int, error) {
	img, _, err := image.Decode(data)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()

	// Fit never upscales; small images are re-encoded at their own size.
	preview := imaging.Fit(img, maxWidth, maxHeight, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, preview, imaging.JPEG, imaging.JPEGQuality(PreviewJPEGQuality)); err != nil {
		return nil, 0, 0, fmt.Errorf("failed to encode preview: %w", err)
	}

	return buf.Bytes(), bounds.Dx(), bounds.Dy(), nil
}
