package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"

	exif "github.com/dsoprea/go-exif/v3"
	"golang.org/x/image/draw"

	"github.com/nao1215/comicscan/internal/model"
)

// Preprocessor normalizes accepted images into their bounded-cost
// transmission form: EXIF orientation applied, transparency composited onto
// white, converted to a single grayscale channel, downscaled so the longer
// edge fits the cap, and re-encoded as lossy JPEG.
//
// Design decision: Grayscale is safe here because the payload is comic
// panels, which are effectively monochrome line art; dropping chroma
// roughly halves the transmitted bytes without losing legibility.
type Preprocessor struct {
	maxEdge int
	quality int
	logger  *slog.Logger
}

// PreprocessorOption configures a Preprocessor.
type PreprocessorOption func(*Preprocessor)

// WithPreprocessorLogger sets a custom logger.
func WithPreprocessorLogger(logger *slog.Logger) PreprocessorOption {
	return func(p *Preprocessor) {
		p.logger = logger
	}
}

// NewPreprocessor creates a preprocessor with the given longest-edge cap
// (pixels) and JPEG quality (1-100).
func NewPreprocessor(maxEdge, quality int, opts ...PreprocessorOption) *Preprocessor {
	p := &Preprocessor{
		maxEdge: maxEdge,
		quality: quality,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Process fills in img.TransmitBytes and img.TransmitMediaType from
// img.RawBytes. RawBytes is never modified; the derivative always flows
// raw→transmit, not the reverse.
func (p *Preprocessor) Process(img *model.ContentImage) error {
	src, _, err := image.Decode(bytes.NewReader(img.RawBytes))
	if err != nil {
		return fmt.Errorf("failed to decode image %s: %w", img.URL, err)
	}

	gray := p.flatten(src)

	if o := exifOrientation(img.RawBytes); o != orientationNormal {
		gray = rotateGray(gray, o)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, gray, &jpeg.Options{Quality: p.quality}); err != nil {
		return fmt.Errorf("failed to encode image %s: %w", img.URL, err)
	}

	img.TransmitBytes = buf.Bytes()
	img.TransmitMediaType = "image/jpeg"

	p.logger.Debug("image preprocessed",
		"url", img.URL,
		"raw_bytes", len(img.RawBytes),
		"transmit_bytes", len(img.TransmitBytes),
	)
	return nil
}

// flatten composites src onto a white background, converts it to a single
// gray channel, and downscales it so the longer edge fits the cap.
func (p *Preprocessor) flatten(src image.Image) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	scale := 1.0
	if longest := max(w, h); longest > p.maxEdge {
		scale = float64(p.maxEdge) / float64(longest)
	}
	dw := max(1, int(float64(w)*scale))
	dh := max(1, int(float64(h)*scale))

	dst := image.NewGray(image.Rect(0, 0, dw, dh))
	// White background first, then draw.Over composites any alpha onto it.
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

// EXIF orientation values handled by the rotation step.
const (
	orientationNormal     = 1
	orientationUpsideDown = 3
	orientationRotate90   = 6 // rotate 90° clockwise to correct
	orientationRotate270  = 8 // rotate 90° counter-clockwise to correct
)

// exifOrientation returns the image's EXIF orientation tag, or
// orientationNormal when the tag is absent or unreadable. Only JPEG
// payloads carry EXIF; other formats fall through harmlessly.
func exifOrientation(data []byte) int {
	rawExif, err := exif.SearchAndExtractExif(data)
	if err != nil || rawExif == nil {
		return orientationNormal
	}

	entries, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		return orientationNormal
	}

	for _, entry := range entries {
		if entry.TagName != "Orientation" {
			continue
		}
		if vals, ok := entry.Value.([]uint16); ok && len(vals) > 0 {
			return int(vals[0])
		}
	}
	return orientationNormal
}

// rotateGray corrects a grayscale image for the given EXIF orientation.
// Mirrored orientations (2, 4, 5, 7) are rare in practice and left as-is.
func rotateGray(g *image.Gray, orientation int) *image.Gray {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()

	switch orientation {
	case orientationUpsideDown:
		dst := image.NewGray(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				dst.SetGray(w-1-x, h-1-y, g.GrayAt(b.Min.X+x, b.Min.Y+y))
			}
		}
		return dst
	case orientationRotate90:
		dst := image.NewGray(image.Rect(0, 0, h, w))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				dst.SetGray(h-1-y, x, g.GrayAt(b.Min.X+x, b.Min.Y+y))
			}
		}
		return dst
	case orientationRotate270:
		dst := image.NewGray(image.Rect(0, 0, h, w))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				dst.SetGray(y, w-1-x, g.GrayAt(b.Min.X+x, b.Min.Y+y))
			}
		}
		return dst
	default:
		return g
	}
}
