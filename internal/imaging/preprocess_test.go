package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/nao1215/comicscan/internal/model"
)

func contentImage(t *testing.T, raw []byte, w, h int) *model.ContentImage {
	t.Helper()
	return &model.ContentImage{
		ImageCandidate: model.ImageCandidate{URL: "https://cdn.example.com/p.png", Episode: 1, Page: 1},
		RawBytes:       raw,
		Width:          w,
		Height:         h,
		ByteSize:       len(raw),
	}
}

// TestPreprocessorDownscale tests the longest-edge cap.
func TestPreprocessorDownscale(t *testing.T) {
	t.Parallel()

	t.Run("caps the longer edge preserving aspect", func(t *testing.T) {
		t.Parallel()

		raw := encodePNG(t, 2000, 1000)
		img := contentImage(t, raw, 2000, 1000)

		if err := NewPreprocessor(500, 80).Process(img); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		cfg, format, err := image.DecodeConfig(bytes.NewReader(img.TransmitBytes))
		if err != nil {
			t.Fatalf("transmit bytes undecodable: %v", err)
		}
		if format != "jpeg" {
			t.Errorf("expected jpeg, got %q", format)
		}
		if cfg.Width != 500 || cfg.Height != 250 {
			t.Errorf("expected 500x250, got %dx%d", cfg.Width, cfg.Height)
		}
		if img.TransmitMediaType != "image/jpeg" {
			t.Errorf("unexpected media type %q", img.TransmitMediaType)
		}
	})

	t.Run("leaves small images at native size", func(t *testing.T) {
		t.Parallel()

		raw := encodePNG(t, 300, 240)
		img := contentImage(t, raw, 300, 240)

		if err := NewPreprocessor(1568, 80).Process(img); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		cfg, _, err := image.DecodeConfig(bytes.NewReader(img.TransmitBytes))
		if err != nil {
			t.Fatalf("transmit bytes undecodable: %v", err)
		}
		if cfg.Width != 300 || cfg.Height != 240 {
			t.Errorf("expected native 300x240, got %dx%d", cfg.Width, cfg.Height)
		}
	})
}

// TestPreprocessorRawUntouched tests that RawBytes is never modified.
func TestPreprocessorRawUntouched(t *testing.T) {
	t.Parallel()

	raw := encodePNG(t, 800, 600)
	orig := make([]byte, len(raw))
	copy(orig, raw)

	img := contentImage(t, raw, 800, 600)
	if err := NewPreprocessor(400, 70).Process(img); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !bytes.Equal(img.RawBytes, orig) {
		t.Error("raw bytes were modified by preprocessing")
	}
	if bytes.Equal(img.TransmitBytes, orig) {
		t.Error("transmit bytes should be a derivative, not the original")
	}
}

// TestPreprocessorCompositesAlpha tests transparency flattening onto white.
func TestPreprocessorCompositesAlpha(t *testing.T) {
	t.Parallel()

	// Fully transparent image must come out white, not black.
	rgba := image.NewRGBA(image.Rect(0, 0, 64, 64))
	var buf bytes.Buffer
	if err := png.Encode(&buf, rgba); err != nil {
		t.Fatalf("failed to encode: %v", err)
	}

	img := contentImage(t, buf.Bytes(), 64, 64)
	if err := NewPreprocessor(64, 90).Process(img); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	decoded, err := jpeg.Decode(bytes.NewReader(img.TransmitBytes))
	if err != nil {
		t.Fatalf("failed to decode transmit bytes: %v", err)
	}
	r, g, b, _ := decoded.At(32, 32).RGBA()
	gray := color.GrayModel.Convert(color.RGBA64{R: uint16(r), G: uint16(g), B: uint16(b), A: 0xFFFF}).(color.Gray)
	if gray.Y < 0xF0 {
		t.Errorf("expected near-white composite, got gray %d", gray.Y)
	}
}

// TestPreprocessorRejectsGarbage tests the decode failure path.
func TestPreprocessorRejectsGarbage(t *testing.T) {
	t.Parallel()

	img := contentImage(t, []byte("not an image"), 0, 0)
	if err := NewPreprocessor(100, 80).Process(img); err == nil {
		t.Error("expected decode error")
	}
}

// TestRotateGray tests orientation correction geometry.
func TestRotateGray(t *testing.T) {
	t.Parallel()

	src := image.NewGray(image.Rect(0, 0, 4, 2))
	src.SetGray(0, 0, color.Gray{Y: 0xFF})

	t.Run("90 degrees swaps dimensions", func(t *testing.T) {
		t.Parallel()
		dst := rotateGray(src, orientationRotate90)
		if dst.Bounds().Dx() != 2 || dst.Bounds().Dy() != 4 {
			t.Errorf("expected 2x4, got %dx%d", dst.Bounds().Dx(), dst.Bounds().Dy())
		}
		// Top-left corner moves to top-right under clockwise rotation.
		if dst.GrayAt(1, 0).Y != 0xFF {
			t.Error("expected marker pixel at top-right after rotation")
		}
	})

	t.Run("180 degrees keeps dimensions", func(t *testing.T) {
		t.Parallel()
		dst := rotateGray(src, orientationUpsideDown)
		if dst.Bounds().Dx() != 4 || dst.Bounds().Dy() != 2 {
			t.Errorf("expected 4x2, got %dx%d", dst.Bounds().Dx(), dst.Bounds().Dy())
		}
		if dst.GrayAt(3, 1).Y != 0xFF {
			t.Error("expected marker pixel at bottom-right after rotation")
		}
	})

	t.Run("unknown orientation is a no-op", func(t *testing.T) {
		t.Parallel()
		if dst := rotateGray(src, 7); dst != src {
			t.Error("expected original image returned")
		}
	})
}
