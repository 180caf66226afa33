package normalize

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Raster caps chosen to bound transport size while keeping fine script
// glyphs legible. Aspect ratio is preserved and images are never upscaled.
const (
	maxImageWidth  = 1200
	maxImageHeight = 1600
	jpegQuality    = 80
)

// reencodeImage decodes a raster image, downscales it to fit within the
// caps, and re-encodes it as JPEG. Deterministic for a given input.
func reencodeImage(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("image has empty bounds")
	}

	scale := 1.0
	if s := float64(maxImageWidth) / float64(w); s < scale {
		scale = s
	}
	if s := float64(maxImageHeight) / float64(h); s < scale {
		scale = s
	}

	out := src
	if scale < 1.0 {
		dw := int(float64(w) * scale)
		dh := int(float64(h) * scale)
		if dw < 1 {
			dw = 1
		}
		if dh < 1 {
			dh = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
		out = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encoding jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
