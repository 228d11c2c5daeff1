// Package preview renders the small JPEG preview embedded in every upload.
package preview

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	"github.com/disintegration/imaging"

	"github.com/ekoslightbucket/lightbucket-uploader/internal/fits"
)

// Options configures the rendered preview
type Options struct {
	Width   int // target width, height follows the aspect ratio
	Quality int // JPEG quality
	Stretch StretchParams
}

// DefaultOptions returns the settings the ingestion API is tuned for
func DefaultOptions() Options {
	return Options{
		Width:   300,
		Quality: 70,
		Stretch: DefaultStretch,
	}
}

// Thumbnail is an encoded preview
type Thumbnail struct {
	Width  int
	Height int
	JPEG   []byte
}

// Base64 returns the standard base64 encoding of the JPEG bytes
func (t *Thumbnail) Base64() string {
	return base64.StdEncoding.EncodeToString(t.JPEG)
}

// Renderer produces thumbnails from decoded captures
type Renderer struct {
	opts Options
}

// NewRenderer creates a renderer, filling unset options with defaults
func NewRenderer(opts Options) *Renderer {
	defaults := DefaultOptions()
	if opts.Width <= 0 {
		opts.Width = defaults.Width
	}
	if opts.Quality <= 0 {
		opts.Quality = defaults.Quality
	}
	if opts.Stretch == (StretchParams{}) {
		opts.Stretch = defaults.Stretch
	}
	return &Renderer{opts: opts}
}

// Render demosaics (when BAYERPAT is set), stretches, resizes and encodes img.
// img is not modified.
func (r *Renderer) Render(img *fits.Image) (*Thumbnail, error) {
	if img.Width <= 0 || img.Height <= 0 || len(img.Pixels) == 0 {
		return nil, ErrEmptyImage
	}

	// Step 1: colour planes
	planes := make([][]float64, img.Channels)
	for c := range planes {
		planes[c] = img.Plane(c)
	}
	if pattern, ok := img.BayerPattern(); ok && img.Channels == 1 {
		rgb, err := demosaic(pattern, planes[0], img.Width, img.Height)
		if err != nil {
			return nil, err
		}
		planes = rgb
	}

	// Step 2: stretch and quantise
	stretched := autoStretch(planes, r.opts.Stretch)
	src := quantize(stretched, img.Width, img.Height)

	// Step 3: resize, height 0 keeps the aspect ratio
	resized := imaging.Resize(src, r.opts.Width, 0, imaging.Lanczos)

	// Step 4: encode
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: r.opts.Quality}); err != nil {
		return nil, fmt.Errorf("JPEG encode failed: %w", err)
	}

	bounds := resized.Bounds()
	return &Thumbnail{
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		JPEG:   buf.Bytes(),
	}, nil
}

// quantize converts [0,1] planes to an 8-bit image, truncating like a
// float-to-uint8 cast
func quantize(planes [][]float64, width, height int) image.Image {
	rect := image.Rect(0, 0, width, height)
	if len(planes) == 1 {
		gray := image.NewGray(rect)
		for i, v := range planes[0] {
			gray.Pix[i] = uint8(v * 255)
		}
		return gray
	}

	rgba := image.NewNRGBA(rect)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := y*width + x
			rgba.SetNRGBA(x, y, color.NRGBA{
				R: uint8(planes[red][i] * 255),
				G: uint8(planes[green][i] * 255),
				B: uint8(planes[blue][i] * 255),
				A: 255,
			})
		}
	}
	return rgba
}
