package fits

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/astrogo/fitsio"
)

var (
	// ErrNotImage is returned when the primary HDU holds no image
	ErrNotImage = errors.New("primary HDU is not an image")

	// ErrUnsupportedLayout is returned for axis layouts other than 2-D mono
	// or 3-plane colour
	ErrUnsupportedLayout = errors.New("unsupported image layout")
)

// Decoder turns a capture file into header + pixels
type Decoder interface {
	Decode(ctx context.Context, filename string) (*Image, error)
}

// FileSource opens capture files
type FileSource interface {
	GetReader(ctx context.Context, key string) (io.ReadCloser, error)
}

// FileDecoder decodes FITS files obtained from a FileSource
type FileDecoder struct {
	files FileSource
}

// NewFileDecoder creates a decoder reading from files
func NewFileDecoder(files FileSource) *FileDecoder {
	return &FileDecoder{files: files}
}

// Decode opens and decodes the primary HDU of filename
func (d *FileDecoder) Decode(ctx context.Context, filename string) (*Image, error) {
	r, err := d.files.GetReader(ctx, filename)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	img, err := DecodeReader(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return img, nil
}

// DecodeReader decodes the primary HDU of a FITS stream
func DecodeReader(r io.Reader) (*Image, error) {
	f, err := fitsio.Open(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open FITS stream: %w", err)
	}
	defer f.Close()

	if len(f.HDUs()) == 0 {
		return nil, ErrNotImage
	}
	hdu, ok := f.HDU(0).(fitsio.Image)
	if !ok {
		return nil, ErrNotImage
	}

	hdr := hdu.Header()
	header := make(Header)
	for _, key := range hdr.Keys() {
		if card := hdr.Get(key); card != nil {
			header[key] = card.Value
		}
	}

	width, height, channels, err := layout(hdr.Axes())
	if err != nil {
		return nil, err
	}

	bzero, _, err := header.Float("BZERO")
	if err != nil {
		return nil, err
	}
	bscale, ok, err := header.Float("BSCALE")
	if err != nil {
		return nil, err
	}
	if !ok {
		bscale = 1
	}

	pixels, err := decodePixels(hdu.Raw(), hdr.Bitpix(), width*height*channels, bzero, bscale)
	if err != nil {
		return nil, err
	}

	return &Image{
		Header:   header,
		Width:    width,
		Height:   height,
		Channels: channels,
		Pixels:   pixels,
	}, nil
}

func layout(axes []int) (width, height, channels int, err error) {
	switch {
	case len(axes) == 2:
		width, height, channels = axes[0], axes[1], 1
	case len(axes) == 3 && (axes[2] == 1 || axes[2] == 3):
		width, height, channels = axes[0], axes[1], axes[2]
	default:
		return 0, 0, 0, fmt.Errorf("%w: axes %v", ErrUnsupportedLayout, axes)
	}
	if width <= 0 || height <= 0 {
		return 0, 0, 0, fmt.Errorf("%w: axes %v", ErrUnsupportedLayout, axes)
	}
	return width, height, channels, nil
}

// decodePixels converts big-endian FITS data to physical values
func decodePixels(raw []byte, bitpix, n int, bzero, bscale float64) ([]float64, error) {
	size := bitpix / 8
	if size < 0 {
		size = -size
	}
	if size == 0 {
		return nil, fmt.Errorf("invalid BITPIX %d", bitpix)
	}
	if len(raw) < n*size {
		return nil, fmt.Errorf("truncated image data: have %d bytes, need %d", len(raw), n*size)
	}

	out := make([]float64, n)
	for i := range out {
		b := raw[i*size : (i+1)*size]
		var v float64
		switch bitpix {
		case 8:
			v = float64(b[0])
		case 16:
			v = float64(int16(binary.BigEndian.Uint16(b)))
		case 32:
			v = float64(int32(binary.BigEndian.Uint32(b)))
		case 64:
			v = float64(int64(binary.BigEndian.Uint64(b)))
		case -32:
			v = float64(math.Float32frombits(binary.BigEndian.Uint32(b)))
		case -64:
			v = math.Float64frombits(binary.BigEndian.Uint64(b))
		default:
			return nil, fmt.Errorf("invalid BITPIX %d", bitpix)
		}
		out[i] = bzero + bscale*v
	}
	return out, nil
}
