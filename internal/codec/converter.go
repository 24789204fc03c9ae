package codec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// heifBrands are the ISO-BMFF major brands written by HEIC/HEIF encoders.
var heifBrands = map[string]bool{
	"heic": true, "heix": true, "hevc": true, "hevx": true,
	"heim": true, "heis": true, "mif1": true, "msf1": true,
}

// Converter decodes and encodes images. The zero value handles every format
// except HEIC; use [NewConverter] with a [HEIFTool] to enable HEIC.
type Converter struct {
	heif HEIFTool
}

// NewConverter returns a Converter that uses heif for HEIC. heif may be nil.
func NewConverter(heif HEIFTool) *Converter {
	return &Converter{heif: heif}
}

// HEIFTool returns the configured HEIC backend, or nil.
func (c *Converter) HEIFTool() HEIFTool { return c.heif }

// Encode converts img to format. quality is a fraction in [0,1] and is only
// used by lossy formats. On failure the returned buffer is always nil.
func (c *Converter) Encode(ctx context.Context, img image.Image, format Format, quality float64) ([]byte, error) {
	data, err := c.encode(ctx, img, format, quality)
	if err != nil {
		return nil, &EncodeError{Format: format, Err: err}
	}
	return data, nil
}

func (c *Converter) encode(ctx context.Context, img image.Image, format Format, quality float64) ([]byte, error) {
	if img == nil {
		return nil, errors.New("nil image")
	}
	var buf bytes.Buffer
	var err error
	switch format {
	case FormatJPEG:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: percent(quality)})
	case FormatPNG:
		err = png.Encode(&buf, img)
	case FormatGIF:
		err = gif.Encode(&buf, img, &gif.Options{NumColors: 256})
	case FormatBMP:
		err = bmp.Encode(&buf, img)
	case FormatTIFF:
		err = tiff.Encode(&buf, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
	case FormatHEIC:
		if c.heif == nil {
			return nil, ErrHEIFToolMissing
		}
		return c.heif.Encode(ctx, img, percent(quality))
	case FormatWEBP:
		return nil, ErrNoEncoder
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownFormat, string(format))
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads the image at path. The format is detected from content, so a
// renamed non-image fails here even if its extension looked valid.
func (c *Converter) Decode(ctx context.Context, path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if isHEIF(data) {
		img, err := c.decodeHEIF(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("%w %s: %w", ErrDecode, filepath.Base(path), err)
		}
		return img, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrDecode, filepath.Base(path), err)
	}
	return img, nil
}

// DecodeBytes decodes an in-memory image. HEIC data is staged to a scratch
// file for the external tool.
func (c *Converter) DecodeBytes(ctx context.Context, data []byte) (image.Image, error) {
	if !isHEIF(data) {
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecode, err)
		}
		return img, nil
	}
	f, err := os.CreateTemp("", "imgshift-*.heic")
	if err != nil {
		return nil, err
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(data); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	img, err := c.decodeHEIF(ctx, f.Name())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return img, nil
}

func (c *Converter) decodeHEIF(ctx context.Context, path string) (image.Image, error) {
	if c.heif == nil {
		return nil, ErrHEIFToolMissing
	}
	return c.heif.Decode(ctx, path)
}

// CanEncode reports whether Encode can succeed for format on this machine.
func (c *Converter) CanEncode(format Format) bool {
	switch format {
	case FormatJPEG, FormatPNG, FormatGIF, FormatBMP, FormatTIFF:
		return true
	case FormatHEIC:
		return c.heif != nil
	}
	return false
}

// CanDecode reports whether output written as format can be read back.
func (c *Converter) CanDecode(format Format) bool {
	switch format {
	case FormatJPEG, FormatPNG, FormatGIF, FormatBMP, FormatTIFF, FormatWEBP:
		return true
	case FormatHEIC:
		if t, ok := c.heif.(*libheifTool); ok {
			return t.dec != ""
		}
		return c.heif != nil
	}
	return false
}

// Capability describes what this machine can do with one format.
type Capability struct {
	Format  Format
	Encode  bool
	Decode  bool
	Backend string
}

// Capabilities returns one entry per format in [Formats] order.
func (c *Converter) Capabilities() []Capability {
	caps := make([]Capability, 0, len(Formats))
	for _, f := range Formats {
		backend := "go"
		switch f {
		case FormatBMP, FormatTIFF, FormatWEBP:
			backend = "golang.org/x/image"
		case FormatHEIC:
			backend = "none"
			if c.heif != nil {
				backend = c.heif.Name()
			}
		}
		caps = append(caps, Capability{Format: f, Encode: c.CanEncode(f), Decode: c.CanDecode(f), Backend: backend})
	}
	return caps
}

// isHEIF sniffs an ISO-BMFF "ftyp" box with a HEIF major brand.
func isHEIF(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	return heifBrands[string(data[8:12])]
}
