package codec

import (
	"fmt"
	"strings"
)

// Format is an output image format. Values are the upper-case names shown to
// users; [Format.Extension] gives the file extension.
type Format string

const (
	FormatJPEG Format = "JPEG"
	FormatPNG  Format = "PNG"
	FormatHEIC Format = "HEIC"
	FormatWEBP Format = "WEBP" // Accepted as a target, but no encoder exists.
	FormatTIFF Format = "TIFF"
	FormatBMP  Format = "BMP"
	FormatGIF  Format = "GIF"
)

// Formats lists every target format in menu order.
var Formats = []Format{FormatJPEG, FormatPNG, FormatHEIC, FormatWEBP, FormatTIFF, FormatBMP, FormatGIF}

// ParseFormat maps user input to a Format. Matching is case-insensitive and
// accepts the common aliases "jpg" and "tif".
func ParseFormat(s string) (Format, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "JPEG", "JPG":
		return FormatJPEG, nil
	case "PNG":
		return FormatPNG, nil
	case "HEIC", "HEIF":
		return FormatHEIC, nil
	case "WEBP":
		return FormatWEBP, nil
	case "TIFF", "TIF":
		return FormatTIFF, nil
	case "BMP":
		return FormatBMP, nil
	case "GIF":
		return FormatGIF, nil
	}
	return "", fmt.Errorf("%w %q (use one of %s)", ErrUnknownFormat, s, formatList())
}

// Valid reports whether f is one of [Formats].
func (f Format) Valid() bool {
	for _, known := range Formats {
		if f == known {
			return true
		}
	}
	return false
}

// Extension returns the output file extension without the dot ("jpeg", "png", …).
func (f Format) Extension() string { return strings.ToLower(string(f)) }

// Lossy reports whether the encoder for f honors a quality factor.
func (f Format) Lossy() bool { return f == FormatJPEG || f == FormatHEIC }

func (f Format) String() string { return string(f) }

func formatList() string {
	names := make([]string, len(Formats))
	for i, f := range Formats {
		names[i] = f.Extension()
	}
	return strings.Join(names, ", ")
}
