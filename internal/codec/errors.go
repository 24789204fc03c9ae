package codec

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the converter.
var (
	ErrUnknownFormat   = errors.New("unknown image format")
	ErrNoEncoder       = errors.New("no encoder available")
	ErrDecode          = errors.New("cannot decode image")
	ErrHEIFToolMissing = errors.New("no HEIF tool found on PATH (install libheif's heif-enc/heif-dec, or use sips on macOS)")
)

// EncodeError reports a failed encode for one target format.
type EncodeError struct {
	Format Format
	Err    error
}

func (e *EncodeError) Error() string {
	if errors.Is(e.Err, ErrNoEncoder) {
		return fmt.Sprintf("%v for %s", ErrNoEncoder, e.Format)
	}
	return fmt.Sprintf("encode %s: %v", e.Format, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }
