package pipeline

import (
	"errors"
	"io/fs"
	"os"
)

// ErrNoImages is returned by SaveAll for an empty selection.
var ErrNoImages = errors.New("No images selected") //nolint:staticcheck // user-facing text

// ErrCancelled is returned by a FolderChooser when the user dismisses it.
// SaveAll turns it into a cancelled Outcome, not an error.
var ErrCancelled = errors.New("cancelled")

// FolderError is fatal to a batch: the Converted_* subfolder could not be created.
type FolderError struct {
	Path string
	Err  error
}

func (e *FolderError) Error() string { return "Could not create folder: " + reason(e.Err) }
func (e *FolderError) Unwrap() error { return e.Err }

// ConvertError is a per-file decode or encode failure.
type ConvertError struct {
	Name string // Input file name.
	Err  error
}

func (e *ConvertError) Error() string { return "Failed to convert " + e.Name }
func (e *ConvertError) Unwrap() error { return e.Err }

// WriteError is a per-file failure to store the converted bytes.
type WriteError struct {
	Name string // Output file name.
	Err  error
}

func (e *WriteError) Error() string { return "Error writing file " + e.Name + ": " + reason(e.Err) }
func (e *WriteError) Unwrap() error { return e.Err }

// VerifyError reports an output that did not read back as the image written.
type VerifyError struct {
	Name string // Output file name.
	Err  error
}

func (e *VerifyError) Error() string { return "Integrity check failed for " + e.Name }
func (e *VerifyError) Unwrap() error { return e.Err }

// reason strips the operation and path from filesystem errors, leaving the
// cause ("permission denied") for user-facing text.
func reason(err error) string {
	var pe *fs.PathError
	if errors.As(err, &pe) {
		return pe.Err.Error()
	}
	var le *os.LinkError
	if errors.As(err, &le) {
		return le.Err.Error()
	}
	return err.Error()
}

// describe renders err for the end-of-batch report, appending the cause of
// errors whose own text is fixed.
func describe(err error) string {
	var ce *ConvertError
	if errors.As(err, &ce) && ce.Err != nil {
		return ce.Error() + ": " + ce.Err.Error()
	}
	var ve *VerifyError
	if errors.As(err, &ve) && ve.Err != nil {
		return ve.Error() + ": " + ve.Err.Error()
	}
	return err.Error()
}
