// Package config holds runtime configuration: defaults, CLI flag binding,
// config-file/environment merging, and validation.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/backmassage/imgshift/internal/codec"
	"github.com/backmassage/imgshift/internal/registry"
)

// ColorMode controls ANSI color output.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"   // Enable colors when stdout is a TTY (default).
	ColorAlways ColorMode = "always" // Force colors on.
	ColorNever  ColorMode = "never"  // Disable colors entirely.
)

// Config holds all runtime settings. It is populated by [DefaultConfig], then
// by [BindFlags] and [Load], and passed by pointer to the packages that need it.
type Config struct {
	// Conversion.
	Format   codec.Format     // Default: JPEG.
	Level    int              // Default: 2. Compression level 0–5.
	Sort     registry.SortKey // Default: none (keep selection order).
	Verify   bool             // Default: true. Read back and check each output.
	Dedupe   bool             // Rename colliding outputs instead of overwriting.
	Password string           // Seal outputs when set.
	Jobs     int              // Default: 1. Files converted in parallel.

	// Destination and side effects.
	OutputDir string // Empty: ask interactively.
	Reveal    bool   // Default: true. Show the result in the file browser.
	DryRun    bool

	// Entry-point context.
	SingleFile bool // Set by the "open" command: convert, reveal, then quit.

	// Watch mode.
	WatchDir      string
	WatchDebounce time.Duration // Default: 750ms.

	// Display and logging.
	Verbose    bool
	ColorMode  ColorMode // Default: "auto".
	LogFile    string
	ConfigFile string
}

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() Config {
	return Config{
		Format:        codec.FormatJPEG,
		Level:         2,
		Sort:          registry.SortNone,
		Verify:        true,
		Jobs:          1,
		Reveal:        true,
		WatchDebounce: 750 * time.Millisecond,
		ColorMode:     ColorAuto,
	}
}

// NormalizeDirArg strips trailing slashes from a directory path.
// The filesystem root "/" is returned unchanged so we don't produce an empty string.
func NormalizeDirArg(path string) string {
	if path == "/" {
		return "/"
	}
	return strings.TrimRight(path, "/")
}

// Validate checks enum fields and numeric ranges.
func (c *Config) Validate() error {
	if !c.Format.Valid() {
		return fmt.Errorf("invalid format %q", string(c.Format))
	}
	if c.Level < codec.MinLevel || c.Level > codec.MaxLevel {
		return fmt.Errorf("invalid level %d (use %d-%d)", c.Level, codec.MinLevel, codec.MaxLevel)
	}
	if _, err := registry.ParseSortKey(string(c.Sort)); err != nil {
		return err
	}
	if c.Jobs < 1 {
		return errors.New("jobs must be at least 1")
	}

	switch c.ColorMode {
	case ColorAuto, ColorAlways, ColorNever:
		// valid
	default:
		return errors.New("invalid color mode (use 'auto', 'always' or 'never')")
	}

	if c.WatchDebounce < 0 {
		return errors.New("watch debounce must not be negative")
	}
	return nil
}

// ValidatePaths ensures the resolved output directory is not the watched
// directory itself. Outputs written there would be picked up as new drops.
// Both arguments must be absolute, symlink-resolved paths.
func (c *Config) ValidatePaths(watchAbs, outputAbs string) error {
	if filepath.Clean(watchAbs) == filepath.Clean(outputAbs) {
		return errors.New("output directory must not be the watched directory")
	}
	return nil
}
