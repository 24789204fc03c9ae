package pipeline

import (
	"context"
	"fmt"
	"image"
	"math"
	"time"

	"github.com/backmassage/imgshift/internal/codec"
	"github.com/backmassage/imgshift/internal/config"
	"github.com/backmassage/imgshift/internal/seal"
)

// Request is one save action. It is rebuilt from configuration every time
// the user saves.
type Request struct {
	Format     codec.Format
	Level      int
	SingleFile bool // Convert-and-quit context: Deps.Quit is called after reveal.

	Verify   bool
	Jobs     int
	Dedupe   bool
	Password string
	DryRun   bool
	Reveal   bool
	Verbose  bool
}

// RequestFromConfig builds a Request from the current settings.
func RequestFromConfig(cfg *config.Config) Request {
	return Request{
		Format:     cfg.Format,
		Level:      cfg.Level,
		SingleFile: cfg.SingleFile,
		Verify:     cfg.Verify,
		Jobs:       cfg.Jobs,
		Dedupe:     cfg.Dedupe,
		Password:   cfg.Password,
		DryRun:     cfg.DryRun,
		Reveal:     cfg.Reveal,
		Verbose:    cfg.Verbose,
	}
}

// Quality returns the encoder quality for the request's level.
func (r Request) Quality() float64 { return codec.QualityFor(r.Level) }

// levelLabel describes the level for logs; lossless formats ignore it.
func (r Request) levelLabel() string {
	if !r.Format.Lossy() {
		return fmt.Sprintf("level %d, lossless", r.Level)
	}
	return fmt.Sprintf("level %d, quality %d%%", r.Level, int(math.Round(r.Quality()*100)))
}

// Codec is the image conversion backend. *codec.Converter implements it.
type Codec interface {
	Decode(ctx context.Context, path string) (image.Image, error)
	DecodeBytes(ctx context.Context, data []byte) (image.Image, error)
	Encode(ctx context.Context, img image.Image, format codec.Format, quality float64) ([]byte, error)
	CanDecode(format codec.Format) bool
}

// Logger is the minimal logging interface needed by the pipeline.
// *logging.Logger implements it.
type Logger interface {
	Info(string, ...interface{})
	Success(string, ...interface{})
	Warn(string, ...interface{})
	Error(string, ...interface{})
	Debug(bool, string, ...interface{})
}

// Deps are the collaborators of a save action. Chooser is required; every
// other nil field falls back to a default.
type Deps struct {
	Codec    Codec         // Default: codec.NewConverter(codec.DetectHEIFTool()).
	Chooser  FolderChooser // Required.
	Revealer Revealer      // Default: NopRevealer.
	Quit     func()        // Called after reveal for SingleFile requests.
	Now      func() time.Time
	Log      Logger

	// Progress is called once per input as it finishes. Calls are serialised.
	Progress func(Progress)

	// Seal encrypts an encoded buffer when the request has a password.
	// Default: seal.Seal.
	Seal func(plaintext []byte, password string) ([]byte, error)
}

func (d Deps) withDefaults() Deps {
	if d.Codec == nil {
		d.Codec = codec.NewConverter(codec.DetectHEIFTool())
	}
	if d.Revealer == nil {
		d.Revealer = NopRevealer{}
	}
	if d.Quit == nil {
		d.Quit = func() {}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Log == nil {
		d.Log = nopLogger{}
	}
	if d.Progress == nil {
		d.Progress = func(Progress) {}
	}
	if d.Seal == nil {
		d.Seal = seal.Seal
	}
	return d
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})        {}
func (nopLogger) Success(string, ...interface{})     {}
func (nopLogger) Warn(string, ...interface{})        {}
func (nopLogger) Error(string, ...interface{})       {}
func (nopLogger) Debug(bool, string, ...interface{}) {}
