package codec

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// HEIFTool encodes and decodes HEIC through an external program.
type HEIFTool interface {
	// Name identifies the backend in diagnostics ("libheif", "sips").
	Name() string
	// Encode writes img as HEIC at quality (1–100) and returns the bytes.
	Encode(ctx context.Context, img image.Image, quality int) ([]byte, error)
	// Decode reads the HEIC file at path into an image.
	Decode(ctx context.Context, path string) (image.Image, error)
}

// DetectHEIFTool returns the first usable backend on PATH, or nil.
// libheif is preferred; sips is only considered on macOS.
func DetectHEIFTool() HEIFTool {
	if enc, err := exec.LookPath("heif-enc"); err == nil {
		for _, name := range []string{"heif-dec", "heif-convert"} {
			if dec, err := exec.LookPath(name); err == nil {
				return &libheifTool{enc: enc, dec: dec}
			}
		}
		return &libheifTool{enc: enc}
	}
	if runtime.GOOS == "darwin" {
		if sips, err := exec.LookPath("sips"); err == nil {
			return &sipsTool{bin: sips}
		}
	}
	return nil
}

// libheifTool drives heif-enc and heif-dec (or the older heif-convert).
type libheifTool struct {
	enc string
	dec string // empty when only the encoder is installed
}

func (t *libheifTool) Name() string { return "libheif" }

func (t *libheifTool) Encode(ctx context.Context, img image.Image, quality int) ([]byte, error) {
	return encodeViaPNG(ctx, img, func(in, out string) []string {
		return []string{t.enc, "-q", strconv.Itoa(quality), "-o", out, in}
	})
}

func (t *libheifTool) Decode(ctx context.Context, path string) (image.Image, error) {
	if t.dec == "" {
		return nil, fmt.Errorf("%w: heif-enc found but no heif-dec", ErrHEIFToolMissing)
	}
	return decodeViaPNG(ctx, path, func(in, out string) []string {
		return []string{t.dec, in, out}
	})
}

// sipsTool drives the macOS scriptable image processing system.
type sipsTool struct {
	bin string
}

func (t *sipsTool) Name() string { return "sips" }

func (t *sipsTool) Encode(ctx context.Context, img image.Image, quality int) ([]byte, error) {
	return encodeViaPNG(ctx, img, func(in, out string) []string {
		return []string{t.bin, "-s", "format", "heic", "-s", "formatOptions", strconv.Itoa(quality), in, "--out", out}
	})
}

func (t *sipsTool) Decode(ctx context.Context, path string) (image.Image, error) {
	return decodeViaPNG(ctx, path, func(in, out string) []string {
		return []string{t.bin, "-s", "format", "png", in, "--out", out}
	})
}

// encodeViaPNG stages img as a PNG in a scratch directory, runs the tool and
// returns the produced file. PNG carries no orientation tag, so the HEIC is
// always written upright.
func encodeViaPNG(ctx context.Context, img image.Image, argv func(in, out string) []string) ([]byte, error) {
	dir, err := os.MkdirTemp("", "imgshift-heif-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "in.png")
	out := filepath.Join(dir, "out.heic")
	if err := writePNG(in, img); err != nil {
		return nil, err
	}
	if res := execute(ctx, argv(in, out)); res.Err != nil {
		return nil, res.failure()
	}
	data, err := os.ReadFile(out)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("HEIF tool produced an empty file")
	}
	return data, nil
}

// decodeViaPNG converts the HEIC at path to PNG with the tool and decodes it.
func decodeViaPNG(ctx context.Context, path string, argv func(in, out string) []string) (image.Image, error) {
	dir, err := os.MkdirTemp("", "imgshift-heif-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	out := filepath.Join(dir, "out.png")
	if res := execute(ctx, argv(path, out)); res.Err != nil {
		return nil, res.failure()
	}
	f, err := os.Open(out)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return png.Decode(f)
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// execResult holds the outcome of a single tool invocation.
type execResult struct {
	Argv   []string
	Stderr string
	Err    error
}

// failure formats the run error with the last line of stderr, which is
// where both libheif and sips report the reason.
func (r execResult) failure() error {
	msg := strings.TrimSpace(r.Stderr)
	if i := strings.LastIndex(msg, "\n"); i >= 0 {
		msg = msg[i+1:]
	}
	if msg == "" {
		return fmt.Errorf("%s: %w", filepath.Base(r.Argv[0]), r.Err)
	}
	return fmt.Errorf("%s: %w (%s)", filepath.Base(r.Argv[0]), r.Err, msg)
}

func execute(ctx context.Context, argv []string) execResult {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	return execResult{Argv: argv, Stderr: stderr.String(), Err: err}
}
