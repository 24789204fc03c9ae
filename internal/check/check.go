// Package check provides system diagnostics (the check command) and
// pre-save dependency validation (CheckDeps) for image encoders, the HEIF
// tool, and the file-browser reveal tool.
package check

import (
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/backmassage/imgshift/internal/codec"
	"github.com/backmassage/imgshift/internal/config"
	"github.com/backmassage/imgshift/internal/pipeline"
)

// Sentinel errors returned by CheckDeps when the configured target cannot be produced.
var (
	ErrWEBPUnsupported   = errors.New("WEBP output is not supported: no encoder available")
	ErrHEIFToolMissing   = codec.ErrHEIFToolMissing
	ErrRevealToolMissing = errors.New("file browser reveal tool not found on PATH")
)

// Logger is what RunCheck writes to. *logging.Logger implements it.
type Logger interface {
	Info(string, ...interface{})
	Success(string, ...interface{})
	Warn(string, ...interface{})
	Error(string, ...interface{})
	Debug(bool, string, ...interface{})
}

// RunCheck prints what this machine can decode and encode, which HEIF tool
// is in use, and whether reveal works. It returns false when the configured
// output format cannot be encoded.
func RunCheck(cfg *config.Config, conv *codec.Converter, log Logger) bool {
	log.Info("=== System Check ===")

	checkFormats(conv, log)
	checkHEIFTool(conv, log)
	checkReveal(log)

	if !conv.CanEncode(cfg.Format) {
		log.Error("Configured format %s cannot be encoded on this machine", cfg.Format)
		return false
	}
	log.Success("Configured format %s is ready", cfg.Format)
	return true
}

// checkFormats logs one line per format with its encode/decode support.
func checkFormats(conv *codec.Converter, log Logger) {
	log.Info("Formats:")
	for _, c := range conv.Capabilities() {
		line := fmt.Sprintf("  %-5s encode: %-3s decode: %-3s (%s)", c.Format, yesNo(c.Encode), yesNo(c.Decode), c.Backend)
		if c.Encode && c.Decode {
			log.Success("%s", line)
		} else {
			log.Warn("%s", line)
		}
	}
}

// checkHEIFTool logs the HEIF backend and, for libheif, its version line.
func checkHEIFTool(conv *codec.Converter, log Logger) {
	tool := conv.HEIFTool()
	if tool == nil {
		log.Warn("HEIF tool: not found (install libheif's heif-enc/heif-dec, or use sips on macOS)")
		return
	}
	if tool.Name() != "libheif" {
		log.Success("HEIF tool: %s", tool.Name())
		return
	}
	out, err := exec.Command("heif-enc", "--version").CombinedOutput()
	if err != nil || strings.TrimSpace(string(out)) == "" {
		log.Success("HEIF tool: libheif")
		return
	}
	log.Success("HEIF tool: libheif %s", firstLine(string(out)))
}

// checkReveal reports whether the platform reveal command is on PATH.
func checkReveal(log Logger) {
	argv := pipeline.SystemRevealer{}.Command(".")
	if _, err := exec.LookPath(argv[0]); err != nil {
		log.Warn("Reveal: %s not found; results will not be shown in a file browser", argv[0])
		return
	}
	log.Success("Reveal: %s (%s)", argv[0], runtime.GOOS)
}

// CheckDeps is the pre-save validation. It returns every problem that would
// make the configured conversion fail for all files or skip a side effect.
// Callers treat the result as warnings; per-file failures are still reported
// by the pipeline.
func CheckDeps(cfg *config.Config, conv *codec.Converter) []error {
	var problems []error
	switch {
	case cfg.Format == codec.FormatWEBP:
		problems = append(problems, ErrWEBPUnsupported)
	case !conv.CanEncode(cfg.Format):
		problems = append(problems, fmt.Errorf("%s output: %w", cfg.Format, ErrHEIFToolMissing))
	}
	if cfg.Reveal && !cfg.DryRun {
		argv := pipeline.SystemRevealer{}.Command(".")
		if !lookPath(argv[0]) {
			problems = append(problems, fmt.Errorf("%w: %s", ErrRevealToolMissing, argv[0]))
		}
	}
	return problems
}

func lookPath(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.Index(s, "\n"); idx > 0 {
		return s[:idx]
	}
	return s
}
