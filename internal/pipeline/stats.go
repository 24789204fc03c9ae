package pipeline

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/backmassage/imgshift/internal/display"
	"github.com/backmassage/imgshift/internal/registry"
)

// FileResult is the outcome for one input. Err == nil means it was saved.
type FileResult struct {
	Input      registry.InputFile
	OutputPath string
	Bytes      int64 // Size written (or that would be written in a dry run).
	InputBytes int64
	Err        error
}

// Cancelled reports whether the file was skipped because the batch was cancelled.
func (r FileResult) Cancelled() bool {
	return errors.Is(r.Err, context.Canceled) || errors.Is(r.Err, context.DeadlineExceeded)
}

// Outcome is what a save action resolves to.
type Outcome struct {
	Destination string // The chosen folder, or the Converted_* subfolder of a batch.
	RevealPath  string // Empty when nothing was revealed.
	Results     []FileResult
	Cancelled   bool // The user dismissed the folder chooser.
	DryRun      bool
}

// Errors returns the per-file errors in input order.
func (o Outcome) Errors() []error {
	var errs []error
	for _, r := range o.Results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errs
}

// Err joins the per-file errors, or returns nil when every file was saved.
func (o Outcome) Err() error { return errors.Join(o.Errors()...) }

// Stats aggregates counters and byte totals across a batch.
type Stats struct {
	Total            int
	Saved            int
	Failed           int
	Cancelled        int
	TotalInputBytes  int64
	TotalOutputBytes int64
}

// SpaceSaved returns the aggregate byte difference between inputs and outputs
// of saved files. Positive means outputs are smaller; negative means they grew.
func (s *Stats) SpaceSaved() int64 {
	return s.TotalInputBytes - s.TotalOutputBytes
}

// Stats computes aggregate counters for the outcome.
func (o Outcome) Stats() Stats {
	s := Stats{Total: len(o.Results)}
	for _, r := range o.Results {
		switch {
		case r.Err == nil:
			s.Saved++
			s.TotalInputBytes += r.InputBytes
			s.TotalOutputBytes += r.Bytes
		case r.Cancelled():
			s.Cancelled++
		default:
			s.Failed++
		}
	}
	return s
}

// Report logs the end-of-batch summary: every per-file error once, then the
// totals. A dismissed chooser reports nothing but that.
func (o Outcome) Report(log Logger) {
	if o.Cancelled {
		log.Info("Save cancelled")
		return
	}
	s := o.Stats()

	log.Info("==============================")
	for _, r := range o.Results {
		if r.Err != nil && !r.Cancelled() {
			log.Error("%s", describe(r.Err))
		}
	}
	if s.Cancelled > 0 {
		log.Warn("Done: %d saved, %d failed, %d cancelled", s.Saved, s.Failed, s.Cancelled)
	} else {
		log.Info("Done: %d saved, %d failed", s.Saved, s.Failed)
	}
	if o.Destination != "" {
		log.Info("  Destination: %s", o.Destination)
	}

	if o.DryRun {
		log.Info("  Total space saved: n/a (dry run)")
		return
	}
	if s.Saved == 0 {
		return
	}
	saved := s.SpaceSaved()
	if saved >= 0 {
		log.Success("  Total space saved: %s (input %s -> output %s)",
			display.FormatBytes(saved),
			display.FormatBytes(s.TotalInputBytes),
			display.FormatBytes(s.TotalOutputBytes))
	} else {
		log.Warn("  Total space saved: %s (overall output is larger)",
			display.FormatBytesWithSign(saved))
	}
}

// outputName is the base name used in per-file messages.
func (r FileResult) outputName() string { return filepath.Base(r.OutputPath) }
