// Command imgshift converts images between JPEG, PNG, HEIC, WEBP, TIFF, BMP
// and GIF at a chosen compression level, saves them into a folder, and
// reveals the result.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/backmassage/imgshift/internal/check"
	"github.com/backmassage/imgshift/internal/codec"
	"github.com/backmassage/imgshift/internal/config"
	"github.com/backmassage/imgshift/internal/display"
	"github.com/backmassage/imgshift/internal/logging"
	"github.com/backmassage/imgshift/internal/term"
)

// version and commit are injected at build time via -ldflags.
var (
	version = "1.0.0"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

// app carries state shared by every subcommand. It is filled in by setup,
// which runs before any command body.
type app struct {
	cfg      config.Config
	log      *logging.Logger
	conv     *codec.Converter
	cancel   context.CancelFunc
	exitCode int

	// quit ends a convert-and-quit ("open") run after reveal. The process
	// exits when run returns, so the default only logs.
	quit func()
}

func run() int {
	a := &app{cfg: config.DefaultConfig()}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a.cancel = cancel
	defer a.teardown()

	root := a.rootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		// Errors before the logger exists (flag parsing, config) go straight to stderr.
		if a.log == nil {
			fmt.Fprintf(os.Stderr, "imgshift: %v\n", err)
		} else {
			a.log.Error("%v", err)
		}
		return 1
	}
	return a.exitCode
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "imgshift [files or folders...]",
		Short: "Convert images between JPEG, PNG, HEIC, WEBP, TIFF, BMP and GIF",
		Long: `imgshift converts a selection of images to one output format at a
compression level from 0 (smallest) to 5 (best quality), saves them into a
folder, and reveals the result in the file browser.

A single image is written straight into the chosen folder. Several images go
into a new Converted_YYYYMMDDHHMMSS folder inside it.

Examples:
  imgshift -f png -o ~/Pictures/out shot.heic
  imgshift convert -f jpeg -l 1 *.png
  imgshift watch ~/Drop -o ~/Converted
  imgshift unseal -o ~/Decrypted photo.jpeg.sealed`,
		Version:           fmt.Sprintf("%s (%s)", version, commit),
		Args:              cobra.ArbitraryArgs,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return a.runConvert(cmd, args)
		},
	}
	config.BindFlags(root.PersistentFlags(), &a.cfg)

	root.AddCommand(
		a.convertCommand(),
		a.openCommand(),
		a.watchCommand(),
		a.unsealCommand(),
		a.checkCommand(),
	)
	return root
}

// setup merges environment and config-file values into the parsed flags,
// validates, and starts logging and signal handling.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if err := config.Load(cmd.Flags(), &a.cfg); err != nil {
		return err
	}
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	log, err := logging.NewLogger(&a.cfg)
	if err != nil {
		return err
	}
	a.log = log
	a.conv = codec.NewConverter(codec.DetectHEIFTool())

	if term.IsTerminal(os.Stdout) {
		display.PrintBanner(os.Stdout)
	}

	// Cancel on SIGINT/SIGTERM so the pipeline stops between files without
	// leaving partial output.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		a.log.Warn("Received interrupt, finishing current file…")
		a.cancel()
	}()
	return nil
}

func (a *app) teardown() {
	if a.log != nil {
		_ = a.log.Close()
	}
}

func (a *app) checkCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Show which formats, HEIF tool and reveal tool this machine supports",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if !check.RunCheck(&a.cfg, a.conv, a.log) {
				a.exitCode = 1
			}
			return nil
		},
	}
}

// warnDeps logs pre-save problems. They are not fatal: each affected file
// still gets its own failure in the batch report.
func (a *app) warnDeps() {
	for _, err := range check.CheckDeps(&a.cfg, a.conv) {
		a.log.Warn("%v", err)
	}
}

// absPath returns the absolute, symlink-resolved path for safe comparison
// of watched vs output directories.
func absPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

// isInterrupt reports whether err came from the signal handler cancelling ctx.
func isInterrupt(err error) bool {
	return errors.Is(err, context.Canceled)
}
