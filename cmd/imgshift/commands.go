package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/backmassage/imgshift/internal/config"
	"github.com/backmassage/imgshift/internal/pipeline"
	"github.com/backmassage/imgshift/internal/registry"
	"github.com/backmassage/imgshift/internal/seal"
	"github.com/backmassage/imgshift/internal/term"
)

func (a *app) convertCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "convert <files or folders...>",
		Short: "Convert the given images and save them into a folder",
		Args:  cobra.MinimumNArgs(1),
		RunE:  a.runConvert,
	}
}

func (a *app) openCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "open <files...>",
		Short: "Convert files handed over by the desktop, reveal the result, then exit",
		Long: `open is the file-association entry point: it converts the given files
with the configured format and level, reveals the result, and exits.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a.cfg.SingleFile = true
			return a.runConvert(cmd, args)
		},
	}
}

// runConvert is the "Save As…" flow: select → save → report.
func (a *app) runConvert(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a.log.Info("=== imgshift v%s ===", version)
	if a.cfg.DryRun {
		a.log.Warn("DRY RUN: no files will be written")
	}

	reg := registry.New()
	reg.SetSelection(a.candidates(args))
	if err := reg.Sort(a.cfg.Sort); err != nil {
		return err
	}
	a.log.Info("Selected %d image(s)", reg.Count())
	a.warnDeps()

	deps := a.deps()
	deps.Quit = a.quit
	if deps.Quit == nil {
		deps.Quit = func() { a.log.Debug(a.cfg.Verbose, "Conversion context finished, exiting") }
	}

	job := pipeline.Start(ctx, reg.Files(), pipeline.RequestFromConfig(&a.cfg), deps)
	for p := range job.Progress() {
		a.log.Debug(a.cfg.Verbose, "%d/%d finished", p.Done, p.Total)
	}
	outcome, err := job.Wait()
	return a.finish(outcome, err)
}

// candidates expands folder arguments with pipeline.Discover and logs, in
// verbose mode, every path the registry will reject.
func (a *app) candidates(args []string) []string {
	var paths []string
	for _, arg := range args {
		fi, err := os.Stat(arg)
		if err == nil && fi.IsDir() {
			found, err := pipeline.Discover(arg)
			if err != nil {
				a.log.Warn("Cannot scan %s: %v", arg, err)
				continue
			}
			paths = append(paths, found...)
			continue
		}
		paths = append(paths, arg)
	}
	if a.cfg.Verbose {
		for _, p := range paths {
			if _, ok := registry.Accept(p); !ok {
				a.log.Debug(true, "Skipping %s (unsupported extension or unreadable)", p)
			}
		}
	}
	return paths
}

// deps wires the pipeline to the terminal and the OS.
func (a *app) deps() pipeline.Deps {
	d := pipeline.Deps{
		Codec:   a.conv,
		Chooser: a.chooser(),
		Log:     a.log,
	}
	if a.cfg.Reveal {
		d.Revealer = pipeline.SystemRevealer{}
	}
	return d
}

// chooser returns the --out folder, or a terminal prompt when stdin is
// interactive.
func (a *app) chooser() pipeline.FolderChooser {
	if a.cfg.OutputDir != "" {
		return pipeline.FixedFolder(config.NormalizeDirArg(a.cfg.OutputDir))
	}
	if term.IsTerminal(os.Stdin) {
		return pipeline.PromptChooser{}
	}
	return noFolder{}
}

// noFolder is used when there is neither --out nor a terminal to ask on.
type noFolder struct{}

func (noFolder) ChooseFolder(context.Context) (string, error) {
	return "", errors.New("no destination folder: pass --out")
}

// finish reports the outcome and sets the exit code: 0 when everything was
// saved or the user cancelled, 1 otherwise.
func (a *app) finish(outcome pipeline.Outcome, err error) error {
	switch {
	case err == nil:
	case isInterrupt(err):
		a.log.Warn("Interrupted")
		outcome.Report(a.log)
		a.exitCode = 1
		return nil
	default:
		return err
	}

	outcome.Report(a.log)
	if outcome.Stats().Failed > 0 {
		a.exitCode = 1
	}
	return nil
}

func (a *app) watchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Convert every group of images dropped into a folder",
		Long: `watch turns <dir> into a drop target. Once new images stop arriving for
the debounce interval, they become the selection and are saved like a
convert run. One batch is saved at a time. Stop with ctrl-C.`,
		Args: cobra.ExactArgs(1),
		RunE: a.runWatch,
	}
	cmd.Flags().DurationVar(&a.cfg.WatchDebounce, "debounce", a.cfg.WatchDebounce, "Quiet period before a drop is saved")
	return cmd
}

func (a *app) runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a.cfg.WatchDir = args[0]

	watchAbs, err := absPath(a.cfg.WatchDir)
	if err != nil {
		return fmt.Errorf("watch folder not found: %s", a.cfg.WatchDir)
	}

	// Ask for the destination once; every batch goes to the same place.
	folder, err := a.chooser().ChooseFolder(ctx)
	if errors.Is(err, pipeline.ErrCancelled) {
		a.log.Info("Save cancelled")
		return nil
	}
	if err != nil {
		return err
	}
	outputAbs, err := absPath(folder)
	if err != nil {
		return fmt.Errorf("cannot resolve output path: %s", folder)
	}
	if err := a.cfg.ValidatePaths(watchAbs, outputAbs); err != nil {
		a.log.Error("Choose an output path outside: %s", a.cfg.WatchDir)
		return err
	}
	a.warnDeps()

	deps := a.deps()
	deps.Chooser = pipeline.FixedFolder(outputAbs)

	req := pipeline.RequestFromConfig(&a.cfg)
	req.SingleFile = false

	w := &pipeline.Watcher{
		Dir:      watchAbs,
		Debounce: a.cfg.WatchDebounce,
		Registry: registry.New(),
		Sort:     a.cfg.Sort,
		Request:  req,
		Deps:     deps,
		OnBatch: func(o pipeline.Outcome, err error) {
			if err != nil || o.Stats().Failed > 0 {
				a.exitCode = 1
			}
		},
	}
	a.log.Info("Out: %s", outputAbs)
	return w.Run(ctx)
}

func (a *app) unsealCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unseal <files...>",
		Short: "Decrypt outputs saved with --password",
		Long: `unseal restores the images inside .sealed files. Each result is written
next to its source, or into --out when given, without the .sealed suffix.
The password comes from --password, IMGSHIFT_PASSWORD, or a prompt.`,
		Args: cobra.MinimumNArgs(1),
		RunE: a.runUnseal,
	}
}

func (a *app) runUnseal(cmd *cobra.Command, args []string) error {
	password, err := a.password()
	if err != nil {
		if errors.Is(err, pipeline.ErrCancelled) {
			a.log.Info("Cancelled")
			return nil
		}
		return err
	}

	outDir := ""
	if a.cfg.OutputDir != "" {
		outDir = config.NormalizeDirArg(a.cfg.OutputDir)
		if !a.cfg.DryRun {
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return &pipeline.FolderError{Path: outDir, Err: err}
			}
		}
	}

	failed := 0
	for _, path := range args {
		if cmd.Context().Err() != nil {
			a.log.Warn("Interrupted")
			failed++
			break
		}
		target, err := unsealFile(path, outDir, password, a.cfg.DryRun)
		if err != nil {
			a.log.Error("%s: %v", filepath.Base(path), err)
			failed++
			continue
		}
		if a.cfg.DryRun {
			a.log.Success("[DRY] Would write %s", target)
		} else {
			a.log.Success("Unsealed %s", target)
		}
	}
	if failed > 0 {
		a.exitCode = 1
	}
	return nil
}

// password returns --password or asks for it on the terminal.
func (a *app) password() (string, error) {
	if a.cfg.Password != "" {
		return a.cfg.Password, nil
	}
	if !term.IsTerminal(os.Stdin) {
		return "", errors.New("no password: pass --password or set IMGSHIFT_PASSWORD")
	}
	prompt := promptui.Prompt{Label: "Password", Mask: '*'}
	pw, err := prompt.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
			return "", pipeline.ErrCancelled
		}
		return "", err
	}
	if pw == "" {
		return "", pipeline.ErrCancelled
	}
	return pw, nil
}

// unsealFile decrypts path and writes the image beside it (or into outDir).
func unsealFile(path, outDir, password string, dryRun bool) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	plain, err := seal.Open(data, password)
	if err != nil {
		return "", err
	}
	name := strings.TrimSuffix(filepath.Base(path), seal.Extension)
	if name == filepath.Base(path) {
		name += ".unsealed"
	}
	dir := outDir
	if dir == "" {
		dir = filepath.Dir(path)
	}
	target := filepath.Join(dir, name)
	if dryRun {
		return target, nil
	}
	if err := os.WriteFile(target, plain, 0o644); err != nil {
		return "", err
	}
	return target, nil
}
