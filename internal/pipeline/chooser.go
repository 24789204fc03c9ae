package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/manifoldco/promptui"
)

// FolderChooser asks where converted images go. Returning ErrCancelled
// abandons the save action without side effects.
type FolderChooser interface {
	ChooseFolder(ctx context.Context) (string, error)
}

// FixedFolder always chooses the same folder (the --out flag), creating it
// when missing.
type FixedFolder string

func (f FixedFolder) ChooseFolder(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if f == "" {
		return "", ErrCancelled
	}
	if err := os.MkdirAll(string(f), 0o755); err != nil {
		return "", &FolderError{Path: string(f), Err: err}
	}
	return string(f), nil
}

// PromptChooser asks for a folder on the terminal. An empty answer, ctrl-C
// or ctrl-D cancels. A folder that does not exist yet is created.
type PromptChooser struct {
	Label   string
	Default string
	Stdin   io.ReadCloser  // Default: os.Stdin.
	Stdout  io.WriteCloser // Default: os.Stdout.
}

func (p PromptChooser) ChooseFolder(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	label := p.Label
	if label == "" {
		label = "Choose a folder to save the converted images"
	}
	prompt := promptui.Prompt{
		Label:     label,
		Default:   p.Default,
		AllowEdit: true,
		Validate:  validateFolderAnswer,
		Stdin:     p.Stdin,
		Stdout:    p.Stdout,
	}
	answer, err := prompt.Run()
	if err != nil {
		return "", promptError(err)
	}
	return resolveFolderAnswer(answer)
}

// promptError maps promptui's dismissal errors to ErrCancelled.
func promptError(err error) error {
	switch {
	case errors.Is(err, promptui.ErrInterrupt),
		errors.Is(err, promptui.ErrEOF),
		errors.Is(err, promptui.ErrAbort):
		return ErrCancelled
	}
	return fmt.Errorf("folder prompt: %w", err)
}

// validateFolderAnswer rejects answers that name an existing non-directory.
// Empty answers pass: they cancel.
func validateFolderAnswer(answer string) error {
	path := expandHome(strings.TrimSpace(answer))
	if path == "" {
		return nil
	}
	fi, err := os.Stat(path)
	if err == nil && !fi.IsDir() {
		return fmt.Errorf("%s is not a folder", path)
	}
	return nil
}

// resolveFolderAnswer turns a prompt answer into an absolute, existing folder.
func resolveFolderAnswer(answer string) (string, error) {
	path := expandHome(strings.TrimSpace(answer))
	if path == "" {
		return "", ErrCancelled
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", &FolderError{Path: abs, Err: err}
	}
	return abs, nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
