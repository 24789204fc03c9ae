package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// Revealer shows a saved file or folder in the platform file browser.
type Revealer interface {
	Reveal(ctx context.Context, path string) error
}

// NopRevealer reveals nothing.
type NopRevealer struct{}

func (NopRevealer) Reveal(context.Context, string) error { return nil }

// SystemRevealer shells out to the platform file browser. GOOS defaults to
// runtime.GOOS.
type SystemRevealer struct {
	GOOS string
}

// Command returns the argv that reveals path:
//
//	darwin:  open -R <path>
//	windows: explorer /select,<path>
//	others:  xdg-open <dir>   (the parent folder when path is a file)
func (r SystemRevealer) Command(path string) []string {
	goos := r.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}
	switch goos {
	case "darwin":
		return []string{"open", "-R", path}
	case "windows":
		return []string{"explorer", "/select," + path}
	default:
		dir := path
		if fi, err := os.Stat(path); err != nil || !fi.IsDir() {
			dir = filepath.Dir(path)
		}
		return []string{"xdg-open", dir}
	}
}

// Reveal runs Command(path). Explorer exits non-zero even on success, so its
// exit status is ignored.
func (r SystemRevealer) Reveal(ctx context.Context, path string) error {
	argv := r.Command(path)
	if _, err := exec.LookPath(argv[0]); err != nil {
		return fmt.Errorf("%s not found on PATH", argv[0])
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stderr = &stderr
	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && argv[0] == "explorer" {
		return nil
	}
	if err != nil {
		if msg := lastLine(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w (%s)", argv[0], err, msg)
		}
		return fmt.Errorf("%s: %w", argv[0], err)
	}
	return nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
