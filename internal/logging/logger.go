// Package logging provides the leveled console logger used by every command.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/backmassage/imgshift/internal/config"
	"github.com/backmassage/imgshift/internal/term"
)

type level struct {
	tag    string
	color  *color.Color
	stderr bool
}

var (
	levelInfo    = level{"[INFO]", term.Blue, false}
	levelSuccess = level{"[SUCCESS]", term.Green, false}
	levelWarn    = level{"[WARN]", term.Yellow, false}
	levelError   = level{"[ERROR]", term.Red, true}
	levelDebug   = level{"[DEBUG]", term.Cyan, false}
)

// Logger writes timestamped, leveled lines to the console and, optionally,
// to an append-only file. It is safe for concurrent use by pipeline workers.
type Logger struct {
	mu     sync.Mutex
	stdout io.Writer
	stderr io.Writer
	file   *os.File // Plain text, no escape sequences.
}

// NewLogger configures colors from cfg and opens cfg.LogFile when set.
// Call Close when done.
func NewLogger(cfg *config.Config) (*Logger, error) {
	term.Configure(cfg.ColorMode)
	l := &Logger{stdout: os.Stdout, stderr: os.Stderr}
	if cfg.LogFile == "" {
		return l, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
		return nil, fmt.Errorf("log file: %w", err)
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("log file: %w", err)
	}
	l.file = f
	return l, nil
}

// Close closes the log file, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func (l *Logger) write(lv level, format string, args []interface{}) {
	ts := time.Now().Format("2006-01-02 15:04:05")
	msg := fmt.Sprintf(format, args...)

	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.stdout
	if lv.stderr {
		out = l.stderr
	}
	fmt.Fprintf(out, "%s %s %s\n", ts, lv.color.Sprint(lv.tag), msg)
	if l.file != nil {
		fmt.Fprintf(l.file, "%s %s %s\n", ts, lv.tag, msg)
	}
}

// Info logs progress and headers.
func (l *Logger) Info(format string, args ...interface{}) { l.write(levelInfo, format, args) }

// Success logs a file or check that completed.
func (l *Logger) Success(format string, args ...interface{}) { l.write(levelSuccess, format, args) }

// Warn logs recoverable problems.
func (l *Logger) Warn(format string, args ...interface{}) { l.write(levelWarn, format, args) }

// Error logs failures to stderr.
func (l *Logger) Error(format string, args ...interface{}) { l.write(levelError, format, args) }

// Debug logs only when verbose is set.
func (l *Logger) Debug(verbose bool, format string, args ...interface{}) {
	if verbose {
		l.write(levelDebug, format, args)
	}
}
