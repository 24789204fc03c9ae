package pipeline

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/backmassage/imgshift/internal/codec"
	"github.com/backmassage/imgshift/internal/registry"
	"github.com/backmassage/imgshift/internal/seal"
)

var fixedNow = time.Date(2024, time.March, 5, 9, 7, 3, 0, time.Local)

// writePNG creates a w×h gradient PNG and returns its path.
func writePNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{uint8(x * 7), uint8(y * 5), uint8(x + y), 255})
		}
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("not really an image"), 0o644))
	return path
}

func selection(t *testing.T, paths ...string) []registry.InputFile {
	t.Helper()
	r := registry.New()
	r.SetSelection(paths)
	require.Equal(t, len(paths), r.Count(), "every test input must pass selection")
	return r.Files()
}

func baseRequest(format codec.Format) Request {
	return Request{Format: format, Level: 2, Verify: true, Jobs: 1, Reveal: true}
}

// testEnv bundles recording fakes for Deps.
type testEnv struct {
	out      string
	chooser  *countingChooser
	revealer *recordingRevealer
	log      *recordingLogger
	events   *[]string
	mu       *sync.Mutex
}

func newTestEnv(t *testing.T) (*testEnv, Deps) {
	t.Helper()
	env := &testEnv{
		out:    t.TempDir(),
		log:    &recordingLogger{},
		events: &[]string{},
		mu:     &sync.Mutex{},
	}
	env.chooser = &countingChooser{folder: env.out}
	env.revealer = &recordingRevealer{env: env}
	deps := Deps{
		Codec:    codec.NewConverter(nil),
		Chooser:  env.chooser,
		Revealer: env.revealer,
		Quit:     func() { env.record("quit") },
		Now:      func() time.Time { return fixedNow },
		Log:      env.log,
		Seal: func(p []byte, pw string) ([]byte, error) {
			return seal.SealWith(p, pw, seal.Params{Time: 1, Memory: 1024, Threads: 1})
		},
	}
	return env, deps
}

func (e *testEnv) record(ev string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	*e.events = append(*e.events, ev)
}

func (e *testEnv) recorded() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), *e.events...)
}

type countingChooser struct {
	mu     sync.Mutex
	calls  int
	folder string
	err    error
}

func (c *countingChooser) ChooseFolder(context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.folder, c.err
}

type recordingRevealer struct {
	env *testEnv
	err error
}

func (r *recordingRevealer) Reveal(_ context.Context, path string) error {
	r.env.record("reveal " + path)
	return r.err
}

type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) add(level, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, "["+level+"] "+fmt.Sprintf(format, args...))
}

func (l *recordingLogger) Info(f string, a ...interface{})    { l.add("INFO", f, a...) }
func (l *recordingLogger) Success(f string, a ...interface{}) { l.add("SUCCESS", f, a...) }
func (l *recordingLogger) Warn(f string, a ...interface{})    { l.add("WARN", f, a...) }
func (l *recordingLogger) Error(f string, a ...interface{})   { l.add("ERROR", f, a...) }
func (l *recordingLogger) Debug(v bool, f string, a ...interface{}) {
	if v {
		l.add("DEBUG", f, a...)
	}
}

func (l *recordingLogger) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return strings.Join(l.lines, "\n")
}

// stubCodec wraps the real converter and lets tests intercept calls.
type stubCodec struct {
	*codec.Converter
	decode      func(ctx context.Context, path string) (image.Image, error)
	decodeBytes func(ctx context.Context, data []byte) (image.Image, error)
}

func (s *stubCodec) Decode(ctx context.Context, path string) (image.Image, error) {
	if s.decode != nil {
		return s.decode(ctx, path)
	}
	return s.Converter.Decode(ctx, path)
}

func (s *stubCodec) DecodeBytes(ctx context.Context, data []byte) (image.Image, error) {
	if s.decodeBytes != nil {
		return s.decodeBytes(ctx, data)
	}
	return s.Converter.DecodeBytes(ctx, data)
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
