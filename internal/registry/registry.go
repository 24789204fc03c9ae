// Package registry holds the current selection of input images.
//
// A Registry is owned by whoever creates it and is passed explicitly to the
// components that read it. Each call to [Registry.SetSelection] replaces the
// previous selection entirely; there is no accumulation across calls.
package registry

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// allowedExtensions is the only gate applied at selection time (lowercase,
// without the dot). Content is not inspected until decode.
var allowedExtensions = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
	"heic": true,
	"webp": true,
	"tiff": true,
	"bmp":  true,
	"gif":  true,
}

// InputFile is one selected source image.
type InputFile struct {
	Path string
	Ext  string // Lowercase extension without the dot.
}

// Name returns the file name including extension.
func (f InputFile) Name() string { return filepath.Base(f.Path) }

// BaseName returns the file name with its final extension removed.
func (f InputFile) BaseName() string {
	name := f.Name()
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// Registry is the selection of input files. It is safe for one writer and
// many concurrent readers.
type Registry struct {
	mu    sync.RWMutex
	files []InputFile
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{}
}

// SetSelection replaces the selection with the candidates that have an
// allowed extension and are readable regular files, keeping candidate order.
// Rejected candidates are dropped silently.
func (r *Registry) SetSelection(candidates []string) {
	files := make([]InputFile, 0, len(candidates))
	for _, path := range candidates {
		if f, ok := Accept(path); ok {
			files = append(files, f)
		}
	}

	r.mu.Lock()
	r.files = files
	r.mu.Unlock()
}

// Accept reports whether path would pass the selection filter and returns
// the InputFile it would become.
func Accept(path string) (InputFile, bool) {
	ext := normalizeExt(filepath.Ext(path))
	if !allowedExtensions[ext] {
		return InputFile{}, false
	}
	if !isReadableFile(path) {
		return InputFile{}, false
	}
	return InputFile{Path: path, Ext: ext}, true
}

// AllowedExtension reports whether ext (with or without the leading dot, any
// case) is on the selection allow-list.
func AllowedExtension(ext string) bool { return allowedExtensions[normalizeExt(ext)] }

func normalizeExt(ext string) string { return strings.ToLower(strings.TrimPrefix(ext, ".")) }

// Files returns a copy of the current selection in order.
func (r *Registry) Files() []InputFile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]InputFile, len(r.files))
	copy(out, r.files)
	return out
}

// Paths returns the paths of the current selection in order.
func (r *Registry) Paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.files))
	for i, f := range r.files {
		out[i] = f.Path
	}
	return out
}

// Count returns the number of selected files.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.files)
}

// Clear empties the selection.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.files = nil
	r.mu.Unlock()
}

// isReadableFile reports whether path is a regular file that can be opened
// for reading right now.
func isReadableFile(path string) bool {
	fi, err := os.Stat(path)
	if err != nil || !fi.Mode().IsRegular() {
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	f.Close()
	return true
}
