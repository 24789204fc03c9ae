package registry

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"
)

// SortKey orders the selection before a save.
type SortKey string

const (
	SortNone SortKey = "none" // Keep selection order (default).
	SortName SortKey = "name" // Base name, case-insensitive.
	SortDate SortKey = "date" // Modification time, oldest first.
	SortSize SortKey = "size" // File size, smallest first.
)

// ParseSortKey maps user input to a SortKey.
func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case SortNone, SortName, SortDate, SortSize:
		return k, nil
	case "":
		return SortNone, nil
	}
	return "", fmt.Errorf("invalid sort key %q (use 'none', 'name', 'date' or 'size')", s)
}

// Sort reorders the selection by key. The sort is stable, so ties keep their
// selection order. Files that can no longer be stat'ed sort first for date
// and size.
func (r *Registry) Sort(key SortKey) error {
	key, err := ParseSortKey(string(key))
	if err != nil {
		return err
	}
	if key == SortNone {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	type entry struct {
		file    InputFile
		modTime time.Time
		size    int64
	}
	entries := make([]entry, len(r.files))
	for i, f := range r.files {
		entries[i].file = f
		if key == SortName {
			continue
		}
		if fi, err := os.Stat(f.Path); err == nil {
			entries[i].modTime = fi.ModTime()
			entries[i].size = fi.Size()
		}
	}

	slices.SortStableFunc(entries, func(a, b entry) int {
		switch key {
		case SortName:
			return strings.Compare(strings.ToLower(a.file.Name()), strings.ToLower(b.file.Name()))
		case SortDate:
			return a.modTime.Compare(b.modTime)
		default:
			switch {
			case a.size < b.size:
				return -1
			case a.size > b.size:
				return 1
			}
			return 0
		}
	})

	for i, e := range entries {
		r.files[i] = e.file
	}
	return nil
}
