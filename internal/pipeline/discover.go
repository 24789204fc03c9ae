package pipeline

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/backmassage/imgshift/internal/naming"
	"github.com/backmassage/imgshift/internal/registry"
)

// Discover walks dir and returns every file the registry would accept by
// extension, sorted lexicographically for a deterministic order. Hidden
// directories and earlier batch folders (Converted_*) are pruned so a
// folder is never re-fed its own outputs.
func Discover(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && prunedDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if registry.AllowedExtension(filepath.Ext(path)) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func prunedDir(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, naming.BatchFolderPrefix)
}
