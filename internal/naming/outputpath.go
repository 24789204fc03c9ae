package naming

import (
	"path/filepath"
	"strings"
	"time"
)

// BatchFolderPrefix starts the name of every batch subfolder.
const BatchFolderPrefix = "Converted_"

// OutputPath builds <destDir>/<base>.<ext> where base is the source file name
// without its extension and ext is given without a dot.
//
//	OutputPath("/out", "/pics/beach.PNG", "jpeg") == "/out/beach.jpeg"
func OutputPath(destDir, sourcePath, ext string) string {
	name := filepath.Base(sourcePath)
	base := strings.TrimSuffix(name, filepath.Ext(name))
	return filepath.Join(destDir, base+"."+ext)
}

// BatchFolderName returns Converted_YYYYMMDDHHMMSS for t in its own location.
func BatchFolderName(t time.Time) string {
	return BatchFolderPrefix + t.Format("20060102150405")
}
