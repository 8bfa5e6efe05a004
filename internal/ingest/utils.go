package ingest

import (
	"path/filepath"
	"strings"

	"github.com/clauselens/clauselens/constants"
)

// AllowedExt reports whether the extension is in the allowed ingest set.
func AllowedExt(ext string) bool {
	_, ok := constants.AllowedExtensions[constants.NormalizeExt(ext)]
	return ok
}

// IsHidden reports whether the path's base name starts with '.'.
func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
