package constants

import (
	"sort"
	"strings"
)

// FileFormat is the coarse source format recorded on an AnalysisJob.
type FileFormat string

const (
	PDF   FileFormat = "PDF"
	IMAGE FileFormat = "IMAGE"
	TEXT  FileFormat = "TEXT"
)

// ImageConfidenceThreshold is the OCR confidence below which image-sourced
// text is flagged for review and the vision fallback may attach the file.
const ImageConfidenceThreshold = 0.6

// MaxVisionMB caps the file size the vision fallback will attach inline.
const MaxVisionMB = 10

// AllowedExtensions holds the default allowed file extensions for document ingestion.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"txt":  {},
	"md":   {},
}

// AllowedExtensionList returns the allowed extensions in stable order.
func AllowedExtensionList() []string {
	out := make([]string, 0, len(AllowedExtensions))
	for ext := range AllowedExtensions {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat maps a file extension to its coarse format.
// Returns "" for unsupported extensions.
func MapExtToFormat(ext string) FileFormat {
	switch NormalizeExt(ext) {
	case "pdf":
		return PDF
	case "jpg", "jpeg", "png":
		return IMAGE
	case "txt", "md":
		return TEXT
	default:
		return ""
	}
}
