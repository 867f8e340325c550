package constants

import "strings"

// File formats recognized by the text source adapter.
const (
	PDF   = "PDF"
	IMAGE = "IMAGE"
)

// imageExts holds the supported scanned-image extensions (lowercased, no dot).
var imageExts = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"tiff": {},
	"tif":  {},
	"bmp":  {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat maps a normalized extension to PDF or IMAGE.
// Returns "" for unsupported extensions.
func MapExtToFormat(ext string) string {
	ext = NormalizeExt(ext)
	if ext == "pdf" {
		return PDF
	}
	if _, ok := imageExts[ext]; ok {
		return IMAGE
	}
	return ""
}
