package textsource

import "errors"

// Sentinel errors callers branch on. Anything else returned by Extract is a
// genuine extraction failure for that file.
var (
	// ErrUnsupportedFormat means the file extension maps to neither a
	// scanned-image format nor PDF.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrOCRUnavailable means the Tesseract binary is not installed or not
	// reachable. Distinct from a recognition failure so callers can skip
	// image-only subjects while PDF-based ones continue.
	ErrOCRUnavailable = errors.New("tesseract ocr not available")
)
