// Package textsource normalizes OCR and PDF extraction into a single
// "plain text for a file" operation. Images go through the Tesseract CLI;
// PDFs are read from their text layer, falling back to page rasterization
// plus OCR when the document is a pure scan.
package textsource

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/metanome/cde/constants"
)

type Config struct {
	Tesseract string // binary name or absolute path; if empty -> "tesseract"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"

	Lang string // tesseract language, default "eng"
	PSM  int    // page segmentation mode; 6 works well for uniform blocks
	DPI  int    // rasterization DPI for scanned PDFs, default 300

	MaxPages int // 0 = no limit on rasterized PDF pages
}

// Result is the adapter's output for one file.
type Result struct {
	Text       string
	Pages      int
	SourceType string // constants.PDF | constants.IMAGE
	Method     string // "pdf-text" | "pdf-ocr" | "image-ocr"
	Duration   time.Duration
	Warnings   []string
}

// Extractor dispatches by file extension into the OCR or PDF strategy.
// It performs no caching; each file is visited once per run.
type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger

	probeOnce sync.Once
	probeErr  error
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Lang == "" {
		cfg.Lang = "eng"
	}
	if cfg.PSM <= 0 {
		cfg.PSM = 6
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	return &Extractor{cfg: cfg, runner: execRunner{}, logger: logger}
}

// Extract returns the plain text of path, picking a strategy by extension.
// Returns ErrUnsupportedFormat or ErrOCRUnavailable as sentinels; any other
// error is an extraction failure for this file.
func (e *Extractor) Extract(ctx context.Context, path string) (Result, error) {
	start := time.Now()
	ext := constants.NormalizeExt(filepath.Ext(path))
	e.logger.Debug("extracting text", "path", path, "ext", ext)

	switch constants.MapExtToFormat(ext) {
	case constants.PDF:
		res, err := e.extractPDF(ctx, path)
		res.Duration = time.Since(start)
		return res, err
	case constants.IMAGE:
		if err := e.ocrAvailable(ctx); err != nil {
			return Result{SourceType: constants.IMAGE}, err
		}
		res, err := e.extractImage(ctx, path)
		res.Duration = time.Since(start)
		return res, err
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// OCRAvailable probes the Tesseract installation without extracting
// anything, so the caller can warn up front.
func (e *Extractor) OCRAvailable(ctx context.Context) bool {
	return e.ocrAvailable(ctx) == nil
}

// ocrAvailable runs `tesseract --version` once and caches the verdict for
// the lifetime of the extractor (one run).
func (e *Extractor) ocrAvailable(ctx context.Context) error {
	e.probeOnce.Do(func() {
		out, _, err := e.runner.Run(ctx, e.cfg.Tesseract, "--version")
		if err != nil {
			e.logger.Warn("tesseract probe failed", "binary", e.cfg.Tesseract, "error", err)
			e.probeErr = fmt.Errorf("%w: %v", ErrOCRUnavailable, err)
			return
		}
		version := strings.TrimSpace(strings.SplitN(string(out), "\n", 2)[0])
		e.logger.Info("tesseract detected", "version", version)
	})
	return e.probeErr
}
