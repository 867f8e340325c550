package textsource

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/metanome/cde/constants"
)

func (e *Extractor) extractPDF(ctx context.Context, path string) (Result, error) {
	text, pages, err := pdfPlainText(path)
	if err != nil {
		return Result{SourceType: constants.PDF}, fmt.Errorf("pdf text layer: %w", err)
	}
	if strings.TrimSpace(text) != "" {
		return Result{
			Text:       strings.TrimSpace(text),
			Pages:      pages,
			SourceType: constants.PDF,
			Method:     "pdf-text",
		}, nil
	}

	// No extractable text layer: the document is a scan. Rasterize and OCR.
	e.logger.Debug("pdf has no text layer, falling back to ocr", "path", path)
	if err := e.ocrAvailable(ctx); err != nil {
		return Result{SourceType: constants.PDF}, err
	}
	res, err := e.pdfToOCR(ctx, path)
	res.SourceType = constants.PDF
	res.Method = "pdf-ocr"
	return res, err
}

// pdfPlainText reads the text layer of every page.
func pdfPlainText(path string) (string, int, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer func() { _ = f.Close() }()

	rd, err := r.GetPlainText()
	if err != nil {
		return "", 0, err
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(rd); err != nil {
		return "", 0, err
	}
	return buf.String(), r.NumPage(), nil
}

// pdfToOCR renders pages to PNG with pdftoppm and OCRs each page.
func (e *Extractor) pdfToOCR(ctx context.Context, path string) (Result, error) {
	tmpDir, err := os.MkdirTemp("", "cde-pp-*")
	if err != nil {
		return Result{}, err
	}
	defer func() {
		if rerr := os.RemoveAll(tmpDir); rerr != nil {
			e.logger.Warn("failed to remove temp dir", "dir", tmpDir, "error", rerr)
		}
	}()

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r <dpi> -png <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", strconv.Itoa(e.cfg.DPI), "-png", path, prefix)
	if err != nil {
		return Result{Warnings: []string{string(errb)}}, fmt.Errorf("pdftoppm: %w", err)
	}

	// collect generated pngs (prefix-1.png, prefix-2.png, ...)
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if e.cfg.MaxPages > 0 && len(matches) > e.cfg.MaxPages {
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return Result{}, fmt.Errorf("pdftoppm rendered no pages")
	}

	var b strings.Builder
	var warns []string
	for _, img := range matches {
		txt, w, err := e.tesseractOCR(ctx, img)
		if err != nil {
			warns = append(warns, err.Error())
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\f\n") // keep a clear page break marker
		}
		b.WriteString(txt)
		warns = append(warns, w...)
	}
	return Result{
		Text:     strings.TrimSpace(b.String()),
		Pages:    len(matches),
		Warnings: warns,
	}, nil
}
