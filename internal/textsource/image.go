package textsource

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/metanome/cde/constants"
)

func (e *Extractor) extractImage(ctx context.Context, path string) (Result, error) {
	txt, warns, err := e.tesseractOCR(ctx, path)
	if err != nil {
		return Result{SourceType: constants.IMAGE, Warnings: warns}, err
	}
	return Result{
		Text:       strings.TrimSpace(txt),
		Pages:      1,
		SourceType: constants.IMAGE,
		Method:     "image-ocr",
		Warnings:   warns,
	}, nil
}

// tesseractOCR runs `tesseract <file> stdout -l <lang> --psm <n>`.
func (e *Extractor) tesseractOCR(ctx context.Context, path string) (string, []string, error) {
	args := []string{path, "stdout", "-l", e.cfg.Lang}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(e.cfg.PSM))
	}

	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return "", []string{string(errb)}, fmt.Errorf("tesseract: %w", err)
	}
	return string(out), nil, nil
}
