// Command cde extracts structured fields from scanned clinical documents
// and writes a two-sheet Excel report.
//
// Usage:
//
//	cde --root /data/scans --subjects subjects.txt --pattern 'A_RAPOR_*.jpg' \
//	    [--rules rules.json] [--out report.xlsx] [--workers 4]
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/metanome/cde/internal/config"
	"github.com/metanome/cde/internal/engine"
	"github.com/metanome/cde/internal/report"
	"github.com/metanome/cde/internal/resolver"
	"github.com/metanome/cde/internal/rules"
	"github.com/metanome/cde/internal/textsource"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	cfg, err := config.LoadFromFlags(os.Args[1:])
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(2)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	// Ctrl-C cancels the run; completed subjects are still reported.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	ruleSet, err := rules.LoadRulesFile(cfg.RulesFile)
	if err != nil {
		return err
	}

	subjectIDs, err := resolver.LoadSubjectListFile(cfg.SubjectsFile)
	if err != nil {
		return err
	}
	if len(subjectIDs) == 0 {
		return fmt.Errorf("no subjects found in %s", cfg.SubjectsFile)
	}
	logger.Info("starting extraction",
		"root", cfg.Root,
		"subjects", len(subjectIDs),
		"pattern", cfg.TargetPattern,
		"rules", len(ruleSet),
		"workers", cfg.Workers,
	)

	extractor := textsource.NewExtractor(textsource.Config{
		Tesseract: cfg.Tesseract,
		Pdftoppm:  cfg.Pdftoppm,
		Lang:      cfg.Lang,
		PSM:       cfg.PSM,
		DPI:       cfg.DPI,
	}, logger)
	if !extractor.OCRAvailable(ctx) {
		logger.Warn("tesseract not found; image-only subjects will fail, PDF text extraction continues")
	}

	eng := engine.New(extractor, rules.NewTransformer(cfg.GenderTerms), logger)

	sink := engine.ProgressFunc(func(e engine.Event) {
		logger.Info("subject processed",
			"subject_id", e.SubjectID,
			"status", string(e.Status),
			"done", e.Totals.Done,
			"total", e.Totals.Total,
		)
	})

	records, runErr := eng.Run(ctx, engine.Request{
		Root:          cfg.Root,
		SubjectIDs:    subjectIDs,
		TargetPattern: cfg.TargetPattern,
		Rules:         ruleSet,
		Workers:       cfg.Workers,
	}, sink)
	if runErr != nil && len(records) == 0 {
		return runErr
	}
	if runErr != nil {
		logger.Warn("run interrupted; writing partial report", "completed", len(records))
	}

	rep := report.Build(rules.Names(ruleSet), records)
	if err := rep.WriteFile(cfg.OutputPath); err != nil {
		return err
	}

	logger.Info("report written",
		"run_id", rep.RunID.String(),
		"path", cfg.OutputPath,
		"subjects", rep.Summary.Total,
		"successful", rep.Summary.Succeeded,
		"partial", rep.Summary.Partial,
		"failed", rep.Summary.Failed,
		"success_rate_pct", fmt.Sprintf("%.2f", rep.Summary.SuccessRate()),
	)
	return runErr
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
