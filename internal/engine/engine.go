// Package engine drives one extraction run: resolve each subject's target
// file, obtain its text, apply the active rules, and collect one record per
// subject. Subjects are independent and processed by a bounded worker pool;
// the final record order always matches the input subject order.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/metanome/cde/constants"
	"github.com/metanome/cde/internal/resolver"
	"github.com/metanome/cde/internal/rules"
	"github.com/metanome/cde/internal/textsource"
)

const DefaultWorkers = 4

// TextExtractor is the text source capability the engine drives per subject.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (textsource.Result, error)
}

// Request describes one extraction run. The rule set is compiled up front;
// a malformed rule aborts the run before any filesystem or OCR work.
type Request struct {
	Root          string
	SubjectIDs    []string
	TargetPattern string
	Rules         []rules.Rule
	Workers       int // <=0 -> DefaultWorkers
}

type Engine struct {
	ts          TextExtractor
	transformer *rules.Transformer
	logger      *slog.Logger

	// fsys overrides the filesystem rooted at Request.Root; used by tests.
	fsys fs.FS
}

func New(ts TextExtractor, transformer *rules.Transformer, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if transformer == nil {
		transformer = rules.NewTransformer(nil)
	}
	return &Engine{ts: ts, transformer: transformer, logger: logger}
}

// NewWithFS is New with an explicit filesystem capability for the resolver.
// File paths handed to the text extractor are then fs-relative.
func NewWithFS(ts TextExtractor, transformer *rules.Transformer, logger *slog.Logger, fsys fs.FS) *Engine {
	e := New(ts, transformer, logger)
	e.fsys = fsys
	return e
}

// Run executes the request and returns one record per completed subject, in
// input order. When ctx is cancelled mid-run the completed prefix of work is
// still returned (each record fully valid) together with ctx's error.
func (e *Engine) Run(ctx context.Context, req Request, sink ProgressSink) ([]Record, error) {
	if strings.TrimSpace(req.Root) == "" && e.fsys == nil {
		return nil, errors.New("root folder is required")
	}
	if strings.TrimSpace(req.TargetPattern) == "" {
		return nil, errors.New("target pattern is required")
	}
	if len(req.SubjectIDs) == 0 {
		return nil, errors.New("subject list is empty")
	}

	// Fail fast: reject the whole run on any malformed rule.
	compiled, err := rules.CompileSet(req.Rules)
	if err != nil {
		return nil, err
	}

	fsys := e.fsys
	if fsys == nil {
		fsys = os.DirFS(req.Root)
	}
	subjects, err := resolver.New(fsys, e.logger).Resolve(req.SubjectIDs, req.TargetPattern)
	if err != nil {
		return nil, fmt.Errorf("resolve subjects: %w", err)
	}

	workers := req.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if workers > len(subjects) {
		workers = len(subjects)
	}

	// Results are indexed by original subject position, never appended on
	// completion, so worker scheduling cannot reorder the report.
	results := make([]*Record, len(subjects))
	var (
		mu     sync.Mutex
		totals = Totals{Total: len(subjects)}
		wg     sync.WaitGroup
	)
	jobs := make(chan int)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				rec, ok := e.processSubject(ctx, req.Root, subjects[idx], compiled)
				if !ok {
					continue // aborted by cancellation; leave no record
				}
				mu.Lock()
				results[idx] = &rec
				totals.Done++
				switch rec.Status {
				case constants.StatusSuccess:
					totals.Succeeded++
				case constants.StatusPartial:
					totals.Partial++
				case constants.StatusFailed:
					totals.Failed++
				}
				if sink != nil {
					sink.Report(Event{SubjectID: rec.SubjectID, Status: rec.Status, Totals: totals})
				}
				mu.Unlock()
			}
		}()
	}

dispatch:
	for i := range subjects {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	records := make([]Record, 0, len(subjects))
	for _, r := range results {
		if r != nil {
			records = append(records, *r)
		}
	}
	if err := ctx.Err(); err != nil {
		e.logger.Warn("run cancelled", "completed", len(records), "total", len(subjects))
		return records, err
	}
	return records, nil
}

// processSubject walks one subject through its terminal state. The second
// return is false when processing was cut short by cancellation and no
// record should be kept.
func (e *Engine) processSubject(ctx context.Context, root string, s resolver.Subject, compiled []rules.CompiledRule) (Record, bool) {
	if ctx.Err() != nil {
		return Record{}, false
	}

	rec := Record{
		SubjectID:   s.ID,
		PatientName: s.PatientName,
		SubFolder:   s.SubFolder,
	}

	if !s.Resolved() {
		rec.Status = constants.StatusFailed
		rec.Reason = s.Reason
		return rec, true
	}

	path := s.FilePath
	if e.fsys == nil {
		path = filepath.Join(root, filepath.FromSlash(s.FilePath))
	}
	rec.FilePath = path

	res, err := e.ts.Extract(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			return Record{}, false
		}
		rec.Status = constants.StatusFailed
		rec.Reason = extractionReason(err)
		e.logger.Warn("text extraction failed", "subject_id", s.ID, "path", path, "error", err)
		return rec, true
	}

	rec.Fields = make(map[string]string, len(compiled))
	for _, rule := range compiled {
		raw, matched := rule.Extract(res.Text)
		if !matched {
			continue
		}
		val, terr := e.transformer.Apply(rule.Transform, raw)
		if terr != nil {
			// Degrade this field only; the subject can still succeed on
			// its other fields.
			if rec.FieldNotes == nil {
				rec.FieldNotes = make(map[string]string)
			}
			rec.FieldNotes[rule.Name] = terr.Error()
			continue
		}
		rec.Fields[rule.Name] = val
	}

	switch {
	case len(rec.Fields) == len(compiled):
		rec.Status = constants.StatusSuccess
	case len(rec.Fields) == 0:
		rec.Status = constants.StatusPartial
		rec.Reason = "no rules matched"
	default:
		rec.Status = constants.StatusPartial
	}
	e.logger.Debug("subject processed",
		"subject_id", s.ID,
		"status", string(rec.Status),
		"fields", len(rec.Fields),
		"method", res.Method,
	)
	return rec, true
}

// extractionReason keeps the adapter's error kind visible in the report.
func extractionReason(err error) string {
	switch {
	case errors.Is(err, textsource.ErrOCRUnavailable):
		return "OCR engine not available"
	case errors.Is(err, textsource.ErrUnsupportedFormat):
		return "unsupported file format"
	default:
		return "text extraction failed: " + err.Error()
	}
}
