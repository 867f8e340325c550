package report

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/metanome/cde/internal/engine"
)

// Sheet names are part of the observable contract; styling is cosmetic.
const (
	DataSheet    = "Extracted Data"
	SummarySheet = "Summary"
)

const maxColumnWidth = 50

// WriteTo renders the workbook: a data sheet with one row per subject
// (Subject ID, Name, one column per rule in rule-set order, Status, Notes)
// and a summary sheet with the run counters.
func (r *Report) WriteTo(w io.Writer) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", DataSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"366092"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return err
	}

	if err := r.writeDataSheet(f, headerStyle); err != nil {
		return err
	}
	if err := r.writeSummarySheet(f, headerStyle); err != nil {
		return err
	}

	idx, err := f.GetSheetIndex(DataSheet)
	if err != nil {
		return err
	}
	f.SetActiveSheet(idx)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

// WriteFile renders the workbook to path.
func (r *Report) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return r.WriteTo(f)
}

func (r *Report) writeDataSheet(f *excelize.File, headerStyle int) error {
	headers := append([]string{"Subject ID", "Name"}, r.Fields...)
	headers = append(headers, "Status", "Notes")

	widths := make([]int, len(headers))
	set := func(col, row int, v any) error {
		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return err
		}
		if s := fmt.Sprintf("%v", v); len(s) > widths[col-1] {
			widths[col-1] = len(s)
		}
		return f.SetCellValue(DataSheet, cell, v)
	}

	for i, h := range headers {
		if err := set(i+1, 1, h); err != nil {
			return err
		}
	}

	for i, rec := range r.Records {
		row := i + 2
		if err := set(1, row, rec.SubjectID); err != nil {
			return err
		}
		if err := set(2, row, rec.PatientName); err != nil {
			return err
		}
		for j, field := range r.Fields {
			if v, ok := rec.Fields[field]; ok {
				if err := set(3+j, row, v); err != nil {
					return err
				}
			}
		}
		if err := set(3+len(r.Fields), row, string(rec.Status)); err != nil {
			return err
		}
		if err := set(4+len(r.Fields), row, recordNotes(rec)); err != nil {
			return err
		}
	}

	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(DataSheet, "A1", last, headerStyle); err != nil {
		return err
	}
	return applyWidths(f, DataSheet, widths)
}

func (r *Report) writeSummarySheet(f *excelize.File, headerStyle int) error {
	s := r.Summary
	rows := [][2]any{
		{"Metric", "Value"},
		{"Total Subjects", s.Total},
		{"Successful", s.Succeeded},
		{"Partial", s.Partial},
		{"Failed", s.Failed},
		{"Success Rate (%)", fmt.Sprintf("%.2f", s.SuccessRate())},
		{"Rule Fields", len(r.Fields)},
	}
	for _, field := range r.Fields {
		count := s.FieldCounts[field]
		rate := 0.0
		if s.Total > 0 {
			rate = float64(count) / float64(s.Total) * 100
		}
		rows = append(rows, [2]any{
			fmt.Sprintf("Matched: %s", field),
			fmt.Sprintf("%d (%.2f%%)", count, rate),
		})
	}

	widths := make([]int, 2)
	for i, row := range rows {
		for col, v := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, i+1)
			if err != nil {
				return err
			}
			if str := fmt.Sprintf("%v", v); len(str) > widths[col] {
				widths[col] = len(str)
			}
			if err := f.SetCellValue(SummarySheet, cell, v); err != nil {
				return err
			}
		}
	}
	if err := f.SetCellStyle(SummarySheet, "A1", "B1", headerStyle); err != nil {
		return err
	}
	return applyWidths(f, SummarySheet, widths)
}

// recordNotes folds the subject reason and any per-field degradations into
// one diagnostic cell for the activity log.
func recordNotes(rec engine.Record) string {
	var parts []string
	if rec.Reason != "" {
		parts = append(parts, rec.Reason)
	}
	names := make([]string, 0, len(rec.FieldNotes))
	for name := range rec.FieldNotes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, rec.FieldNotes[name]))
	}
	return strings.Join(parts, "; ")
}

func applyWidths(f *excelize.File, sheet string, widths []int) error {
	for i, w := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		width := w + 2
		if width > maxColumnWidth {
			width = maxColumnWidth
		}
		if err := f.SetColWidth(sheet, col, col, float64(width)); err != nil {
			return err
		}
	}
	return nil
}
