// Package report aggregates extraction records into a run report and renders
// it as a two-sheet Excel workbook.
package report

import (
	"time"

	"github.com/google/uuid"

	"github.com/metanome/cde/constants"
	"github.com/metanome/cde/internal/engine"
)

// Summary holds the run counters shown on the Summary sheet.
type Summary struct {
	Total     int
	Succeeded int
	Partial   int
	Failed    int

	// FieldCounts maps rule name -> number of records carrying that field.
	// Iterate via Report.Fields to keep rule-set order.
	FieldCounts map[string]int
}

// SuccessRate is the share of subjects with at least one populated field,
// in percent.
func (s Summary) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Succeeded+s.Partial) / float64(s.Total) * 100
}

// Report is the final aggregate for one run. Records keep the input subject
// order; Fields keeps the rule-set order.
type Report struct {
	RunID       uuid.UUID
	GeneratedAt time.Time
	Fields      []string
	Records     []engine.Record
	Summary     Summary
}

// Build computes summary counters over the collected records. Record order
// is preserved as received.
func Build(fields []string, records []engine.Record) *Report {
	s := Summary{
		Total:       len(records),
		FieldCounts: make(map[string]int, len(fields)),
	}
	for _, f := range fields {
		s.FieldCounts[f] = 0
	}
	for _, r := range records {
		switch r.Status {
		case constants.StatusSuccess:
			s.Succeeded++
		case constants.StatusPartial:
			s.Partial++
		case constants.StatusFailed:
			s.Failed++
		}
		for name := range r.Fields {
			if _, known := s.FieldCounts[name]; known {
				s.FieldCounts[name]++
			}
		}
	}
	return &Report{
		RunID:       uuid.New(),
		GeneratedAt: time.Now().UTC(),
		Fields:      fields,
		Records:     records,
		Summary:     s,
	}
}
