package engine

import "github.com/metanome/cde/constants"

// Record is the outcome for one subject. Immutable once the engine has
// appended it to the result set.
type Record struct {
	SubjectID   string
	PatientName string
	FilePath    string
	SubFolder   int

	// Fields maps rule name -> extracted and transformed value. An absent
	// entry means the rule did not match. A FAILED record carries none.
	Fields map[string]string

	// FieldNotes maps rule name -> reason a matched value was degraded to
	// absent (transform failure).
	FieldNotes map[string]string

	Status constants.ExtractionStatus
	Reason string // non-empty for FAILED and for "no rules matched" PARTIAL
}

// Totals are the running counters carried on every progress event.
type Totals struct {
	Total     int
	Done      int
	Succeeded int
	Partial   int
	Failed    int
}

// Event is emitted once per subject, when it reaches a terminal status.
type Event struct {
	SubjectID string
	Status    constants.ExtractionStatus
	Totals    Totals
}

// ProgressSink receives progress events. Events arrive serialized (the
// engine holds a lock across the call) but out of subject order; the sink
// must not block for long.
type ProgressSink interface {
	Report(Event)
}

// ProgressFunc adapts a function to the ProgressSink interface.
type ProgressFunc func(Event)

func (f ProgressFunc) Report(e Event) { f(e) }
