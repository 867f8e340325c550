package constants

// ExtractionStatus is the canonical terminal status for a processed subject.
type ExtractionStatus string

// Stable values (these exact strings appear in the report's Status column).
const (
	StatusSuccess ExtractionStatus = "SUCCESS" // every rule field populated
	StatusPartial ExtractionStatus = "PARTIAL" // text extracted, some fields missing
	StatusFailed  ExtractionStatus = "FAILED"  // no usable text for this subject
)
