package rules

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Transform identifies a post-processing function applied to a rule's
// captured value. The catalog is a closed set: extend by adding a constant
// and a case to Transformer.Apply, never by ad-hoc dispatch.
type Transform string

const (
	TransformNone          Transform = "none"
	TransformAgeRound      Transform = "age_round"
	TransformGenderTurkish Transform = "gender_turkish"
)

// Valid reports whether t is a known transform. The empty string is accepted
// and treated as "none", matching rule files that omit the key.
func (t Transform) Valid() bool {
	switch t {
	case "", TransformNone, TransformAgeRound, TransformGenderTurkish:
		return true
	}
	return false
}

// TransformError reports a transform that could not be applied to a captured
// value. It degrades the affected field to absent; the subject itself may
// still succeed on its other fields.
type TransformError struct {
	Transform Transform
	Value     string
	Reason    string
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform %s: %s: %q", e.Transform, e.Reason, e.Value)
}

// defaultGenderTerms maps uppercased source terms to their English label.
// Taken from the bilingual intake forms this tool was built for.
var defaultGenderTerms = map[string]string{
	"BAYAN":  "Female",
	"K":      "Female",
	"KADIN":  "Female",
	"F":      "Female",
	"FEMALE": "Female",
	"BAY":    "Male",
	"E":      "Male",
	"ERKEK":  "Male",
	"M":      "Male",
	"MALE":   "Male",
}

// Transformer applies the transform catalog. The gender term table starts
// from the built-in defaults and can be extended through configuration.
type Transformer struct {
	genderTerms map[string]string
}

// NewTransformer builds a Transformer. extraGenderTerms entries are merged
// over the defaults; keys are matched case-insensitively.
func NewTransformer(extraGenderTerms map[string]string) *Transformer {
	terms := make(map[string]string, len(defaultGenderTerms)+len(extraGenderTerms))
	for k, v := range defaultGenderTerms {
		terms[k] = v
	}
	for k, v := range extraGenderTerms {
		k = strings.ToUpper(strings.TrimSpace(k))
		if k != "" && v != "" {
			terms[k] = v
		}
	}
	return &Transformer{genderTerms: terms}
}

// Apply runs the named transform over a captured value. Pure: no side
// effects, same output for same input.
func (t *Transformer) Apply(id Transform, value string) (string, error) {
	switch id {
	case "", TransformNone:
		return strings.TrimSpace(value), nil
	case TransformAgeRound:
		return roundAge(value)
	case TransformGenderTurkish:
		return t.mapGender(value), nil
	default:
		return "", &TransformError{Transform: id, Value: value, Reason: "unknown transform"}
	}
}

// roundAge rounds a decimal age to a whole number. The boundary is strict:
// a fractional part greater than 0.50 rounds up, 0.50 itself rounds down.
// Not banker's rounding.
func roundAge(value string) (string, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return "", &TransformError{Transform: TransformAgeRound, Value: value, Reason: "not a number"}
	}
	whole := math.Trunc(v)
	if v-whole > 0.50 {
		whole = math.Ceil(v)
	}
	return strconv.FormatInt(int64(whole), 10), nil
}

// mapGender looks the value up in the term table. Unknown terms pass through
// unchanged rather than erroring: the report should show what was scanned.
func (t *Transformer) mapGender(value string) string {
	trimmed := strings.TrimSpace(value)
	if mapped, ok := t.genderTerms[strings.ToUpper(trimmed)]; ok {
		return mapped
	}
	return trimmed
}
