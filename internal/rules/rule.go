package rules

import (
	"fmt"
	"regexp"
	"strings"
)

// Rule defines one output field: a named pattern with a post-processing
// transform. The pattern must contain at least one capturing group; group 1
// is the extracted value.
type Rule struct {
	Name      string    `json:"name"`
	Pattern   string    `json:"pattern"`
	Transform Transform `json:"transform,omitempty"`
}

// CompiledRule is a Rule whose pattern has been validated and compiled.
type CompiledRule struct {
	Rule
	re *regexp.Regexp
}

// RuleError reports a rule that failed validation. It is fatal to the whole
// run: malformed rules are rejected before any filesystem or OCR work starts.
type RuleError struct {
	Name   string
	Reason string
	Cause  error
}

func (e *RuleError) Error() string {
	name := e.Name
	if name == "" {
		name = "(unnamed)"
	}
	if e.Cause != nil {
		return fmt.Sprintf("rule %q: %s: %v", name, e.Reason, e.Cause)
	}
	return fmt.Sprintf("rule %q: %s", name, e.Reason)
}

func (e *RuleError) Unwrap() error { return e.Cause }

// Compile validates and compiles a single rule. Patterns match
// case-insensitively across lines, mirroring how scanned documents are
// searched.
func Compile(r Rule) (CompiledRule, error) {
	if strings.TrimSpace(r.Name) == "" {
		return CompiledRule{}, &RuleError{Name: r.Name, Reason: "name is required"}
	}
	if strings.TrimSpace(r.Pattern) == "" {
		return CompiledRule{}, &RuleError{Name: r.Name, Reason: "pattern is required"}
	}
	if !r.Transform.Valid() {
		return CompiledRule{}, &RuleError{Name: r.Name, Reason: fmt.Sprintf("unknown transform %q", r.Transform)}
	}
	re, err := regexp.Compile("(?im)" + r.Pattern)
	if err != nil {
		return CompiledRule{}, &RuleError{Name: r.Name, Reason: "invalid pattern", Cause: err}
	}
	if re.NumSubexp() < 1 {
		return CompiledRule{}, &RuleError{Name: r.Name, Reason: "pattern must contain a capturing group"}
	}
	return CompiledRule{Rule: r, re: re}, nil
}

// CompileSet compiles an ordered rule set, enforcing unique names.
// Order is preserved: it determines the report's column order.
func CompileSet(rs []Rule) ([]CompiledRule, error) {
	if len(rs) == 0 {
		return nil, &RuleError{Reason: "rule set is empty"}
	}
	seen := make(map[string]struct{}, len(rs))
	out := make([]CompiledRule, 0, len(rs))
	for _, r := range rs {
		cr, err := Compile(r)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[cr.Name]; dup {
			return nil, &RuleError{Name: cr.Name, Reason: "duplicate rule name"}
		}
		seen[cr.Name] = struct{}{}
		out = append(out, cr)
	}
	return out, nil
}

// Extract applies the rule's pattern to text and returns the first captured
// value, trimmed. The second return is false when the pattern does not match:
// an unmatched rule is an absent field, not an error.
func (r CompiledRule) Extract(text string) (string, bool) {
	m := r.re.FindStringSubmatch(text)
	if m == nil || len(m) < 2 {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// Names returns the rule names in set order.
func Names(rs []Rule) []string {
	names := make([]string, len(rs))
	for i, r := range rs {
		names[i] = r.Name
	}
	return names
}

// FieldNames returns the rule names in set order.
func FieldNames(rs []CompiledRule) []string {
	names := make([]string, len(rs))
	for i, r := range rs {
		names[i] = r.Name
	}
	return names
}
