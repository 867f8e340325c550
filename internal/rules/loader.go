package rules

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ruleSetSchema constrains rule files before any pattern is compiled, so a
// structurally broken file is reported against the file, not mid-parse.
const ruleSetSchema = `{
  "type": "array",
  "minItems": 1,
  "items": {
    "type": "object",
    "required": ["name", "pattern"],
    "properties": {
      "name": {"type": "string", "minLength": 1},
      "pattern": {"type": "string", "minLength": 1},
      "transform": {"enum": ["none", "age_round", "gender_turkish"]}
    },
    "additionalProperties": false
  }
}`

// DefaultRules is the rule set used when no rules file is supplied.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "Age", Pattern: `Age\s*:\s*([\d.]+)`, Transform: TransformAgeRound},
		{Name: "Gender", Pattern: `Gender\s*:\s*(\w+)`, Transform: TransformGenderTurkish},
		{Name: "Date of Test", Pattern: `(?:Date of Test|Test Date|Date)\s*:\s*([\d\-\/\.]+)`, Transform: TransformNone},
		{Name: "Clinician", Pattern: `(?:Clinician|Doctor|Physician|Dr\.)\s*:?\s*([A-Za-z\s\.]+)`, Transform: TransformNone},
	}
}

// ParseRules validates raw JSON against the rule-set schema and decodes it.
// Pattern compilation happens later in CompileSet.
func ParseRules(data []byte) ([]Rule, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("rules.json", strings.NewReader(ruleSetSchema)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("rules.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return nil, fmt.Errorf("rules file does not match schema: %w", err)
	}
	var rs []Rule
	if err := json.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	return rs, nil
}

// LoadRulesFile reads and parses a rule set from path. An empty path yields
// the built-in defaults.
func LoadRulesFile(path string) ([]Rule, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return ParseRules(data)
}

// SaveRulesFile writes a rule set as indented JSON, the same shape
// ParseRules accepts.
func SaveRulesFile(path string, rs []Rule) error {
	data, err := json.MarshalIndent(rs, "", "    ")
	if err != nil {
		return fmt.Errorf("encode rules: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write rules file: %w", err)
	}
	return nil
}
