package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRules(t *testing.T) {
	data := []byte(`[
  {"name": "Age", "pattern": "Age\\s*:\\s*([\\d.]+)", "transform": "age_round"},
  {"name": "Gender", "pattern": "Gender\\s*:\\s*(\\w+)", "transform": "gender_turkish"},
  {"name": "Protocol", "pattern": "Protocol\\s*:\\s*(\\S+)"}
]`)
	rs, err := ParseRules(data)
	require.NoError(t, err)
	require.Len(t, rs, 3)
	assert.Equal(t, "Age", rs[0].Name)
	assert.Equal(t, TransformAgeRound, rs[0].Transform)
	assert.Equal(t, Transform(""), rs[2].Transform)

	// the parsed set must also compile
	_, err = CompileSet(rs)
	require.NoError(t, err)
}

func TestParseRulesSchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not an array", `{"name": "Age"}`},
		{"empty array", `[]`},
		{"missing pattern", `[{"name": "Age"}]`},
		{"missing name", `[{"pattern": "(\\d+)"}]`},
		{"bad transform", `[{"name": "Age", "pattern": "(\\d+)", "transform": "shout"}]`},
		{"unknown key", `[{"name": "Age", "pattern": "(\\d+)", "color": "red"}]`},
		{"not json", `name = Age`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRules([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestLoadRulesFileDefaults(t *testing.T) {
	rs, err := LoadRulesFile("")
	require.NoError(t, err)
	assert.Equal(t, DefaultRules(), rs)

	_, err = LoadRulesFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	require.NoError(t, SaveRulesFile(path, DefaultRules()))

	_, err := os.Stat(path)
	require.NoError(t, err)

	rs, err := LoadRulesFile(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultRules(), rs)
}
