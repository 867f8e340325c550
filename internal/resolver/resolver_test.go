package resolver

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"SUBJ001_Smith/1/other.txt":       {Data: []byte("x")},
		"SUBJ001_Smith/2/report.jpg":      {Data: []byte("x")},
		"SUBJ002_Jones  Jr/1/report.pdf":  {Data: []byte("x")},
		"SUBJ002_Jones  Jr/notes.txt":     {Data: []byte("x")},
		"SUBJ003_Brown/misc/report.jpg":   {Data: []byte("x")}, // non-numeric sub-folder: ignored
		"SUBJ010_Tan/2/A_RAPOR_01.jpg":    {Data: []byte("x")},
		"SUBJ010_Tan/10/A_RAPOR_02.jpg":   {Data: []byte("x")},
		"unrelated-folder/1/report.jpg":   {Data: []byte("x")},
		"SUBJ011_Kaya/3/a_rapor_full.JPG": {Data: []byte("x")},
	}
}

func TestResolveLowestSubFolderWins(t *testing.T) {
	r := New(testFS(), nil)

	subs, err := r.Resolve([]string{"SUBJ001"}, "report.*")
	require.NoError(t, err)
	require.Len(t, subs, 1)

	s := subs[0]
	require.True(t, s.Resolved())
	assert.Equal(t, "SUBJ001_Smith/2/report.jpg", s.FilePath)
	assert.Equal(t, 2, s.SubFolder)
	assert.Equal(t, "Smith", s.PatientName)
}

func TestResolveNumericSubFolderOrder(t *testing.T) {
	// sub-folder 2 must beat sub-folder 10 (numeric, not lexicographic order)
	r := New(testFS(), nil)

	subs, err := r.Resolve([]string{"SUBJ010"}, "A_RAPOR_*.jpg")
	require.NoError(t, err)
	require.True(t, subs[0].Resolved())
	assert.Equal(t, 2, subs[0].SubFolder)
	assert.Equal(t, "SUBJ010_Tan/2/A_RAPOR_01.jpg", subs[0].FilePath)
}

func TestResolveCaseInsensitiveMatching(t *testing.T) {
	r := New(testFS(), nil)

	// folder substring match and file pattern match are both case-insensitive
	subs, err := r.Resolve([]string{"subj011"}, "A_RAPOR_*.jpg")
	require.NoError(t, err)
	require.True(t, subs[0].Resolved())
	assert.Equal(t, "SUBJ011_Kaya/3/a_rapor_full.JPG", subs[0].FilePath)
}

func TestResolveDiagnostics(t *testing.T) {
	r := New(testFS(), nil)

	subs, err := r.Resolve([]string{"SUBJ999", "SUBJ003"}, "report.*")
	require.NoError(t, err)
	require.Len(t, subs, 2)

	assert.False(t, subs[0].Resolved())
	assert.Equal(t, ReasonFolderNotFound, subs[0].Reason)

	// SUBJ003 has a folder, but its only match sits in a non-numeric sub-folder
	assert.False(t, subs[1].Resolved())
	assert.Equal(t, ReasonFileNotFound, subs[1].Reason)
}

func TestResolvePreservesOrderAndDuplicates(t *testing.T) {
	r := New(testFS(), nil)

	subs, err := r.Resolve([]string{"SUBJ002", "SUBJ001", "SUBJ002"}, "report.*")
	require.NoError(t, err)
	require.Len(t, subs, 3)
	assert.Equal(t, "SUBJ002", subs[0].ID)
	assert.Equal(t, "SUBJ001", subs[1].ID)
	assert.Equal(t, "SUBJ002", subs[2].ID)
	assert.Equal(t, subs[0].FilePath, subs[2].FilePath)
}

func TestParseFolderName(t *testing.T) {
	tests := []struct {
		in       string
		wantID   string
		wantName string
	}{
		{"SUBJ001_Smith", "SUBJ001", "Smith"},
		{"001_Name  Surname", "001", "Name Surname"}, // runs of spaces collapse
		{"PLAIN", "PLAIN", ""},
		{"SUBJ_Ali_Veli", "SUBJ", "Ali_Veli"},
	}
	for _, tt := range tests {
		id, name := ParseFolderName(tt.in)
		assert.Equal(t, tt.wantID, id, tt.in)
		assert.Equal(t, tt.wantName, name, tt.in)
	}
}

func TestLoadSubjectList(t *testing.T) {
	in := "SUBJ001\n\n  SUBJ002  \nSUBJ001\n\t\n"
	ids, err := LoadSubjectList(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []string{"SUBJ001", "SUBJ002", "SUBJ001"}, ids)
}
