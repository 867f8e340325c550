package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metanome/cde/constants"
	"github.com/metanome/cde/internal/rules"
	"github.com/metanome/cde/internal/textsource"
)

// fakeExtractor serves canned text per file path.
type fakeExtractor struct {
	mu    sync.Mutex
	texts map[string]string // path -> text
	errs  map[string]error  // path -> error
	calls int
	hook  func(path string) // invoked before each extraction
}

func (f *fakeExtractor) Extract(_ context.Context, path string) (textsource.Result, error) {
	f.mu.Lock()
	f.calls++
	hook := f.hook
	f.mu.Unlock()
	if hook != nil {
		hook(path)
	}
	if err, ok := f.errs[path]; ok {
		return textsource.Result{}, err
	}
	return textsource.Result{Text: f.texts[path], Method: "image-ocr"}, nil
}

func testRules() []rules.Rule {
	return []rules.Rule{
		{Name: "Age", Pattern: `Age\s*:\s*([\d.]+)`, Transform: rules.TransformAgeRound},
		{Name: "Gender", Pattern: `Gender\s*:\s*(\w+)`, Transform: rules.TransformGenderTurkish},
	}
}

func testTreeFS() fstest.MapFS {
	fsys := fstest.MapFS{}
	for i := 1; i <= 6; i++ {
		fsys[fmt.Sprintf("S%03d_Name%d/1/report.jpg", i, i)] = &fstest.MapFile{Data: []byte("x")}
	}
	return fsys
}

func newTestEngine(ts TextExtractor, fsys fstest.MapFS) *Engine {
	return NewWithFS(ts, rules.NewTransformer(nil), nil, fsys)
}

func TestRunOneRecordPerSubjectInOrder(t *testing.T) {
	fsys := testTreeFS()
	ts := &fakeExtractor{texts: map[string]string{}}
	ids := make([]string, 0, 6)
	for i := 1; i <= 6; i++ {
		ids = append(ids, fmt.Sprintf("S%03d", i))
		ts.texts[fmt.Sprintf("S%03d_Name%d/1/report.jpg", i, i)] = fmt.Sprintf("Age: %d.7\nGender: Erkek\n", 20+i)
	}

	e := newTestEngine(ts, fsys)
	records, err := e.Run(context.Background(), Request{
		SubjectIDs:    ids,
		TargetPattern: "report.*",
		Rules:         testRules(),
		Workers:       4, // concurrent completion must not reorder results
	}, nil)
	require.NoError(t, err)
	require.Len(t, records, len(ids))

	for i, rec := range records {
		assert.Equal(t, ids[i], rec.SubjectID)
		assert.Equal(t, constants.StatusSuccess, rec.Status)
		assert.Equal(t, fmt.Sprintf("%d", 21+i), rec.Fields["Age"])
		assert.Equal(t, "Male", rec.Fields["Gender"])
	}
}

func TestRunStatuses(t *testing.T) {
	fsys := fstest.MapFS{
		"S001_A/1/report.jpg": {Data: []byte("x")},
		"S002_B/1/report.jpg": {Data: []byte("x")},
		"S003_C/1/report.jpg": {Data: []byte("x")},
		"S004_D/1/report.jpg": {Data: []byte("x")},
	}
	ts := &fakeExtractor{
		texts: map[string]string{
			"S001_A/1/report.jpg": "Age: 30.51\nGender: Kadın\n", // all fields -> success
			"S002_B/1/report.jpg": "Age: 41\n",                   // one field -> partial
			"S003_C/1/report.jpg": "nothing relevant here",       // no fields -> partial with reason
		},
		errs: map[string]error{
			"S004_D/1/report.jpg": errors.New("corrupt image"), // adapter failure -> failed
		},
	}

	e := newTestEngine(ts, fsys)
	records, err := e.Run(context.Background(), Request{
		SubjectIDs:    []string{"S001", "S002", "S003", "S004", "S005"},
		TargetPattern: "report.*",
		Rules:         testRules(),
		Workers:       2,
	}, nil)
	require.NoError(t, err)
	require.Len(t, records, 5)

	assert.Equal(t, constants.StatusSuccess, records[0].Status)
	assert.Equal(t, "31", records[0].Fields["Age"])
	assert.Equal(t, "Female", records[0].Fields["Gender"])

	assert.Equal(t, constants.StatusPartial, records[1].Status)
	assert.Empty(t, records[1].Reason)

	assert.Equal(t, constants.StatusPartial, records[2].Status)
	assert.Equal(t, "no rules matched", records[2].Reason)

	assert.Equal(t, constants.StatusFailed, records[3].Status)
	assert.Contains(t, records[3].Reason, "corrupt image")
	assert.Empty(t, records[3].Fields)

	// S005 has no folder at all
	assert.Equal(t, constants.StatusFailed, records[4].Status)
	assert.Equal(t, "subject folder not found", records[4].Reason)
	assert.Empty(t, records[4].Fields)
}

func TestRunTransformFailureDegradesFieldOnly(t *testing.T) {
	fsys := fstest.MapFS{"S001_A/1/report.jpg": {Data: []byte("x")}}
	ts := &fakeExtractor{texts: map[string]string{
		"S001_A/1/report.jpg": "Age: unknown\nGender: Erkek\n",
	}}

	e := newTestEngine(ts, fsys)
	records, err := e.Run(context.Background(), Request{
		SubjectIDs:    []string{"S001"},
		TargetPattern: "report.*",
		Rules: []rules.Rule{
			{Name: "Age", Pattern: `Age\s*:\s*(\S+)`, Transform: rules.TransformAgeRound},
			{Name: "Gender", Pattern: `Gender\s*:\s*(\w+)`, Transform: rules.TransformGenderTurkish},
		},
	}, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, constants.StatusPartial, rec.Status)
	assert.NotContains(t, rec.Fields, "Age")
	assert.Equal(t, "Male", rec.Fields["Gender"])
	assert.Contains(t, rec.FieldNotes["Age"], "not a number")
}

func TestRunFailsFastOnBadRule(t *testing.T) {
	ts := &fakeExtractor{}
	e := newTestEngine(ts, testTreeFS())

	_, err := e.Run(context.Background(), Request{
		SubjectIDs:    []string{"S001"},
		TargetPattern: "report.*",
		Rules:         []rules.Rule{{Name: "Broken", Pattern: `no capture group`}},
	}, nil)
	require.Error(t, err)

	var rerr *rules.RuleError
	assert.ErrorAs(t, err, &rerr)
	assert.Zero(t, ts.calls, "no extraction work before rule validation")
}

func TestRunProgressEvents(t *testing.T) {
	fsys := testTreeFS()
	ts := &fakeExtractor{texts: map[string]string{}}
	ids := []string{"S001", "S002", "S003"}
	for i, id := range ids {
		ts.texts[fmt.Sprintf("%s_Name%d/1/report.jpg", id, i+1)] = "Age: 30\nGender: E\n"
	}

	var mu sync.Mutex
	var events []Event
	sink := ProgressFunc(func(e Event) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})

	e := newTestEngine(ts, fsys)
	_, err := e.Run(context.Background(), Request{
		SubjectIDs:    ids,
		TargetPattern: "report.*",
		Rules:         testRules(),
		Workers:       3,
	}, sink)
	require.NoError(t, err)
	require.Len(t, events, 3)

	// running totals are monotonic even though events arrive out of order
	seen := map[string]bool{}
	for i, ev := range events {
		assert.Equal(t, 3, ev.Totals.Total)
		assert.Equal(t, i+1, ev.Totals.Done)
		seen[ev.SubjectID] = true
	}
	assert.Len(t, seen, 3)
	last := events[2].Totals
	assert.Equal(t, last.Done, last.Succeeded+last.Partial+last.Failed)
}

func TestRunCancellation(t *testing.T) {
	fsys := testTreeFS()
	ctx, cancel := context.WithCancel(context.Background())

	ts := &fakeExtractor{texts: map[string]string{}}
	for i := 1; i <= 6; i++ {
		ts.texts[fmt.Sprintf("S%03d_Name%d/1/report.jpg", i, i)] = "Age: 30\nGender: E\n"
	}
	// cancel while the second subject is in flight; with one worker the
	// remaining four must never start
	ts.hook = func(path string) {
		if path == "S002_Name2/1/report.jpg" {
			cancel()
		}
	}

	ids := []string{"S001", "S002", "S003", "S004", "S005", "S006"}
	e := newTestEngine(ts, fsys)
	records, err := e.Run(ctx, Request{
		SubjectIDs:    ids,
		TargetPattern: "report.*",
		Rules:         testRules(),
		Workers:       1,
	}, nil)
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, records, 2)

	for i, rec := range records {
		assert.Equal(t, ids[i], rec.SubjectID)
		assert.Equal(t, constants.StatusSuccess, rec.Status)
		assert.Equal(t, "30", rec.Fields["Age"])
	}
	assert.LessOrEqual(t, ts.calls, 3)
}

func TestRunValidatesRequest(t *testing.T) {
	e := New(&fakeExtractor{}, nil, nil)

	_, err := e.Run(context.Background(), Request{SubjectIDs: []string{"S1"}, TargetPattern: "*"}, nil)
	assert.Error(t, err) // no root

	e = newTestEngine(&fakeExtractor{}, testTreeFS())
	_, err = e.Run(context.Background(), Request{TargetPattern: "*", Rules: testRules()}, nil)
	assert.Error(t, err) // no subjects

	_, err = e.Run(context.Background(), Request{SubjectIDs: []string{"S1"}, Rules: testRules()}, nil)
	assert.Error(t, err) // no pattern
}
