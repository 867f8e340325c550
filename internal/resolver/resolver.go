// Package resolver locates, for each subject on the work list, the subject's
// folder under the root and the best-matching target file inside it.
//
// The expected layout, as produced by the clinic's scanning workflow, is
//
//	<root>/<SubjectID>_<Patient Name>/<1|2|3|...>/<scanned files>
//
// Resolution is deterministic and order-stable: it never depends on
// filesystem enumeration order.
package resolver

import (
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
)

// Diagnostic reasons attached to unresolved subjects.
const (
	ReasonFolderNotFound = "subject folder not found"
	ReasonFileNotFound   = "target file not found in any sub-folder"
)

// Subject is one work-list entry plus its resolution outcome. Resolution
// fields stay zero when Reason is set; a Subject is never mutated afterward.
type Subject struct {
	ID          string
	PatientName string
	FolderPath  string // slash-separated, relative to the root fs
	FilePath    string // slash-separated, relative to the root fs
	SubFolder   int    // numbered sub-folder that supplied the match
	Reason      string // non-empty when no target file was resolved
}

// Resolved reports whether a target file was found for this subject.
func (s Subject) Resolved() bool { return s.FilePath != "" }

// Resolver walks a filesystem capability, so tests can run against an
// in-memory fs (fstest.MapFS) instead of real disk.
type Resolver struct {
	fsys   fs.FS
	logger *slog.Logger
}

func New(fsys fs.FS, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{fsys: fsys, logger: logger}
}

// Resolve maps each subject id, in order, to its target file. Duplicated ids
// are resolved independently and each keeps its own position. targetPattern
// supports `*`/`?` wildcards and matches file names case-insensitively.
func (r *Resolver) Resolve(subjectIDs []string, targetPattern string) ([]Subject, error) {
	folders, err := r.subjectFolders()
	if err != nil {
		return nil, err
	}

	out := make([]Subject, 0, len(subjectIDs))
	for _, id := range subjectIDs {
		out = append(out, r.resolveOne(folders, id, targetPattern))
	}
	return out, nil
}

func (r *Resolver) resolveOne(folders []string, id, targetPattern string) Subject {
	s := Subject{ID: id}

	folder, ok := matchFolder(folders, id)
	if !ok {
		s.Reason = ReasonFolderNotFound
		r.logger.Debug("subject folder not found", "subject_id", id)
		return s
	}
	s.FolderPath = folder
	_, s.PatientName = ParseFolderName(folder)

	subs, err := r.numberedSubFolders(folder)
	if err != nil || len(subs) == 0 {
		s.Reason = ReasonFileNotFound
		return s
	}
	for _, sub := range subs {
		file, ok := r.matchFile(path.Join(folder, strconv.Itoa(sub)), targetPattern)
		if ok {
			s.SubFolder = sub
			s.FilePath = path.Join(folder, strconv.Itoa(sub), file)
			return s
		}
	}
	s.Reason = ReasonFileNotFound
	return s
}

// subjectFolders lists top-level directory names, sorted, so folder matching
// is stable across platforms.
func (r *Resolver) subjectFolders() ([]string, error) {
	entries, err := fs.ReadDir(r.fsys, ".")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// matchFolder picks the first folder (lexicographically) whose name contains
// the subject id, case-insensitively.
func matchFolder(folders []string, id string) (string, bool) {
	needle := strings.ToLower(strings.TrimSpace(id))
	if needle == "" {
		return "", false
	}
	for _, name := range folders {
		if strings.Contains(strings.ToLower(name), needle) {
			return name, true
		}
	}
	return "", false
}

// numberedSubFolders returns the numeric sub-folder indices in ascending
// numeric order (2 before 10).
func (r *Resolver) numberedSubFolders(folder string) ([]int, error) {
	entries, err := fs.ReadDir(r.fsys, folder)
	if err != nil {
		return nil, err
	}
	var nums []int
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if n, err := strconv.Atoi(e.Name()); err == nil && n >= 0 {
			nums = append(nums, n)
		}
	}
	sort.Ints(nums)
	return nums, nil
}

// matchFile returns the first file in dir (sorted by name) whose name
// matches the wildcard pattern, case-insensitively.
func (r *Resolver) matchFile(dir, pattern string) (string, bool) {
	entries, err := fs.ReadDir(r.fsys, dir)
	if err != nil {
		return "", false
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	lowered := strings.ToLower(pattern)
	for _, name := range names {
		if ok, err := path.Match(lowered, strings.ToLower(name)); err == nil && ok {
			return name, true
		}
	}
	return "", false
}

// ParseFolderName splits a folder named "SubjectID_PatientName" into its
// parts. Runs of whitespace inside the name collapse to single spaces; a
// folder with no underscore is all subject id.
func ParseFolderName(name string) (id, patientName string) {
	base := path.Base(name)
	i := strings.Index(base, "_")
	if i < 0 {
		return strings.TrimSpace(base), ""
	}
	id = strings.TrimSpace(base[:i])
	patientName = strings.Join(strings.Fields(base[i+1:]), " ")
	return id, patientName
}
