package resolver

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// LoadSubjectList reads subject ids, one per line, trimming whitespace and
// skipping blank lines. Order and duplicates are preserved.
func LoadSubjectList(r io.Reader) ([]string, error) {
	var ids []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		id := strings.TrimSpace(sc.Text())
		if id != "" {
			ids = append(ids, id)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read subject list: %w", err)
	}
	return ids, nil
}

// LoadSubjectListFile reads a subject list from a text file.
func LoadSubjectListFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open subject list: %w", err)
	}
	defer func() { _ = f.Close() }()
	return LoadSubjectList(f)
}
