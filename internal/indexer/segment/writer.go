// Package segment handles the on-disk segment lifecycle: spilling
// in-memory posting tables to JSONL segment files and merging those
// segments into the final index plus its byte-offset lexicon.
package segment

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/jayc-10/corpusearch/internal/indexer/index"
)

// Writer serialises posting tables into new segment files. One line per
// term, terms sorted, postings sorted by doc ID.
type Writer struct {
	dir string
}

// NewWriter creates a Writer that writes segments into dir.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// Write atomically creates segment number seq from the given posting
// table. It writes to a .tmp file first and renames on success,
// returning the final path.
func (w *Writer) Write(seq int, table map[string]index.PostingList) (string, error) {
	if len(table) == 0 {
		return "", fmt.Errorf("cannot write empty segment")
	}
	finalPath := filepath.Join(w.dir, fmt.Sprintf("seg_%05d.jsonl", seq))
	tmpPath := finalPath + ".tmp"

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", fmt.Errorf("creating segment directory: %w", err)
	}
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating temp segment file: %w", err)
	}
	defer f.Close()

	terms := make([]string, 0, len(table))
	for term := range table {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	bw := bufio.NewWriter(f)
	for _, term := range terms {
		postings := table[term]
		postings.Sort()
		line, err := json.Marshal(index.TermEntry{Term: term, Postings: postings})
		if err != nil {
			return "", fmt.Errorf("marshaling postings for term %q: %w", term, err)
		}
		if _, err := bw.Write(line); err != nil {
			return "", fmt.Errorf("writing postings for term %q: %w", term, err)
		}
		if err := bw.WriteByte('\n'); err != nil {
			return "", fmt.Errorf("writing postings for term %q: %w", term, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return "", fmt.Errorf("flushing segment file: %w", err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("syncing segment file: %w", err)
	}
	f.Close()
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("renaming segment file: %w", err)
	}
	return finalPath, nil
}
