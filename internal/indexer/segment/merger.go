package segment

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/jayc-10/corpusearch/internal/indexer/index"
	apperrors "github.com/jayc-10/corpusearch/pkg/errors"
)

// MergeStats summarises one merge pass.
type MergeStats struct {
	Terms           int
	SegmentsMerged  int
	SegmentsSkipped int
	IndexBytes      int64
}

// Merger combines segment files into the final index and lexicon.
type Merger struct {
	logger *slog.Logger
}

// NewMerger creates a Merger.
func NewMerger() *Merger {
	return &Merger{
		logger: slog.Default().With("component", "merger"),
	}
}

// Merge reads every segment, accumulates postings per term, and writes
// the final index (sorted JSONL) plus the term-to-byte-offset lexicon.
// An unreadable or corrupt segment is logged and skipped whole; its
// documents simply drop out of the final index. Segment files are
// removed after a successful merge.
func (m *Merger) Merge(segmentPaths []string, indexPath, lexiconPath string) (*MergeStats, error) {
	stats := &MergeStats{}
	table := make(map[string]index.PostingList)

	paths := append([]string(nil), segmentPaths...)
	sort.Strings(paths)
	for _, path := range paths {
		segTable, err := readSegment(path)
		if err != nil {
			m.logger.Warn("skipping unreadable segment",
				"segment", path,
				"error", err,
			)
			stats.SegmentsSkipped++
			continue
		}
		for term, postings := range segTable {
			table[term] = append(table[term], postings...)
		}
		stats.SegmentsMerged++
	}

	terms := make([]string, 0, len(table))
	for term := range table {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	lexicon := make(map[string]int64, len(terms))
	indexBytes, err := writeIndex(indexPath, terms, table, lexicon)
	if err != nil {
		return nil, err
	}
	stats.IndexBytes = indexBytes
	stats.Terms = len(terms)

	lexiconData, err := json.Marshal(lexicon)
	if err != nil {
		return nil, fmt.Errorf("marshaling lexicon: %w", err)
	}
	if err := writeFileAtomic(lexiconPath, lexiconData); err != nil {
		return nil, fmt.Errorf("writing lexicon: %w", err)
	}

	for _, path := range paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			m.logger.Warn("failed to remove merged segment",
				"segment", path,
				"error", err,
			)
		}
	}
	return stats, nil
}

// writeIndex streams the sorted term entries to a temp file, recording
// each term's starting byte offset, and renames into place. Returns the
// final file size.
func writeIndex(indexPath string, terms []string, table map[string]index.PostingList, lexicon map[string]int64) (int64, error) {
	tmpPath := indexPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("creating temp index file: %w", err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	var offset int64
	for _, term := range terms {
		postings := table[term]
		postings.Sort()
		line, err := json.Marshal(index.TermEntry{Term: term, Postings: postings})
		if err != nil {
			return 0, fmt.Errorf("marshaling index entry for term %q: %w", term, err)
		}
		lexicon[term] = offset
		if _, err := bw.Write(line); err != nil {
			return 0, fmt.Errorf("writing index entry for term %q: %w", term, err)
		}
		if err := bw.WriteByte('\n'); err != nil {
			return 0, fmt.Errorf("writing index entry for term %q: %w", term, err)
		}
		offset += int64(len(line)) + 1
	}
	if err := bw.Flush(); err != nil {
		return 0, fmt.Errorf("flushing index file: %w", err)
	}
	if err := f.Sync(); err != nil {
		return 0, fmt.Errorf("syncing index file: %w", err)
	}
	f.Close()
	if err := os.Rename(tmpPath, indexPath); err != nil {
		return 0, fmt.Errorf("renaming index file: %w", err)
	}
	return offset, nil
}

// readSegment parses one segment file into a posting table. Any read or
// parse error poisons the whole segment.
func readSegment(path string) (map[string]index.PostingList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening segment: %w", err)
	}
	defer f.Close()

	table := make(map[string]index.PostingList)
	br := bufio.NewReader(f)
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			var entry index.TermEntry
			if uerr := json.Unmarshal(line, &entry); uerr != nil {
				return nil, fmt.Errorf("%w: parsing line: %v", apperrors.ErrSegmentCorrupt, uerr)
			}
			table[entry.Term] = append(table[entry.Term], entry.Postings...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading segment: %w", err)
		}
	}
	return table, nil
}

// writeFileAtomic writes data to path via a temp file, fsync, and rename.
func writeFileAtomic(path string, data []byte) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing temp file: %w", err)
	}
	f.Close()
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
