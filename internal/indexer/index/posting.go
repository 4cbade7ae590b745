// Package index defines the posting model shared by the builder and the
// search path, plus the in-memory accumulator that collects postings
// between segment spills.
package index

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Posting records one document's occurrence counts for a term. TF counts
// occurrences in the body text; TFImportant counts occurrences inside
// title, heading, and bold markup.
type Posting struct {
	DocID       int
	TF          int
	TFImportant int
}

// MarshalJSON serialises the posting as a [doc_id, tf, tf_important]
// array, the on-disk form used by segments and the final index.
func (p Posting) MarshalJSON() ([]byte, error) {
	buf := make([]byte, 0, 24)
	buf = append(buf, '[')
	buf = strconv.AppendInt(buf, int64(p.DocID), 10)
	buf = append(buf, ',')
	buf = strconv.AppendInt(buf, int64(p.TF), 10)
	buf = append(buf, ',')
	buf = strconv.AppendInt(buf, int64(p.TFImportant), 10)
	buf = append(buf, ']')
	return buf, nil
}

// UnmarshalJSON parses the [doc_id, tf, tf_important] array form. Arrays
// of any other length are rejected so that truncated records surface as
// errors instead of silently zeroed fields.
func (p *Posting) UnmarshalJSON(data []byte) error {
	var fields []int
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if len(fields) != 3 {
		return fmt.Errorf("posting has %d fields, want 3", len(fields))
	}
	p.DocID = fields[0]
	p.TF = fields[1]
	p.TFImportant = fields[2]
	return nil
}

// PostingList is a list of postings for one term, kept sorted by DocID.
type PostingList []Posting

// Sort orders the list by DocID ascending.
func (pl PostingList) Sort() {
	sort.Slice(pl, func(i, j int) bool {
		return pl[i].DocID < pl[j].DocID
	})
}

// TermEntry is one line of a segment or of the final index file.
type TermEntry struct {
	Term     string      `json:"term"`
	Postings PostingList `json:"postings"`
}
