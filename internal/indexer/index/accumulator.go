package index

// Accumulator collects postings for a batch of documents between segment
// spills. The builder drives it from a single goroutine, so it carries
// no locking; doc IDs must arrive in ascending order, which keeps every
// posting list sorted by construction.
type Accumulator struct {
	table map[string]PostingList
	docs  int
}

// NewAccumulator creates an empty Accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		table: make(map[string]PostingList),
	}
}

// Add records one document's term counts. body holds frequencies over
// the full text, important over title/heading/bold text only. A term
// appearing only in important markup still gets a posting, with TF zero.
func (a *Accumulator) Add(docID int, body, important map[string]int) {
	for term, tf := range body {
		a.table[term] = append(a.table[term], Posting{
			DocID:       docID,
			TF:          tf,
			TFImportant: important[term],
		})
	}
	for term, imp := range important {
		if _, inBody := body[term]; inBody {
			continue
		}
		a.table[term] = append(a.table[term], Posting{
			DocID:       docID,
			TFImportant: imp,
		})
	}
	a.docs++
}

// Docs returns the number of documents added since the last Drain.
func (a *Accumulator) Docs() int {
	return a.docs
}

// Terms returns the number of distinct terms currently held.
func (a *Accumulator) Terms() int {
	return len(a.table)
}

// Empty reports whether the accumulator holds no postings. A batch of
// documents that all tokenized to nothing leaves the accumulator empty
// even though Docs is non-zero.
func (a *Accumulator) Empty() bool {
	return len(a.table) == 0
}

// Drain returns the accumulated posting table and resets the
// accumulator for the next batch.
func (a *Accumulator) Drain() map[string]PostingList {
	table := a.table
	a.table = make(map[string]PostingList)
	a.docs = 0
	return table
}
