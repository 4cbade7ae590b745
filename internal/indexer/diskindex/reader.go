// Package diskindex reads the final merged index through its lexicon.
// The lexicon (term to byte offset) lives in memory; posting lists stay
// on disk and are fetched with a seek plus a single line read, so memory
// use is independent of index size.
package diskindex

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/jayc-10/corpusearch/internal/indexer/index"
	apperrors "github.com/jayc-10/corpusearch/pkg/errors"
)

// Reader serves posting-list lookups against one index/lexicon pair.
// The file handle is shared, so Lookup serialises seek+read under a
// mutex.
type Reader struct {
	mu          sync.Mutex
	indexPath   string
	lexiconPath string
	file        *os.File
	br          *bufio.Reader
	lexicon     map[string]int64
}

// Open loads the lexicon into memory and opens the index file. Both
// files must exist; a missing artifact is a startup error, not a
// recoverable one.
func Open(indexPath, lexiconPath string) (*Reader, error) {
	lexData, err := os.ReadFile(lexiconPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrLexiconNotFound, lexiconPath)
		}
		return nil, fmt.Errorf("reading lexicon %s: %w", lexiconPath, err)
	}
	var lexicon map[string]int64
	if err := json.Unmarshal(lexData, &lexicon); err != nil {
		return nil, fmt.Errorf("parsing lexicon %s: %w", lexiconPath, err)
	}

	f, err := os.Open(indexPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrIndexNotFound, indexPath)
		}
		return nil, fmt.Errorf("opening index %s: %w", indexPath, err)
	}

	return &Reader{
		indexPath:   indexPath,
		lexiconPath: lexiconPath,
		file:        f,
		br:          bufio.NewReader(f),
		lexicon:     lexicon,
	}, nil
}

// Lookup returns the posting list for term, or nil with no error when
// the term is not in the lexicon.
func (r *Reader) Lookup(term string) (index.PostingList, error) {
	offset, ok := r.lexicon[term]
	if !ok {
		return nil, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.file.Seek(offset, 0); err != nil {
		return nil, fmt.Errorf("seeking to term %q at offset %d: %w", term, offset, err)
	}
	r.br.Reset(r.file)
	line, err := r.br.ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return nil, fmt.Errorf("reading term %q at offset %d: %w", term, offset, err)
	}

	var entry index.TermEntry
	if err := json.Unmarshal(line, &entry); err != nil {
		return nil, fmt.Errorf("parsing index line for term %q: %w", term, err)
	}
	if entry.Term != term {
		return nil, fmt.Errorf("lexicon offset %d for %q points at %q: index and lexicon out of sync", offset, term, entry.Term)
	}
	return entry.Postings, nil
}

// Contains reports whether the lexicon has an entry for term.
func (r *Reader) Contains(term string) bool {
	_, ok := r.lexicon[term]
	return ok
}

// Terms returns the number of distinct terms in the lexicon.
func (r *Reader) Terms() int {
	return len(r.lexicon)
}

// Paths returns the index and lexicon paths this Reader was opened with.
func (r *Reader) Paths() (indexPath, lexiconPath string) {
	return r.indexPath, r.lexiconPath
}

// Close releases the index file handle.
func (r *Reader) Close() error {
	return r.file.Close()
}
