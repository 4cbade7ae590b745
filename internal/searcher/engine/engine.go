// Package engine answers AND-boolean keyword queries against the
// on-disk index: normalize the query with the indexing tokenizer, fetch
// each term's posting list through the lexicon, intersect, score, rank,
// and resolve doc IDs back to URLs.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jayc-10/corpusearch/internal/indexer/diskindex"
	"github.com/jayc-10/corpusearch/internal/indexer/index"
	"github.com/jayc-10/corpusearch/internal/indexer/registry"
	"github.com/jayc-10/corpusearch/internal/indexer/tokenizer"
	"github.com/jayc-10/corpusearch/internal/searcher/ranker"
	"github.com/jayc-10/corpusearch/pkg/config"
	"github.com/jayc-10/corpusearch/pkg/tracing"
)

// Distinct no-match outcomes. These are results, not errors: the caller
// decides how to present each one.
const (
	NoMatchEmptyQuery   = "no_query_terms"
	NoMatchUnknownTerms = "terms_not_in_index"
	NoMatchIntersection = "no_document_matches_all_terms"
)

// Result is the answer to one query.
type Result struct {
	Query     string             `json:"query"`
	Terms     []string           `json:"terms"`
	TotalHits int                `json:"total_hits"`
	Results   []ranker.ScoredDoc `json:"results"`
	NoMatch   string             `json:"no_match,omitempty"`
	TermStats map[string]int     `json:"term_stats,omitempty"`
}

// Engine executes queries against one loaded index generation. Reload
// swaps in freshly built artifacts without interrupting readers.
type Engine struct {
	cfg    config.IndexConfig
	tok    *tokenizer.Tokenizer
	boost  float64
	logger *slog.Logger

	mu     sync.RWMutex
	reader *diskindex.Reader
	reg    *registry.Registry
}

// New opens the index, lexicon, and doc mapping at the configured
// paths. Missing artifacts are fatal: a searcher without an index has
// nothing to serve.
func New(cfg config.IndexConfig, tok *tokenizer.Tokenizer, boost float64) (*Engine, error) {
	e := &Engine{
		cfg:    cfg,
		tok:    tok,
		boost:  boost,
		logger: slog.Default().With("component", "query-engine"),
	}
	if err := e.Reload(); err != nil {
		return nil, err
	}
	return e, nil
}

// Reload reopens the on-disk artifacts and swaps them in atomically.
// In-flight queries finish against the generation they started with.
func (e *Engine) Reload() error {
	reader, err := diskindex.Open(e.cfg.IndexPath(), e.cfg.LexiconPath())
	if err != nil {
		return err
	}
	reg, err := registry.Load(e.cfg.DocMapPath())
	if err != nil {
		reader.Close()
		return err
	}

	e.mu.Lock()
	old := e.reader
	e.reader = reader
	e.reg = reg
	e.mu.Unlock()

	if old != nil {
		old.Close()
	}
	e.logger.Info("index loaded", "documents", reg.Len(), "terms", reader.Terms())
	return nil
}

// Search runs one query and returns up to limit ranked results.
func (e *Engine) Search(ctx context.Context, query string, limit int) (*Result, error) {
	_, span := tracing.StartChildSpan(ctx, "search")
	defer span.End()
	span.SetAttr("query", query)

	terms := dedupe(e.tok.Tokenize(query))
	res := &Result{
		Query:   query,
		Terms:   terms,
		Results: []ranker.ScoredDoc{},
	}
	if len(terms) == 0 {
		res.NoMatch = NoMatchEmptyQuery
		return res, nil
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	postingsPerTerm := make(map[string]index.PostingList, len(terms))
	termStats := make(map[string]int, len(terms))
	lists := make([]index.PostingList, 0, len(terms))
	for _, term := range terms {
		postings, err := e.reader.Lookup(term)
		if err != nil {
			return nil, fmt.Errorf("looking up term %q: %w", term, err)
		}
		termStats[term] = len(postings)
		if len(postings) == 0 {
			// Absent terms drop out of the AND rather than
			// forcing an empty result.
			continue
		}
		postingsPerTerm[term] = postings
		lists = append(lists, postings)
	}
	res.TermStats = termStats
	if len(lists) == 0 {
		res.NoMatch = NoMatchUnknownTerms
		return res, nil
	}

	survivors := intersect(lists)
	if len(survivors) == 0 {
		res.NoMatch = NoMatchIntersection
		return res, nil
	}

	// Restrict each term's postings to the survivors before scoring:
	// df then counts the intersected candidate set, not the corpus.
	surviving := make(map[int]struct{}, len(survivors))
	for _, p := range survivors {
		surviving[p.DocID] = struct{}{}
	}
	filtered := make(map[string]index.PostingList, len(postingsPerTerm))
	for term, postings := range postingsPerTerm {
		keep := make(index.PostingList, 0, len(surviving))
		for _, p := range postings {
			if _, ok := surviving[p.DocID]; ok {
				keep = append(keep, p)
			}
		}
		filtered[term] = keep
	}

	ranked := ranker.Rank(filtered, e.reg.Len(), e.boost, limit)
	for i := range ranked {
		ranked[i].URL = e.resolveURL(ranked[i].DocID)
	}
	res.TotalHits = len(survivors)
	res.Results = ranked

	span.SetAttr("candidates", len(survivors))
	span.SetAttr("results", len(ranked))
	e.logger.Debug("query executed",
		"query", query,
		"terms", terms,
		"candidates", len(survivors),
		"returned", len(ranked),
	)
	return res, nil
}

// Stats returns the loaded generation's document and term counts.
func (e *Engine) Stats() (docs, terms int) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.reg.Len(), e.reader.Terms()
}

// Close releases the index file handle.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.reader == nil {
		return nil
	}
	err := e.reader.Close()
	e.reader = nil
	return err
}

// resolveURL maps a doc ID through the registry. An out-of-bounds ID
// gets a placeholder instead of failing the query.
func (e *Engine) resolveURL(docID int) string {
	url, ok := e.reg.URL(docID)
	if !ok {
		return fmt.Sprintf("<doc %d>", docID)
	}
	return url
}

// dedupe drops repeated terms, keeping first-occurrence order.
func dedupe(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
