// Package tokenizer provides text tokenisation for the search engine.
// Terms are maximal runs of ASCII letters and digits, lower-cased. The
// same Tokenizer instance must be used at index time and at query time,
// otherwise query terms will not line up with indexed terms.
package tokenizer

import (
	"github.com/blevesearch/go-porterstemmer"
)

// Tokenizer normalises raw text into index terms. An index built with
// stemming can only be queried through a Tokenizer configured the same
// way.
type Tokenizer struct {
	stem bool
}

// New creates a Tokenizer. When stem is true, every term is passed
// through the Porter stemmer after normalisation.
func New(stem bool) *Tokenizer {
	return &Tokenizer{stem: stem}
}

// Tokenize splits text into normalised terms in order of appearance,
// duplicates included. Uppercase ASCII is folded to lowercase; every
// byte outside [a-z0-9] is a separator, so punctuation, whitespace, and
// non-ASCII characters all break terms.
func (t *Tokenizer) Tokenize(text string) []string {
	terms := make([]string, 0, len(text)/8)
	var run []byte
	for i := 0; i < len(text); i++ {
		c := text[i]
		if 'A' <= c && c <= 'Z' {
			c += 'a' - 'A'
		}
		if ('a' <= c && c <= 'z') || ('0' <= c && c <= '9') {
			run = append(run, c)
			continue
		}
		if len(run) > 0 {
			terms = append(terms, t.finish(run))
			run = run[:0]
		}
	}
	if len(run) > 0 {
		terms = append(terms, t.finish(run))
	}
	return terms
}

// Counts returns the term frequency table for text.
func (t *Tokenizer) Counts(text string) map[string]int {
	terms := t.Tokenize(text)
	if len(terms) == 0 {
		return nil
	}
	counts := make(map[string]int, len(terms))
	for _, term := range terms {
		counts[term]++
	}
	return counts
}

func (t *Tokenizer) finish(run []byte) string {
	if t.stem {
		return porterstemmer.StemString(string(run))
	}
	return string(run)
}
