package engine

import (
	"sort"

	"github.com/jayc-10/corpusearch/internal/indexer/index"
)

// intersect returns the documents present in every posting list, with
// body and important frequencies summed across lists. Lists must be
// sorted by doc_id ascending; the result is too. Shorter lists are
// merged first so the candidate set only ever shrinks.
func intersect(lists []index.PostingList) index.PostingList {
	if len(lists) == 0 {
		return nil
	}
	sort.Slice(lists, func(i, j int) bool {
		return len(lists[i]) < len(lists[j])
	})
	acc := append(index.PostingList(nil), lists[0]...)
	for _, next := range lists[1:] {
		acc = mergeJoin(acc, next)
		if len(acc) == 0 {
			break
		}
	}
	return acc
}

// mergeJoin walks two sorted lists in lockstep, keeping only documents
// present in both and summing their frequencies.
func mergeJoin(a, b index.PostingList) index.PostingList {
	out := make(index.PostingList, 0, min(len(a), len(b)))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].DocID < b[j].DocID:
			i++
		case a[i].DocID > b[j].DocID:
			j++
		default:
			out = append(out, index.Posting{
				DocID:       a[i].DocID,
				TF:          a[i].TF + b[j].TF,
				TFImportant: a[i].TFImportant + b[j].TFImportant,
			})
			i++
			j++
		}
	}
	return out
}
