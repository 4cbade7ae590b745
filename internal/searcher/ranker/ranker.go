// Package ranker scores and orders the documents surviving an AND
// intersection.
package ranker

import (
	"math"
	"sort"

	"github.com/jayc-10/corpusearch/internal/indexer/index"
)

// ScoredDoc is one ranked result. URL is resolved by the caller from
// the doc mapping after ranking.
type ScoredDoc struct {
	DocID int     `json:"doc_id"`
	URL   string  `json:"url"`
	Score float64 `json:"score"`
}

// Rank scores every document in postingsPerTerm and returns them sorted
// by score descending, doc_id ascending on ties. The lists must already
// be restricted to the intersection survivors, so each term's document
// frequency reflects the intersected candidate set rather than the full
// corpus. totalDocs is the registry size, boost the importance
// multiplier applied to frequencies from titles and headings. limit
// truncates the result when positive.
func Rank(postingsPerTerm map[string]index.PostingList, totalDocs int, boost float64, limit int) []ScoredDoc {
	scores := make(map[int]float64)
	for _, postings := range postingsPerTerm {
		idf := computeIDF(totalDocs, len(postings))
		for _, p := range postings {
			weight := float64(p.TF) + boost*float64(p.TFImportant)
			if weight <= 0 {
				continue
			}
			scores[p.DocID] += weight * idf
		}
	}

	result := make([]ScoredDoc, 0, len(scores))
	for docID, score := range scores {
		result = append(result, ScoredDoc{
			DocID: docID,
			Score: math.Round(score*10000) / 10000,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Score != result[j].Score {
			return result[i].Score > result[j].Score
		}
		return result[i].DocID < result[j].DocID
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

func computeIDF(totalDocs, docFreq int) float64 {
	return math.Log(1 + float64(totalDocs)/float64(1+docFreq))
}
