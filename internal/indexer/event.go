package indexer

import "time"

// BuildEvent announces a completed build on the index-built topic so a
// running search service can reload without a restart.
type BuildEvent struct {
	IndexPath   string    `json:"index_path"`
	LexiconPath string    `json:"lexicon_path"`
	DocMapPath  string    `json:"docmap_path"`
	Documents   int       `json:"documents"`
	Terms       int       `json:"terms"`
	Segments    int       `json:"segments"`
	BuiltAt     time.Time `json:"built_at"`
}
