// Package registry maps dense integer doc IDs to document URLs. IDs are
// positions in a JSON array on disk, so the mapping survives a rebuild
// of the process without any database.
package registry

import (
	"encoding/json"
	"fmt"
	"os"

	apperrors "github.com/jayc-10/corpusearch/pkg/errors"
)

// Registry assigns and resolves doc IDs. The builder assigns IDs in
// load order; only successfully loaded documents consume an ID, so the
// sequence has no gaps.
type Registry struct {
	urls []string
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{}
}

// Add registers a document URL and returns its doc ID.
func (r *Registry) Add(url string) int {
	r.urls = append(r.urls, url)
	return len(r.urls) - 1
}

// URL resolves a doc ID. The second return is false when the ID is out
// of range.
func (r *Registry) URL(docID int) (string, bool) {
	if docID < 0 || docID >= len(r.urls) {
		return "", false
	}
	return r.urls[docID], true
}

// Len returns the number of registered documents.
func (r *Registry) Len() int {
	return len(r.urls)
}

// Save writes the mapping as a JSON array, position = doc ID.
func (r *Registry) Save(path string) error {
	urls := r.urls
	if urls == nil {
		urls = []string{}
	}
	data, err := json.Marshal(urls)
	if err != nil {
		return fmt.Errorf("marshaling doc mapping: %w", err)
	}
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating doc mapping file: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("writing doc mapping: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing doc mapping: %w", err)
	}
	f.Close()
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming doc mapping: %w", err)
	}
	return nil
}

// Load reads a mapping previously written by Save.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrDocMapNotFound, path)
		}
		return nil, fmt.Errorf("reading doc mapping %s: %w", path, err)
	}
	var urls []string
	if err := json.Unmarshal(data, &urls); err != nil {
		return nil, fmt.Errorf("parsing doc mapping %s: %w", path, err)
	}
	return &Registry{urls: urls}, nil
}
