// Package corpus discovers and loads raw documents from a directory
// tree. Two shapes are supported: .json crawl captures holding
// {"url", "content", "encoding"}, and raw .html/.htm files. Load
// failures are per-document; the caller decides whether to skip.
package corpus

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	apperrors "github.com/jayc-10/corpusearch/pkg/errors"
)

// Document is one loadable corpus entry. URL is the crawl URL for JSON
// captures (fragment stripped) and the corpus-relative path for bare
// HTML files.
type Document struct {
	URL      string
	Path     string
	Content  string
	Encoding string
}

// Source walks a corpus directory and loads its documents.
type Source struct {
	dir    string
	logger *slog.Logger
}

// NewSource creates a Source rooted at dir.
func NewSource(dir string) *Source {
	return &Source{
		dir:    dir,
		logger: slog.Default().With("component", "corpus"),
	}
}

// Dir returns the corpus root.
func (s *Source) Dir() string {
	return s.dir
}

// Paths returns every .json, .html, and .htm file under the corpus
// root in sorted order, so doc ID assignment is deterministic across
// runs.
func (s *Source) Paths() ([]string, error) {
	info, err := os.Stat(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrCorpusNotFound, s.dir)
		}
		return nil, fmt.Errorf("statting corpus dir %s: %w", s.dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", apperrors.ErrCorpusNotFound, s.dir)
	}

	var paths []string
	err = filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			s.logger.Warn("skipping unreadable corpus entry", "path", path, "error", walkErr)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".json", ".html", ".htm":
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking corpus dir %s: %w", s.dir, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// Load reads one corpus file into a Document.
func (s *Source) Load(path string) (*Document, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return s.loadJSON(path)
	case ".html", ".htm":
		return s.loadHTML(path)
	default:
		return nil, fmt.Errorf("%w: unsupported extension %s", apperrors.ErrDocumentUnreadable, path)
	}
}

type jsonCapture struct {
	URL      string `json:"url"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

func (s *Source) loadJSON(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", apperrors.ErrDocumentUnreadable, path, err)
	}
	var capture jsonCapture
	if err := json.Unmarshal(data, &capture); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", apperrors.ErrDocumentUnreadable, path, err)
	}
	url := stripFragment(capture.URL)
	if url == "" {
		url = path
	}
	return &Document{
		URL:      url,
		Path:     path,
		Content:  capture.Content,
		Encoding: capture.Encoding,
	}, nil
}

func (s *Source) loadHTML(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", apperrors.ErrDocumentUnreadable, path, err)
	}
	content, encoding := decodeFallback(data)
	return &Document{
		URL:      s.relativeURL(path),
		Path:     path,
		Content:  content,
		Encoding: encoding,
	}, nil
}

// relativeURL is the registry entry for a bare HTML file: its path
// relative to the corpus root, slash-normalized. Nested trees with
// repeated file names stay distinct.
func (s *Source) relativeURL(path string) string {
	rel, err := filepath.Rel(s.dir, path)
	if err != nil {
		return filepath.Base(path)
	}
	return filepath.ToSlash(rel)
}

// decodeFallback decodes raw bytes as UTF-8 when valid, then walks the
// legacy encodings common in old crawls. Latin-1 accepts every byte, so
// the chain always produces text.
func decodeFallback(data []byte) (string, string) {
	if utf8.Valid(data) {
		return string(data), "utf-8"
	}
	for _, enc := range []struct {
		name string
		cm   *charmap.Charmap
	}{
		{"latin-1", charmap.ISO8859_1},
		{"windows-1252", charmap.Windows1252},
	} {
		out, err := enc.cm.NewDecoder().Bytes(data)
		if err == nil {
			return string(out), enc.name
		}
	}
	return string(data), "unknown"
}

// stripFragment removes the #fragment part of a URL, so that anchor
// variants of one page register as the same document.
func stripFragment(url string) string {
	base, _, _ := strings.Cut(url, "#")
	return base
}
