// Package extract pulls indexable text out of raw HTML. Body text is
// everything a reader would see; important text is the subset inside
// title, heading, and bold markup, which the ranker weights higher.
package extract

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	xhtml "golang.org/x/net/html"
)

// importantTags are the elements whose text feeds the boosted
// frequency channel.
var importantTags = map[string]struct{}{
	"title":  {},
	"h1":     {},
	"h2":     {},
	"h3":     {},
	"b":      {},
	"strong": {},
	"em":     {},
}

// Extractor converts HTML into the two text channels the indexer
// tokenizes. It is safe for reuse across documents.
type Extractor struct {
	strip *bluemonday.Policy
}

// New creates an Extractor.
func New() *Extractor {
	policy := bluemonday.StrictPolicy()
	policy.AddSpaceWhenStrippingTag(true)
	return &Extractor{strip: policy}
}

// Text returns the body text and the important-field text of doc.
// Non-HTML input passes through as body text with no important text.
func (e *Extractor) Text(doc string) (body, important string) {
	body = html.UnescapeString(e.strip.Sanitize(doc))
	important = e.importantText(doc)
	return body, important
}

// importantText walks the parsed document and concatenates the text
// under every important element. Nested important elements contribute
// once per enclosing tag, matching how the counts are defined.
func (e *Extractor) importantText(doc string) string {
	root, err := xhtml.Parse(strings.NewReader(doc))
	if err != nil {
		return ""
	}
	var parts []string
	var walk func(n *xhtml.Node)
	walk = func(n *xhtml.Node) {
		if n.Type == xhtml.ElementNode {
			if _, ok := importantTags[n.Data]; ok {
				if text := nodeText(n); text != "" {
					parts = append(parts, text)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return strings.Join(parts, " ")
}

// nodeText gathers all text nodes under n.
func nodeText(n *xhtml.Node) string {
	var sb strings.Builder
	var walk func(n *xhtml.Node)
	walk = func(n *xhtml.Node) {
		if n.Type == xhtml.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}
