// Package tracing times the phases of index builds and query execution as
// parent/child spans carried through contexts, emitted as structured slog
// records when the root span is logged.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type ctxKey struct{}

// Span is one timed phase. Spans nest: a build root span holds corpus scan,
// tokenize, and merge children; each search opens its own span.
type Span struct {
	name    string
	traceID string
	started time.Time
	elapsed time.Duration

	mu       sync.Mutex
	attrs    []any
	children []*Span
}

// StartSpan opens a root span identified by traceID and returns a context
// that parents subsequent child spans to it.
func StartSpan(ctx context.Context, name, traceID string) (context.Context, *Span) {
	s := &Span{name: name, traceID: traceID, started: time.Now()}
	return context.WithValue(ctx, ctxKey{}, s), s
}

// StartChildSpan opens a span nested under the one carried by ctx. Without a
// parent in ctx the span still times its phase but is never emitted.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	s := &Span{name: name, started: time.Now()}
	if parent, ok := ctx.Value(ctxKey{}).(*Span); ok {
		s.traceID = parent.traceID
		parent.mu.Lock()
		parent.children = append(parent.children, s)
		parent.mu.Unlock()
	}
	return context.WithValue(ctx, ctxKey{}, s), s
}

// SpanFromContext returns the span carried by ctx, or nil.
func SpanFromContext(ctx context.Context) *Span {
	s, _ := ctx.Value(ctxKey{}).(*Span)
	return s
}

// SetAttr records a key/value pair emitted with the span. Attributes keep
// insertion order.
func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.attrs = append(s.attrs, key, value)
	s.mu.Unlock()
}

// End stops the span's clock.
func (s *Span) End() {
	s.elapsed = time.Since(s.started)
}

// Log emits the span and its subtree, one slog record per span.
func (s *Span) Log() {
	s.emit(0)
}

func (s *Span) emit(depth int) {
	s.mu.Lock()
	record := make([]any, 0, len(s.attrs)+8)
	record = append(record,
		"trace_id", s.traceID,
		"span", s.name,
		"duration_ms", s.elapsed.Milliseconds(),
		"depth", depth,
	)
	record = append(record, s.attrs...)
	children := s.children
	s.mu.Unlock()

	slog.Info("span", record...)
	for _, c := range children {
		c.emit(depth + 1)
	}
}
