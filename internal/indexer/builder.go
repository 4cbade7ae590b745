// Package indexer drives the batch index build: walk the corpus,
// tokenize each document into body and important term counts, spill a
// segment every batch, then merge all segments into the final index,
// lexicon, and doc mapping.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jayc-10/corpusearch/internal/corpus"
	"github.com/jayc-10/corpusearch/internal/extract"
	"github.com/jayc-10/corpusearch/internal/indexer/index"
	"github.com/jayc-10/corpusearch/internal/indexer/registry"
	"github.com/jayc-10/corpusearch/internal/indexer/segment"
	"github.com/jayc-10/corpusearch/internal/indexer/tokenizer"
	"github.com/jayc-10/corpusearch/pkg/config"
	apperrors "github.com/jayc-10/corpusearch/pkg/errors"
	"github.com/jayc-10/corpusearch/pkg/metrics"
	"github.com/jayc-10/corpusearch/pkg/tracing"
)

// BuildStats summarises one completed build.
type BuildStats struct {
	Documents       int
	Skipped         int
	Segments        int
	SegmentsSkipped int
	Terms           int
	IndexBytes      int64
	Elapsed         time.Duration
}

// Builder runs the build pipeline sequentially: doc IDs are assigned in
// corpus path order, and only documents that load successfully consume
// an ID, so the final mapping has no gaps.
type Builder struct {
	cfg     config.IndexConfig
	source  *corpus.Source
	tok     *tokenizer.Tokenizer
	extract *extract.Extractor
	writer  *segment.Writer
	merger  *segment.Merger
	metrics *metrics.Metrics
	logger  *slog.Logger

	reg      *registry.Registry
	acc      *index.Accumulator
	segments []string
	seq      int
	stats    *BuildStats
}

// NewBuilder creates a Builder. m may be nil when no metrics are
// collected.
func NewBuilder(cfg config.IndexConfig, source *corpus.Source, tok *tokenizer.Tokenizer, m *metrics.Metrics) (*Builder, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating index data directory: %w", err)
	}
	return &Builder{
		cfg:     cfg,
		source:  source,
		tok:     tok,
		extract: extract.New(),
		writer:  segment.NewWriter(cfg.SegmentDir()),
		merger:  segment.NewMerger(),
		metrics: m,
		logger:  slog.Default().With("component", "builder"),
	}, nil
}

// Run executes a full build and returns its stats. Per-document
// failures are logged and skipped; segment write and merge output
// failures abort the build.
func (b *Builder) Run(ctx context.Context) (*BuildStats, error) {
	start := time.Now()
	b.reg = registry.New()
	b.acc = index.NewAccumulator()
	b.segments = nil
	b.seq = 0
	b.stats = &BuildStats{}

	_, scanSpan := tracing.StartChildSpan(ctx, "corpus_scan")
	paths, err := b.source.Paths()
	scanSpan.SetAttr("files", len(paths))
	scanSpan.End()
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrCorpusEmpty, b.source.Dir())
	}

	batchSize := b.batchSize(len(paths))
	b.logger.Info("build starting",
		"files", len(paths),
		"batch_size", batchSize,
		"min_segments", b.cfg.MinSegments,
	)

	tokCtx, tokSpan := tracing.StartChildSpan(ctx, "tokenize")
	inBatch := 0
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			tokSpan.End()
			return nil, err
		}
		doc, err := b.source.Load(path)
		if err != nil {
			b.logger.Warn("skipping document", "path", path, "error", err)
			b.stats.Skipped++
			if b.metrics != nil {
				b.metrics.DocsSkippedTotal.Inc()
			}
			continue
		}
		body, important := b.extract.Text(doc.Content)
		docID := b.reg.Add(doc.URL)
		b.acc.Add(docID, b.tok.Counts(body), b.tok.Counts(important))
		b.stats.Documents++
		if b.metrics != nil {
			b.metrics.DocsIndexedTotal.Inc()
		}

		inBatch++
		if inBatch >= batchSize {
			if err := b.flushSegment(tokCtx); err != nil {
				return nil, err
			}
			inBatch = 0
		}
	}
	if err := b.flushSegment(tokCtx); err != nil {
		return nil, err
	}
	tokSpan.SetAttr("documents", b.stats.Documents)
	tokSpan.SetAttr("skipped", b.stats.Skipped)
	tokSpan.End()

	_, mergeSpan := tracing.StartChildSpan(ctx, "merge")
	mergeStats, err := b.merger.Merge(b.segments, b.cfg.IndexPath(), b.cfg.LexiconPath())
	if err != nil {
		mergeSpan.End()
		return nil, fmt.Errorf("merging segments: %w", err)
	}
	b.stats.Terms = mergeStats.Terms
	b.stats.SegmentsSkipped = mergeStats.SegmentsSkipped
	b.stats.IndexBytes = mergeStats.IndexBytes
	mergeSpan.SetAttr("terms", mergeStats.Terms)
	mergeSpan.SetAttr("segments_skipped", mergeStats.SegmentsSkipped)
	mergeSpan.End()
	if b.metrics != nil {
		for i := 0; i < mergeStats.SegmentsSkipped; i++ {
			b.metrics.SegmentsSkippedTotal.Inc()
		}
	}

	if err := b.reg.Save(b.cfg.DocMapPath()); err != nil {
		return nil, fmt.Errorf("saving doc mapping: %w", err)
	}

	b.stats.Elapsed = time.Since(start)
	if b.metrics != nil {
		b.metrics.IndexBuildDuration.Observe(b.stats.Elapsed.Seconds())
	}
	b.logger.Info("build complete",
		"documents", b.stats.Documents,
		"skipped", b.stats.Skipped,
		"segments", b.stats.Segments,
		"terms", b.stats.Terms,
		"index_bytes", b.stats.IndexBytes,
		"elapsed", b.stats.Elapsed.Round(time.Millisecond).String(),
	)
	return b.stats, nil
}

// flushSegment spills the accumulator to a new segment. A batch whose
// documents all tokenized to nothing leaves nothing to spill.
func (b *Builder) flushSegment(ctx context.Context) error {
	if b.acc.Empty() {
		b.acc.Drain()
		return nil
	}
	_, span := tracing.StartChildSpan(ctx, "segment_flush")
	defer span.End()

	docs := b.acc.Docs()
	terms := b.acc.Terms()
	path, err := b.writer.Write(b.seq, b.acc.Drain())
	if err != nil {
		return fmt.Errorf("writing segment %d: %w", b.seq, err)
	}
	b.segments = append(b.segments, path)
	b.seq++
	b.stats.Segments++
	if b.metrics != nil {
		b.metrics.SegmentsFlushedTotal.Inc()
	}
	span.SetAttr("segment", path)
	span.SetAttr("docs", docs)
	span.SetAttr("terms", terms)
	b.logger.Info("segment flushed", "segment", path, "docs", docs, "terms", terms)
	return nil
}

// batchSize returns how many documents accumulate before a spill. An
// explicit configured size wins; otherwise the corpus is split into at
// least MinSegments roughly equal batches, computed from the file count
// before any document is read.
func (b *Builder) batchSize(totalFiles int) int {
	if b.cfg.BatchSize > 0 {
		return b.cfg.BatchSize
	}
	minSegments := b.cfg.MinSegments
	if minSegments < 1 {
		minSegments = 1
	}
	size := (totalFiles + minSegments - 1) / minSegments
	if size < 1 {
		size = 1
	}
	return size
}
