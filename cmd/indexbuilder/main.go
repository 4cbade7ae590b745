package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/jayc-10/corpusearch/internal/corpus"
	"github.com/jayc-10/corpusearch/internal/indexer"
	"github.com/jayc-10/corpusearch/internal/indexer/tokenizer"
	"github.com/jayc-10/corpusearch/pkg/config"
	"github.com/jayc-10/corpusearch/pkg/kafka"
	"github.com/jayc-10/corpusearch/pkg/logger"
	"github.com/jayc-10/corpusearch/pkg/metrics"
	"github.com/jayc-10/corpusearch/pkg/tracing"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	corpusDir := flag.String("corpus", "", "corpus directory (overrides config)")
	dataDir := flag.String("data-dir", "", "index output directory (overrides config)")
	minSegments := flag.Int("min-segments", 0, "minimum segment count (overrides config)")
	batchSize := flag.Int("batch-size", 0, "documents per segment (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *corpusDir != "" {
		cfg.Corpus.Dir = *corpusDir
	}
	if *dataDir != "" {
		cfg.Index.DataDir = *dataDir
	}
	if *minSegments > 0 {
		cfg.Index.MinSegments = *minSegments
	}
	if *batchSize > 0 {
		cfg.Index.BatchSize = *batchSize
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting index build",
		"corpus", cfg.Corpus.Dir,
		"data_dir", cfg.Index.DataDir,
		"stemming", cfg.Index.Stemming,
	)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		shutdown := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var span *tracing.Span
	if cfg.Tracing.Enabled {
		ctx, span = tracing.StartSpan(ctx, "index_build", uuid.NewString())
	}

	source := corpus.NewSource(cfg.Corpus.Dir)
	tok := tokenizer.New(cfg.Index.Stemming)
	builder, err := indexer.NewBuilder(cfg.Index, source, tok, m)
	if err != nil {
		slog.Error("failed to create builder", "error", err)
		os.Exit(1)
	}

	stats, err := builder.Run(ctx)
	if span != nil {
		span.End()
		span.Log()
	}
	if err != nil {
		slog.Error("build failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("\nBuild summary\n")
	fmt.Printf("  documents indexed   %d\n", stats.Documents)
	fmt.Printf("  documents skipped   %d\n", stats.Skipped)
	fmt.Printf("  segments written    %d\n", stats.Segments)
	fmt.Printf("  segments skipped    %d\n", stats.SegmentsSkipped)
	fmt.Printf("  distinct terms      %d\n", stats.Terms)
	fmt.Printf("  index size          %d bytes\n", stats.IndexBytes)
	fmt.Printf("  elapsed             %s\n", stats.Elapsed.Round(time.Millisecond))

	if cfg.Kafka.Enabled {
		publishBuildEvent(ctx, cfg, stats)
	}
}

// publishBuildEvent announces the new index so running search services
// reload it. Best effort: a build that cannot be announced is still a
// good build.
func publishBuildEvent(ctx context.Context, cfg *config.Config, stats *indexer.BuildStats) {
	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexBuilt)
	defer producer.Close()

	event := indexer.BuildEvent{
		IndexPath:   cfg.Index.IndexPath(),
		LexiconPath: cfg.Index.LexiconPath(),
		DocMapPath:  cfg.Index.DocMapPath(),
		Documents:   stats.Documents,
		Terms:       stats.Terms,
		Segments:    stats.Segments,
		BuiltAt:     time.Now().UTC(),
	}
	if err := producer.Publish(ctx, kafka.Event{Key: "index-built", Value: event}); err != nil {
		slog.Warn("failed to publish build event", "error", err)
		return
	}
	slog.Info("build event published", "topic", cfg.Kafka.Topics.IndexBuilt)
}
