package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jayc-10/corpusearch/internal/analytics"
	"github.com/jayc-10/corpusearch/internal/analytics/store"
	"github.com/jayc-10/corpusearch/internal/indexer"
	"github.com/jayc-10/corpusearch/internal/indexer/tokenizer"
	"github.com/jayc-10/corpusearch/internal/searcher/cache"
	"github.com/jayc-10/corpusearch/internal/searcher/engine"
	"github.com/jayc-10/corpusearch/internal/searcher/handler"
	"github.com/jayc-10/corpusearch/pkg/config"
	"github.com/jayc-10/corpusearch/pkg/health"
	"github.com/jayc-10/corpusearch/pkg/kafka"
	"github.com/jayc-10/corpusearch/pkg/logger"
	"github.com/jayc-10/corpusearch/pkg/metrics"
	"github.com/jayc-10/corpusearch/pkg/middleware"
	"github.com/jayc-10/corpusearch/pkg/postgres"
	pkgredis "github.com/jayc-10/corpusearch/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port, "data_dir", cfg.Index.DataDir)

	tok := tokenizer.New(cfg.Index.Stemming)
	eng, err := engine.New(cfg.Index, tok, cfg.Search.ImportantBoost)
	if err != nil {
		slog.Error("failed to open index", "error", err)
		os.Exit(1)
	}
	defer eng.Close()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		docs, terms := eng.Stats()
		m.IndexDocuments.Set(float64(docs))
		m.IndexTerms.Set(float64(terms))
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownMetrics(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}()
	}

	var queryCache *cache.QueryCache
	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, search caching disabled", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
		queryCache = cache.New(redisClient, cfg.Redis, tok)
		slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	aggregator := analytics.NewAggregator(cfg.Analytics.TopQueries)

	var analyticsProducer *kafka.Producer
	if cfg.Kafka.Enabled {
		analyticsProducer = kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer analyticsProducer.Close()
	}
	collector := analytics.NewCollector(aggregator, analyticsProducer, cfg.Analytics.BufferSize)
	collector.Start(ctx)
	defer collector.Close()

	var snapshots analytics.SnapshotLister
	var pgClient *postgres.Client
	if cfg.Postgres.Enabled {
		pgClient, err = postgres.New(cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable, snapshots disabled", "error", err)
		} else {
			defer pgClient.Close()
			snapshotStore := store.New(pgClient)
			snapshotStore.StartPeriodicSave(ctx, aggregator, cfg.Analytics.SnapshotInterval)
			snapshots = snapshotStore
		}
	}

	reload := func(reloadCtx context.Context, ev indexer.BuildEvent) {
		if err := eng.Reload(); err != nil {
			slog.Error("reload after build event failed", "error", err)
			if m != nil {
				m.IndexReloadsTotal.WithLabelValues("error").Inc()
			}
			return
		}
		if queryCache != nil {
			if err := queryCache.Invalidate(reloadCtx); err != nil {
				slog.Error("cache invalidation after reload failed", "error", err)
			}
		}
		aggregator.RecordBuild(ev.Documents)
		docs, terms := eng.Stats()
		if m != nil {
			m.IndexReloadsTotal.WithLabelValues("ok").Inc()
			m.IndexDocuments.Set(float64(docs))
			m.IndexTerms.Set(float64(terms))
		}
		slog.Info("index reloaded from build event", "documents", docs, "terms", terms)
	}

	if cfg.Kafka.Enabled {
		buildConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexBuilt,
			func(handlerCtx context.Context, key, value []byte) error {
				ev, err := kafka.DecodeJSON[indexer.BuildEvent](value)
				if err != nil {
					slog.Error("failed to decode build event", "error", err)
					return nil
				}
				reload(handlerCtx, ev)
				return nil
			})
		defer buildConsumer.Close()
		go func() {
			if err := buildConsumer.Start(ctx); err != nil && ctx.Err() == nil {
				slog.Error("build event consumer error", "error", err)
			}
		}()
		slog.Info("listening for build events", "topic", cfg.Kafka.Topics.IndexBuilt)
	}

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		docs, terms := eng.Stats()
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d documents, %d terms", docs, terms),
		}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if pgClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := pgClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	h := handler.New(eng, queryCache, collector, m, cfg.Search.TopK, cfg.Search.MaxResults)
	analyticsH := analytics.NewHandler(aggregator, snapshots)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/status", h.Status)
	mux.HandleFunc("POST /api/v1/reload", h.Reload)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /api/v1/analytics", analyticsH.Stats)
	mux.HandleFunc("GET /api/v1/analytics/snapshots", analyticsH.Snapshots)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	if m != nil {
		chain = middleware.Metrics(m)(chain)
	}
	chain = middleware.RequestID()(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}
