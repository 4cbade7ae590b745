// Package handler exposes the query engine over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/jayc-10/corpusearch/internal/analytics"
	"github.com/jayc-10/corpusearch/internal/searcher/cache"
	"github.com/jayc-10/corpusearch/internal/searcher/engine"
	apperrors "github.com/jayc-10/corpusearch/pkg/errors"
	"github.com/jayc-10/corpusearch/pkg/logger"
	"github.com/jayc-10/corpusearch/pkg/metrics"
	"github.com/jayc-10/corpusearch/pkg/middleware"
)

// Searcher answers queries and swaps in freshly built index
// generations.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) (*engine.Result, error)
	Reload() error
	Stats() (docs, terms int)
}

type Handler struct {
	searcher     Searcher
	cache        *cache.QueryCache
	collector    *analytics.Collector
	metrics      *metrics.Metrics
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

// New creates a Handler. cache, collector, and m may be nil when those
// subsystems are disabled.
func New(searcher Searcher, queryCache *cache.QueryCache, collector *analytics.Collector, m *metrics.Metrics, defaultLimit, maxResults int) *Handler {
	return &Handler{
		searcher:     searcher,
		cache:        queryCache,
		collector:    collector,
		metrics:      m,
		defaultLimit: defaultLimit,
		maxResults:   maxResults,
		logger:       slog.Default().With("component", "search-handler"),
	}
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query, limit, appErr := h.parseSearchParams(r)
	if appErr != nil {
		h.writeError(w, appErr.StatusCode, appErr.Message)
		return
	}

	var result *engine.Result
	var err error
	cacheHit := false
	if h.cache != nil {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, query, limit, func() (*engine.Result, error) {
			return h.searcher.Search(ctx, query, limit)
		})
	} else {
		result, err = h.searcher.Search(ctx, query, limit)
	}
	if err != nil {
		log.Error("search failed", "query", query, "error", err)
		h.observeQuery("error", cacheHit, start, 0)
		h.writeError(w, apperrors.HTTPStatusCode(err), "search failed")
		return
	}

	latencyMs := time.Since(start).Milliseconds()
	outcome := result.NoMatch
	if outcome == "" {
		outcome = "ok"
	}
	h.observeQuery(outcome, cacheHit, start, len(result.Results))

	log.Info("search completed",
		"query", query,
		"outcome", outcome,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"cache_hit", cacheHit,
		"latency_ms", latencyMs,
	)
	if h.collector != nil {
		h.collector.Track(analytics.QueryEvent{
			Query:     query,
			Terms:     result.Terms,
			TotalHits: result.TotalHits,
			Returned:  len(result.Results),
			NoMatch:   result.NoMatch,
			LatencyMs: latencyMs,
			CacheHit:  cacheHit,
			Timestamp: time.Now().UTC(),
			RequestID: middleware.GetRequestID(ctx),
		})
	}

	h.writeJSON(w, http.StatusOK, result)
}

// parseSearchParams validates the query string. The limit is clamped to
// the configured maximum rather than rejected.
func (h *Handler) parseSearchParams(r *http.Request) (query string, limit int, appErr *apperrors.AppError) {
	query = r.URL.Query().Get("q")
	if query == "" {
		return "", 0, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "query parameter 'q' is required")
	}
	limit = h.defaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			return "", 0, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "limit must be a positive integer")
		}
		if parsed > h.maxResults {
			parsed = h.maxResults
		}
		limit = parsed
	}
	return query, limit, nil
}

// Reload swaps in the current on-disk index generation and drops every
// cached result scored against the previous one.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	if err := h.searcher.Reload(); err != nil {
		log.Error("index reload failed", "error", err)
		if h.metrics != nil {
			h.metrics.IndexReloadsTotal.WithLabelValues("error").Inc()
		}
		h.writeError(w, apperrors.HTTPStatusCode(err), "index reload failed")
		return
	}
	if h.cache != nil {
		if err := h.cache.Invalidate(r.Context()); err != nil {
			log.Error("cache invalidation after reload failed", "error", err)
		}
	}

	docs, terms := h.searcher.Stats()
	if h.metrics != nil {
		h.metrics.IndexReloadsTotal.WithLabelValues("ok").Inc()
		h.metrics.IndexDocuments.Set(float64(docs))
		h.metrics.IndexTerms.Set(float64(terms))
	}
	log.Info("index reloaded", "documents", docs, "terms", terms)

	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "reloaded",
		"documents": docs,
		"terms":     terms,
	})
}

// Status reports the loaded index generation's size.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	docs, terms := h.searcher.Stats()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"documents": docs,
		"terms":     terms,
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) observeQuery(outcome string, cacheHit bool, start time.Time, results int) {
	if h.metrics == nil {
		return
	}
	h.metrics.SearchQueriesTotal.WithLabelValues(outcome).Inc()

	cacheStatus := "bypass"
	if h.cache != nil {
		if cacheHit {
			cacheStatus = "hit"
			h.metrics.CacheHitsTotal.Inc()
		} else {
			cacheStatus = "miss"
			h.metrics.CacheMissesTotal.Inc()
		}
	}
	h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(time.Since(start).Seconds())
	h.metrics.SearchResultsCount.Observe(float64(results))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
