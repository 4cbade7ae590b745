// Package integration contains tests that verify the interaction between
// search service components. These tests use httptest servers with real
// handler wiring over a real on-disk index; external dependencies
// (PostgreSQL, Redis) are skipped when unavailable.
//
// Run with:
//
//	go test -v ./test/integration/...
package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/jayc-10/corpusearch/internal/analytics"
	"github.com/jayc-10/corpusearch/internal/analytics/store"
	"github.com/jayc-10/corpusearch/internal/corpus"
	"github.com/jayc-10/corpusearch/internal/indexer"
	"github.com/jayc-10/corpusearch/internal/indexer/tokenizer"
	"github.com/jayc-10/corpusearch/internal/searcher/cache"
	"github.com/jayc-10/corpusearch/internal/searcher/engine"
	"github.com/jayc-10/corpusearch/internal/searcher/handler"
	"github.com/jayc-10/corpusearch/pkg/config"
	"github.com/jayc-10/corpusearch/pkg/health"
	"github.com/jayc-10/corpusearch/pkg/middleware"
	"github.com/jayc-10/corpusearch/pkg/postgres"
	pkgredis "github.com/jayc-10/corpusearch/pkg/redis"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func writeDoc(t *testing.T, dir, name, title, body string) {
	t.Helper()
	content := fmt.Sprintf("<html><head><title>%s</title></head><body>%s</body></html>", title, body)
	doc := fmt.Sprintf(`{"url": "http://docs.test/%s", "content": %q, "encoding": "utf-8"}`, name, content)
	if err := os.WriteFile(filepath.Join(dir, name+".json"), []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}
}

// buildTestIndex writes a small corpus and runs a full build, returning the
// index config pointing at the artifacts.
func buildTestIndex(t *testing.T) config.IndexConfig {
	t.Helper()
	corpusDir := t.TempDir()
	writeDoc(t, corpusDir, "doc0", "pets", "cat dog bird")
	writeDoc(t, corpusDir, "doc1", "aquarium", "dog fish")
	writeDoc(t, corpusDir, "doc2", "strays", "cat dog")
	writeDoc(t, corpusDir, "doc3", "physics", "quantum entanglement")

	cfg := config.IndexConfig{
		DataDir:     t.TempDir(),
		MinSegments: 2,
	}
	builder, err := indexer.NewBuilder(cfg, corpus.NewSource(corpusDir), tokenizer.New(false), nil)
	if err != nil {
		t.Fatalf("creating builder: %v", err)
	}
	if _, err := builder.Run(context.Background()); err != nil {
		t.Fatalf("building index: %v", err)
	}
	return cfg
}

type testServer struct {
	srv       *httptest.Server
	collector *analytics.Collector
}

// newSearchServer wires the real searchd handler stack (engine, search and
// analytics handlers, health checker, middleware) around a freshly built
// index and serves it over httptest.
func newSearchServer(t *testing.T) *testServer {
	t.Helper()
	cfg := buildTestIndex(t)

	tok := tokenizer.New(false)
	eng, err := engine.New(cfg, tok, 2.0)
	if err != nil {
		t.Fatalf("opening engine: %v", err)
	}
	t.Cleanup(func() { eng.Close() })

	aggregator := analytics.NewAggregator(10)
	collector := analytics.NewCollector(aggregator, nil, 128)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	collector.Start(ctx)

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		docs, terms := eng.Stats()
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d documents, %d terms", docs, terms),
		}
	})

	h := handler.New(eng, nil, collector, nil, 10, 50)
	ah := analytics.NewHandler(aggregator, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/status", h.Status)
	mux.HandleFunc("POST /api/v1/reload", h.Reload)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /api/v1/analytics", ah.Stats)
	mux.HandleFunc("GET /api/v1/analytics/snapshots", ah.Snapshots)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	chain := middleware.RequestID()(middleware.Timeout(5 * time.Second)(mux))
	srv := httptest.NewServer(chain)
	t.Cleanup(srv.Close)

	return &testServer{srv: srv, collector: collector}
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s response: %v", url, err)
		}
	}
	return resp.StatusCode
}

// ---------------------------------------------------------------------------
// HTTP stack tests
// ---------------------------------------------------------------------------

// TestSearchEndToEnd runs a query through the full HTTP stack and checks the
// ranked, URL-resolved response.
func TestSearchEndToEnd(t *testing.T) {
	ts := newSearchServer(t)

	var result engine.Result
	status := getJSON(t, ts.srv.URL+"/api/v1/search?q=cat+dog", &result)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}

	if result.TotalHits != 2 {
		t.Errorf("expected 2 hits, got %d", result.TotalHits)
	}
	if len(result.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(result.Results))
	}
	for _, r := range result.Results {
		if r.URL == "" {
			t.Errorf("doc %d: missing URL", r.DocID)
		}
	}
	if result.Results[0].Score < result.Results[1].Score {
		t.Errorf("results not sorted by score: %v", result.Results)
	}
}

// TestSearchNoMatchOutcomes checks that the three distinct no-match outcomes
// survive the HTTP round trip.
func TestSearchNoMatchOutcomes(t *testing.T) {
	ts := newSearchServer(t)

	cases := []struct {
		name    string
		query   string
		noMatch string
	}{
		{"no tokens", "!!!", engine.NoMatchEmptyQuery},
		{"unknown terms", "zzzxxx", engine.NoMatchUnknownTerms},
		{"empty intersection", "bird+fish", engine.NoMatchIntersection},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var result engine.Result
			status := getJSON(t, ts.srv.URL+"/api/v1/search?q="+tc.query, &result)
			if status != http.StatusOK {
				t.Fatalf("expected 200, got %d", status)
			}
			if result.NoMatch != tc.noMatch {
				t.Errorf("expected no_match %q, got %q", tc.noMatch, result.NoMatch)
			}
			if result.TotalHits != 0 {
				t.Errorf("expected 0 hits, got %d", result.TotalHits)
			}
		})
	}
}

// TestSearchValidation verifies request validation failures map to 400.
func TestSearchValidation(t *testing.T) {
	ts := newSearchServer(t)

	urls := []string{
		"/api/v1/search",
		"/api/v1/search?q=cat&limit=abc",
		"/api/v1/search?q=cat&limit=0",
	}
	for _, u := range urls {
		if status := getJSON(t, ts.srv.URL+u, nil); status != http.StatusBadRequest {
			t.Errorf("GET %s: expected 400, got %d", u, status)
		}
	}
}

// TestHealthEndpoints verifies liveness and readiness over the index check.
func TestHealthEndpoints(t *testing.T) {
	ts := newSearchServer(t)

	if status := getJSON(t, ts.srv.URL+"/health/live", nil); status != http.StatusOK {
		t.Errorf("live: expected 200, got %d", status)
	}

	var report map[string]any
	if status := getJSON(t, ts.srv.URL+"/health/ready", &report); status != http.StatusOK {
		t.Errorf("ready: expected 200, got %d", status)
	}
	if report["status"] != "up" {
		t.Errorf("expected status up, got %v", report["status"])
	}
}

// TestReloadEndpoint verifies POST /api/v1/reload re-opens the index.
func TestReloadEndpoint(t *testing.T) {
	ts := newSearchServer(t)

	resp, err := http.Post(ts.srv.URL+"/api/v1/reload", "application/json", nil)
	if err != nil {
		t.Fatalf("reload request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding reload response: %v", err)
	}
	if body["status"] != "reloaded" {
		t.Errorf("expected status reloaded, got %v", body["status"])
	}
	if docs, _ := body["documents"].(float64); docs != 4 {
		t.Errorf("expected 4 documents after reload, got %v", body["documents"])
	}
}

// TestAnalyticsFlow verifies queries flow through the collector into the
// aggregator and out the analytics endpoint.
func TestAnalyticsFlow(t *testing.T) {
	ts := newSearchServer(t)

	if status := getJSON(t, ts.srv.URL+"/api/v1/search?q=dog", nil); status != http.StatusOK {
		t.Fatalf("search failed: %d", status)
	}
	if status := getJSON(t, ts.srv.URL+"/api/v1/search?q=zzzxxx", nil); status != http.StatusOK {
		t.Fatalf("search failed: %d", status)
	}

	// Close drains buffered events into the aggregator before we read stats.
	ts.collector.Close()

	var stats analytics.AggregatedStats
	if status := getJSON(t, ts.srv.URL+"/api/v1/analytics", &stats); status != http.StatusOK {
		t.Fatalf("analytics failed: %d", status)
	}
	if stats.TotalQueries != 2 {
		t.Errorf("expected 2 queries recorded, got %d", stats.TotalQueries)
	}
	if stats.NoMatchCount != 1 {
		t.Errorf("expected 1 no-match query, got %d", stats.NoMatchCount)
	}
	if len(stats.TopQueries) == 0 {
		t.Error("expected top queries to be populated")
	}
}

// TestCacheEndpointsDisabled verifies the cache endpoints report disabled
// when no Redis is wired.
func TestCacheEndpointsDisabled(t *testing.T) {
	ts := newSearchServer(t)

	var body map[string]string
	if status := getJSON(t, ts.srv.URL+"/api/v1/cache/stats", &body); status != http.StatusOK {
		t.Fatalf("cache stats failed: %d", status)
	}
	if body["status"] != "disabled" {
		t.Errorf("expected disabled, got %v", body["status"])
	}
}

// ---------------------------------------------------------------------------
// Redis-backed cache tests
// ---------------------------------------------------------------------------

func testRedisConfig() config.RedisConfig {
	return config.RedisConfig{
		Addr:     envOrDefault("TEST_REDIS_ADDR", "localhost:6379"),
		DB:       envOrDefaultInt("TEST_REDIS_DB", 15),
		PoolSize: 5,
		CacheTTL: 30 * time.Second,
	}
}

// skipIfNoRedis skips the test when Redis is unavailable.
func skipIfNoRedis(t *testing.T) *pkgredis.Client {
	t.Helper()
	client, err := pkgredis.NewClient(testRedisConfig())
	if err != nil {
		t.Skipf("skipping integration test: redis unavailable: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

// TestQueryCacheRoundTrip exercises the real cache against Redis.
func TestQueryCacheRoundTrip(t *testing.T) {
	client := skipIfNoRedis(t)
	ctx := context.Background()

	qc := cache.New(client, testRedisConfig(), tokenizer.New(false))
	if err := qc.Invalidate(ctx); err != nil {
		t.Fatalf("invalidating cache: %v", err)
	}

	want := &engine.Result{Query: "cat dog", Terms: []string{"cat", "dog"}, TotalHits: 3}
	qc.Set(ctx, "cat dog", 10, want)

	got, ok := qc.Get(ctx, "cat dog", 10)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.TotalHits != want.TotalHits || got.Query != want.Query {
		t.Errorf("cached result mismatch: got %+v", got)
	}

	// Same terms in a different order hit the same key.
	if _, ok := qc.Get(ctx, "dog cat", 10); !ok {
		t.Error("expected hit for reordered query terms")
	}

	if err := qc.Invalidate(ctx); err != nil {
		t.Fatalf("invalidating cache: %v", err)
	}
	if _, ok := qc.Get(ctx, "cat dog", 10); ok {
		t.Error("expected miss after invalidation")
	}
}

// ---------------------------------------------------------------------------
// PostgreSQL-backed snapshot store tests
// ---------------------------------------------------------------------------

func testPostgresConfig() config.PostgresConfig {
	return config.PostgresConfig{
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            envOrDefaultInt("TEST_POSTGRES_PORT", 5432),
		Database:        envOrDefault("TEST_POSTGRES_DB", "corpusearch_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "corpusearch"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// skipIfNoPostgres skips the test when PostgreSQL is unavailable.
func skipIfNoPostgres(t *testing.T) *postgres.Client {
	t.Helper()
	db, err := postgres.New(testPostgresConfig())
	if err != nil {
		t.Skipf("skipping integration test: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	_, err = db.DB.Exec(`CREATE TABLE IF NOT EXISTS analytics_snapshots (
		id          BIGSERIAL PRIMARY KEY,
		data        JSONB NOT NULL,
		captured_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`)
	if err != nil {
		t.Fatalf("creating snapshot table: %v", err)
	}
	return db
}

// TestSnapshotStoreRoundTrip saves and reloads an aggregated snapshot.
func TestSnapshotStoreRoundTrip(t *testing.T) {
	db := skipIfNoPostgres(t)
	ctx := context.Background()
	st := store.New(db)

	agg := analytics.NewAggregator(5)
	agg.Record(analytics.QueryEvent{Query: "cat dog", TotalHits: 3, LatencyMs: 12})
	agg.Record(analytics.QueryEvent{Query: "quantum", TotalHits: 0, LatencyMs: 4})
	agg.RecordBuild(4)

	if err := st.SaveSnapshot(ctx, agg.Stats()); err != nil {
		t.Fatalf("saving snapshot: %v", err)
	}

	latest, err := st.LatestSnapshot(ctx)
	if err != nil {
		t.Fatalf("loading latest snapshot: %v", err)
	}
	if latest == nil {
		t.Fatal("expected a snapshot, got nil")
	}
	if latest.TotalQueries != 2 {
		t.Errorf("expected 2 queries in snapshot, got %d", latest.TotalQueries)
	}
	if latest.TotalDocsIndexed != 4 {
		t.Errorf("expected 4 docs indexed, got %d", latest.TotalDocsIndexed)
	}

	snapshots, err := st.ListSnapshots(ctx, 10)
	if err != nil {
		t.Fatalf("listing snapshots: %v", err)
	}
	if len(snapshots) == 0 {
		t.Error("expected at least one snapshot")
	}
}

// ---------------------------------------------------------------------------
// Env helpers
// ---------------------------------------------------------------------------

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
