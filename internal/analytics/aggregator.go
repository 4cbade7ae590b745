package analytics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// AggregatedStats is a point-in-time summary of query traffic.
type AggregatedStats struct {
	TotalQueries     int64        `json:"total_queries"`
	TotalDocsIndexed int64        `json:"total_docs_indexed"`
	CacheHits        int64        `json:"cache_hits"`
	CacheMisses      int64        `json:"cache_misses"`
	NoMatchCount     int64        `json:"no_match_count"`
	AvgLatencyMs     float64      `json:"avg_latency_ms"`
	P50LatencyMs     int64        `json:"p50_latency_ms"`
	P95LatencyMs     int64        `json:"p95_latency_ms"`
	P99LatencyMs     int64        `json:"p99_latency_ms"`
	TopQueries       []QueryCount `json:"top_queries"`
	NoMatchQueries   []QueryCount `json:"no_match_queries"`
	QueriesPerMinute float64      `json:"queries_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator keeps running counters over recorded events. Safe for
// concurrent use.
type Aggregator struct {
	totalQueries atomic.Int64
	docsIndexed  atomic.Int64
	cacheHits    atomic.Int64
	cacheMisses  atomic.Int64
	noMatches    atomic.Int64

	mu             sync.RWMutex
	latencies      []int64
	queryCounts    map[string]int64
	noMatchQueries map[string]int64

	topN      int
	startTime time.Time
}

// NewAggregator creates an Aggregator reporting the topN most frequent
// queries.
func NewAggregator(topN int) *Aggregator {
	if topN <= 0 {
		topN = 10
	}
	return &Aggregator{
		latencies:      make([]int64, 0, 10000),
		queryCounts:    make(map[string]int64),
		noMatchQueries: make(map[string]int64),
		topN:           topN,
		startTime:      time.Now(),
	}
}

// Record folds one query event into the running counters.
func (a *Aggregator) Record(ev QueryEvent) {
	a.totalQueries.Add(1)
	if ev.CacheHit {
		a.cacheHits.Add(1)
	} else {
		a.cacheMisses.Add(1)
	}
	if ev.TotalHits == 0 {
		a.noMatches.Add(1)
	}

	a.mu.Lock()
	a.latencies = append(a.latencies, ev.LatencyMs)
	a.queryCounts[ev.Query]++
	if ev.TotalHits == 0 {
		a.noMatchQueries[ev.Query]++
	}
	a.mu.Unlock()
}

// RecordBuild notes documents indexed by a completed build.
func (a *Aggregator) RecordBuild(documents int) {
	a.docsIndexed.Add(int64(documents))
}

// Stats summarises everything recorded so far.
func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalQueries:     a.totalQueries.Load(),
		TotalDocsIndexed: a.docsIndexed.Load(),
		CacheHits:        a.cacheHits.Load(),
		CacheMisses:      a.cacheMisses.Load(),
		NoMatchCount:     a.noMatches.Load(),
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, a.topN)
	stats.NoMatchQueries = topN(a.noMatchQueries, a.topN)

	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalQueries) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
