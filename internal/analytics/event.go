// Package analytics aggregates query traffic in-process: every search
// is recorded off the request path, summarised on demand, and
// optionally forwarded to Kafka and snapshotted to Postgres.
package analytics

import "time"

// QueryEvent describes one answered search.
type QueryEvent struct {
	Query     string    `json:"query"`
	Terms     []string  `json:"terms"`
	TotalHits int       `json:"total_hits"`
	Returned  int       `json:"returned"`
	NoMatch   string    `json:"no_match,omitempty"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}
