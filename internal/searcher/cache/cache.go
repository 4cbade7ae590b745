// Package cache is a Redis-backed result cache for search queries.
// Keys are derived from the normalized term set, so spelling variants
// of the same query share one entry.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/jayc-10/corpusearch/internal/indexer/tokenizer"
	"github.com/jayc-10/corpusearch/internal/searcher/engine"
	"github.com/jayc-10/corpusearch/pkg/config"
	pkgredis "github.com/jayc-10/corpusearch/pkg/redis"
)

const keyPrefix = "search:"

// QueryCache caches engine results in Redis. Concurrent misses for the
// same key are collapsed through singleflight so the engine computes
// each entry once.
type QueryCache struct {
	client *pkgredis.Client
	cfg    config.RedisConfig
	tok    *tokenizer.Tokenizer
	group  singleflight.Group
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

func New(client *pkgredis.Client, cfg config.RedisConfig, tok *tokenizer.Tokenizer) *QueryCache {
	return &QueryCache{
		client: client,
		cfg:    cfg,
		tok:    tok,
		logger: slog.Default().With("component", "query-cache"),
	}
}

func (c *QueryCache) Get(ctx context.Context, query string, limit int) (*engine.Result, bool) {
	key := c.buildKey(query, limit)
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.misses.Add(1)
		return nil, false
	}
	var result engine.Result
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	c.logger.Debug("cache hit", "query", query, "key", key)
	return &result, true
}

func (c *QueryCache) Set(ctx context.Context, query string, limit int, result *engine.Result) {
	key := c.buildKey(query, limit)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.cfg.CacheTTL); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result for query, computing and
// storing it on a miss. The bool reports whether the cache served it.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	query string,
	limit int,
	computeFn func() (*engine.Result, error),
) (*engine.Result, bool, error) {
	if result, ok := c.Get(ctx, query, limit); ok {
		return result, true, nil
	}
	key := c.buildKey(query, limit)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if result, ok := c.Get(ctx, query, limit); ok {
			return result, nil
		}
		result, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, query, limit, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*engine.Result), false, nil
}

// Invalidate drops every cached search result. Called after an index
// reload, since old entries score against the previous generation.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.client.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// buildKey hashes the sorted, deduplicated normalized terms plus the
// limit. Queries that tokenize identically share a key regardless of
// casing, punctuation, or term order.
func (c *QueryCache) buildKey(query string, limit int) string {
	terms := c.tok.Tokenize(query)
	seen := make(map[string]struct{}, len(terms))
	distinct := make([]string, 0, len(terms))
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		distinct = append(distinct, t)
	}
	sort.Strings(distinct)

	raw := fmt.Sprintf("%s:limit=%d", strings.Join(distinct, ","), limit)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
