// Package cache keeps query results in Redis, keyed by the loaded index and
// the normalized query, so repeated queries against the same index skip the
// posting reads. Any cache failure falls back to computing the result.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/resilience"
)

const keyPrefix = "bsbi:q:"

// Store is the subset of the Redis client the cache needs.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type QueryCache struct {
	store       Store
	fingerprint string
	ttl         time.Duration
	group       singleflight.Group
	breaker     *resilience.Breaker
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// New returns a cache for the index identified by fingerprint.
func New(store Store, fingerprint string, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		store:       store,
		fingerprint: fingerprint,
		ttl:         ttl,
		metrics:     m,
		logger:      slog.Default().With("component", "query-cache"),
	}
}

// WithBreaker routes store calls through b, so an unreachable store is
// skipped instead of being waited on for every query.
func (c *QueryCache) WithBreaker(b *resilience.Breaker) *QueryCache {
	c.breaker = b
	return c
}

func (c *QueryCache) guard(fn func() error) error {
	if c.breaker == nil {
		return fn()
	}
	return c.breaker.Do(fn)
}

func (c *QueryCache) Get(ctx context.Context, plan *parser.QueryPlan) (*executor.SearchResult, bool) {
	key := c.Key(plan)
	var (
		data  []byte
		found bool
	)
	err := c.guard(func() error {
		var err error
		data, found, err = c.store.Get(ctx, key)
		return err
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		c.metrics.CacheMissesTotal.Inc()
		return nil, false
	}
	if err != nil {
		c.logger.Error("cache get failed", "key", key, "error", err)
		c.metrics.CacheMissesTotal.Inc()
		return nil, false
	}
	if !found {
		c.metrics.CacheMissesTotal.Inc()
		return nil, false
	}
	var result executor.SearchResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.metrics.CacheMissesTotal.Inc()
		return nil, false
	}
	c.metrics.CacheHitsTotal.Inc()
	c.logger.Debug("cache hit", "query", plan.RawQuery, "key", key)
	// The cached copy carries the query under which it was first stored.
	result.Query = plan.RawQuery
	return &result, true
}

func (c *QueryCache) Set(ctx context.Context, plan *parser.QueryPlan, result *executor.SearchResult) {
	key := c.Key(plan)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.guard(func() error {
		return c.store.Set(ctx, key, data, c.ttl)
	})
	if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result for plan, or runs compute once for
// all concurrent callers with the same key and stores its result. hit
// reports whether the result came from the cache.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	plan *parser.QueryPlan,
	compute func() (*executor.SearchResult, error),
) (result *executor.SearchResult, hit bool, err error) {
	if result, ok := c.Get(ctx, plan); ok {
		return result, true, nil
	}
	val, err, _ := c.group.Do(c.Key(plan), func() (any, error) {
		result, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, plan, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*executor.SearchResult), false, nil
}

// Invalidate drops every cached result, for all indexes.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

// Key derives the cache key of plan for this index.
func (c *QueryCache) Key(plan *parser.QueryPlan) string {
	hash := sha256.Sum256([]byte(c.fingerprint + "\x00" + plan.Normalized()))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
