// Package cache memoises rendered search responses in Redis, collapsing
// concurrent identical queries into a single execution.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/phakpoomachalanan/WebIR/pkg/logger"
	"github.com/phakpoomachalanan/WebIR/pkg/metrics"
	"github.com/phakpoomachalanan/WebIR/pkg/redis"
)

const keyPrefix = "webir:search:"

// QueryCache fronts search execution with a Redis lookup. A nil Redis client
// disables caching but keeps the singleflight collapsing, so the serve path
// never needs to branch on configuration.
type QueryCache struct {
	client  *redis.Client
	ttl     time.Duration
	metrics *metrics.Metrics
	group   singleflight.Group
	log     *slog.Logger
}

// New builds a QueryCache. client may be nil.
func New(client *redis.Client, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		client:  client,
		ttl:     ttl,
		metrics: m,
		log:     logger.WithComponent("cache"),
	}
}

// Key derives the cache key for a query execution from its identifying parts
// (query string, field, limit, index generation). Hashing keeps arbitrary
// query text safe as a Redis key.
func (c *QueryCache) Key(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return keyPrefix + hex.EncodeToString(sum[:16])
}

// GetOrCompute returns the cached payload for key, or runs compute, caches
// its result, and returns it. The second return reports a cache hit.
// Concurrent callers with the same key share one compute call. Cache errors
// degrade to computing directly; a search must never fail because Redis did.
func (c *QueryCache) GetOrCompute(ctx context.Context, key string, compute func(context.Context) ([]byte, error)) ([]byte, bool, error) {
	if c.client != nil {
		cached, err := c.client.Get(ctx, key)
		if err == nil {
			if c.metrics != nil {
				c.metrics.CacheHitsTotal.Inc()
			}
			return []byte(cached), true, nil
		}
		if !redis.IsNilError(err) {
			c.log.Warn("cache read failed", "error", err)
		}
		if c.metrics != nil {
			c.metrics.CacheMissesTotal.Inc()
		}
	}

	payload, err, _ := c.group.Do(key, func() (interface{}, error) {
		data, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		if c.client != nil {
			if err := c.client.Set(ctx, key, string(data), c.ttl); err != nil {
				c.log.Warn("cache write failed", "error", err)
			}
		}
		return data, nil
	})
	if err != nil {
		return nil, false, err
	}
	return payload.([]byte), false, nil
}

// Invalidate drops every cached search response. Called after a commit makes
// new documents visible.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	deleted, err := c.client.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return err
	}
	c.log.Info("cache invalidated", "keys", deleted)
	return nil
}
