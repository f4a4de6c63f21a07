// Package resultcache caches completed review results keyed by a normalized
// query hash.
package resultcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"time"

	apperrors "github.com/beartec-jpg/Ai-Peer-review/internal/common/errors"
	"github.com/beartec-jpg/Ai-Peer-review/internal/common/logger"
	"github.com/beartec-jpg/Ai-Peer-review/internal/common/metrics"
	"github.com/beartec-jpg/Ai-Peer-review/internal/models"
)

const (
	DefaultPrefix = "peer-review:"
	DefaultTTL    = 86400 * time.Second
)

// ErrCacheUnavailable wraps backend failures surfaced by Clear and ClearAll.
// Lookups and writes never return it; they degrade to misses.
var ErrCacheUnavailable = apperrors.Sentinel(apperrors.ErrCodeCacheUnavailable, "Cache unavailable")

type Config struct {
	Prefix string
	TTL    time.Duration
}

// Cache counts its own lookups; counters reset on ClearAll.
type Cache struct {
	backend Backend
	config  Config
	logger  logger.Logger

	totalQueries atomic.Int64
	hits         atomic.Int64
	misses       atomic.Int64
}

func New(backend Backend, config Config, log logger.Logger) *Cache {
	if config.Prefix == "" {
		config.Prefix = DefaultPrefix
	}
	if config.TTL <= 0 {
		config.TTL = DefaultTTL
	}
	return &Cache{
		backend: backend,
		config:  config,
		logger:  log.WithFields(map[string]interface{}{"component": "result-cache"}),
	}
}

// Key hashes the trimmed, lowercased query under the cache prefix.
func (c *Cache) Key(query string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(query))))
	return c.config.Prefix + hex.EncodeToString(sum[:])
}

// Get returns a copy of the cached result. Backend and decode failures are
// logged and reported as misses.
func (c *Cache) Get(ctx context.Context, query string) (*models.Result, bool) {
	c.totalQueries.Add(1)
	key := c.Key(query)

	raw, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache get failed", map[string]interface{}{"key": key, "error": err})
		return c.miss()
	}
	if !ok {
		return c.miss()
	}

	var result models.Result
	if err := json.Unmarshal(raw, &result); err != nil {
		c.logger.Warn("cache entry undecodable", map[string]interface{}{"key": key, "error": err})
		return c.miss()
	}

	c.hits.Add(1)
	metrics.CacheLookups.WithLabelValues("hit").Inc()
	return &result, true
}

func (c *Cache) miss() (*models.Result, bool) {
	c.misses.Add(1)
	metrics.CacheLookups.WithLabelValues("miss").Inc()
	return nil, false
}

// Set stores result, overwriting any previous entry. A non-positive ttl uses
// the configured default.
func (c *Cache) Set(ctx context.Context, query string, result *models.Result, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.config.TTL
	}
	key := c.Key(query)

	stored := result.Clone()
	stored.FromCache = false
	raw, err := json.Marshal(stored)
	if err != nil {
		c.logger.Warn("cache encode failed", map[string]interface{}{"key": key, "error": err})
		return
	}
	if err := c.backend.SetWithTTL(ctx, key, raw, ttl); err != nil {
		c.logger.Warn("cache set failed", map[string]interface{}{"key": key, "error": err})
	}
}

// Clear removes the entry for query.
func (c *Cache) Clear(ctx context.Context, query string) error {
	if err := c.backend.Delete(ctx, c.Key(query)); err != nil {
		c.logger.Warn("cache clear failed", map[string]interface{}{"error": err})
		return fmt.Errorf("%w: clear entry: %w", ErrCacheUnavailable, err)
	}
	return nil
}

// ClearAll removes every prefixed entry and resets the counters.
func (c *Cache) ClearAll(ctx context.Context) error {
	keys, err := c.backend.ListKeysByPrefix(ctx, c.config.Prefix)
	if err == nil {
		err = c.backend.Delete(ctx, keys...)
	}
	if err != nil {
		c.logger.Warn("cache clear all failed", map[string]interface{}{"error": err})
		return fmt.Errorf("%w: clear all: %w", ErrCacheUnavailable, err)
	}

	c.totalQueries.Store(0)
	c.hits.Store(0)
	c.misses.Store(0)
	return nil
}

// Stats reports counters and the number of live entries. hitRate is a
// percentage rounded to two decimals.
func (c *Cache) Stats(ctx context.Context) models.CacheStats {
	stats := models.CacheStats{
		TotalQueries: c.totalQueries.Load(),
		CacheHits:    c.hits.Load(),
		CacheMisses:  c.misses.Load(),
	}
	if stats.TotalQueries > 0 {
		stats.HitRate = round2(float64(stats.CacheHits) / float64(stats.TotalQueries) * 100)
	}

	keys, err := c.backend.ListKeysByPrefix(ctx, c.config.Prefix)
	if err != nil {
		c.logger.Warn("cache size unavailable", map[string]interface{}{"error": err})
		return stats
	}
	stats.CacheSize = len(keys)
	return stats
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
