// Package cache provides caching implementations for repository interfaces.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"price_history/internal/feature/history/domain/entity"
	"price_history/internal/feature/history/usecase"
)

const defaultNamespace = "history:live"

// CachingLiveRepository decorates a LiveRepository with Redis caching.
// Only raw live responses are cached; cascade decisions are never stored.
type CachingLiveRepository struct {
	inner     usecase.LiveRepository
	rdb       *redis.Client
	ttl       time.Duration
	namespace string
}

var _ usecase.LiveRepository = (*CachingLiveRepository)(nil)

// NewCachingLiveRepository decorates inner with Redis caching.
// If ttl is 0 each entry expires at the next session rollover (see TimeUntilNextSession).
// If namespace is empty, it uses "history:live".
func NewCachingLiveRepository(rdb *redis.Client, ttl time.Duration, inner usecase.LiveRepository, namespace string) *CachingLiveRepository {
	if ttl < 0 {
		ttl = 0
	}
	if namespace == "" {
		namespace = defaultNamespace
	}
	return &CachingLiveRepository{
		inner:     inner,
		rdb:       rdb,
		ttl:       ttl,
		namespace: namespace,
	}
}

// GetDailySeries returns the cached response for (symbol, start) or fetches and stores it.
func (c *CachingLiveRepository) GetDailySeries(ctx context.Context, symbol string, start time.Time) (entity.PriceSeries, error) {
	// Bypass cache if Redis is not configured
	if c.rdb == nil {
		return c.inner.GetDailySeries(ctx, symbol, start)
	}

	key := c.cacheKey(symbol, start)

	// 1) check the cache
	if b, err := c.rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		var out entity.PriceSeries
		if err := json.Unmarshal(b, &out); err == nil {
			return out, nil
		}
		// drop corrupted entries
		_ = c.rdb.Del(ctx, key).Err()
	}

	// 2) Fallback to the live API
	out, err := c.inner.GetDailySeries(ctx, symbol, start)
	if err != nil {
		return nil, err
	}

	// 3) Store in cache (best effort)
	if b, err := json.Marshal(out); err == nil {
		_ = c.rdb.Set(ctx, key, b, c.expiry()).Err()
	}

	return out, nil
}

// Purge deletes every cached response for symbol, or the whole namespace when symbol is empty.
func (c *CachingLiveRepository) Purge(ctx context.Context, symbol string) error {
	if c.rdb == nil {
		return nil
	}
	pattern := c.namespace + ":*"
	if symbol != "" {
		pattern = c.cacheKeyPrefix(symbol) + "*"
	}
	return c.deleteByPattern(ctx, pattern)
}

func (c *CachingLiveRepository) expiry() time.Duration {
	if c.ttl > 0 {
		return c.ttl
	}
	return TimeUntilNextSession(time.Now())
}

// cacheKey generates a cache key for a specific request.
func (c *CachingLiveRepository) cacheKey(symbol string, start time.Time) string {
	return c.cacheKeyPrefix(symbol) + entity.Day(start).Format(entity.DateLayout)
}

func (c *CachingLiveRepository) cacheKeyPrefix(symbol string) string {
	return fmt.Sprintf("%s:%s:", c.namespace, safe(symbol))
}

// deleteByPattern deletes all cache keys matching a given pattern using SCAN.
func (c *CachingLiveRepository) deleteByPattern(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, cur, err := c.rdb.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = cur
		if cursor == 0 {
			break
		}
	}
	return nil
}

// safe escapes characters that are problematic for Redis keys.
func safe(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, ":", "_")
	return s
}
