// Package cache provides caching implementations for repository interfaces.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"price_engine/internal/feature/prices/domain/entity"
	"price_engine/internal/feature/prices/usecase"
)

// TTLFunc returns how long a cached history window for symbol stays valid.
type TTLFunc func(symbol string, now time.Time) time.Duration

// CachingHistoryRepository decorates a HistoryRepository with a Redis
// read-through cache for Find. Every other method passes through, and writes
// invalidate the affected symbol's windows.
type CachingHistoryRepository struct {
	usecase.HistoryRepository
	rdb       *redis.Client
	ttl       TTLFunc
	namespace string
	now       func() time.Time
}

var _ usecase.HistoryRepository = (*CachingHistoryRepository)(nil)

// NewCachingHistoryRepository decorates inner with Redis caching.
// If ttl is nil, it uses TimeUntilNextClose. If namespace is empty, it uses "history".
func NewCachingHistoryRepository(rdb *redis.Client, ttl TTLFunc, inner usecase.HistoryRepository, namespace string) *CachingHistoryRepository {
	if ttl == nil {
		ttl = TimeUntilNextClose
	}
	if namespace == "" {
		namespace = "history"
	}
	return &CachingHistoryRepository{
		HistoryRepository: inner,
		rdb:               rdb,
		ttl:               ttl,
		namespace:         namespace,
		now:               time.Now,
	}
}

func dayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Find returns points since the start of since's UTC day, checking the cache first.
func (c *CachingHistoryRepository) Find(ctx context.Context, symbol string, since time.Time) ([]entity.HistoricalPoint, error) {
	since = dayStart(since)
	// Bypass cache if Redis is not configured
	if c.rdb == nil {
		return c.HistoryRepository.Find(ctx, symbol, since)
	}

	key := c.cacheKey(symbol, since)

	// 1) Check cache
	if b, err := c.rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		var out []entity.HistoricalPoint
		if err := json.Unmarshal(b, &out); err == nil {
			return out, nil
		}
		// Delete corrupted cache entry
		_ = c.rdb.Del(ctx, key).Err()
	}

	// 2) Fallback to database
	out, err := c.HistoryRepository.Find(ctx, symbol, since)
	if err != nil {
		return nil, err
	}

	// 3) Store in cache (best effort)
	if b, err := json.Marshal(out); err == nil {
		_ = c.rdb.Set(ctx, key, b, c.ttl(symbol, c.now())).Err()
	}
	return out, nil
}

// InsertBatch stores points and invalidates cached windows of every affected symbol.
func (c *CachingHistoryRepository) InsertBatch(ctx context.Context, points []entity.HistoricalPoint) (int, error) {
	n, err := c.HistoryRepository.InsertBatch(ctx, points)
	if err != nil || c.rdb == nil || n == 0 {
		return n, err
	}

	seen := map[string]struct{}{}
	for _, p := range points {
		if _, ok := seen[p.Symbol]; ok {
			continue
		}
		seen[p.Symbol] = struct{}{}
		_ = c.deleteByPattern(ctx, c.cacheKeyPrefix(p.Symbol)+"*") // best effort
	}
	return n, nil
}

// DeleteBefore removes old points and drops the whole namespace when anything was deleted.
func (c *CachingHistoryRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := c.HistoryRepository.DeleteBefore(ctx, cutoff)
	if err != nil || c.rdb == nil || n == 0 {
		return n, err
	}
	_ = c.deleteByPattern(ctx, c.namespace+":*")
	return n, nil
}

func (c *CachingHistoryRepository) cacheKey(symbol string, since time.Time) string {
	return fmt.Sprintf("%s%s", c.cacheKeyPrefix(symbol), since.Format(time.DateOnly))
}

func (c *CachingHistoryRepository) cacheKeyPrefix(symbol string) string {
	return fmt.Sprintf("%s:%s:", c.namespace, safe(symbol))
}

// deleteByPattern deletes all cache keys matching a given pattern using SCAN.
func (c *CachingHistoryRepository) deleteByPattern(ctx context.Context, pattern string) error {
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

// safe escapes characters that are problematic for Redis keys and glob patterns.
func safe(s string) string {
	return strings.NewReplacer(" ", "_", ":", "_", "*", "_", "?", "_", "[", "_").Replace(s)
}
