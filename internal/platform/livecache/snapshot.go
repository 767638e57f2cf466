package livecache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"price_engine/internal/feature/prices/domain/entity"
)

// snapshotEntry is the msgpack wire form of a LivePriceEntry.
type snapshotEntry struct {
	Symbol        string   `msgpack:"s"`
	Price         float64  `msgpack:"p"`
	Currency      string   `msgpack:"c"`
	Market        string   `msgpack:"m"`
	LastUpdate    int64    `msgpack:"t"`
	ChangePercent *float64 `msgpack:"cp,omitempty"`
}

// RedisSnapshotStore persists the live cache to Redis so a restarted process starts warm.
// A nil client turns every operation into a no-op.
type RedisSnapshotStore struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

// NewRedisSnapshotStore creates a snapshot store under key.
// If ttl is 0, it defaults to 24 hours. If key is empty, it uses "livecache:snapshot".
func NewRedisSnapshotStore(rdb *redis.Client, key string, ttl time.Duration) *RedisSnapshotStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if key == "" {
		key = "livecache:snapshot"
	}
	return &RedisSnapshotStore{rdb: rdb, key: key, ttl: ttl}
}

// Save writes every entry as a single msgpack blob.
func (s *RedisSnapshotStore) Save(ctx context.Context, entries map[string]entity.LivePriceEntry) error {
	if s.rdb == nil {
		return nil
	}
	out := make([]snapshotEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, snapshotEntry{
			Symbol:        e.Symbol,
			Price:         e.Price,
			Currency:      e.Currency,
			Market:        string(e.Market),
			LastUpdate:    e.LastUpdate.UnixMilli(),
			ChangePercent: e.ChangePercent,
		})
	}
	b, err := msgpack.Marshal(out)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return s.rdb.Set(ctx, s.key, b, s.ttl).Err()
}

// Load reads the last snapshot. A missing snapshot returns no entries and no error.
func (s *RedisSnapshotStore) Load(ctx context.Context) ([]entity.LivePriceEntry, error) {
	if s.rdb == nil {
		return nil, nil
	}
	b, err := s.rdb.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var in []snapshotEntry
	if err := msgpack.Unmarshal(b, &in); err != nil {
		// Drop the corrupted snapshot so the next save starts clean
		_ = s.rdb.Del(ctx, s.key).Err()
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	out := make([]entity.LivePriceEntry, 0, len(in))
	for _, e := range in {
		out = append(out, entity.LivePriceEntry{
			Symbol:        e.Symbol,
			Price:         e.Price,
			Currency:      e.Currency,
			Market:        entity.Market(e.Market),
			LastUpdate:    time.UnixMilli(e.LastUpdate).UTC(),
			ChangePercent: e.ChangePercent,
		})
	}
	return out, nil
}

// Restore loads the snapshot into c and returns how many entries were restored.
func Restore(ctx context.Context, c *Cache, store *RedisSnapshotStore) int {
	entries, err := store.Load(ctx)
	if err != nil {
		slog.Warn("live cache snapshot unavailable", "error", err)
		return 0
	}
	n := c.UpdateBatch(entries)
	if n > 0 {
		slog.Info("live cache restored from snapshot", "entries", n)
	}
	return n
}
