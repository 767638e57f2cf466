package di

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"price_engine/internal/platform/config"
	infraredis "price_engine/internal/platform/redis"
)

// NewOptionalRedis はRedisクライアントを返します。
// Hostが未設定、または接続できない場合は nil を返し、キャッシュなしで動作します。
func NewOptionalRedis(ctx context.Context, cfg config.RedisConfig) *redis.Client {
	if cfg.Host == "" {
		slog.Info("redis disabled; running without read-through cache and snapshots")
		return nil
	}
	rdb, err := infraredis.NewRedisClient(ctx, cfg)
	if err != nil {
		slog.Warn("redis unavailable; running without cache", "addr", cfg.Addr(), "error", err)
		return nil
	}
	return rdb
}
