package utils

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/inkwell/blog/config"
)

// OpenRedis builds the client shared by the session backend and the post
// cache. It returns nil when cfg names no redis host. An unreachable server
// is logged but not fatal: sessions fail closed and the cache misses until
// it comes back.
func OpenRedis(ctx context.Context, cfg config.AppConfig) *redis.Client {
	if cfg.RedisHost == "" {
		return nil
	}
	addr := net.JoinHostPort(cfg.RedisHost, strconv.Itoa(cfg.RedisPort))
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  cfg.StoreTimeout(),
		WriteTimeout: cfg.StoreTimeout(),
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		Logger.Warn("redis unreachable at startup", zap.String("addr", addr), zap.Error(err))
	}
	return client
}
