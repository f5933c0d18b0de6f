package database

import (
	"context"
	"fmt"
	"time"

	"bugmarket/config"

	"github.com/redis/go-redis/v9"
)

// RDB 可选的 Redis 客户端，未启用时为 nil
var RDB *redis.Client

// InitRedis 连接 Redis，未启用时返回 nil
func InitRedis(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}
	RDB = rdb
	return rdb, nil
}
