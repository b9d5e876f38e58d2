package db

import (
	"context"
	"fmt"
	"time"

	"chowlive/config"

	"github.com/redis/go-redis/v9"
)

// RedisClient 全局 Redis 客户端
// 队列变更通知（pub/sub）、曲目详情缓存、在线状态都走这个连接。
var RedisClient *redis.Client

// ConnectRedis 初始化 Redis 连接
func ConnectRedis(cfg *config.Config) error {
	RedisClient = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := RedisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return nil
}

// CloseRedis 关闭 Redis 连接
func CloseRedis() error {
	if RedisClient != nil {
		return RedisClient.Close()
	}
	return nil
}
