package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	trackDetailKey = "track:%s" // String: TrackDetail JSON
	trackTTL       = 24 * time.Hour
)

// TrackDetail 外部曲库的曲目元数据
type TrackDetail struct {
	TrackRef   string   `json:"trackRef"`
	Name       string   `json:"name"`
	Artists    []string `json:"artists"`
	Album      string   `json:"album"`
	DurationMS int64    `json:"durationMs"`
	CoverURL   string   `json:"coverUrl,omitempty"`
}

// TrackCache 曲目元数据缓存
// 有界（TTL 过期）缓存，由纠偏上下文显式持有并传递。
// 重新认证后必须调用 InvalidateAll：旧令牌拉取的元数据可能
// 带有地区/账号相关的差异。
type TrackCache struct {
	client *redis.Client
}

// NewTrackCache 创建曲目缓存
func NewTrackCache(client *redis.Client) *TrackCache {
	return &TrackCache{client: client}
}

// Get 获取曲目元数据，未命中返回 (nil, nil)
func (c *TrackCache) Get(ctx context.Context, trackRef string) (*TrackDetail, error) {
	if c.client == nil {
		return nil, fmt.Errorf("redis client not initialized")
	}

	key := fmt.Sprintf(trackDetailKey, trackRef)
	data, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var detail TrackDetail
	if err := json.Unmarshal([]byte(data), &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Set 写入曲目元数据
func (c *TrackCache) Set(ctx context.Context, detail *TrackDetail) error {
	if c.client == nil {
		return fmt.Errorf("redis client not initialized")
	}

	data, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("failed to marshal track detail: %w", err)
	}

	key := fmt.Sprintf(trackDetailKey, detail.TrackRef)
	return c.client.Set(ctx, key, data, trackTTL).Err()
}

// InvalidateAll 清空全部曲目缓存（重新认证后调用）
func (c *TrackCache) InvalidateAll(ctx context.Context) error {
	if c.client == nil {
		return fmt.Errorf("redis client not initialized")
	}

	pattern := fmt.Sprintf(trackDetailKey, "*")
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}
