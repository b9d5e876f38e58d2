package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	roomPresenceKey = "room:%s:presence:%s" // String: 监听会话心跳 key (roomID:userID)
	roomPresenceSet = "room:%s:listeners"   // Set: 在线监听者集合
	roomTTL         = 24 * time.Hour
	presenceTTL     = 60 * time.Second
)

// PresenceCache 房间监听者在线状态
// 基于心跳 key 的过期时间判定在线；集合仅作枚举索引，
// 统计时懒清理已过期的成员。
type PresenceCache struct {
	client *redis.Client
}

// NewPresenceCache 创建在线状态缓存
func NewPresenceCache(client *redis.Client) *PresenceCache {
	return &PresenceCache{client: client}
}

// Touch 更新监听者心跳
func (c *PresenceCache) Touch(ctx context.Context, roomID, userID string) error {
	if c.client == nil {
		return fmt.Errorf("redis client not initialized")
	}

	presenceKey := fmt.Sprintf(roomPresenceKey, roomID, userID)
	setKey := fmt.Sprintf(roomPresenceSet, roomID)

	pipe := c.client.Pipeline()
	pipe.Set(ctx, presenceKey, strconv.FormatInt(time.Now().UnixMilli(), 10), presenceTTL)
	pipe.SAdd(ctx, setKey, userID)
	pipe.Expire(ctx, setKey, roomTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// Remove 移除监听者在线状态
func (c *PresenceCache) Remove(ctx context.Context, roomID, userID string) error {
	if c.client == nil {
		return fmt.Errorf("redis client not initialized")
	}

	presenceKey := fmt.Sprintf(roomPresenceKey, roomID, userID)
	setKey := fmt.Sprintf(roomPresenceSet, roomID)

	pipe := c.client.Pipeline()
	pipe.Del(ctx, presenceKey)
	pipe.SRem(ctx, setKey, userID)
	_, err := pipe.Exec(ctx)
	return err
}

// ActiveListeners 获取活跃监听者列表（基于心跳），顺带清理过期成员
func (c *PresenceCache) ActiveListeners(ctx context.Context, roomID string) ([]string, error) {
	if c.client == nil {
		return nil, fmt.Errorf("redis client not initialized")
	}

	setKey := fmt.Sprintf(roomPresenceSet, roomID)
	members, err := c.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return []string{}, nil
	}

	active := make([]string, 0, len(members))
	expired := make([]interface{}, 0)
	for _, userID := range members {
		presenceKey := fmt.Sprintf(roomPresenceKey, roomID, userID)
		exists, err := c.client.Exists(ctx, presenceKey).Result()
		if err != nil {
			continue
		}
		if exists > 0 {
			active = append(active, userID)
		} else {
			expired = append(expired, userID)
		}
	}

	if len(expired) > 0 {
		c.client.SRem(ctx, setKey, expired...)
	}
	return active, nil
}

// ActiveListenerCount 获取活跃监听者数量
func (c *PresenceCache) ActiveListenerCount(ctx context.Context, roomID string) (int64, error) {
	listeners, err := c.ActiveListeners(ctx, roomID)
	if err != nil {
		return 0, err
	}
	return int64(len(listeners)), nil
}
