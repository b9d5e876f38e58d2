package cache

import (
	"context"
	"fmt"

	"chowlive/logger"

	"github.com/redis/go-redis/v9"
)

const roomQueueChannel = "room:%s:queue" // Pub/Sub: 队列变更通知

// QueueNotifier 房间队列变更通知
// 队列权威每次成功写入后发布一条通知；订阅适配器收到通知后
// 重新拉取队列快照。通知本身不携带数据，仅作为"该重读了"的信号。
type QueueNotifier struct {
	client *redis.Client
}

// NewQueueNotifier 创建通知器
func NewQueueNotifier(client *redis.Client) *QueueNotifier {
	return &QueueNotifier{client: client}
}

// PublishQueueChange 发布房间队列变更
func (n *QueueNotifier) PublishQueueChange(ctx context.Context, roomID string) error {
	if n.client == nil {
		return fmt.Errorf("redis client not initialized")
	}
	channel := fmt.Sprintf(roomQueueChannel, roomID)
	return n.client.Publish(ctx, channel, "1").Err()
}

// SubscribeQueueChanges 订阅房间队列变更
// 返回的信号通道会合并密集的通知（缓冲为 1），调用返回的
// 取消函数后通道关闭，不再有信号。
func (n *QueueNotifier) SubscribeQueueChanges(ctx context.Context, roomID string) (<-chan struct{}, func(), error) {
	if n.client == nil {
		return nil, nil, fmt.Errorf("redis client not initialized")
	}

	channel := fmt.Sprintf(roomQueueChannel, roomID)
	pubsub := n.client.Subscribe(ctx, channel)

	// 确认订阅已建立，避免错过紧随其后的第一条通知
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, nil, fmt.Errorf("failed to subscribe queue channel: %w", err)
	}

	signals := make(chan struct{}, 1)
	go func() {
		defer close(signals)
		for range pubsub.Channel() {
			select {
			case signals <- struct{}{}:
			default:
				// 上一条信号还未被消费，合并
			}
		}
	}()

	unsubscribe := func() {
		if err := pubsub.Close(); err != nil {
			logger.Warn("failed to close queue subscription",
				logger.ErrorField(err),
				logger.String("roomId", roomID))
		}
	}
	return signals, unsubscribe, nil
}
