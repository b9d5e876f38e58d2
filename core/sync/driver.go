package sync

import (
	"context"
	"errors"

	"chowlive/model"
)

// ErrReauthRequired 外部播放器驱动认证失效（HTTP 401 等价）
// 区别于瞬时错误：收到该错误后应停止纠偏动作并触发重新认证流程，
// 不得在紧密循环中重试驱动。
var ErrReauthRequired = errors.New("player driver requires re-authentication")

// PlayerDriver 外部播放器驱动
// 封装流媒体服务的设备控制能力，每个监听会话持有各自的驱动实例
// （各自的访问令牌）。所有调用都可能失败，超时由调用方通过 ctx 约束。
type PlayerDriver interface {
	// Status 获取播放器实际状态
	Status(ctx context.Context) (*model.PlayerStatus, error)
	// PlayAt 从指定位置开始播放指定曲目
	PlayAt(ctx context.Context, trackRef string, positionMS int64) error
	// Pause 暂停播放
	Pause(ctx context.Context) error
}

// QueueClient 队列权威的远端调用面（纠偏循环只需要 Skip）
type QueueClient interface {
	// Skip 请求切歌；endOfTrack 表示因歌曲自然播完触发
	Skip(ctx context.Context, songID, expectedTrackRef string, endOfTrack bool) error
}
