package queue

import (
	"context"
	"fmt"
	"time"

	"chowlive/logger"
	"chowlive/model"
	"chowlive/repository"

	"github.com/google/uuid"
)

// ChangeNotifier 队列变更通知发布方
type ChangeNotifier interface {
	PublishQueueChange(ctx context.Context, roomID string) error
}

// Authority 队列权威：歌曲记录唯一的写入方
// 所有客户端对 progress/isPaused 的修改都必须经过这里；写入前
// 基于服务端时钟重算真值。并发安全依赖记录粒度的条件判断
// （trackRef 匹配、记录是否仍存在），而非锁：失败方静默放弃。
type Authority struct {
	songs    repository.SongRepository
	notifier ChangeNotifier
	nowFn    func() int64
}

// NewAuthority 创建队列权威
func NewAuthority(songs repository.SongRepository, notifier ChangeNotifier) *Authority {
	return &Authority{
		songs:    songs,
		notifier: notifier,
		nowFn:    func() int64 { return time.Now().UnixMilli() },
	}
}

// Enqueue 入队一首曲目，返回新歌曲记录的ID
// 房间已有歌曲时新记录以暂停态入队（避免后台突然开播）；
// 队列为空时直接以播放态入队。
func (a *Authority) Enqueue(ctx context.Context, roomID, trackRef string, durationMS int64) (string, error) {
	if roomID == "" || trackRef == "" || durationMS <= 0 {
		return "", fmt.Errorf("invalid enqueue request: roomId=%q trackRef=%q duration=%d", roomID, trackRef, durationMS)
	}

	hasSong, err := a.songs.HasSong(ctx, roomID)
	if err != nil {
		return "", fmt.Errorf("查询房间队列失败: %w", err)
	}

	now := a.nowFn()
	song := &model.Song{
		ID:         uuid.NewString(),
		RoomID:     roomID,
		TrackRef:   trackRef,
		Progress:   0,
		IsPaused:   hasSong,
		UpdatedAt:  model.FlexMillis(now),
		AddedAt:    now,
		DurationMS: durationMS,
	}

	if err := a.songs.Create(ctx, song); err != nil {
		return "", fmt.Errorf("创建歌曲记录失败: %w", err)
	}

	a.publishChange(ctx, roomID)

	logger.Info("song enqueued",
		logger.String("roomId", roomID),
		logger.String("songId", song.ID),
		logger.String("trackRef", trackRef),
		logger.Bool("paused", song.IsPaused))

	return song.ID, nil
}

// SetPause 切换播放/暂停
// 转为暂停时将服务端推算位置冻结进 progress；转为播放时仅更新
// updatedAt（progress 即恢复起点，此后由估算器叠加流逝时间）。
// 状态未变化或记录不存在时静默返回。
func (a *Authority) SetPause(ctx context.Context, songID string, paused bool) error {
	song, err := a.songs.GetByID(ctx, songID)
	if err != nil {
		return fmt.Errorf("读取歌曲记录失败: %w", err)
	}
	if song == nil {
		// 记录已被并发删除，按成功处理
		return nil
	}
	if song.IsPaused == paused {
		return nil
	}

	now := a.nowFn()
	fields := map[string]interface{}{
		"is_paused":  paused,
		"updated_at": now,
	}
	if paused {
		fields["progress"] = a.serverProgress(song, now)
	}

	if err := a.songs.UpdateFields(ctx, songID, fields); err != nil {
		return fmt.Errorf("更新播放状态失败: %w", err)
	}

	a.publishChange(ctx, song.RoomID)

	logger.Info("playback toggled",
		logger.String("roomId", song.RoomID),
		logger.String("songId", songID),
		logger.Bool("paused", paused))

	return nil
}

// Skip 切歌
// 守卫条件（任一不满足即静默无操作）：
//   - 记录仍存在（并发二次 Skip 天然幂等）
//   - 记录当前 trackRef 与客户端视图一致（客户端视图过期则拒绝）
//   - endOfTrack 时服务端推算进度已到达 duration（客户端时钟偏差
//     导致的过早"播完"判断则拒绝）
//
// 成功后删除当前记录，并把同房间 addedAt 次小的记录置为播放态。
func (a *Authority) Skip(ctx context.Context, songID, expectedTrackRef string, endOfTrack bool) error {
	song, err := a.songs.GetByID(ctx, songID)
	if err != nil {
		return fmt.Errorf("读取歌曲记录失败: %w", err)
	}
	if song == nil {
		// 已被其他参与者切掉，无操作
		return nil
	}

	if song.TrackRef != expectedTrackRef {
		logger.Debug("skip rejected: stale client view",
			logger.String("songId", songID),
			logger.String("expected", expectedTrackRef),
			logger.String("actual", song.TrackRef))
		return nil
	}

	now := a.nowFn()
	if endOfTrack && song.DurationMS > a.serverProgress(song, now) {
		logger.Debug("skip rejected: server does not consider song over",
			logger.String("songId", songID),
			logger.Int64("duration", song.DurationMS))
		return nil
	}

	if err := a.songs.Delete(ctx, songID); err != nil {
		return fmt.Errorf("删除歌曲记录失败: %w", err)
	}

	next, err := a.songs.NextAfter(ctx, song.RoomID, song.AddedAt)
	if err != nil {
		return fmt.Errorf("查询下一首失败: %w", err)
	}
	if next != nil {
		// 自动开播下一首
		fields := map[string]interface{}{
			"is_paused":  false,
			"updated_at": now,
		}
		if err := a.songs.UpdateFields(ctx, next.ID, fields); err != nil {
			return fmt.Errorf("推进队列失败: %w", err)
		}
	}

	a.publishChange(ctx, song.RoomID)

	logger.Info("queue advanced",
		logger.String("roomId", song.RoomID),
		logger.String("skipped", songID),
		logger.Bool("endOfTrack", endOfTrack))

	return nil
}

// serverProgress 基于服务端时钟重算当前位置（不做上界收敛，
// 冻结值保持线性以便恢复播放时直接作为起点）
func (a *Authority) serverProgress(song *model.Song, nowMS int64) int64 {
	updatedMS, ok := song.UpdatedAt.Millis()
	if !ok || song.IsPaused {
		return song.Progress
	}
	if elapsed := nowMS - updatedMS; elapsed > 0 {
		return song.Progress + elapsed
	}
	return song.Progress
}

// publishChange 发布变更通知，失败仅告警（订阅方有兜底的全量重读）
func (a *Authority) publishChange(ctx context.Context, roomID string) {
	if a.notifier == nil {
		return
	}
	if err := a.notifier.PublishQueueChange(ctx, roomID); err != nil {
		logger.Warn("failed to publish queue change",
			logger.ErrorField(err),
			logger.String("roomId", roomID))
	}
}
