package sync

import "chowlive/model"

// Estimate 根据权威快照推算 nowMS 时刻的真实播放位置（毫秒）
// 纯函数：无 I/O，给定输入结果确定。
//   - 快照为空返回 0
//   - 暂停时位置冻结在 progress
//   - 播放中为 progress + (nowMS - updatedAt)，上界收敛到 duration（已知时），
//     下界收敛到 0
//   - updatedAt 无法归一化时退回最后已知的 progress
func Estimate(song *model.Song, nowMS int64) int64 {
	if song == nil {
		return 0
	}

	progress := song.Progress
	if song.IsPaused {
		return progress
	}

	updatedMS, ok := song.UpdatedAt.Millis()
	if !ok {
		// 时间戳格式无法识别，软失败
		return progress
	}

	if elapsed := nowMS - updatedMS; elapsed > 0 {
		progress += elapsed
	}

	if song.DurationMS > 0 && progress > song.DurationMS {
		progress = song.DurationMS
	}
	if progress < 0 {
		progress = 0
	}
	return progress
}
