package sync

import "chowlive/model"

const (
	// DefaultToleranceMS 默认漂移容忍窗口（毫秒）
	DefaultToleranceMS int64 = 3000

	// songEndWindowMS 推算位置距 duration 小于该值视作歌曲播完
	songEndWindowMS int64 = 1000
)

// ActionKind 纠偏动作类型
type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionPause
	ActionPlayAt
	ActionSkip
)

// String 返回动作名称（日志用）
func (k ActionKind) String() string {
	switch k {
	case ActionPause:
		return "pause"
	case ActionPlayAt:
		return "play_at"
	case ActionSkip:
		return "skip"
	default:
		return "none"
	}
}

// Action 一次纠偏决策
type Action struct {
	Kind       ActionKind
	PositionMS int64 // 仅 ActionPlayAt 使用
}

// IsSynchronized 判断客户端位置是否在容忍窗口内
// toleranceMS <= 0 时使用默认窗口。
func IsSynchronized(serverPosMS, clientPosMS, toleranceMS int64) bool {
	if toleranceMS <= 0 {
		toleranceMS = DefaultToleranceMS
	}
	drift := serverPosMS - clientPosMS
	if drift < 0 {
		drift = -drift
	}
	return drift <= toleranceMS
}

// ClassifyAction 根据权威快照和客户端播放器状态决定纠偏动作
// estimatedMS 为服务端推算位置（调用方已通过 Estimate 计算）。
// 判定顺序：
//  1. 歌曲播完（未暂停且距 duration 不足 1 秒）→ Skip
//  2. 服务端暂停但客户端在播 → Pause
//  3. 服务端播放但客户端暂停 → PlayAt(推算位置)
//  4. 双方都在播但漂移超窗 → PlayAt(推算位置) 强制重定位
//  5. 其余 → None
func ClassifyAction(song *model.Song, estimatedMS int64, status *model.PlayerStatus, toleranceMS int64) Action {
	if song == nil || status == nil {
		return Action{Kind: ActionNone}
	}

	if !song.IsPaused && song.DurationMS > 0 && song.DurationMS-estimatedMS <= songEndWindowMS {
		return Action{Kind: ActionSkip}
	}

	if song.IsPaused && status.IsPlaying {
		return Action{Kind: ActionPause}
	}

	if !song.IsPaused && !status.IsPlaying {
		return Action{Kind: ActionPlayAt, PositionMS: estimatedMS}
	}

	if !song.IsPaused && status.IsPlaying &&
		!IsSynchronized(estimatedMS, status.PositionMS, toleranceMS) {
		return Action{Kind: ActionPlayAt, PositionMS: estimatedMS}
	}

	return Action{Kind: ActionNone}
}
