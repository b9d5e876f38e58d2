package model

// Song 队列中的歌曲记录
// 服务端不推进进度：progress 只在暂停/切歌时写入，播放位置由
// progress + (now - updatedAt) 推算。addedAt 严格递增，决定队列顺序。
type Song struct {
	ID         string   `json:"id" gorm:"primaryKey;size:36"`
	RoomID     string   `json:"roomId" gorm:"size:36;not null;index:idx_songs_room_added,priority:1"`
	TrackRef   string   `json:"trackRef" gorm:"size:128;not null"` // 播放源曲目引用（spotify URI 等）
	Progress   int64    `json:"progress" gorm:"not null;default:0"`
	IsPaused   bool     `json:"isPaused" gorm:"column:is_paused;not null;default:false"`
	UpdatedAt  FlexTime `json:"updatedAt" gorm:"column:updated_at;type:bigint;autoUpdateTime:false"`
	AddedAt    int64    `json:"addedAt" gorm:"column:added_at;not null;index:idx_songs_room_added,priority:2"`
	DurationMS int64    `json:"durationMs" gorm:"column:duration_ms;not null;default:0"`
}

// TableName 指定表名
func (Song) TableName() string {
	return "songs"
}

// HasTrack 是否携带可播放的曲目引用
func (s *Song) HasTrack() bool {
	return s != nil && s.TrackRef != ""
}

// PlayerStatus 客户端播放器当前状态快照
type PlayerStatus struct {
	PositionMS int64 `json:"positionMs"`
	IsPlaying  bool  `json:"isPlaying"`
}
