package model

import "time"

// Room 共享听歌房间
// 创建后基本只读；访问控制由链上订阅合约（NFTID）负责，不在本服务范围内。
type Room struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	Name      string    `json:"name" gorm:"size:100;not null"`
	CreatorID string    `json:"creatorId" gorm:"size:64;index;not null"`
	NFTID     int64     `json:"nftId" gorm:"column:nft_id;index"` // 链上订阅/门票引用
	IsPublic  bool      `json:"isPublic" gorm:"not null;default:true"`
	Slug      string    `json:"slug" gorm:"size:16;uniqueIndex;not null"` // 短地址，用于房间寻址
	CreatedAt time.Time `json:"createdAt"`
}

// TableName 指定表名
func (Room) TableName() string {
	return "rooms"
}

// Message 房间聊天消息
type Message struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	RoomID    string    `json:"roomId" gorm:"size:36;index;not null"`
	UserID    string    `json:"userId" gorm:"size:64;not null"`
	Type      string    `json:"type" gorm:"size:20;default:'user_chat'"`
	Content   string    `json:"content" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"createdAt" gorm:"index"`
}

// TableName 指定表名
func (Message) TableName() string {
	return "messages"
}

// RoomView 房间实时视图（订阅适配器对外暴露的快照）
// Songs 按 addedAt 升序排列，第一个元素即当前歌曲。
type RoomView struct {
	Room          *Room   `json:"room"`
	IsLoadingRoom bool    `json:"isLoadingRoom"`
	Songs         []*Song `json:"songs"`
}

// CurrentSong 返回当前歌曲（addedAt 最小者），无歌曲时返回 nil
func (v *RoomView) CurrentSong() *Song {
	if v == nil || len(v.Songs) == 0 {
		return nil
	}
	return v.Songs[0]
}

// ========== 常量定义 ==========

const (
	// 消息类型
	MessageTypeUserChat = "user_chat"
	MessageTypeSystem   = "system"
)
