package repository

import (
	"context"

	"chowlive/model"

	"gorm.io/gorm"
)

// RoomRepository 房间数据访问接口
type RoomRepository interface {
	// 房间 CRUD
	Create(ctx context.Context, room *model.Room) error
	GetByID(ctx context.Context, id string) (*model.Room, error)
	GetBySlug(ctx context.Context, slug string) (*model.Room, error)
	GetByNFTID(ctx context.Context, nftID int64) (*model.Room, error)
	ListPublic(ctx context.Context, limit, offset int) ([]*model.Room, error)
	ExistsBySlug(ctx context.Context, slug string) (bool, error)

	// 消息管理
	CreateMessage(ctx context.Context, msg *model.Message) error
	GetMessages(ctx context.Context, roomID string, limit, offset int) ([]*model.Message, error)
}

// gormRoomRepository GORM 实现
type gormRoomRepository struct {
	db *gorm.DB
}

// NewGormRoomRepository 创建 GORM 房间仓库
func NewGormRoomRepository(db *gorm.DB) RoomRepository {
	return &gormRoomRepository{db: db}
}

// ========== 房间 CRUD ==========

// Create 创建房间
func (r *gormRoomRepository) Create(ctx context.Context, room *model.Room) error {
	return r.db.WithContext(ctx).Create(room).Error
}

// GetByID 根据ID获取房间
func (r *gormRoomRepository) GetByID(ctx context.Context, id string) (*model.Room, error) {
	var room model.Room
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&room).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &room, nil
}

// GetBySlug 根据短地址获取房间
func (r *gormRoomRepository) GetBySlug(ctx context.Context, slug string) (*model.Room, error) {
	var room model.Room
	err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&room).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &room, nil
}

// GetByNFTID 根据链上订阅引用获取房间
func (r *gormRoomRepository) GetByNFTID(ctx context.Context, nftID int64) (*model.Room, error) {
	var room model.Room
	err := r.db.WithContext(ctx).Where("nft_id = ?", nftID).First(&room).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &room, nil
}

// ListPublic 获取公开房间列表
func (r *gormRoomRepository) ListPublic(ctx context.Context, limit, offset int) ([]*model.Room, error) {
	var rooms []*model.Room
	err := r.db.WithContext(ctx).
		Where("is_public = ?", true).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rooms).Error
	return rooms, err
}

// ExistsBySlug 检查短地址是否已被占用
func (r *gormRoomRepository) ExistsBySlug(ctx context.Context, slug string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Room{}).
		Where("slug = ?", slug).
		Count(&count).Error
	return count > 0, err
}

// ========== 消息管理 ==========

// CreateMessage 创建消息
func (r *gormRoomRepository) CreateMessage(ctx context.Context, msg *model.Message) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

// GetMessages 获取消息列表（按时间倒序获取，返回时按时间正序）
func (r *gormRoomRepository) GetMessages(ctx context.Context, roomID string, limit, offset int) ([]*model.Message, error) {
	var messages []*model.Message
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
