package repository

import (
	"context"

	"chowlive/model"

	"gorm.io/gorm"
)

// SongRepository 歌曲记录数据访问接口
// 写入方仅有队列权威；记录不存在一律返回 (nil, nil) 而非错误，
// 并发删除场景下由调用方按"静默无操作"处理。
type SongRepository interface {
	Create(ctx context.Context, song *model.Song) error
	GetByID(ctx context.Context, id string) (*model.Song, error)
	// ListByRoom 返回房间全部歌曲记录，按 addedAt 升序
	ListByRoom(ctx context.Context, roomID string) ([]*model.Song, error)
	// HasSong 房间是否存在歌曲记录
	HasSong(ctx context.Context, roomID string) (bool, error)
	// NextAfter 返回同房间 addedAt 大于给定值的最早一条记录
	NextAfter(ctx context.Context, roomID string, addedAt int64) (*model.Song, error)
	// UpdateFields 部分字段更新
	UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error
	Delete(ctx context.Context, id string) error
	DeleteByRoom(ctx context.Context, roomID string) error
}

// gormSongRepository GORM 实现
type gormSongRepository struct {
	db *gorm.DB
}

// NewGormSongRepository 创建 GORM 歌曲仓库
func NewGormSongRepository(db *gorm.DB) SongRepository {
	return &gormSongRepository{db: db}
}

// Create 创建歌曲记录
func (r *gormSongRepository) Create(ctx context.Context, song *model.Song) error {
	return r.db.WithContext(ctx).Create(song).Error
}

// GetByID 根据ID获取歌曲记录
func (r *gormSongRepository) GetByID(ctx context.Context, id string) (*model.Song, error) {
	var song model.Song
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&song).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &song, nil
}

// ListByRoom 获取房间歌曲队列（addedAt 升序，队首即当前歌曲）
func (r *gormSongRepository) ListByRoom(ctx context.Context, roomID string) ([]*model.Song, error) {
	var songs []*model.Song
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("added_at ASC").
		Find(&songs).Error
	return songs, err
}

// HasSong 房间是否已有歌曲记录
func (r *gormSongRepository) HasSong(ctx context.Context, roomID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Song{}).
		Where("room_id = ?", roomID).
		Count(&count).Error
	return count > 0, err
}

// NextAfter 获取 addedAt 之后最早入队的歌曲
func (r *gormSongRepository) NextAfter(ctx context.Context, roomID string, addedAt int64) (*model.Song, error) {
	var song model.Song
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND added_at > ?", roomID, addedAt).
		Order("added_at ASC").
		First(&song).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &song, nil
}

// UpdateFields 部分字段更新
func (r *gormSongRepository) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.Song{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// Delete 删除歌曲记录（记录不存在不报错）
func (r *gormSongRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Song{}).Error
}

// DeleteByRoom 清空房间队列
func (r *gormSongRepository) DeleteByRoom(ctx context.Context, roomID string) error {
	return r.db.WithContext(ctx).Where("room_id = ?", roomID).Delete(&model.Song{}).Error
}
