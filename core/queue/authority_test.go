package queue

import (
	"context"
	"sort"
	"sync"
	"testing"

	"chowlive/model"

	"github.com/stretchr/testify/assert"
)

// memorySongRepository 内存版歌曲仓库，语义与 GORM 实现对齐：
// 记录不存在返回 (nil, nil)。
type memorySongRepository struct {
	mu    sync.Mutex
	songs map[string]*model.Song
}

func newMemorySongRepository() *memorySongRepository {
	return &memorySongRepository{songs: make(map[string]*model.Song)}
}

func (r *memorySongRepository) Create(ctx context.Context, song *model.Song) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *song
	r.songs[song.ID] = &cp
	return nil
}

func (r *memorySongRepository) GetByID(ctx context.Context, id string) (*model.Song, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	song, ok := r.songs[id]
	if !ok {
		return nil, nil
	}
	cp := *song
	return &cp, nil
}

func (r *memorySongRepository) ListByRoom(ctx context.Context, roomID string) ([]*model.Song, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Song
	for _, s := range r.songs {
		if s.RoomID == roomID {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AddedAt < out[j].AddedAt })
	return out, nil
}

func (r *memorySongRepository) HasSong(ctx context.Context, roomID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.songs {
		if s.RoomID == roomID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memorySongRepository) NextAfter(ctx context.Context, roomID string, addedAt int64) (*model.Song, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var next *model.Song
	for _, s := range r.songs {
		if s.RoomID != roomID || s.AddedAt <= addedAt {
			continue
		}
		if next == nil || s.AddedAt < next.AddedAt {
			next = s
		}
	}
	if next == nil {
		return nil, nil
	}
	cp := *next
	return &cp, nil
}

func (r *memorySongRepository) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	song, ok := r.songs[id]
	if !ok {
		return nil
	}
	if v, ok := fields["is_paused"]; ok {
		song.IsPaused = v.(bool)
	}
	if v, ok := fields["updated_at"]; ok {
		song.UpdatedAt = model.FlexMillis(v.(int64))
	}
	if v, ok := fields["progress"]; ok {
		song.Progress = v.(int64)
	}
	return nil
}

func (r *memorySongRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.songs, id)
	return nil
}

func (r *memorySongRepository) DeleteByRoom(ctx context.Context, roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.songs {
		if s.RoomID == roomID {
			delete(r.songs, id)
		}
	}
	return nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	rooms []string
}

func (n *recordingNotifier) PublishQueueChange(ctx context.Context, roomID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rooms = append(n.rooms, roomID)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.rooms)
}

func newTestAuthority(nowMS int64) (*Authority, *memorySongRepository, *recordingNotifier) {
	repo := newMemorySongRepository()
	notifier := &recordingNotifier{}
	a := NewAuthority(repo, notifier)
	a.nowFn = func() int64 { return nowMS }
	return a, repo, notifier
}

func TestEnqueueEmptyRoomStartsPlaying(t *testing.T) {
	a, repo, notifier := newTestAuthority(10000)
	ctx := context.Background()

	id, err := a.Enqueue(ctx, "room-1", "spotify:track:a", 200000)
	assert.NoError(t, err)
	assert.NotEmpty(t, id)

	song, err := repo.GetByID(ctx, id)
	assert.NoError(t, err)
	assert.False(t, song.IsPaused, "first song must start playing")
	assert.Equal(t, int64(0), song.Progress)
	assert.Equal(t, int64(10000), song.AddedAt)

	ms, ok := song.UpdatedAt.Millis()
	assert.True(t, ok)
	assert.Equal(t, int64(10000), ms)
	assert.Equal(t, 1, notifier.count())
}

func TestEnqueueNonEmptyRoomEntersPaused(t *testing.T) {
	a, repo, _ := newTestAuthority(10000)
	ctx := context.Background()

	first, err := a.Enqueue(ctx, "room-1", "spotify:track:a", 200000)
	assert.NoError(t, err)

	second, err := a.Enqueue(ctx, "room-1", "spotify:track:b", 180000)
	assert.NoError(t, err)

	song, err := repo.GetByID(ctx, second)
	assert.NoError(t, err)
	assert.True(t, song.IsPaused, "queued song must not autoplay")

	firstSong, err := repo.GetByID(ctx, first)
	assert.NoError(t, err)
	assert.False(t, firstSong.IsPaused)
}

func TestEnqueueRejectsInvalidInput(t *testing.T) {
	a, _, notifier := newTestAuthority(10000)
	ctx := context.Background()

	_, err := a.Enqueue(ctx, "", "spotify:track:a", 200000)
	assert.Error(t, err)
	_, err = a.Enqueue(ctx, "room-1", "", 200000)
	assert.Error(t, err)
	_, err = a.Enqueue(ctx, "room-1", "spotify:track:a", 0)
	assert.Error(t, err)
	assert.Equal(t, 0, notifier.count())
}

func TestSetPauseFreezesServerProgress(t *testing.T) {
	a, repo, _ := newTestAuthority(10000)
	ctx := context.Background()

	id, err := a.Enqueue(ctx, "room-1", "spotify:track:a", 200000)
	assert.NoError(t, err)

	// 播放 5 秒后暂停：progress 冻结为服务端推算值
	a.nowFn = func() int64 { return 15000 }
	assert.NoError(t, a.SetPause(ctx, id, true))

	song, err := repo.GetByID(ctx, id)
	assert.NoError(t, err)
	assert.True(t, song.IsPaused)
	assert.Equal(t, int64(5000), song.Progress)

	ms, _ := song.UpdatedAt.Millis()
	assert.Equal(t, int64(15000), ms)
}

func TestSetPauseResumeKeepsProgress(t *testing.T) {
	a, repo, _ := newTestAuthority(10000)
	ctx := context.Background()

	id, err := a.Enqueue(ctx, "room-1", "spotify:track:a", 200000)
	assert.NoError(t, err)

	a.nowFn = func() int64 { return 15000 }
	assert.NoError(t, a.SetPause(ctx, id, true))

	// 恢复播放：progress 不变，仅刷新 updatedAt 作为新的推算基准
	a.nowFn = func() int64 { return 60000 }
	assert.NoError(t, a.SetPause(ctx, id, false))

	song, err := repo.GetByID(ctx, id)
	assert.NoError(t, err)
	assert.False(t, song.IsPaused)
	assert.Equal(t, int64(5000), song.Progress)

	ms, _ := song.UpdatedAt.Millis()
	assert.Equal(t, int64(60000), ms)
}

func TestSetPauseSameStateIsNoOp(t *testing.T) {
	a, repo, notifier := newTestAuthority(10000)
	ctx := context.Background()

	id, err := a.Enqueue(ctx, "room-1", "spotify:track:a", 200000)
	assert.NoError(t, err)
	published := notifier.count()

	a.nowFn = func() int64 { return 15000 }
	assert.NoError(t, a.SetPause(ctx, id, false))

	song, err := repo.GetByID(ctx, id)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), song.Progress)
	ms, _ := song.UpdatedAt.Millis()
	assert.Equal(t, int64(10000), ms, "no-op must not touch updatedAt")
	assert.Equal(t, published, notifier.count())
}

func TestSetPauseMissingSongIsNoOp(t *testing.T) {
	a, _, notifier := newTestAuthority(10000)
	assert.NoError(t, a.SetPause(context.Background(), "missing", true))
	assert.Equal(t, 0, notifier.count())
}

func TestSkipPromotesNextSong(t *testing.T) {
	a, repo, _ := newTestAuthority(10000)
	ctx := context.Background()

	first, err := a.Enqueue(ctx, "room-1", "spotify:track:a", 200000)
	assert.NoError(t, err)

	a.nowFn = func() int64 { return 11000 }
	second, err := a.Enqueue(ctx, "room-1", "spotify:track:b", 180000)
	assert.NoError(t, err)

	a.nowFn = func() int64 { return 50000 }
	assert.NoError(t, a.Skip(ctx, first, "spotify:track:a", false))

	gone, err := repo.GetByID(ctx, first)
	assert.NoError(t, err)
	assert.Nil(t, gone)

	promoted, err := repo.GetByID(ctx, second)
	assert.NoError(t, err)
	assert.False(t, promoted.IsPaused, "next song must autoplay")
	ms, _ := promoted.UpdatedAt.Millis()
	assert.Equal(t, int64(50000), ms)
}

func TestSkipLastSongLeavesRoomEmpty(t *testing.T) {
	a, repo, _ := newTestAuthority(10000)
	ctx := context.Background()

	id, err := a.Enqueue(ctx, "room-1", "spotify:track:a", 200000)
	assert.NoError(t, err)

	assert.NoError(t, a.Skip(ctx, id, "spotify:track:a", false))

	songs, err := repo.ListByRoom(ctx, "room-1")
	assert.NoError(t, err)
	assert.Empty(t, songs)
}

func TestSkipIsIdempotent(t *testing.T) {
	a, _, _ := newTestAuthority(10000)
	ctx := context.Background()

	id, err := a.Enqueue(ctx, "room-1", "spotify:track:a", 200000)
	assert.NoError(t, err)

	assert.NoError(t, a.Skip(ctx, id, "spotify:track:a", false))
	// 并发二次切歌：记录已不存在，静默成功
	assert.NoError(t, a.Skip(ctx, id, "spotify:track:a", false))
}

func TestSkipRejectsStaleTrackRef(t *testing.T) {
	a, repo, _ := newTestAuthority(10000)
	ctx := context.Background()

	id, err := a.Enqueue(ctx, "room-1", "spotify:track:a", 200000)
	assert.NoError(t, err)

	// 客户端视图里的 trackRef 已过期
	assert.NoError(t, a.Skip(ctx, id, "spotify:track:old", false))

	song, err := repo.GetByID(ctx, id)
	assert.NoError(t, err)
	assert.NotNil(t, song, "stale skip must not delete the record")
}

func TestSkipEndOfTrackRejectedWhenNotOver(t *testing.T) {
	a, repo, _ := newTestAuthority(10000)
	ctx := context.Background()

	id, err := a.Enqueue(ctx, "room-1", "spotify:track:a", 200000)
	assert.NoError(t, err)

	// 服务端推算仅播了 30 秒，客户端声称播完是时钟偏差
	a.nowFn = func() int64 { return 40000 }
	assert.NoError(t, a.Skip(ctx, id, "spotify:track:a", true))

	song, err := repo.GetByID(ctx, id)
	assert.NoError(t, err)
	assert.NotNil(t, song)
}

func TestSkipEndOfTrackAcceptedWhenOver(t *testing.T) {
	a, repo, _ := newTestAuthority(10000)
	ctx := context.Background()

	id, err := a.Enqueue(ctx, "room-1", "spotify:track:a", 200000)
	assert.NoError(t, err)

	a.nowFn = func() int64 { return 10000 + 200001 }
	assert.NoError(t, a.Skip(ctx, id, "spotify:track:a", true))

	song, err := repo.GetByID(ctx, id)
	assert.NoError(t, err)
	assert.Nil(t, song)
}

func TestSkipManualIgnoresDuration(t *testing.T) {
	a, repo, _ := newTestAuthority(10000)
	ctx := context.Background()

	id, err := a.Enqueue(ctx, "room-1", "spotify:track:a", 200000)
	assert.NoError(t, err)

	// 手动切歌不检查是否播完
	a.nowFn = func() int64 { return 11000 }
	assert.NoError(t, a.Skip(ctx, id, "spotify:track:a", false))

	song, err := repo.GetByID(ctx, id)
	assert.NoError(t, err)
	assert.Nil(t, song)
}
