package room

import (
	"context"
	"strconv"
	"sync"
	"time"

	"chowlive/cache"
	"chowlive/logger"
	"chowlive/model"
	"chowlive/repository"
)

// refreshInterval 兜底全量重读间隔（通知丢失时的自愈）
const refreshInterval = 30 * time.Second

// Monitor 房间状态订阅适配器
// 维护房间与当前歌曲队列的实时视图：建立变更订阅，每次通知后
// 重新拉取队列并原子替换快照。纠偏循环的生命周期依赖 Watch 的
// 关闭语义。
type Monitor struct {
	rooms    repository.RoomRepository
	songs    repository.SongRepository
	notifier *cache.QueueNotifier
}

// NewMonitor 创建房间监视器
func NewMonitor(rooms repository.RoomRepository, songs repository.SongRepository, notifier *cache.QueueNotifier) *Monitor {
	return &Monitor{rooms: rooms, songs: songs, notifier: notifier}
}

// Resolve 按短地址或链上数字ID定位房间
// 先尝试数字解析（NFT ID），失败则按 slug 查询。找不到返回 (nil, nil)。
func (m *Monitor) Resolve(ctx context.Context, ref string) (*model.Room, error) {
	if ref == "" {
		return nil, nil
	}
	if nftID, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return m.rooms.GetByNFTID(ctx, nftID)
	}
	return m.rooms.GetBySlug(ctx, ref)
}

// Watch 房间实时视图的订阅句柄
type Watch struct {
	views  chan *model.RoomView
	cancel context.CancelFunc
	once   sync.Once
}

// Views 视图快照通道
// 始终只保留最新快照（缓冲为 1，旧快照被覆盖）；Watch 关闭后通道关闭。
func (w *Watch) Views() <-chan *model.RoomView {
	return w.views
}

// Close 停止订阅并释放资源，可重复调用
func (w *Watch) Close() {
	w.once.Do(w.cancel)
}

// Watch 建立房间实时视图订阅
// 立即推送一份初始快照，此后每次队列变更通知（及周期兜底刷新）
// 都会重新拉取并整体替换。
func (m *Monitor) Watch(ctx context.Context, rm *model.Room) (*Watch, error) {
	watchCtx, cancel := context.WithCancel(ctx)

	signals, unsubscribe, err := m.notifier.SubscribeQueueChanges(watchCtx, rm.ID)
	if err != nil {
		cancel()
		return nil, err
	}

	w := &Watch{
		views:  make(chan *model.RoomView, 1),
		cancel: cancel,
	}

	go func() {
		defer unsubscribe()
		defer close(w.views)

		ticker := time.NewTicker(refreshInterval)
		defer ticker.Stop()

		m.pushView(watchCtx, rm, w)

		for {
			select {
			case <-watchCtx.Done():
				return
			case _, ok := <-signals:
				if !ok {
					return
				}
				m.pushView(watchCtx, rm, w)
			case <-ticker.C:
				m.pushView(watchCtx, rm, w)
			}
		}
	}()

	return w, nil
}

// pushView 重新拉取队列并投递最新视图（latest-wins）
func (m *Monitor) pushView(ctx context.Context, rm *model.Room, w *Watch) {
	songs, err := m.songs.ListByRoom(ctx, rm.ID)
	if err != nil {
		// 视图降级为上一份快照，不向外传播错误
		logger.Warn("failed to refresh room view",
			logger.ErrorField(err),
			logger.String("roomId", rm.ID))
		return
	}

	view := &model.RoomView{Room: rm, Songs: songs}

	for {
		select {
		case w.views <- view:
			return
		default:
			select {
			case <-w.views:
			default:
			}
		}
	}
}
