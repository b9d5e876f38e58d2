package sync

import (
	"context"
	"errors"
	"time"

	"chowlive/logger"
	"chowlive/model"
)

// State 纠偏循环状态
type State int

const (
	StateIdle          State = iota // 无歌曲
	StateTracking                   // 有歌曲，周期评估中
	StateTransitioning              // 歌曲切换，立即强制纠偏
)

const (
	// DefaultDebounce 默认去抖窗口
	DefaultDebounce = 300 * time.Millisecond

	// DefaultActionTimeout 单次纠偏动作的外部调用超时
	DefaultActionTimeout = 5 * time.Second

	// progressTick 本地进度推算节拍，每次触发都会重置去抖定时器
	progressTick = time.Second

	// minEvaluableProgress 推算进度不足该值时跳过评估
	// （歌曲刚开始，避免与服务端写入竞争）
	minEvaluableProgress int64 = 10

	// minEvaluableDuration duration 不足该值视作元数据缺失，跳过评估
	minEvaluableDuration int64 = 10

	// notPlayingThreshold 连续失败达到该次数时向会话层发出
	// "未在播放"信号，由客户端提示用户检查播放器
	notPlayingThreshold = 3
)

// Config 纠偏循环配置
type Config struct {
	ToleranceMS   int64         // 漂移容忍窗口（毫秒），0 取默认
	Debounce      time.Duration // 去抖窗口，0 取默认
	ActionTimeout time.Duration // 纠偏动作超时，0 取默认
}

func (c Config) withDefaults() Config {
	if c.ToleranceMS <= 0 {
		c.ToleranceMS = DefaultToleranceMS
	}
	if c.Debounce <= 0 {
		c.Debounce = DefaultDebounce
	}
	if c.ActionTimeout <= 0 {
		c.ActionTimeout = DefaultActionTimeout
	}
	return c
}

// Reconciler 每个 (监听会话, 房间) 一个实例的播放纠偏循环
// 所有状态都由 Run 所在的单个 goroutine 持有，外部仅通过
// Submit/Resume 投递事件。纠偏动作在独立 goroutine 中执行，
// busy 标志保证同一时刻至多一个动作在途；期间的评估直接跳过，不排队。
type Reconciler struct {
	driver PlayerDriver
	queue  QueueClient
	cfg    Config

	snapshots chan *model.Song
	resume    chan struct{}
	done      chan error // 在途动作完成通知

	reauth     chan struct{}
	notPlaying chan struct{}

	// 以下字段仅由 Run goroutine 访问
	state      State
	song       *model.Song
	lastSongID string
	busy       bool
	suspended  bool // 等待重新认证，暂停一切纠偏
	failStreak int  // 连续失败计数，成功即清零

	roomID string
	nowFn  func() int64
}

// NewReconciler 创建纠偏循环
func NewReconciler(roomID string, driver PlayerDriver, queue QueueClient, cfg Config) *Reconciler {
	return &Reconciler{
		driver:     driver,
		queue:      queue,
		cfg:        cfg.withDefaults(),
		snapshots:  make(chan *model.Song, 8),
		resume:     make(chan struct{}, 1),
		done:       make(chan error, 1),
		reauth:     make(chan struct{}, 1),
		notPlaying: make(chan struct{}, 1),
		state:      StateIdle,
		roomID:     roomID,
		nowFn:      func() int64 { return time.Now().UnixMilli() },
	}
}

// Submit 投递最新的歌曲快照（nil 表示当前无歌曲）
// 非阻塞：通道满时丢弃最旧的一条，保证最新快照总能进入。
func (r *Reconciler) Submit(song *model.Song) {
	for {
		select {
		case r.snapshots <- song:
			return
		default:
			select {
			case <-r.snapshots:
			default:
			}
		}
	}
}

// Resume 重新认证完成后恢复纠偏
func (r *Reconciler) Resume() {
	select {
	case r.resume <- struct{}{}:
	default:
	}
}

// ReauthSignal 认证失效信号
// 收到信号后会话层应引导用户重新认证，完成后调用 Resume。
func (r *Reconciler) ReauthSignal() <-chan struct{} {
	return r.reauth
}

// NotPlayingSignal 持续失步信号
// 纠偏动作连续失败时触发，会话层应提示用户播放器不可用。
// 与 ReauthSignal 不同，循环不挂起，下一个节拍仍会继续尝试。
func (r *Reconciler) NotPlayingSignal() <-chan struct{} {
	return r.notPlaying
}

// Run 主循环，阻塞直到 ctx 取消
// 返回时所有定时器已停止，不会再发出纠偏动作。
func (r *Reconciler) Run(ctx context.Context) {
	debounce := time.NewTimer(r.cfg.Debounce)
	if !debounce.Stop() {
		<-debounce.C
	}
	ticker := time.NewTicker(progressTick)
	defer func() {
		debounce.Stop()
		ticker.Stop()
	}()

	armDebounce := func() {
		if !debounce.Stop() {
			select {
			case <-debounce.C:
			default:
			}
		}
		debounce.Reset(r.cfg.Debounce)
	}

	for {
		select {
		case <-ctx.Done():
			return

		case song := <-r.snapshots:
			r.onSnapshot(ctx, song, armDebounce)

		case <-ticker.C:
			// 进度推算节拍：跟踪中才需要重新评估
			if r.state == StateTracking && r.song != nil {
				armDebounce()
			}

		case <-debounce.C:
			r.evaluate(ctx)

		case err := <-r.done:
			r.busy = false
			r.onActionDone(err)

		case <-r.resume:
			if r.suspended {
				r.suspended = false
				logger.Info("playback reconciliation resumed",
					logger.String("roomId", r.roomID))
				armDebounce()
			}
		}
	}
}

// onSnapshot 处理新快照
func (r *Reconciler) onSnapshot(ctx context.Context, song *model.Song, armDebounce func()) {
	r.song = song

	if song == nil {
		r.state = StateIdle
		r.lastSongID = ""
		return
	}

	if song.ID != r.lastSongID {
		// 歌曲切换：立即强制纠偏，绕过去抖
		r.state = StateTransitioning
		r.lastSongID = song.ID
		r.forceCorrection(ctx, song)
		r.state = StateTracking
		return
	}

	r.state = StateTracking
	armDebounce()
}

// forceCorrection 歌曲切换时的立即纠偏：直接下发播放或暂停命令
func (r *Reconciler) forceCorrection(ctx context.Context, song *model.Song) {
	if r.suspended || !song.HasTrack() {
		return
	}
	if r.busy {
		// 上一个动作仍在途，放弃本次强制纠偏，由下一个去抖周期补上
		logger.Debug("transition correction skipped, action in flight",
			logger.String("roomId", r.roomID),
			logger.String("songId", song.ID))
		return
	}

	var action Action
	if song.IsPaused {
		action = Action{Kind: ActionPause}
	} else {
		action = Action{Kind: ActionPlayAt, PositionMS: Estimate(song, r.nowFn())}
	}

	logger.Info("song transition detected, forcing correction",
		logger.String("roomId", r.roomID),
		logger.String("songId", song.ID),
		logger.String("action", action.Kind.String()))

	r.dispatch(ctx, song, action)
}

// evaluate 一次去抖后的常规评估
func (r *Reconciler) evaluate(ctx context.Context) {
	if r.state != StateTracking || r.song == nil || r.suspended {
		return
	}
	if r.busy {
		// 不排队，跳过本轮
		return
	}

	song := r.song
	if !song.HasTrack() || song.DurationMS <= minEvaluableDuration {
		return
	}

	estimated := Estimate(song, r.nowFn())
	if !song.IsPaused && estimated <= minEvaluableProgress {
		return
	}

	statusCtx, cancel := context.WithTimeout(ctx, r.cfg.ActionTimeout)
	status, err := r.driver.Status(statusCtx)
	cancel()
	if err != nil {
		r.onActionDone(err)
		return
	}

	action := ClassifyAction(song, estimated, status, r.cfg.ToleranceMS)
	if action.Kind == ActionNone {
		return
	}

	logger.Debug("corrective action",
		logger.String("roomId", r.roomID),
		logger.String("songId", song.ID),
		logger.String("action", action.Kind.String()),
		logger.Int64("estimated", estimated),
		logger.Int64("clientPos", status.PositionMS))

	r.dispatch(ctx, song, action)
}

// dispatch 异步执行纠偏动作，busy 期间新评估一律跳过
func (r *Reconciler) dispatch(ctx context.Context, song *model.Song, action Action) {
	r.busy = true
	go func() {
		actionCtx, cancel := context.WithTimeout(ctx, r.cfg.ActionTimeout)
		defer cancel()
		r.done <- r.execute(actionCtx, song, action)
	}()
}

// execute 实际下发外部命令
func (r *Reconciler) execute(ctx context.Context, song *model.Song, action Action) error {
	switch action.Kind {
	case ActionPause:
		return r.driver.Pause(ctx)

	case ActionPlayAt:
		return r.driver.PlayAt(ctx, song.TrackRef, action.PositionMS)

	case ActionSkip:
		// 先暂停再请求切歌，避免本地播放器继续播已结束的曲目
		if err := r.driver.Pause(ctx); err != nil {
			return err
		}
		return r.queue.Skip(ctx, song.ID, song.TrackRef, true)

	default:
		return nil
	}
}

// onActionDone 处理动作结果
// 认证失效升级为重新认证信号；其余错误记录后吞掉，等待下一个节拍，
// 绝不立即重试（避免对外部 API 形成重试风暴）。
func (r *Reconciler) onActionDone(err error) {
	if err == nil {
		r.failStreak = 0
		return
	}

	if errors.Is(err, ErrReauthRequired) {
		r.suspended = true
		select {
		case r.reauth <- struct{}{}:
		default:
		}
		logger.Warn("player driver requires re-authentication, corrections suspended",
			logger.String("roomId", r.roomID))
		return
	}

	r.failStreak++
	logger.Warn("corrective action failed",
		logger.ErrorField(err),
		logger.Int("failStreak", r.failStreak),
		logger.String("roomId", r.roomID))

	if r.failStreak >= notPlayingThreshold {
		r.failStreak = 0
		select {
		case r.notPlaying <- struct{}{}:
		default:
		}
	}
}
