package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"chowlive/core/auth"
	"chowlive/core/room"
	"chowlive/core/spotify"
	"chowlive/core/sync"
	"chowlive/logger"
	"chowlive/model"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS 策略已在网关层收口
		return true
	},
}

const presenceInterval = 30 * time.Second

// WSHandler 监听者会话入口
// 每个连接持有自己的播放器驱动和对账循环，服务端代表监听者
// 驱动其 Spotify 播放器向房间权威状态收敛。
func (h *APIHandler) WSHandler(w http.ResponseWriter, r *http.Request) {
	// WebSocket 无法携带自定义头，令牌走查询参数
	claims, err := auth.ParseToken(r.URL.Query().Get("token"))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	playerToken := r.URL.Query().Get("playerToken")
	if playerToken == "" {
		writeError(w, http.StatusBadRequest, "playerToken is required")
		return
	}

	ref := mux.Vars(r)["ref"]
	rm, err := h.monitor.Resolve(r.Context(), ref)
	if err != nil {
		logger.Error("[WS] 解析房间失败", logger.ErrorField(err), logger.String("ref", ref))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if rm == nil {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("[WS] 升级连接失败", logger.ErrorField(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	driver := spotify.NewClient(h.cfg.SpotifyAPIBaseURL, playerToken)
	reconciler := sync.NewReconciler(rm.ID, driver, h.authority, sync.Config{
		ToleranceMS: int64(h.cfg.SyncToleranceMS),
		Debounce:    time.Duration(h.cfg.SyncDebounceMS) * time.Millisecond,
	})

	session := room.NewSession(h.hub, conn, rm.ID, claims.UserID)
	h.hub.Register(session)

	watch, err := h.monitor.Watch(ctx, rm)
	if err != nil {
		logger.Error("[WS] 订阅房间失败", logger.ErrorField(err), logger.String("roomId", rm.ID))
		h.hub.Unregister(session)
		conn.Close()
		return
	}
	defer watch.Close()

	if err := h.presence.Touch(ctx, rm.ID, claims.UserID); err != nil {
		logger.Warn("[WS] 在线状态更新失败", logger.ErrorField(err))
	}
	defer func() {
		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cleanupCancel()
		if err := h.presence.Remove(cleanupCtx, rm.ID, claims.UserID); err != nil {
			logger.Warn("[WS] 在线状态清理失败", logger.ErrorField(err))
		}
	}()

	go reconciler.Run(ctx)
	go session.WritePump()
	go h.forwardViews(ctx, session, watch, reconciler)
	go h.watchReauth(ctx, session, reconciler)
	go h.keepPresence(ctx, rm.ID, claims.UserID)

	logger.Info("[WS] 监听者加入",
		logger.String("roomId", rm.ID),
		logger.String("userId", claims.UserID))

	session.ReadPump(ctx, func(ctx context.Context, s *room.Session, msg *room.WSMessage) {
		h.handleSessionMessage(ctx, s, msg, driver, reconciler)
	})
}

// forwardViews 将房间视图推给对账循环和客户端
func (h *APIHandler) forwardViews(ctx context.Context, session *room.Session, watch *room.Watch, reconciler *sync.Reconciler) {
	for {
		select {
		case <-ctx.Done():
			return
		case view, ok := <-watch.Views():
			if !ok {
				return
			}
			reconciler.Submit(view.CurrentSong())

			data, err := json.Marshal(view)
			if err != nil {
				logger.Warn("[WS] 序列化房间视图失败", logger.ErrorField(err))
				continue
			}
			_ = session.SendMessage(&room.WSMessage{
				Type:   room.MsgTypeQueueUpdate,
				RoomID: session.RoomID,
				Data:   data,
			})
		}
	}
}

// watchReauth 转发纠偏循环的异常信号：认证失效提示重新认证，
// 持续失步提示播放器不可用
func (h *APIHandler) watchReauth(ctx context.Context, session *room.Session, reconciler *sync.Reconciler) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-reconciler.ReauthSignal():
			logger.Info("[WS] 播放器令牌失效，等待重新认证",
				logger.String("roomId", session.RoomID),
				logger.String("userId", session.UserID))
			_ = session.SendMessage(&room.WSMessage{
				Type:   room.MsgTypeReauthNeed,
				RoomID: session.RoomID,
			})
			if err := h.trackCache.InvalidateAll(ctx); err != nil {
				logger.Warn("[WS] 曲目缓存失效失败", logger.ErrorField(err))
			}
		case <-reconciler.NotPlayingSignal():
			logger.Warn("[WS] 纠偏动作持续失败，提示播放器不可用",
				logger.String("roomId", session.RoomID),
				logger.String("userId", session.UserID))
			_ = session.SendMessage(&room.WSMessage{
				Type:   room.MsgTypeNotPlaying,
				RoomID: session.RoomID,
			})
		}
	}
}

// keepPresence 周期性续期在线状态
func (h *APIHandler) keepPresence(ctx context.Context, roomID, userID string) {
	ticker := time.NewTicker(presenceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.presence.Touch(ctx, roomID, userID); err != nil {
				logger.Warn("[WS] 在线状态续期失败", logger.ErrorField(err))
			}
		}
	}
}

// handleSessionMessage 分发客户端消息
func (h *APIHandler) handleSessionMessage(ctx context.Context, s *room.Session, msg *room.WSMessage, driver *spotify.Client, reconciler *sync.Reconciler) {
	switch msg.Type {
	case room.MsgTypeChat:
		var chat room.ChatData
		if err := json.Unmarshal(msg.Data, &chat); err != nil || chat.Content == "" {
			return
		}
		record := &model.Message{
			RoomID:    s.RoomID,
			UserID:    s.UserID,
			Type:      model.MessageTypeUserChat,
			Content:   chat.Content,
			CreatedAt: time.Now(),
		}
		if err := h.roomRepo.CreateMessage(ctx, record); err != nil {
			logger.Error("[WS] 聊天消息落库失败", logger.ErrorField(err))
			return
		}
		_ = h.hub.BroadcastWSMessage(s.RoomID, &room.WSMessage{
			Type:   room.MsgTypeChat,
			RoomID: s.RoomID,
			UserID: s.UserID,
			Data:   msg.Data,
		}, "")

	case room.MsgTypeReauth:
		var reauth room.ReauthData
		if err := json.Unmarshal(msg.Data, &reauth); err != nil || reauth.AccessToken == "" {
			return
		}
		driver.UpdateToken(reauth.AccessToken)
		reconciler.Resume()
		logger.Info("[WS] 播放器令牌已更新，恢复对账",
			logger.String("roomId", s.RoomID),
			logger.String("userId", s.UserID))

	default:
		logger.Debug("[WS] 未知消息类型", logger.String("type", string(msg.Type)))
	}
}
