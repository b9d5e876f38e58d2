package room

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"chowlive/logger"

	"github.com/gorilla/websocket"
)

// MessageType 消息类型
type MessageType string

const (
	// 系统消息
	MsgTypeJoin  MessageType = "join"  // 加入房间
	MsgTypeLeave MessageType = "leave" // 离开房间
	MsgTypeError MessageType = "error" // 错误消息
	MsgTypePing  MessageType = "ping"  // 心跳
	MsgTypePong  MessageType = "pong"  // 心跳响应

	// 聊天消息
	MsgTypeChat MessageType = "chat" // 聊天消息

	// 同步相关消息
	MsgTypeQueueUpdate MessageType = "queue_update" // 队列视图更新（服务端 -> 客户端）
	MsgTypeReauth      MessageType = "reauth"       // 客户端提交新的播放器令牌
	MsgTypeReauthNeed  MessageType = "reauth_need"  // 播放器认证失效，提示重新认证
	MsgTypeNotPlaying  MessageType = "not_playing"  // 持续失步/驱动反复失败的可见提示
)

// WSMessage WebSocket 消息结构
type WSMessage struct {
	Type      MessageType     `json:"type"`
	RoomID    string          `json:"roomId,omitempty"`
	UserID    string          `json:"userId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// ChatData 聊天消息数据
type ChatData struct {
	Content string `json:"content"`
}

// ReauthData 重新认证数据（客户端提交新的访问令牌）
type ReauthData struct {
	AccessToken string `json:"accessToken"`
}

// Session 一个已连接监听者的 WebSocket 会话
type Session struct {
	Hub    *Hub
	Conn   *websocket.Conn
	Send   chan []byte
	RoomID string
	UserID string

	// closed 关闭后会话不再接收消息，WritePump 随即退出。
	// Send 通道永不关闭，并发 SendMessage 不会 panic。
	closed    chan struct{}
	closeOnce sync.Once
}

// NewSession 创建监听者会话
func NewSession(h *Hub, conn *websocket.Conn, roomID, userID string) *Session {
	return &Session{
		Hub:    h,
		Conn:   conn,
		Send:   make(chan []byte, 64),
		RoomID: roomID,
		UserID: userID,
		closed: make(chan struct{}),
	}
}

// markClosed 标记会话关闭，可重复调用
func (s *Session) markClosed() {
	s.closeOnce.Do(func() { close(s.closed) })
}

// Hub 房间会话管理中心
type Hub struct {
	// 房间 -> 会话集合
	rooms map[string]map[*Session]bool

	// 用户 -> 会话（一个用户在一个房间只能有一个连接）
	userSessions map[string]*Session // key: roomID:userID

	register   chan *Session
	unregister chan *Session
	broadcast  chan *broadcastMessage

	mu   sync.RWMutex
	done chan struct{}
}

type broadcastMessage struct {
	roomID    string
	message   []byte
	excludeID string
}

// NewHub 创建会话 Hub
func NewHub() *Hub {
	return &Hub{
		rooms:        make(map[string]map[*Session]bool),
		userSessions: make(map[string]*Session),
		register:     make(chan *Session),
		unregister:   make(chan *Session),
		broadcast:    make(chan *broadcastMessage, 256),
		done:         make(chan struct{}),
	}
}

// Run 启动 Hub 主循环
func (h *Hub) Run() {
	for {
		select {
		case s := <-h.register:
			h.registerSession(s)
		case s := <-h.unregister:
			h.unregisterSession(s)
		case msg := <-h.broadcast:
			h.broadcastToRoom(msg)
		case <-h.done:
			h.cleanup()
			return
		}
	}
}

// Stop 停止 Hub
func (h *Hub) Stop() {
	close(h.done)
}

func (h *Hub) registerSession(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := h.sessionKey(s.RoomID, s.UserID)

	// 同一用户重复连接时踢掉旧会话
	if old, exists := h.userSessions[key]; exists {
		h.removeSession(old)
	}

	if h.rooms[s.RoomID] == nil {
		h.rooms[s.RoomID] = make(map[*Session]bool)
	}
	h.rooms[s.RoomID][s] = true
	h.userSessions[key] = s

	logger.Info("listener session registered",
		logger.String("roomId", s.RoomID),
		logger.String("userId", s.UserID))
}

func (h *Hub) unregisterSession(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeSession(s)
}

// removeSession 移除会话（内部方法，需要持有锁）
func (h *Hub) removeSession(s *Session) {
	if sessions, ok := h.rooms[s.RoomID]; ok {
		if _, ok := sessions[s]; ok {
			delete(sessions, s)
			s.markClosed()
			if len(sessions) == 0 {
				delete(h.rooms, s.RoomID)
			}
		}
	}
	if h.userSessions[h.sessionKey(s.RoomID, s.UserID)] == s {
		delete(h.userSessions, h.sessionKey(s.RoomID, s.UserID))
	}

	logger.Info("listener session removed",
		logger.String("roomId", s.RoomID),
		logger.String("userId", s.UserID))
}

func (h *Hub) broadcastToRoom(msg *broadcastMessage) {
	h.mu.RLock()
	sessions, ok := h.rooms[msg.roomID]
	if !ok {
		h.mu.RUnlock()
		return
	}
	list := make([]*Session, 0, len(sessions))
	for s := range sessions {
		list = append(list, s)
	}
	h.mu.RUnlock()

	for _, s := range list {
		if msg.excludeID != "" && s.UserID == msg.excludeID {
			continue
		}
		select {
		case s.Send <- msg.message:
		default:
			// 发送缓冲区满，移除会话
			h.mu.Lock()
			h.removeSession(s)
			h.mu.Unlock()
		}
	}
}

func (h *Hub) cleanup() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sessions := range h.rooms {
		for s := range sessions {
			s.markClosed()
		}
	}
	h.rooms = make(map[string]map[*Session]bool)
	h.userSessions = make(map[string]*Session)
}

func (h *Hub) sessionKey(roomID, userID string) string {
	return fmt.Sprintf("%s:%s", roomID, userID)
}

// Register 注册会话
func (h *Hub) Register(s *Session) {
	select {
	case h.register <- s:
	case <-h.done:
	}
}

// Unregister 注销会话
func (h *Hub) Unregister(s *Session) {
	select {
	case h.unregister <- s:
	case <-h.done:
	}
}

// BroadcastWSMessage 广播消息到房间
func (h *Hub) BroadcastWSMessage(roomID string, msg *WSMessage, excludeUserID string) error {
	msg.Timestamp = time.Now().UnixMilli()
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- &broadcastMessage{roomID: roomID, message: data, excludeID: excludeUserID}:
	case <-h.done:
	}
	return nil
}

// SessionCount 获取房间会话数量
func (h *Hub) SessionCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// ========== Session 方法 ==========

// ReadPump 读取消息循环
func (s *Session) ReadPump(ctx context.Context, handler func(ctx context.Context, session *Session, msg *WSMessage)) {
	defer func() {
		s.Hub.Unregister(s)
		s.Conn.Close()
	}()

	s.Conn.SetReadLimit(4096)
	s.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	s.Conn.SetPongHandler(func(string) error {
		s.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, message, err := s.Conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					logger.Warn("websocket read error",
						logger.ErrorField(err),
						logger.String("roomId", s.RoomID),
						logger.String("userId", s.UserID))
				}
				return
			}

			var msg WSMessage
			if err := json.Unmarshal(message, &msg); err != nil {
				logger.Warn("invalid message format",
					logger.ErrorField(err),
					logger.String("roomId", s.RoomID))
				continue
			}

			if msg.Type == MsgTypePing {
				pong := &WSMessage{Type: MsgTypePong, Timestamp: time.Now().UnixMilli()}
				if data, err := json.Marshal(pong); err == nil {
					select {
					case s.Send <- data:
					default:
					}
				}
				continue
			}

			handler(ctx, s, &msg)
		}
	}
}

// WritePump 写入消息循环
func (s *Session) WritePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		s.Conn.Close()
	}()

	for {
		select {
		case <-s.closed:
			s.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			s.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-s.Send:
			s.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))

			w, err := s.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// 合并发送队列中的消息
			n := len(s.Send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-s.Send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			s.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := s.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendMessage 发送消息给会话
func (s *Session) SendMessage(msg *WSMessage) error {
	msg.Timestamp = time.Now().UnixMilli()
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	select {
	case <-s.closed:
		return nil
	case s.Send <- data:
		return nil
	default:
		return nil // 缓冲区满，丢弃消息
	}
}
