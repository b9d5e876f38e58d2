package server

import (
	"encoding/json"
	"net/http"

	"chowlive/cache"
	"chowlive/config"
	"chowlive/core/queue"
	"chowlive/core/room"
	"chowlive/repository"
)

// APIHandler HTTP 处理器集合
type APIHandler struct {
	roomRepo   repository.RoomRepository
	songRepo   repository.SongRepository
	authority  *queue.Authority
	monitor    *room.Monitor
	hub        *room.Hub
	trackCache *cache.TrackCache
	presence   *cache.PresenceCache
	cfg        *config.Config
}

// NewAPIHandler 创建处理器
func NewAPIHandler(
	roomRepo repository.RoomRepository,
	songRepo repository.SongRepository,
	authority *queue.Authority,
	monitor *room.Monitor,
	hub *room.Hub,
	trackCache *cache.TrackCache,
	presence *cache.PresenceCache,
	cfg *config.Config,
) *APIHandler {
	return &APIHandler{
		roomRepo:   roomRepo,
		songRepo:   songRepo,
		authority:  authority,
		monitor:    monitor,
		hub:        hub,
		trackCache: trackCache,
		presence:   presence,
		cfg:        cfg,
	}
}

// writeJSON 序列化响应
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError 统一错误响应格式
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
