package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"chowlive/logger"
	"chowlive/model"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/teris-io/shortid"
)

// CreateRoomRequest 创建房间请求体
type CreateRoomRequest struct {
	Name     string `json:"name"`
	NFTID    int64  `json:"nftId"`
	IsPublic *bool  `json:"isPublic"`
}

// CreateRoomHandler 创建房间
// 生成短地址 slug 作为对外寻址方式，冲突时重试。
func (h *APIHandler) CreateRoomHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	isPublic := true
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}

	var slug string
	for attempt := 0; attempt < 3; attempt++ {
		candidate, err := shortid.Generate()
		if err != nil {
			continue
		}
		exists, err := h.roomRepo.ExistsBySlug(r.Context(), candidate)
		if err != nil {
			logger.Error("[CreateRoom] 检查 slug 失败", logger.ErrorField(err))
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if !exists {
			slug = candidate
			break
		}
	}
	if slug == "" {
		writeError(w, http.StatusInternalServerError, "failed to allocate room slug")
		return
	}

	rm := &model.Room{
		ID:        uuid.NewString(),
		Name:      req.Name,
		CreatorID: userID,
		NFTID:     req.NFTID,
		IsPublic:  isPublic,
		Slug:      slug,
		CreatedAt: time.Now(),
	}
	if err := h.roomRepo.Create(r.Context(), rm); err != nil {
		logger.Error("[CreateRoom] 创建房间失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "failed to create room")
		return
	}

	logger.Info("[CreateRoom] 房间创建成功",
		logger.String("roomId", rm.ID),
		logger.String("slug", rm.Slug),
		logger.String("creatorId", userID))
	writeJSON(w, http.StatusCreated, rm)
}

// GetRoomHandler 按引用获取房间及其队列
// 引用可以是 slug 或链上 NFT ID，纯数字优先按 NFT ID 解析。
func (h *APIHandler) GetRoomHandler(w http.ResponseWriter, r *http.Request) {
	ref := mux.Vars(r)["ref"]

	rm, err := h.monitor.Resolve(r.Context(), ref)
	if err != nil {
		logger.Error("[GetRoom] 解析房间失败", logger.ErrorField(err), logger.String("ref", ref))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if rm == nil {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}

	songs, err := h.songRepo.ListByRoom(r.Context(), rm.ID)
	if err != nil {
		logger.Error("[GetRoom] 查询队列失败", logger.ErrorField(err), logger.String("roomId", rm.ID))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	listeners, err := h.presence.ActiveListenerCount(r.Context(), rm.ID)
	if err != nil {
		// 在线人数缺失不影响主数据
		listeners = 0
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"room":      rm,
		"songs":     songs,
		"listeners": listeners,
	})
}

// ListRoomsHandler 公开房间列表
func (h *APIHandler) ListRoomsHandler(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	rooms, err := h.roomRepo.ListPublic(r.Context(), limit, offset)
	if err != nil {
		logger.Error("[ListRooms] 查询失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"rooms": rooms})
}

// GetMessagesHandler 房间历史聊天消息
func (h *APIHandler) GetMessagesHandler(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["id"]

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	messages, err := h.roomRepo.GetMessages(r.Context(), roomID, limit, offset)
	if err != nil {
		logger.Error("[GetMessages] 查询失败", logger.ErrorField(err), logger.String("roomId", roomID))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"messages": messages})
}
