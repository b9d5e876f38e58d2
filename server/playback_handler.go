package server

import (
	"encoding/json"
	"net/http"

	"chowlive/logger"

	"github.com/gorilla/mux"
)

// EnqueueRequest 点歌请求体
type EnqueueRequest struct {
	TrackRef   string `json:"trackRef"`
	DurationMS int64  `json:"durationMs"`
}

// EnqueueHandler 将曲目加入房间队列
func (h *APIHandler) EnqueueHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	roomID := mux.Vars(r)["id"]

	var req EnqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TrackRef == "" {
		writeError(w, http.StatusBadRequest, "trackRef is required")
		return
	}

	rm, err := h.roomRepo.GetByID(r.Context(), roomID)
	if err != nil {
		logger.Error("[Enqueue] 查询房间失败", logger.ErrorField(err), logger.String("roomId", roomID))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if rm == nil {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}

	songID, err := h.authority.Enqueue(r.Context(), roomID, req.TrackRef, req.DurationMS)
	if err != nil {
		logger.Error("[Enqueue] 入队失败",
			logger.ErrorField(err),
			logger.String("roomId", roomID),
			logger.String("trackRef", req.TrackRef))
		writeError(w, http.StatusInternalServerError, "failed to enqueue song")
		return
	}

	logger.Info("[Enqueue] 点歌成功",
		logger.String("roomId", roomID),
		logger.String("songId", songID),
		logger.String("userId", userID))
	writeJSON(w, http.StatusCreated, map[string]string{"songId": songID})
}

// PauseRequest 暂停/恢复请求体
type PauseRequest struct {
	SongID string `json:"songId"`
	Paused bool   `json:"paused"`
}

// PauseHandler 切换当前歌曲的暂停状态
func (h *APIHandler) PauseHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := GetUserIDFromContext(r.Context()); err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req PauseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SongID == "" {
		writeError(w, http.StatusBadRequest, "songId is required")
		return
	}

	if err := h.authority.SetPause(r.Context(), req.SongID, req.Paused); err != nil {
		logger.Error("[Pause] 更新失败", logger.ErrorField(err), logger.String("songId", req.SongID))
		writeError(w, http.StatusInternalServerError, "failed to update pause state")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// SkipRequest 切歌请求体
// TrackRef 是提交方认为的当前曲目；不匹配说明队列已前进，静默忽略。
type SkipRequest struct {
	SongID     string `json:"songId"`
	TrackRef   string `json:"trackRef"`
	EndOfTrack bool   `json:"endOfTrack"`
}

// SkipHandler 跳到下一首
func (h *APIHandler) SkipHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := GetUserIDFromContext(r.Context()); err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req SkipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SongID == "" {
		writeError(w, http.StatusBadRequest, "songId is required")
		return
	}

	if err := h.authority.Skip(r.Context(), req.SongID, req.TrackRef, req.EndOfTrack); err != nil {
		logger.Error("[Skip] 切歌失败", logger.ErrorField(err), logger.String("songId", req.SongID))
		writeError(w, http.StatusInternalServerError, "failed to skip song")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
