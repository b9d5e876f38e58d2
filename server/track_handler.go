package server

import (
	"errors"
	"net/http"

	"chowlive/core/spotify"
	"chowlive/core/sync"
	"chowlive/logger"

	"github.com/gorilla/mux"
)

// TrackDetailHandler 查询曲目详情
// 缓存优先，未命中时用请求方的播放器令牌回源 Spotify。
// 令牌通过 X-Player-Token 头传递，服务端不持久化。
func (h *APIHandler) TrackDetailHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := GetUserIDFromContext(r.Context()); err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	trackRef := mux.Vars(r)["ref"]

	playerToken := r.Header.Get("X-Player-Token")
	if playerToken == "" {
		writeError(w, http.StatusBadRequest, "X-Player-Token header is required")
		return
	}

	client := spotify.NewClient(h.cfg.SpotifyAPIBaseURL, playerToken)
	detail, err := client.GetTrack(r.Context(), h.trackCache, trackRef)
	if err != nil {
		if errors.Is(err, sync.ErrReauthRequired) {
			writeError(w, http.StatusUnauthorized, "player token expired")
			return
		}
		logger.Error("[Track] 查询曲目详情失败",
			logger.ErrorField(err),
			logger.String("trackRef", trackRef))
		writeError(w, http.StatusBadGateway, "failed to fetch track detail")
		return
	}

	writeJSON(w, http.StatusOK, detail)
}
