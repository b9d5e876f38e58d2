package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"chowlive/cache"
	"chowlive/core/sync"
	"chowlive/model"
)

// playerStateResponse /me/player 响应的关键字段
type playerStateResponse struct {
	ProgressMS int64 `json:"progress_ms"`
	IsPlaying  bool  `json:"is_playing"`
	Item       *struct {
		URI        string `json:"uri"`
		DurationMS int64  `json:"duration_ms"`
	} `json:"item"`
}

// Status 查询监听者播放器当前状态
// 无活动设备（204）按"未在播放、位置 0"处理，交由上层分类动作纠正。
func (c *Client) Status(ctx context.Context) (*model.PlayerStatus, error) {
	data, err := c.doRequest(ctx, "GET", "/me/player", nil)
	if err != nil {
		if isUnauthorized(err) {
			return nil, sync.ErrReauthRequired
		}
		return nil, fmt.Errorf("failed to get player state: %w", err)
	}
	if data == nil {
		return &model.PlayerStatus{PositionMS: 0, IsPlaying: false}, nil
	}

	var state playerStateResponse
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse player state: %w", err)
	}

	return &model.PlayerStatus{
		PositionMS: state.ProgressMS,
		IsPlaying:  state.IsPlaying,
	}, nil
}

// PlayAt 从指定位置开始播放曲目
func (c *Client) PlayAt(ctx context.Context, trackRef string, positionMS int64) error {
	body := map[string]interface{}{
		"uris":        []string{trackRef},
		"position_ms": positionMS,
	}
	if _, err := c.doRequest(ctx, "PUT", "/me/player/play", body); err != nil {
		if isUnauthorized(err) {
			return sync.ErrReauthRequired
		}
		return fmt.Errorf("failed to start playback: %w", err)
	}
	return nil
}

// Pause 暂停播放
func (c *Client) Pause(ctx context.Context) error {
	if _, err := c.doRequest(ctx, "PUT", "/me/player/pause", nil); err != nil {
		if isUnauthorized(err) {
			return sync.ErrReauthRequired
		}
		return fmt.Errorf("failed to pause playback: %w", err)
	}
	return nil
}

// trackResponse /tracks/{id} 响应的关键字段
type trackResponse struct {
	URI     string `json:"uri"`
	Name    string `json:"name"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Album struct {
		Name   string `json:"name"`
		Images []struct {
			URL string `json:"url"`
		} `json:"images"`
	} `json:"album"`
	DurationMS int64 `json:"duration_ms"`
}

// GetTrack 获取曲目详情，优先走缓存
func (c *Client) GetTrack(ctx context.Context, tracks *cache.TrackCache, trackRef string) (*cache.TrackDetail, error) {
	if tracks != nil {
		if detail, err := tracks.Get(ctx, trackRef); err == nil && detail != nil {
			return detail, nil
		}
	}

	data, err := c.doRequest(ctx, "GET", "/tracks/"+url.PathEscape(trackID(trackRef)), nil)
	if err != nil {
		if isUnauthorized(err) {
			return nil, sync.ErrReauthRequired
		}
		return nil, fmt.Errorf("failed to get track detail: %w", err)
	}

	var tr trackResponse
	if err := json.Unmarshal(data, &tr); err != nil {
		return nil, fmt.Errorf("failed to parse track detail: %w", err)
	}

	artists := make([]string, 0, len(tr.Artists))
	for _, a := range tr.Artists {
		artists = append(artists, a.Name)
	}
	coverURL := ""
	if len(tr.Album.Images) > 0 {
		coverURL = tr.Album.Images[0].URL
	}

	detail := &cache.TrackDetail{
		TrackRef:   trackRef,
		Name:       tr.Name,
		Artists:    artists,
		Album:      tr.Album.Name,
		DurationMS: tr.DurationMS,
		CoverURL:   coverURL,
	}

	if tracks != nil {
		_ = tracks.Set(ctx, detail) // 缓存失败不影响主流程
	}
	return detail, nil
}
