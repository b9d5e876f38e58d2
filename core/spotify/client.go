package spotify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"chowlive/logger"
)

// Client Spotify Web API 客户端
// 一个客户端绑定一个监听者的访问令牌，令牌过期由调用方通过
// ErrReauthRequired 感知并更新。
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu          sync.RWMutex
	accessToken string
}

// NewClient 创建新的 API 客户端
func NewClient(baseURL, accessToken string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		accessToken: accessToken,
	}
}

// UpdateToken 替换访问令牌（重新认证后调用）
func (c *Client) UpdateToken(token string) {
	c.mu.Lock()
	c.accessToken = token
	c.mu.Unlock()
}

func (c *Client) token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

// apiError 非 2xx 响应
type apiError struct {
	StatusCode int
	Body       string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("spotify api error: status=%d body=%s", e.StatusCode, e.Body)
}

// doRequest 发送请求并处理通用错误
// 204 返回 (nil, nil)，调用方据此区分"播放器无活动设备"等空响应。
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return nil, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return data, nil
	case resp.StatusCode == http.StatusUnauthorized:
		logger.Debug("spotify token rejected", logger.String("path", path))
		return nil, &apiError{StatusCode: resp.StatusCode, Body: string(data)}
	default:
		return nil, &apiError{StatusCode: resp.StatusCode, Body: string(data)}
	}
}

// isUnauthorized 判断错误是否为令牌失效
func isUnauthorized(err error) bool {
	var ae *apiError
	return errors.As(err, &ae) && ae.StatusCode == http.StatusUnauthorized
}

// trackID 从曲目引用中提取 Spotify 曲目 ID
// 兼容 "spotify:track:<id>" 和裸 ID 两种形态。
func trackID(trackRef string) string {
	if idx := strings.LastIndex(trackRef, ":"); idx >= 0 {
		return trackRef[idx+1:]
	}
	return trackRef
}
