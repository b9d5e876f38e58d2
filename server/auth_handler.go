package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"chowlive/core/auth"
	"chowlive/logger"
)

type contextKey string

const (
	ctxKeyUserID      contextKey = "userID"
	ctxKeyDisplayName contextKey = "displayName"
)

// LoginRequest 登录请求体
// 链上签名校验由网关层完成，这里只负责签发会话令牌。
type LoginRequest struct {
	WalletAddress string `json:"walletAddress"`
	DisplayName   string `json:"displayName"`
}

// LoginHandler 签发 JWT
func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Error("[Login] 解析请求体失败", logger.ErrorField(err))
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.WalletAddress == "" {
		writeError(w, http.StatusBadRequest, "walletAddress is required")
		return
	}
	if req.DisplayName == "" {
		req.DisplayName = req.WalletAddress
	}

	token, err := auth.GenerateToken(req.WalletAddress, req.DisplayName)
	if err != nil {
		logger.Error("[Login] 签发令牌失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	logger.Info("[Login] 用户登录成功", logger.String("userId", req.WalletAddress))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user": map[string]string{
			"id":          req.WalletAddress,
			"displayName": req.DisplayName,
		},
	})
}

// AuthMiddleware 校验 Bearer 令牌并将用户身份注入请求上下文
func (h *APIHandler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "authorization header is required")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeError(w, http.StatusUnauthorized, "invalid authorization header format")
			return
		}

		claims, err := auth.ParseToken(parts[1])
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyUserID, claims.UserID)
		ctx = context.WithValue(ctx, ctxKeyDisplayName, claims.DisplayName)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// GetUserIDFromContext 从请求上下文取用户 ID
func GetUserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(ctxKeyUserID).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// GetDisplayNameFromContext 从请求上下文取显示名
func GetDisplayNameFromContext(ctx context.Context) (string, error) {
	name, ok := ctx.Value(ctxKeyDisplayName).(string)
	if !ok {
		return "", fmt.Errorf("display name not found in context")
	}
	return name, nil
}
