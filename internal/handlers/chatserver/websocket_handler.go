// Package chatserver contains the HTTP handlers of the realtime chat server.
package chatserver

import (
	"context"
	"log"
	"net/http"

	"spark-go/internal/auth"
	"spark-go/internal/config"
	"spark-go/internal/models"
	"spark-go/internal/services"
	"spark-go/internal/websocket"
)

// WebSocketHandler 认证并升级 WebSocket 连接。
type WebSocketHandler struct {
	hub          *websocket.Hub
	matchService services.MatchService
	chatService  services.ChatService
	blacklist    auth.TokenBlacklist
	authCfg      config.AuthConfig
	wsCfg        config.WebSocketConfig
}

// NewWebSocketHandler 创建一个新的 WebSocketHandler。
func NewWebSocketHandler(hub *websocket.Hub, matchService services.MatchService, chatService services.ChatService, blacklist auth.TokenBlacklist, authCfg config.AuthConfig, wsCfg config.WebSocketConfig) *WebSocketHandler {
	return &WebSocketHandler{
		hub:          hub,
		matchService: matchService,
		chatService:  chatService,
		blacklist:    blacklist,
		authCfg:      authCfg,
		wsCfg:        wsCfg,
	}
}

// ServeWS 处理 GET /ws?token=...。
// 浏览器的 WebSocket API 无法自定义请求头，令牌通过查询参数传递。
func (h *WebSocketHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "缺少认证令牌", http.StatusUnauthorized)
		return
	}

	claims, err := auth.ValidateToken(r.Context(), token, h.authCfg.JWTSecretKey, h.blacklist)
	if err != nil {
		log.Printf("WebSocket 认证失败: %v", err)
		http.Error(w, "令牌无效", http.StatusUnauthorized)
		return
	}

	callbacks := websocket.Callbacks{
		AuthorizeMatch: h.authorizeMatch,
		SendMessage: func(ctx context.Context, userID, matchID uint, body string) (*models.Message, error) {
			return h.chatService.SendMessage(ctx, userID, matchID, body)
		},
	}

	websocket.ServeWsPerConnection(h.hub, callbacks, claims.UserID, w, r, h.wsCfg)
}

// authorizeMatch 校验用户可以加入配对房间：必须是参与者且双方已配对成功。
func (h *WebSocketHandler) authorizeMatch(ctx context.Context, userID, matchID uint) error {
	match, err := h.matchService.AuthorizeParticipant(ctx, matchID, userID)
	if err != nil {
		return err
	}
	if !match.IsMatch {
		return services.ErrNotMatched
	}
	return nil
}
