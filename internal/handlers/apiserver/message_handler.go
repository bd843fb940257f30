package apiserver

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"spark-go/internal/middleware"
	"spark-go/internal/services"
)

// MessageHandler 处理聊天消息和会话列表请求。
type MessageHandler struct {
	chatService services.ChatService
}

// NewMessageHandler 创建一个新的 MessageHandler。
func NewMessageHandler(chatService services.ChatService) *MessageHandler {
	return &MessageHandler{chatService: chatService}
}

func matchIDFromPath(r *http.Request) (uint, bool) {
	raw, ok := mux.Vars(r)["matchID"]
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// ListMessages 处理 GET /api/v1/messages/{matchID}。
// 读取会把发给调用者的未读消息全部标记为已读。
func (h *MessageHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "无法获取用户信息")
		return
	}

	matchID, ok := matchIDFromPath(r)
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "无效的配对ID")
		return
	}

	messages, err := h.chatService.ListMessages(r.Context(), userID, matchID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{"messages": messages})
}

type sendMessageRequest struct {
	MatchID uint   `json:"matchId"`
	Message string `json:"message"`
}

// SendMessage 处理 POST /api/v1/messages。
// 与 WebSocket 的 sendMessage 事件共用同一条服务层路径。
func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "无法获取用户信息")
		return
	}

	var req sendMessageRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.MatchID == 0 {
		writeJSONError(w, http.StatusBadRequest, "缺少配对ID")
		return
	}

	message, err := h.chatService.SendMessage(r.Context(), userID, req.MatchID, req.Message)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, message)
}

// ListConversations 处理 GET /api/v1/conversations。
func (h *MessageHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "无法获取用户信息")
		return
	}

	conversations, err := h.chatService.ListConversations(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{"conversations": conversations})
}
