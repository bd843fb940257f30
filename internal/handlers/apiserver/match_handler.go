package apiserver

import (
	"net/http"

	"spark-go/internal/middleware"
	"spark-go/internal/services"
)

// MatchHandler 处理发现、滑动和配对列表请求。
type MatchHandler struct {
	matchService services.MatchService
}

// NewMatchHandler 创建一个新的 MatchHandler。
func NewMatchHandler(matchService services.MatchService) *MatchHandler {
	return &MatchHandler{matchService: matchService}
}

// Discover 处理 GET /api/v1/matches/discover。
func (h *MatchHandler) Discover(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "无法获取用户信息")
		return
	}

	result, err := h.matchService.Discover(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, result)
}

type swipeRequest struct {
	TargetID uint `json:"targetUserId"`
	// Liked 是必填字段：缺失和 false（跳过）必须区分开，
	// 否则漏掉该字段会被当作跳过记录下来，候选人从此不再出现。
	Liked *bool `json:"liked"`
}

// Swipe 处理 POST /api/v1/matches/swipe。
func (h *MatchHandler) Swipe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "无法获取用户信息")
		return
	}

	var req swipeRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.TargetID == 0 {
		writeJSONError(w, http.StatusBadRequest, "缺少目标用户ID")
		return
	}
	if req.Liked == nil {
		writeJSONError(w, http.StatusBadRequest, "缺少喜欢标志")
		return
	}

	result, err := h.matchService.Swipe(r.Context(), userID, req.TargetID, *req.Liked)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	message := "已记录"
	if result.IsMatch {
		message = "配对成功！"
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"message": message,
		"matchId": result.MatchID,
		"isMatch": result.IsMatch,
	})
}

// ListMatches 处理 GET /api/v1/matches。
func (h *MatchHandler) ListMatches(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "无法获取用户信息")
		return
	}

	matches, err := h.matchService.ListMatches(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{"matches": matches})
}
