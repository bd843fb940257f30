package apiserver

import (
	"net/http"

	"spark-go/internal/middleware"
	"spark-go/internal/services"
)

// ProfileHandler 处理用户资料的查询和完善请求。
type ProfileHandler struct {
	profileService services.ProfileService
}

// NewProfileHandler 创建一个新的 ProfileHandler。
func NewProfileHandler(profileService services.ProfileService) *ProfileHandler {
	return &ProfileHandler{profileService: profileService}
}

// GetProfile 处理 GET /api/v1/profile。
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "无法获取用户信息")
		return
	}

	user, err := h.profileService.GetProfile(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, user)
}

// UpdateProfile 处理 PUT /api/v1/profile，部分更新。
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "无法获取用户信息")
		return
	}

	var req services.UpdateProfileRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	user, err := h.profileService.UpdateProfile(r.Context(), userID, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, user)
}

// CompleteProfile 处理 POST /api/v1/profile/complete，引导流程的一次性提交。
func (h *ProfileHandler) CompleteProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "无法获取用户信息")
		return
	}

	var req services.UpdateProfileRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	user, err := h.profileService.CompleteProfile(r.Context(), userID, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, user)
}

// Completion 处理 GET /api/v1/profile/completion。
func (h *ProfileHandler) Completion(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "无法获取用户信息")
		return
	}

	status, err := h.profileService.Completion(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, status)
}
