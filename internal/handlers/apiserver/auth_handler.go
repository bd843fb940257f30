package apiserver

import (
	"net/http"

	"spark-go/internal/middleware"
	"spark-go/internal/services"
)

// AuthHandler 处理注册、登录和登出请求。
type AuthHandler struct {
	authService services.AuthService
}

// NewAuthHandler 创建一个新的 AuthHandler。
func NewAuthHandler(authService services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Register 处理 POST /api/v1/auth/register。
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	result, err := h.authService.Register(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, result)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login 处理 POST /api/v1/auth/login。
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	result, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, result)
}

// Logout 处理 POST /api/v1/auth/logout（需要认证）。
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaimsFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "无法获取用户信息")
		return
	}

	if err := h.authService.Logout(r.Context(), claims); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "已退出登录"})
}
