package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"spark-go/internal/auth"

	"github.com/gorilla/mux"
)

// contextKey 是用于在 context.Context 中存储值的自定义类型，以避免键冲突。
type contextKey string

// UserIDKey 是用于在上下文中存储用户ID的键。
const UserIDKey contextKey = "userID"

// ClaimsKey 是用于在上下文中存储完整 JWT Claims 的键。
const ClaimsKey contextKey = "claims"

// AuthMiddleware 返回一个 mux 中间件，用于验证 Bearer Token 并将
// 用户信息添加到请求上下文中。blacklist 用于拒绝已登出的 Token。
func AuthMiddleware(jwtKey string, blacklist auth.TokenBlacklist) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeAuthError(w, "请求未包含授权令牌")
				return
			}

			headerParts := strings.Split(authHeader, " ")
			if len(headerParts) != 2 || strings.ToLower(headerParts[0]) != "bearer" {
				writeAuthError(w, "授权头部格式无效，应为 Bearer {token}")
				return
			}

			tokenString := headerParts[1]
			claims, err := auth.ValidateToken(r.Context(), tokenString, jwtKey, blacklist)
			if err != nil {
				writeAuthError(w, "令牌无效")
				return
			}

			// 将用户信息存入请求上下文
			ctx := context.WithValue(r.Context(), UserIDKey, claims.UserID)
			ctx = context.WithValue(ctx, ClaimsKey, claims)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserIDFromContext 从上下文中获取用户ID。
// 如果用户ID不存在或类型不正确，返回0和false。
func GetUserIDFromContext(ctx context.Context) (uint, bool) {
	userID, ok := ctx.Value(UserIDKey).(uint)
	return userID, ok
}

// GetClaimsFromContext 从上下文中获取完整的 JWT Claims。
func GetClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*auth.Claims)
	return claims, ok
}

func writeAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
