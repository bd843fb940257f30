// Package apiserver contains the HTTP handlers of the REST API server.
package apiserver

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"spark-go/internal/services"
	"spark-go/internal/validate"
)

// writeJSONResponse 将 payload 序列化为 JSON 并写入响应。
func writeJSONResponse(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("错误: 序列化响应失败: %v", err)
	}
}

// writeJSONError 写入一个 {"error": message} 形状的错误响应。
func writeJSONError(w http.ResponseWriter, statusCode int, message string) {
	writeJSONResponse(w, statusCode, map[string]string{"error": message})
}

// writeServiceError 把服务层错误映射为 HTTP 状态码。
// 未识别的错误一律按 500 处理并记录日志，不向客户端泄露细节。
func writeServiceError(w http.ResponseWriter, err error) {
	var valErr *validate.Error
	if errors.As(err, &valErr) {
		writeJSONResponse(w, http.StatusBadRequest, map[string]interface{}{
			"error": valErr.Message,
			"field": valErr.Field,
		})
		return
	}

	if pie, ok := services.IsProfileIncomplete(err); ok {
		writeJSONResponse(w, http.StatusForbidden, map[string]interface{}{
			"error":       pie.Error(),
			"profileStep": pie.Step,
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrInvalidCredentials):
		writeJSONError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, services.ErrNotParticipant), errors.Is(err, services.ErrNotMatched):
		writeJSONError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrUserNotFound), errors.Is(err, services.ErrMatchNotFound):
		writeJSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrUserAlreadyExists):
		writeJSONError(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrSwipeSelf):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("错误: 服务层内部错误: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "服务器内部错误")
	}
}

// decodeJSONBody 解析请求体；失败时直接写 400 并返回 false。
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "无效的请求体")
		return false
	}
	return true
}
