package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "couple-app/backend/pkg/errors"
	"couple-app/backend/pkg/response"
)

// MustGetUserID 从 Gin 上下文中安全提取 user_id。
// 如果认证中间件未正确注入 user_id，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetUserID(c *gin.Context) (string, bool) {
	v, exists := c.Get("user_id")
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}

// bindJSON 绑定请求体，失败时写入 400（超出 BodyLimit 时为 413）
func bindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, http.StatusRequestEntityTooLarge, 10005, "请求体过大")
			return false
		}
		response.ErrorWithDetails(c, http.StatusBadRequest, 10001, "参数校验失败", err.Error())
		return false
	}
	return true
}

// respondByKind 未单独映射的业务错误按错误类别写响应
func respondByKind(c *gin.Context, err error) {
	switch apperrors.Kind(err) {
	case apperrors.ErrValidation:
		response.BadRequest(c, 10001, err.Error())
	case apperrors.ErrNotFound:
		response.NotFound(c, 10006, err.Error())
	case apperrors.ErrConflict:
		response.Conflict(c, 10007, err.Error())
	case apperrors.ErrForbidden, apperrors.ErrAccessDenied:
		response.Forbidden(c, 10003, err.Error())
	case apperrors.ErrTimeout:
		response.GatewayTimeout(c)
	default:
		_ = c.Error(err)
		response.InternalError(c)
	}
}
