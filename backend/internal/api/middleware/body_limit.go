package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"couple-app/backend/pkg/response"
)

// BodyLimit 请求体大小限制
// 声明长度超限时直接拒绝；未声明长度的请求由 MaxBytesReader 在读取时截断，
// Handler 绑定失败后通过 IsBodyTooLarge 识别
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes <= 0 {
			c.Next()
			return
		}
		if c.Request.ContentLength > maxBytes {
			response.Error(c, http.StatusRequestEntityTooLarge, 10005, "请求体过大")
			c.Abort()
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}

		c.Next()
	}
}
