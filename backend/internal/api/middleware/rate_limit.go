package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"couple-app/backend/pkg/response"
)

// Limiter 滑动窗口计数器，由 pkg/redis.Client 实现
type Limiter interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// KeyFunc 计算限流维度
type KeyFunc func(c *gin.Context) string

// ByClientIP 按客户端 IP + 路由限流
func ByClientIP(c *gin.Context) string {
	return "ip:" + c.ClientIP() + ":" + c.FullPath()
}

// ByUserID 按已认证用户 + 路由限流，未认证时退化为按 IP
func ByUserID(c *gin.Context) string {
	if uid := c.GetString("user_id"); uid != "" {
		return "user:" + uid + ":" + c.FullPath()
	}
	return ByClientIP(c)
}

// RateLimit 基于 Redis 滑动窗口的速率限制中间件
// limiter 为 nil 或 Redis 出错时降级放行
func RateLimit(limiter Limiter, limit int, window time.Duration, keyFn KeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		allowed, err := limiter.CheckRateLimit(c.Request.Context(), keyFn(c), limit, window)
		if err != nil {
			c.Next()
			return
		}

		if !allowed {
			response.Error(c, http.StatusTooManyRequests, 10004, "请求过于频繁，请稍后再试")
			c.Abort()
			return
		}

		c.Next()
	}
}
