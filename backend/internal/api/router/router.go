package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"couple-app/backend/config"
	"couple-app/backend/internal/api/handler"
	"couple-app/backend/internal/api/middleware"
)

// Pinger 存储健康检查
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps 路由依赖
// Limiter 为 nil 时限流降级为放行
type Deps struct {
	Handler  *handler.Handler
	Verifier middleware.IdentityVerifier
	Resolver middleware.IdentityResolver
	Limiter  middleware.Limiter
	Store    Pinger
	Logger   *zap.Logger
}

// Setup 初始化并返回 Gin 路由引擎
func Setup(cfg *config.Config, d Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	h := d.Handler
	rl := cfg.RateLimit

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(d.Logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.BodyLimit))
	r.Use(middleware.RateLimit(d.Limiter, rl.GlobalLimit, rl.GlobalWindow, middleware.ByClientIP))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/db", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := d.Store.Ping(ctx); err != nil {
			d.Logger.Warn("数据库健康检查失败", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ── API v1（全部需要认证）──
	authorized := r.Group("/api/v1")
	authorized.Use(middleware.IdentityAuth(d.Verifier, d.Resolver))
	{
		// 用户模块
		users := authorized.Group("/users")
		{
			users.GET("/me", h.User.GetProfile)
			users.PUT("/me", h.User.UpdateProfile)
			users.DELETE("/me", h.User.DeleteAccount)
			users.POST("/me/avatar", h.User.AvatarUpload)
		}

		// 情侣空间模块
		couples := authorized.Group("/couples")
		{
			couples.GET("", h.Couple.ListCouples)
			couples.POST("", h.Couple.CreateCouple)
			couples.POST("/join",
				middleware.RateLimit(d.Limiter, rl.JoinLimit, rl.JoinWindow, middleware.ByUserID),
				h.Couple.JoinCouple)
			couples.GET("/:id", h.Couple.GetCouple)
			couples.PUT("/:id", h.Couple.UpdateCouple)
			couples.GET("/:id/members", h.Couple.ListMembers)
			couples.DELETE("/:id/members/:memberId", h.Couple.RemoveMember)
			couples.POST("/:id/leave", h.Couple.LeaveCouple)

			// 导出
			couples.GET("/:id/anniversary.ics", h.Export.AnniversaryCalendar)
			couples.GET("/:id/members/export", h.Export.MembershipHistory)
		}
	}

	return r
}
