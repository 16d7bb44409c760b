package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"couple-app/backend/config"
	"couple-app/backend/internal/api/handler"
	"couple-app/backend/internal/api/router"
	"couple-app/backend/internal/repository"
	"couple-app/backend/internal/service"
	"couple-app/backend/pkg/database"
	"couple-app/backend/pkg/jwt"
	applogger "couple-app/backend/pkg/logger"
	"couple-app/backend/internal/api/middleware"
	"couple-app/backend/pkg/redis"
	"couple-app/backend/pkg/storage"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
	)

	// 3. 连接数据库
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	logger.Info("数据库连接成功")

	// 3.1 执行数据库迁移
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	// 4. 连接 Redis（可选：连接失败时降级运行，限流不生效）
	var limiter middleware.Limiter
	rdb, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，限流功能将不可用", zap.Error(err))
		rdb = nil
	} else {
		limiter = rdb
	}

	// 5. 初始化对象存储（可选：未配置 bucket 时头像上传不可用）
	var presigner service.AvatarPresigner
	if cfg.Storage.Bucket != "" {
		p, err := storage.NewPresigner(context.Background(), &cfg.Storage)
		if err != nil {
			logger.Warn("对象存储初始化失败，头像上传将不可用", zap.Error(err))
		} else {
			presigner = p
		}
	}

	// 6. 初始化身份令牌校验器
	idVerifier := jwt.NewManager(&cfg.Auth)

	// 7. 依赖注入: Repository → Service → Handler → Router
	repo := repository.NewRepository(db)
	svc := service.NewService(cfg, repo, presigner, logger)
	h := handler.NewHandler(svc)

	engine := router.Setup(cfg, router.Deps{
		Handler:  h,
		Verifier: idVerifier,
		Resolver: svc.User,
		Limiter:  limiter,
		Store:    repo,
		Logger:   logger,
	})

	// 8. 启动 HTTP 服务器（优雅关闭）
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 9. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	// 关闭数据库连接
	closeDB, _ := db.DB()
	if closeDB != nil {
		closeDB.Close()
	}

	// 关闭 Redis 连接
	if rdb != nil {
		rdb.Close()
	}

	logger.Info("服务器已关闭")
}
