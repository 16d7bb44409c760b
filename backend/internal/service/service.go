package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"couple-app/backend/config"
	"couple-app/backend/internal/repository"
	apperrors "couple-app/backend/pkg/errors"
)

// ErrOperationTimeout 单次操作超过截止时间
var ErrOperationTimeout = apperrors.New(apperrors.ErrTimeout, "操作超时，请稍后重试")

const defaultOperationTimeout = 5 * time.Second

// Service 所有 Service 的聚合入口
type Service struct {
	User   UserService
	Couple CoupleService
	Export ExportService
}

// NewService 创建 Service 聚合
// presigner 为 nil 时头像上传接口返回存储未配置错误
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	presigner AvatarPresigner,
	logger *zap.Logger,
) *Service {
	return &Service{
		User:   NewUserService(cfg, repo, presigner, logger),
		Couple: NewCoupleService(&cfg.Couple, repo, logger),
		Export: NewExportService(&cfg.Couple, repo, logger),
	}
}

// withDeadline 为单次操作附加截止时间
func withDeadline(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = defaultOperationTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// storeError 记录存储层错误并翻译为错误类别，超时统一为 ErrOperationTimeout
func storeError(ctx context.Context, logger *zap.Logger, msg string, err error, fields ...zap.Field) error {
	fields = append(fields, zap.Error(err))
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		logger.Warn(msg, fields...)
		return ErrOperationTimeout
	}
	logger.Error(msg, fields...)
	return apperrors.FromStore(err)
}
