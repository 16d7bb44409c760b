package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"couple-app/backend/config"
	"couple-app/backend/internal/dto"
	"couple-app/backend/internal/model"
	"couple-app/backend/internal/repository"
	apperrors "couple-app/backend/pkg/errors"
	"couple-app/backend/pkg/jwt"
	"couple-app/backend/pkg/storage"
)

// ── 用户模块业务错误 ──

var (
	ErrUserNotFound       = apperrors.New(apperrors.ErrNotFound, "用户不存在")
	ErrUserNotProvisioned = apperrors.New(apperrors.ErrForbidden, "身份信息缺少邮箱，无法创建账号")
	ErrEmailNotVerified   = apperrors.New(apperrors.ErrForbidden, "邮箱尚未验证")
	ErrDeleteConfirmation = apperrors.New(apperrors.ErrValidation, "请输入 DELETE 以确认注销账号")
	ErrStorageUnavailable = apperrors.New(apperrors.ErrInternal, "对象存储未配置")
)

const deleteConfirmation = "DELETE"

// AvatarPresigner 头像上传预签名能力，由 pkg/storage 提供
type AvatarPresigner interface {
	PresignPut(ctx context.Context, key, contentType string) (*storage.PresignedUpload, error)
}

// UserService 用户业务接口
type UserService interface {
	// ResolveIdentity 按外部身份查找本地用户，不存在且身份带邮箱时自动创建
	ResolveIdentity(ctx context.Context, identity *jwt.Identity) (*dto.ProfileResponse, error)
	GetProfile(ctx context.Context, userID string) (*dto.ProfileResponse, error)
	UpdateProfile(ctx context.Context, userID string, req *dto.UpdateProfileRequest) (*dto.ProfileResponse, error)
	DeleteAccount(ctx context.Context, userID string, req *dto.DeleteAccountRequest) error
	AvatarUploadURL(ctx context.Context, userID string, req *dto.AvatarUploadRequest) (*dto.AvatarUploadResponse, error)
}

type userService struct {
	repo            *repository.Repository
	presigner       AvatarPresigner
	logger          *zap.Logger
	requireVerified bool
	timeout         time.Duration
}

// NewUserService 创建 UserService 实例
func NewUserService(cfg *config.Config, repo *repository.Repository, presigner AvatarPresigner, logger *zap.Logger) UserService {
	return &userService{
		repo:            repo,
		presigner:       presigner,
		logger:          logger,
		requireVerified: cfg.Auth.RequireVerifiedEmail,
		timeout:         cfg.Couple.OperationTimeout,
	}
}

// ────────────────────── ResolveIdentity ──────────────────────

func (s *userService) ResolveIdentity(ctx context.Context, identity *jwt.Identity) (*dto.ProfileResponse, error) {
	if s.requireVerified && !identity.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	ctx, cancel := withDeadline(ctx, s.timeout)
	defer cancel()

	user, err := s.repo.User.GetByFirebaseUID(ctx, identity.UID)
	if err == nil {
		return toProfileResponse(user), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storeError(ctx, s.logger, "按身份查询用户失败", err, zap.String("uid", identity.UID))
	}

	if identity.Email == "" {
		return nil, ErrUserNotProvisioned
	}

	now := time.Now().UTC()
	user = &model.User{
		FirebaseUID: identity.UID,
		Email:       identity.Email,
		Name:        defaultDisplayName(identity.Email),
		BaseModel:   model.BaseModel{CreatedAt: now, UpdatedAt: now},
	}
	if err := s.repo.User.Create(ctx, user); err != nil {
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, storeError(ctx, s.logger, "创建用户失败", err, zap.String("uid", identity.UID))
		}
		// 并发请求已先行创建，读取胜出者的记录
		existing, rerr := s.repo.User.GetByFirebaseUID(ctx, identity.UID)
		if rerr != nil {
			if errors.Is(rerr, gorm.ErrRecordNotFound) {
				// 邮箱被另一个身份占用
				return nil, apperrors.New(apperrors.ErrConflict, "该邮箱已绑定其他账号")
			}
			return nil, storeError(ctx, s.logger, "重新读取用户失败", rerr, zap.String("uid", identity.UID))
		}
		return toProfileResponse(existing), nil
	}

	s.logger.Info("首次登录，已创建用户",
		zap.String("user_id", user.UserID),
		zap.String("uid", identity.UID),
	)
	return toProfileResponse(user), nil
}

// defaultDisplayName 取邮箱 @ 之前的部分作为默认昵称
func defaultDisplayName(email string) string {
	name, _, _ := strings.Cut(email, "@")
	if name == "" {
		return email
	}
	return name
}

// ────────────────────── GetProfile ──────────────────────

func (s *userService) GetProfile(ctx context.Context, userID string) (*dto.ProfileResponse, error) {
	ctx, cancel := withDeadline(ctx, s.timeout)
	defer cancel()

	user, err := s.repo.User.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, storeError(ctx, s.logger, "查询用户失败", err, zap.String("user_id", userID))
	}
	return toProfileResponse(user), nil
}

// ────────────────────── UpdateProfile ──────────────────────

func (s *userService) UpdateProfile(ctx context.Context, userID string, req *dto.UpdateProfileRequest) (*dto.ProfileResponse, error) {
	if req.Name != nil {
		if err := validateName("昵称", *req.Name); err != nil {
			return nil, err
		}
	}
	if req.AvatarURL != nil && *req.AvatarURL != "" {
		if err := validateAvatarURL(*req.AvatarURL); err != nil {
			return nil, err
		}
	}

	ctx, cancel := withDeadline(ctx, s.timeout)
	defer cancel()

	fields := map[string]interface{}{"updated_at": time.Now().UTC()}
	if req.Name != nil {
		fields["name"] = *req.Name
	}
	if req.AvatarURL != nil {
		fields["avatar_url"] = optionalString(*req.AvatarURL)
	}

	if err := s.repo.User.UpdateFields(ctx, userID, fields); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, storeError(ctx, s.logger, "更新用户失败", err, zap.String("user_id", userID))
	}

	user, err := s.repo.User.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, storeError(ctx, s.logger, "查询用户失败", err, zap.String("user_id", userID))
	}

	return toProfileResponse(user), nil
}

// ────────────────────── DeleteAccount ──────────────────────

// DeleteAccount 只删除用户记录，成员关系保留用于历史展示
func (s *userService) DeleteAccount(ctx context.Context, userID string, req *dto.DeleteAccountRequest) error {
	if req.Confirmation != deleteConfirmation {
		return ErrDeleteConfirmation
	}

	ctx, cancel := withDeadline(ctx, s.timeout)
	defer cancel()

	if err := s.repo.User.Delete(ctx, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return storeError(ctx, s.logger, "删除用户失败", err, zap.String("user_id", userID))
	}

	s.logger.Info("用户已注销", zap.String("user_id", userID))
	return nil
}

// ────────────────────── AvatarUploadURL ──────────────────────

func (s *userService) AvatarUploadURL(ctx context.Context, userID string, req *dto.AvatarUploadRequest) (*dto.AvatarUploadResponse, error) {
	fileName := path.Base(strings.ReplaceAll(strings.TrimSpace(req.FileName), "\\", "/"))
	if fileName == "" || fileName == "." || fileName == "/" {
		return nil, apperrors.Validationf("文件名不能为空")
	}
	if req.ContentType != "" && !strings.HasPrefix(req.ContentType, "image/") {
		return nil, apperrors.Validationf("头像只能上传图片")
	}
	if s.presigner == nil {
		return nil, ErrStorageUnavailable
	}

	ctx, cancel := withDeadline(ctx, s.timeout)
	defer cancel()

	key := fmt.Sprintf("avatars/%s/%d-%s", userID, time.Now().UnixMilli(), fileName)
	up, err := s.presigner.PresignPut(ctx, key, req.ContentType)
	if err != nil {
		s.logger.Error("生成头像上传地址失败", zap.String("user_id", userID), zap.Error(err))
		return nil, apperrors.New(apperrors.ErrInternal, "生成上传地址失败")
	}

	return &dto.AvatarUploadResponse{
		UploadURL: up.UploadURL,
		ObjectKey: up.ObjectKey,
		PublicURL: up.PublicURL,
		ExpiresAt: formatTime(up.ExpiresAt),
	}, nil
}

// ────────────────────── helpers ──────────────────────

func toProfileResponse(u *model.User) *dto.ProfileResponse {
	return &dto.ProfileResponse{
		ID:        u.UserID,
		Email:     u.Email,
		Name:      u.Name,
		AvatarURL: u.AvatarURL,
		CreatedAt: formatTime(u.CreatedAt),
		UpdatedAt: formatTime(u.UpdatedAt),
	}
}

func toUserPublic(u *model.User) *dto.UserPublic {
	return &dto.UserPublic{
		ID:        u.UserID,
		Name:      u.Name,
		Email:     u.Email,
		AvatarURL: u.AvatarURL,
	}
}
