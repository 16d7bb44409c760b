package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"couple-app/backend/internal/dto"
	"couple-app/backend/internal/service"
	"couple-app/backend/pkg/response"
)

// UserHandler 用户模块 HTTP 处理器
type UserHandler struct {
	userSvc service.UserService
}

// NewUserHandler 创建 UserHandler
func NewUserHandler(userSvc service.UserService) *UserHandler {
	return &UserHandler{userSvc: userSvc}
}

// GetProfile 获取当前用户资料
// GET /api/v1/users/me
func (h *UserHandler) GetProfile(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	profile, err := h.userSvc.GetProfile(c.Request.Context(), userID)
	if err != nil {
		h.handleUserError(c, err)
		return
	}

	response.OK(c, profile)
}

// UpdateProfile 更新当前用户资料
// PUT /api/v1/users/me
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}

	profile, err := h.userSvc.UpdateProfile(c.Request.Context(), userID, &req)
	if err != nil {
		h.handleUserError(c, err)
		return
	}

	response.OK(c, profile)
}

// DeleteAccount 注销账号
// DELETE /api/v1/users/me
func (h *UserHandler) DeleteAccount(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.DeleteAccountRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.userSvc.DeleteAccount(c.Request.Context(), userID, &req); err != nil {
		h.handleUserError(c, err)
		return
	}

	response.OK(c, nil)
}

// AvatarUpload 申请头像预签名上传地址
// POST /api/v1/users/me/avatar
func (h *UserHandler) AvatarUpload(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.AvatarUploadRequest
	if !bindJSON(c, &req) {
		return
	}

	upload, err := h.userSvc.AvatarUploadURL(c.Request.Context(), userID, &req)
	if err != nil {
		h.handleUserError(c, err)
		return
	}

	response.OK(c, upload)
}

// handleUserError 统一处理用户模块业务错误
func (h *UserHandler) handleUserError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFound(c, 12001, "用户不存在")
	case errors.Is(err, service.ErrUserNotProvisioned):
		response.Forbidden(c, 12002, err.Error())
	case errors.Is(err, service.ErrEmailNotVerified):
		response.Forbidden(c, 12003, "邮箱尚未验证")
	case errors.Is(err, service.ErrDeleteConfirmation):
		response.BadRequest(c, 12004, "请输入 DELETE 以确认注销账号")
	case errors.Is(err, service.ErrStorageUnavailable):
		response.Error(c, http.StatusServiceUnavailable, 12005, "对象存储未配置")
	default:
		respondByKind(c, err)
	}
}
