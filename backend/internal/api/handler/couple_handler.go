package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"couple-app/backend/internal/dto"
	"couple-app/backend/internal/service"
	"couple-app/backend/pkg/response"
)

// CoupleHandler 情侣空间模块 HTTP 处理器
type CoupleHandler struct {
	coupleSvc service.CoupleService
}

// NewCoupleHandler 创建 CoupleHandler
func NewCoupleHandler(coupleSvc service.CoupleService) *CoupleHandler {
	return &CoupleHandler{coupleSvc: coupleSvc}
}

// ListCouples 当前用户的空间列表（含全部成员关系）
// GET /api/v1/couples
func (h *CoupleHandler) ListCouples(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	list, err := h.coupleSvc.ListForUser(c.Request.Context(), userID)
	if err != nil {
		handleCoupleError(c, err)
		return
	}

	response.OK(c, list)
}

// CreateCouple 创建空间，调用者成为创建者
// POST /api/v1/couples
func (h *CoupleHandler) CreateCouple(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.CreateCoupleRequest
	if !bindJSON(c, &req) {
		return
	}

	couple, err := h.coupleSvc.Create(c.Request.Context(), userID, &req)
	if err != nil {
		handleCoupleError(c, err)
		return
	}

	response.Created(c, couple)
}

// JoinCouple 通过邀请码加入空间
// POST /api/v1/couples/join
func (h *CoupleHandler) JoinCouple(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.JoinCoupleRequest
	if !bindJSON(c, &req) {
		return
	}

	member, err := h.coupleSvc.JoinByCode(c.Request.Context(), userID, &req)
	if err != nil {
		handleCoupleError(c, err)
		return
	}

	response.Created(c, member)
}

// GetCouple 空间详情
// GET /api/v1/couples/:id
func (h *CoupleHandler) GetCouple(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	couple, err := h.coupleSvc.GetByID(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		handleCoupleError(c, err)
		return
	}

	response.OK(c, couple)
}

// UpdateCouple 修改空间设置（仅创建者）
// PUT /api/v1/couples/:id
func (h *CoupleHandler) UpdateCouple(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.UpdateCoupleRequest
	if !bindJSON(c, &req) {
		return
	}

	couple, err := h.coupleSvc.Update(c.Request.Context(), c.Param("id"), userID, &req)
	if err != nil {
		handleCoupleError(c, err)
		return
	}

	response.OK(c, couple)
}

// ListMembers 空间活跃成员
// GET /api/v1/couples/:id/members
func (h *CoupleHandler) ListMembers(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	members, err := h.coupleSvc.ListMembers(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		handleCoupleError(c, err)
		return
	}

	response.OK(c, members)
}

// RemoveMember 移除成员（仅创建者）
// DELETE /api/v1/couples/:id/members/:memberId
func (h *CoupleHandler) RemoveMember(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.coupleSvc.RemoveMember(c.Request.Context(), c.Param("id"), c.Param("memberId"), userID); err != nil {
		handleCoupleError(c, err)
		return
	}

	response.OK(c, nil)
}

// LeaveCouple 主动离开空间
// POST /api/v1/couples/:id/leave
func (h *CoupleHandler) LeaveCouple(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.coupleSvc.Leave(c.Request.Context(), c.Param("id"), userID); err != nil {
		handleCoupleError(c, err)
		return
	}

	response.OK(c, nil)
}

// handleCoupleError 统一处理情侣空间模块业务错误，导出接口复用同一套访问控制错误
func handleCoupleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrCoupleNotFound):
		response.NotFound(c, 14001, "情侣空间不存在")
	case errors.Is(err, service.ErrInvalidCoupleCode):
		response.NotFound(c, 14002, "邀请码无效或已失效")
	case errors.Is(err, service.ErrAlreadyMember):
		response.Conflict(c, 14003, "你已是该空间的成员")
	case errors.Is(err, service.ErrNotCoupleMember):
		response.Forbidden(c, 14004, "你不是该空间的成员")
	case errors.Is(err, service.ErrOnlyCreatorCanUpdate):
		response.Forbidden(c, 14005, "只有创建者可以修改空间设置")
	case errors.Is(err, service.ErrOnlyCreatorCanRemove):
		response.Forbidden(c, 14006, "只有创建者可以移除成员")
	case errors.Is(err, service.ErrCannotRemoveCreator):
		response.Forbidden(c, 14007, "不能移除创建者")
	case errors.Is(err, service.ErrMemberNotFound):
		response.NotFound(c, 14008, "成员不存在")
	case errors.Is(err, service.ErrMemberAlreadyLeft):
		response.Conflict(c, 14009, "该成员已离开空间")
	case errors.Is(err, service.ErrNotActiveMember):
		response.NotFound(c, 14010, "你不是该空间的活跃成员")
	case errors.Is(err, service.ErrCreatorCannotLeave):
		response.Conflict(c, 14011, err.Error())
	case errors.Is(err, service.ErrCodeGenerationExhausted):
		response.Conflict(c, 14012, "邀请码生成失败，请稍后重试")
	default:
		respondByKind(c, err)
	}
}
