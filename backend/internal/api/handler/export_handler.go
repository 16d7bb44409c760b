package handler

import (
	"bytes"
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"couple-app/backend/internal/service"
	"couple-app/backend/pkg/response"
)

const (
	contentTypeICS  = "text/calendar; charset=utf-8"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// AnniversaryCalendar 导出纪念日日历
// GET /api/v1/couples/:id/anniversary.ics
func (h *ExportHandler) AnniversaryCalendar(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	buf, filename, err := h.exportSvc.AnniversaryCalendar(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	sendAttachment(c, filename, contentTypeICS, buf)
}

// MembershipHistory 导出成员关系历史
// GET /api/v1/couples/:id/members/export
func (h *ExportHandler) MembershipHistory(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	buf, filename, err := h.exportSvc.MembershipHistory(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	sendAttachment(c, filename, contentTypeXLSX, buf)
}

// sendAttachment 设置下载响应头并写出文件
func sendAttachment(c *gin.Context, filename, contentType string, buf *bytes.Buffer) {
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.QueryEscape(filename))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNoAnniversary):
		response.NotFound(c, 16001, "该空间尚未设置纪念日")
	case errors.Is(err, service.ErrExportGenerateFail):
		_ = c.Error(err)
		response.InternalError(c)
	default:
		handleCoupleError(c, err)
	}
}
