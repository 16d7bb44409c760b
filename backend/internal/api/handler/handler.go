package handler

import "couple-app/backend/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	User   *UserHandler
	Couple *CoupleHandler
	Export *ExportHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		User:   NewUserHandler(svc.User),
		Couple: NewCoupleHandler(svc.Couple),
		Export: NewExportHandler(svc.Export),
	}
}
