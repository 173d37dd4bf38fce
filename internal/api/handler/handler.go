package handler

import "github.com/Fyongrou/ScoreV1/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Grade  *GradeHandler
	Import *ImportHandler
	Export *ExportHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Grade:  NewGradeHandler(svc.Grade),
		Import: NewImportHandler(svc.Import),
		Export: NewExportHandler(svc.Export),
	}
}
