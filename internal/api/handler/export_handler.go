package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Fyongrou/ScoreV1/internal/dto"
	"github.com/Fyongrou/ScoreV1/internal/gradesheet"
	"github.com/Fyongrou/ScoreV1/internal/service"
	pkgerrors "github.com/Fyongrou/ScoreV1/pkg/errors"
	"github.com/Fyongrou/ScoreV1/pkg/response"
)

// ExportHandler 模板下载与查询结果导出 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// DownloadTemplate 下载导入模板
// GET /api/v1/grades/template
func (h *ExportHandler) DownloadTemplate(c *gin.Context) {
	art, err := h.exportSvc.Template()
	if err != nil {
		handleExportError(c, err)
		return
	}

	response.Attachment(c, http.StatusOK, art.Filename, gradesheet.ContentType, art.Data)
}

// ExportResults 导出查询结果，过滤参数与 SearchGrades 相同
// GET /api/v1/grades/export
func (h *ExportHandler) ExportResults(c *gin.Context) {
	var req dto.GradeSearchRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, 10001, "参数校验失败", validationDetails(err))
		return
	}

	art, err := h.exportSvc.ExportResults(c.Request.Context(), &req)
	if err != nil {
		handleExportError(c, err)
		return
	}

	response.Attachment(c, http.StatusOK, art.Filename, gradesheet.ContentType, art.Data)
}

func handleExportError(c *gin.Context, err error) {
	var se *pkgerrors.StorageError
	switch {
	case errors.Is(err, service.ErrExportNoResults):
		response.NotFound(c, 17201, "没有可导出的查询结果")
	case errors.As(err, &se):
		response.ErrorWithDetails(c, http.StatusInternalServerError, 50001, "数据存储失败", se.Error())
	default:
		response.InternalError(c)
	}
}
