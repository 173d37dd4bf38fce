package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Fyongrou/ScoreV1/internal/gradesheet"
	"github.com/Fyongrou/ScoreV1/internal/service"
	pkgerrors "github.com/Fyongrou/ScoreV1/pkg/errors"
	"github.com/Fyongrou/ScoreV1/pkg/response"
)

// ImportHandler 成绩导入 HTTP 处理器
type ImportHandler struct {
	importSvc service.ImportService
}

// NewImportHandler 创建 ImportHandler
func NewImportHandler(importSvc service.ImportService) *ImportHandler {
	return &ImportHandler{importSvc: importSvc}
}

// pendingArtifact 暂存错误报告，待导入返回后以附件写出
type pendingArtifact struct {
	artifact *gradesheet.Artifact
}

func (p *pendingArtifact) Save(_ context.Context, a *gradesheet.Artifact) error {
	p.artifact = a
	return nil
}

// ImportGrades 导入成绩 Excel
// POST /api/v1/grades/import  multipart/form-data, field="file"
//
// 成功返回 201 {total, imported}；
// 存在无效行时返回 422，响应体为错误报告 xlsx，X-Import-Error-Count 为无效行数。
func (h *ImportHandler) ImportGrades(c *gin.Context) {
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, http.StatusRequestEntityTooLarge, 10005, "上传文件过大")
			return
		}
		response.BadRequest(c, 17100, "请上传 Excel 文件（字段名 file）")
		return
	}
	defer file.Close()

	sink := &pendingArtifact{}
	result, err := h.importSvc.Import(c.Request.Context(), file, sink)
	if err != nil {
		var verr *service.ImportValidationError
		if errors.As(err, &verr) && sink.artifact != nil {
			c.Header("X-Import-Error-Count", strconv.Itoa(len(verr.Records)))
			response.Attachment(c, http.StatusUnprocessableEntity,
				sink.artifact.Filename, gradesheet.ContentType, sink.artifact.Data)
			return
		}
		handleImportError(c, err)
		return
	}

	response.Created(c, result)
}

func handleImportError(c *gin.Context, err error) {
	var de *gradesheet.DecodeError
	var se *pkgerrors.StorageError
	switch {
	case errors.Is(err, service.ErrImportBusy):
		response.Conflict(c, 17101, err.Error())
	case errors.As(err, &de):
		response.ErrorWithDetails(c, http.StatusBadRequest, 17102, "无法解析上传的 Excel 文件", de.Error())
	case errors.Is(err, service.ErrImportNoRows):
		response.BadRequest(c, 17103, err.Error())
	case errors.Is(err, service.ErrImportTooManyRows):
		response.ErrorWithDetails(c, http.StatusBadRequest, 17104, "数据行数超过上限", err.Error())
	case errors.As(err, &se):
		response.ErrorWithDetails(c, http.StatusInternalServerError, 50001, "数据存储失败", se.Error())
	default:
		response.InternalError(c)
	}
}
