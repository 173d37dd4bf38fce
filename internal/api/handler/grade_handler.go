package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Fyongrou/ScoreV1/internal/dto"
	"github.com/Fyongrou/ScoreV1/internal/service"
	pkgerrors "github.com/Fyongrou/ScoreV1/pkg/errors"
	"github.com/Fyongrou/ScoreV1/pkg/response"
)

// GradeHandler 成绩查询与修改 HTTP 处理器
type GradeHandler struct {
	gradeSvc service.GradeService
}

// NewGradeHandler 创建 GradeHandler
func NewGradeHandler(gradeSvc service.GradeService) *GradeHandler {
	return &GradeHandler{gradeSvc: gradeSvc}
}

// SearchGrades 按条件查询成绩
// GET /api/v1/grades?student_id=&student_name=&start_year=&end_year=&exam_type=
func (h *GradeHandler) SearchGrades(c *gin.Context) {
	var req dto.GradeSearchRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, 10001, "参数校验失败", validationDetails(err))
		return
	}

	result, err := h.gradeSvc.Search(c.Request.Context(), &req)
	if err != nil {
		handleGradeError(c, err)
		return
	}

	response.OK(c, result)
}

// ListYears 获取已有学年（起止学年下拉框）
// GET /api/v1/grades/years
func (h *GradeHandler) ListYears(c *gin.Context) {
	result, err := h.gradeSvc.ListYears(c.Request.Context())
	if err != nil {
		handleGradeError(c, err)
		return
	}

	response.OK(c, result)
}

// UpdateGrade 修改单科成绩
// PATCH /api/v1/grades/:id
func (h *GradeHandler) UpdateGrade(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, 10001, "成绩ID无效")
		return
	}

	var req dto.UpdateGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, 10001, "参数校验失败", validationDetails(err))
		return
	}

	result, err := h.gradeSvc.UpdateField(c.Request.Context(), id, &req)
	if err != nil {
		handleGradeError(c, err)
		return
	}

	response.OK(c, result)
}

func handleGradeError(c *gin.Context, err error) {
	var se *pkgerrors.StorageError
	switch {
	case errors.Is(err, service.ErrGradeNotFound):
		response.NotFound(c, 17001, "成绩记录不存在")
	case errors.Is(err, service.ErrInvalidField):
		response.BadRequest(c, 17002, err.Error())
	case errors.Is(err, service.ErrInvalidScore):
		response.BadRequest(c, 17003, err.Error())
	case errors.As(err, &se):
		response.ErrorWithDetails(c, http.StatusInternalServerError, 50001, "数据存储失败", se.Error())
	default:
		response.InternalError(c)
	}
}
