package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/Fyongrou/ScoreV1/internal/dto"
	"github.com/Fyongrou/ScoreV1/internal/gradesheet"
	"github.com/Fyongrou/ScoreV1/internal/repository"
	pkgerrors "github.com/Fyongrou/ScoreV1/pkg/errors"
)

// ── 导出模块业务错误 ──

var (
	ErrExportNoResults    = errors.New("没有可导出的查询结果")
	ErrExportGenerateFail = errors.New("生成 Excel 文件失败")
)

// ExportService 导出业务接口
//
// 设计说明：
//   - 模板：仅含表头的空白工作簿，列顺序即导入列定义
//   - 查询结果：与查询接口同一组过滤条件，导出文件可直接再次导入
//   - 导出以 gradesheet.Artifact 返回，由 Handler 层写入附件响应
type ExportService interface {
	Template() (*gradesheet.Artifact, error)
	ExportResults(ctx context.Context, req *dto.GradeSearchRequest) (*gradesheet.Artifact, error)
}

type exportService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, logger: logger}
}

func (s *exportService) Template() (*gradesheet.Artifact, error) {
	art, err := gradesheet.Template()
	if err != nil {
		s.logger.Error("生成导入模板失败", zap.Error(err))
		return nil, ErrExportGenerateFail
	}
	return art, nil
}

// ═══════════════════════════════════════════════════════════
// ExportResults 导出查询结果为 Excel
// ═══════════════════════════════════════════════════════════

func (s *exportService) ExportResults(ctx context.Context, req *dto.GradeSearchRequest) (*gradesheet.Artifact, error) {
	grades, err := s.repo.Grade.Search(ctx, toGradeFilter(req))
	if err != nil {
		s.logger.Error("查询成绩失败", zap.Error(err))
		return nil, pkgerrors.Storage("search", err)
	}
	if len(grades) == 0 {
		return nil, ErrExportNoResults
	}

	art, err := gradesheet.Results(grades)
	if err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, ErrExportGenerateFail
	}

	s.logger.Info("导出查询结果", zap.Int("rows", len(grades)))
	return art, nil
}
