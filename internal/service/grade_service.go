package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Fyongrou/ScoreV1/internal/dto"
	"github.com/Fyongrou/ScoreV1/internal/gradesheet"
	"github.com/Fyongrou/ScoreV1/internal/model"
	"github.com/Fyongrou/ScoreV1/internal/repository"
	pkgerrors "github.com/Fyongrou/ScoreV1/pkg/errors"
)

// ── 成绩模块业务错误 ──

var (
	ErrGradeNotFound = errors.New("成绩记录不存在")
	ErrInvalidField  = errors.New("只能修改学科成绩列")
	ErrInvalidScore  = errors.New("成绩值无效，请输入数值或 A、B、C、D")
)

// GradeService 成绩查询与修改业务接口
type GradeService interface {
	Search(ctx context.Context, req *dto.GradeSearchRequest) (*dto.GradeListResponse, error)
	ListYears(ctx context.Context) (*dto.YearListResponse, error)
	UpdateField(ctx context.Context, id int64, req *dto.UpdateGradeRequest) (*dto.GradeResponse, error)
}

type gradeService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewGradeService 创建 GradeService 实例
func NewGradeService(repo *repository.Repository, logger *zap.Logger) GradeService {
	return &gradeService{repo: repo, logger: logger}
}

// ────────────────────── Search ──────────────────────

func (s *gradeService) Search(ctx context.Context, req *dto.GradeSearchRequest) (*dto.GradeListResponse, error) {
	grades, err := s.repo.Grade.Search(ctx, toGradeFilter(req))
	if err != nil {
		s.logger.Error("查询成绩失败", zap.Error(err))
		return nil, pkgerrors.Storage("search", err)
	}

	list := make([]dto.GradeResponse, 0, len(grades))
	for i := range grades {
		list = append(list, *toGradeResponse(&grades[i]))
	}

	return &dto.GradeListResponse{Columns: gradesheet.Headers(), List: list}, nil
}

// ────────────────────── ListYears ──────────────────────

func (s *gradeService) ListYears(ctx context.Context) (*dto.YearListResponse, error) {
	years, err := s.repo.Grade.ListYears(ctx)
	if err != nil {
		s.logger.Error("查询学年列表失败", zap.Error(err))
		return nil, pkgerrors.Storage("list_years", err)
	}
	if years == nil {
		years = []string{}
	}
	return &dto.YearListResponse{Years: years}, nil
}

// ────────────────────── UpdateField ──────────────────────

// UpdateField 修改单条记录的一门学科成绩；身份列不可修改
func (s *gradeService) UpdateField(ctx context.Context, id int64, req *dto.UpdateGradeRequest) (*dto.GradeResponse, error) {
	col, ok := gradesheet.LookupColumn(strings.TrimSpace(req.Field))
	if !ok || !col.Score {
		return nil, ErrInvalidField
	}
	value := strings.TrimSpace(req.Value)
	if !gradesheet.ValidScore(value) || !col.Fits(value) {
		return nil, ErrInvalidScore
	}

	if err := s.repo.Grade.UpdateField(ctx, id, col.Key, value); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGradeNotFound
		}
		s.logger.Error("修改成绩失败",
			zap.Int64("id", id), zap.String("field", col.Key), zap.Error(err))
		return nil, pkgerrors.Storage("update", err)
	}

	grade, err := s.repo.Grade.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGradeNotFound
		}
		s.logger.Error("查询成绩失败", zap.Int64("id", id), zap.Error(err))
		return nil, pkgerrors.Storage("get", err)
	}

	s.logger.Info("成绩已修改",
		zap.Int64("id", id),
		zap.String("student_id", grade.StudentID),
		zap.String("field", col.Key),
		zap.String("value", value),
	)

	return toGradeResponse(grade), nil
}

// ── 转换 ──

func toGradeFilter(req *dto.GradeSearchRequest) repository.GradeFilter {
	if req == nil {
		return repository.GradeFilter{}
	}
	filter := repository.GradeFilter{
		StudentID:   strings.TrimSpace(req.StudentID),
		StudentName: strings.TrimSpace(req.StudentName),
		StartYear:   strings.TrimSpace(req.StartYear),
		EndYear:     strings.TrimSpace(req.EndYear),
	}
	if et, ok := model.ParseExamType(strings.TrimSpace(req.ExamType)); ok {
		filter.ExamType = string(et)
	}
	return filter
}

func toGradeResponse(g *model.Grade) *dto.GradeResponse {
	scores := make(map[string]string, len(gradesheet.ScoreColumns()))
	for _, c := range gradesheet.ScoreColumns() {
		v, _ := g.Field(c.Key)
		scores[c.Header] = v
	}
	resp := &dto.GradeResponse{
		ID:          g.ID,
		SchoolYear:  g.SchoolYear,
		ExamType:    string(g.ExamType),
		GradeLevel:  g.GradeLevel,
		StudentID:   g.StudentID,
		StudentName: g.StudentName,
		ClassName:   g.ClassName,
		Scores:      scores,
	}
	if !g.UpdatedAt.IsZero() {
		resp.UpdatedAt = g.UpdatedAt.Format("2006-01-02 15:04:05")
	}
	return resp
}
