package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/Fyongrou/ScoreV1/internal/dto"
	"github.com/Fyongrou/ScoreV1/internal/model"
	pkgerrors "github.com/Fyongrou/ScoreV1/pkg/errors"
)

// ── 测试辅助 ──

func setupTestGradeService() (GradeService, *mockGradeRepo) {
	gradeRepo := newMockGradeRepo()
	svc := NewGradeService(newMockRepository(gradeRepo), zap.NewNop())
	return svc, gradeRepo
}

func seedGrades(t *testing.T, m *mockGradeRepo) {
	t.Helper()
	ctx := context.Background()
	for _, g := range []model.Grade{
		{SchoolYear: "2021", ExamType: model.ExamMidterm, GradeLevel: "初一", StudentID: "A1001", StudentName: "张三", ClassName: "1", Chinese: "88", Math: "A"},
		{SchoolYear: "2022", ExamType: model.ExamFinal, GradeLevel: "初二", StudentID: "A1002", StudentName: "李四", ClassName: "2", Chinese: "75"},
		{SchoolYear: "2023", ExamType: model.ExamFinal, GradeLevel: "初三", StudentID: "B2001", StudentName: "张小明", ClassName: "3", Chinese: "C"},
	} {
		g := g
		if err := m.Upsert(ctx, &g); err != nil {
			t.Fatalf("准备数据失败: %v", err)
		}
	}
	m.upsertCalls = 0
}

// ── Search 测试 ──

func TestGradeService_Search_Filters(t *testing.T) {
	svc, gradeRepo := setupTestGradeService()
	seedGrades(t, gradeRepo)
	ctx := context.Background()

	result, err := svc.Search(ctx, &dto.GradeSearchRequest{StudentName: "张"})
	if err != nil {
		t.Fatalf("Search 应成功: %v", err)
	}
	if len(result.List) != 2 {
		t.Errorf("期望 2 条，实际=%d", len(result.List))
	}
	if len(result.Columns) != 19 || result.Columns[0] != "学年" {
		t.Errorf("列定义不符: %v", result.Columns)
	}

	result, err = svc.Search(ctx, &dto.GradeSearchRequest{ExamType: "FINAL", StartYear: "2023"})
	if err != nil {
		t.Fatalf("Search 应成功: %v", err)
	}
	if len(result.List) != 1 || result.List[0].StudentID != "B2001" {
		t.Errorf("FINAL 应归一为 期末 参与过滤，实际: %+v", result.List)
	}
}

func TestGradeService_Search_ScoresKeyedByHeader(t *testing.T) {
	svc, gradeRepo := setupTestGradeService()
	seedGrades(t, gradeRepo)

	result, err := svc.Search(context.Background(), &dto.GradeSearchRequest{StudentID: "A1001"})
	if err != nil {
		t.Fatalf("Search 应成功: %v", err)
	}
	if len(result.List) != 1 {
		t.Fatalf("期望 1 条，实际=%d", len(result.List))
	}
	scores := result.List[0].Scores
	if len(scores) != 13 {
		t.Errorf("期望 13 门成绩，实际=%d", len(scores))
	}
	if scores["语文"] != "88" || scores["数学"] != "A" || scores["英语"] != "" {
		t.Errorf("成绩映射不符: %v", scores)
	}
}

func TestGradeService_Search_EmptyIsNotError(t *testing.T) {
	svc, _ := setupTestGradeService()

	result, err := svc.Search(context.Background(), &dto.GradeSearchRequest{StudentID: "none"})
	if err != nil {
		t.Fatalf("空结果不应报错: %v", err)
	}
	if result.List == nil || len(result.List) != 0 {
		t.Errorf("期望空列表，实际: %v", result.List)
	}
}

func TestGradeService_Search_StorageError(t *testing.T) {
	svc, gradeRepo := setupTestGradeService()
	gradeRepo.searchErr = errMockStorage

	_, err := svc.Search(context.Background(), nil)
	var se *pkgerrors.StorageError
	if !errors.As(err, &se) {
		t.Errorf("期望 StorageError，实际: %v", err)
	}
}

// ── ListYears 测试 ──

func TestGradeService_ListYears(t *testing.T) {
	svc, gradeRepo := setupTestGradeService()

	result, err := svc.ListYears(context.Background())
	if err != nil {
		t.Fatalf("ListYears 应成功: %v", err)
	}
	if result.Years == nil || len(result.Years) != 0 {
		t.Errorf("无数据时应返回空数组，实际: %v", result.Years)
	}

	seedGrades(t, gradeRepo)
	result, _ = svc.ListYears(context.Background())
	if len(result.Years) != 3 || result.Years[0] != "2021" {
		t.Errorf("学年列表不符: %v", result.Years)
	}
}

// ── UpdateField 测试 ──

func TestGradeService_UpdateField_Success(t *testing.T) {
	svc, gradeRepo := setupTestGradeService()
	seedGrades(t, gradeRepo)

	result, err := svc.UpdateField(context.Background(), 1, &dto.UpdateGradeRequest{Field: "数学", Value: " 95 "})
	if err != nil {
		t.Fatalf("UpdateField 应成功: %v", err)
	}
	if result.Scores["数学"] != "95" {
		t.Errorf("期望数学=95，实际=%s", result.Scores["数学"])
	}
	if result.Scores["语文"] != "88" {
		t.Error("其他成绩不应改变")
	}
}

func TestGradeService_UpdateField_AcceptsColumnKey(t *testing.T) {
	svc, gradeRepo := setupTestGradeService()
	seedGrades(t, gradeRepo)

	result, err := svc.UpdateField(context.Background(), 2, &dto.UpdateGradeRequest{Field: "pe", Value: "B"})
	if err != nil {
		t.Fatalf("UpdateField 应成功: %v", err)
	}
	if result.Scores["体育"] != "B" {
		t.Errorf("期望体育=B，实际=%s", result.Scores["体育"])
	}
}

func TestGradeService_UpdateField_IdentityColumnRejected(t *testing.T) {
	svc, gradeRepo := setupTestGradeService()
	seedGrades(t, gradeRepo)

	for _, field := range []string{"学号", "student_name", "id", "不存在"} {
		_, err := svc.UpdateField(context.Background(), 1, &dto.UpdateGradeRequest{Field: field, Value: "90"})
		if !errors.Is(err, ErrInvalidField) {
			t.Errorf("字段 %s 期望 ErrInvalidField，实际: %v", field, err)
		}
	}
}

func TestGradeService_UpdateField_InvalidScore(t *testing.T) {
	svc, gradeRepo := setupTestGradeService()
	seedGrades(t, gradeRepo)

	_, err := svc.UpdateField(context.Background(), 1, &dto.UpdateGradeRequest{Field: "语文", Value: "优"})
	if !errors.Is(err, ErrInvalidScore) {
		t.Errorf("期望 ErrInvalidScore，实际: %v", err)
	}
	g, _ := gradeRepo.GetByID(context.Background(), 1)
	if g.Chinese != "88" {
		t.Error("无效成绩不应写入")
	}
}

func TestGradeService_UpdateField_ValueTooLong(t *testing.T) {
	svc, gradeRepo := setupTestGradeService()
	seedGrades(t, gradeRepo)

	_, err := svc.UpdateField(context.Background(), 1, &dto.UpdateGradeRequest{Field: "语文", Value: "89.66666666666667"})
	if !errors.Is(err, ErrInvalidScore) {
		t.Errorf("超出列宽的成绩期望 ErrInvalidScore，实际: %v", err)
	}
}

func TestGradeService_UpdateField_NotFound(t *testing.T) {
	svc, _ := setupTestGradeService()

	_, err := svc.UpdateField(context.Background(), 42, &dto.UpdateGradeRequest{Field: "语文", Value: "90"})
	if !errors.Is(err, ErrGradeNotFound) {
		t.Errorf("期望 ErrGradeNotFound，实际: %v", err)
	}
}
