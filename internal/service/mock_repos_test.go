package service

import (
	"context"
	"errors"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/Fyongrou/ScoreV1/internal/model"
	"github.com/Fyongrou/ScoreV1/internal/repository"
)

var errMockStorage = errors.New("mock storage unavailable")

// ── Mock GradeRepository ──

type mockGradeRepo struct {
	grades []*model.Grade
	nextID int64

	upsertCalls  int
	failUpsertAt int   // 第 N 次 Upsert 失败（1-based），0 表示不失败
	searchErr    error // Search / ListYears 返回的错误
}

func newMockGradeRepo() *mockGradeRepo {
	return &mockGradeRepo{nextID: 1}
}

func (m *mockGradeRepo) Upsert(_ context.Context, grade *model.Grade) error {
	m.upsertCalls++
	if m.failUpsertAt > 0 && m.upsertCalls == m.failUpsertAt {
		return errMockStorage
	}
	for _, g := range m.grades {
		if g.SchoolYear == grade.SchoolYear && g.ExamType == grade.ExamType && g.StudentID == grade.StudentID {
			id := g.ID
			*g = *grade
			g.ID = id
			grade.ID = id
			return nil
		}
	}
	cp := *grade
	cp.ID = m.nextID
	m.nextID++
	grade.ID = cp.ID
	m.grades = append(m.grades, &cp)
	return nil
}

func (m *mockGradeRepo) GetByID(_ context.Context, id int64) (*model.Grade, error) {
	for _, g := range m.grades {
		if g.ID == id {
			cp := *g
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockGradeRepo) Search(_ context.Context, f repository.GradeFilter) ([]model.Grade, error) {
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	var result []model.Grade
	for _, g := range m.grades {
		if f.StudentID != "" && !strings.Contains(g.StudentID, f.StudentID) {
			continue
		}
		if f.StudentName != "" && !strings.Contains(g.StudentName, f.StudentName) {
			continue
		}
		if f.StartYear != "" && g.SchoolYear < f.StartYear {
			continue
		}
		if f.EndYear != "" && g.SchoolYear > f.EndYear {
			continue
		}
		if f.ExamType != "" && string(g.ExamType) != f.ExamType {
			continue
		}
		result = append(result, *g)
	}
	return result, nil
}

func (m *mockGradeRepo) ListYears(_ context.Context) ([]string, error) {
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	seen := make(map[string]bool)
	var years []string
	for _, g := range m.grades {
		if !seen[g.SchoolYear] {
			seen[g.SchoolYear] = true
			years = append(years, g.SchoolYear)
		}
	}
	sort.Strings(years)
	return years, nil
}

func (m *mockGradeRepo) UpdateField(_ context.Context, id int64, column, value string) error {
	for _, g := range m.grades {
		if g.ID == id {
			if !g.SetField(column, value) {
				return errors.New("unknown column " + column)
			}
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

// newMockRepository 不持有数据库连接，BeginTx 返回 nil 事务
func newMockRepository(grades *mockGradeRepo) *repository.Repository {
	return &repository.Repository{Grade: grades}
}
