package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Fyongrou/ScoreV1/internal/model"
)

// GradeFilter 成绩查询条件，零值字段不参与过滤
type GradeFilter struct {
	StudentID   string // 学号模糊匹配
	StudentName string // 姓名模糊匹配
	StartYear   string // 学年下限（含）
	EndYear     string // 学年上限（含）
	ExamType    string // 考试类型精确匹配
}

// GradeRepository 成绩数据访问接口
type GradeRepository interface {
	Upsert(ctx context.Context, grade *model.Grade) error
	GetByID(ctx context.Context, id int64) (*model.Grade, error)
	Search(ctx context.Context, filter GradeFilter) ([]model.Grade, error)
	ListYears(ctx context.Context) ([]string, error)
	UpdateField(ctx context.Context, id int64, column, value string) error
}

type gradeRepo struct {
	db *gorm.DB
}

// NewGradeRepo 创建 GradeRepository 实例
func NewGradeRepo(db *gorm.DB) GradeRepository {
	return &gradeRepo{db: db}
}

// upsertColumns 自然键冲突时覆盖的非键列
var upsertColumns = []string{
	"grade_level", "student_name", "class_name",
	"chinese", "math", "english", "physics", "chemistry", "ethics",
	"history", "geography", "biology", "pe", "music", "art", "it",
	"updated_at",
}

// Upsert 按 (school_year, exam_type, student_id) 插入或覆盖
func (r *gradeRepo) Upsert(ctx context.Context, grade *model.Grade) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "school_year"}, {Name: "exam_type"}, {Name: "student_id"},
			},
			DoUpdates: clause.AssignmentColumns(upsertColumns),
		}).
		Create(grade).Error
}

func (r *gradeRepo) GetByID(ctx context.Context, id int64) (*model.Grade, error) {
	var grade model.Grade
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&grade).Error
	if err != nil {
		return nil, err
	}
	return &grade, nil
}

func (r *gradeRepo) Search(ctx context.Context, filter GradeFilter) ([]model.Grade, error) {
	var grades []model.Grade
	db := r.db.WithContext(ctx)

	if filter.StudentID != "" {
		db = db.Where(`student_id LIKE ? ESCAPE '\'`, containsPattern(filter.StudentID))
	}
	if filter.StudentName != "" {
		db = db.Where(`student_name LIKE ? ESCAPE '\'`, containsPattern(filter.StudentName))
	}
	if filter.StartYear != "" {
		db = db.Where("school_year >= ?", filter.StartYear)
	}
	if filter.EndYear != "" {
		db = db.Where("school_year <= ?", filter.EndYear)
	}
	if filter.ExamType != "" {
		db = db.Where("exam_type = ?", filter.ExamType)
	}

	err := db.Order("id ASC").Find(&grades).Error
	return grades, err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern 子串匹配的 LIKE 模式，转义 % _ 与转义符本身
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

func (r *gradeRepo) ListYears(ctx context.Context) ([]string, error) {
	var years []string
	err := r.db.WithContext(ctx).
		Model(&model.Grade{}).
		Distinct("school_year").
		Order("school_year ASC").
		Pluck("school_year", &years).Error
	return years, err
}

// UpdateField 仅更新一列；记录不存在时返回 gorm.ErrRecordNotFound。
// column 必须由调用方校验为合法列名。
func (r *gradeRepo) UpdateField(ctx context.Context, id int64, column, value string) error {
	result := r.db.WithContext(ctx).
		Model(&model.Grade{}).
		Where("id = ?", id).
		Update(column, value)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
