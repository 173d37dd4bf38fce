package model

import "time"

// ExamType 考试类型
type ExamType string

const (
	ExamMidterm ExamType = "期中"
	ExamFinal   ExamType = "期末"
)

// ParseExamType 解析考试类型，接受中文值以及 MIDTERM / FINAL 英文别名
func ParseExamType(s string) (ExamType, bool) {
	switch s {
	case string(ExamMidterm), "MIDTERM", "midterm", "Midterm":
		return ExamMidterm, true
	case string(ExamFinal), "FINAL", "final", "Final":
		return ExamFinal, true
	}
	return "", false
}

// Grade 学生单次考试成绩，对应 grades
// (school_year, exam_type, student_id) 为自然键，导入时按其 upsert
type Grade struct {
	ID          int64    `gorm:"primaryKey;autoIncrement"                              json:"id"`
	SchoolYear  string   `gorm:"type:varchar(16);not null;uniqueIndex:uk_grades_identity" json:"school_year"`
	ExamType    ExamType `gorm:"type:varchar(8);not null;uniqueIndex:uk_grades_identity"  json:"exam_type"`
	GradeLevel  string   `gorm:"type:varchar(32);not null"                             json:"grade_level"`
	StudentID   string   `gorm:"type:varchar(32);not null;uniqueIndex:uk_grades_identity" json:"student_id"`
	StudentName string   `gorm:"type:varchar(64);not null"                             json:"student_name"`
	ClassName   string   `gorm:"type:varchar(32);not null"                             json:"class_name"`

	// 13 门学科成绩：数值或 A/B/C/D 等级
	Chinese   string `gorm:"type:varchar(16)" json:"chinese"`
	Math      string `gorm:"type:varchar(16)" json:"math"`
	English   string `gorm:"type:varchar(16)" json:"english"`
	Physics   string `gorm:"type:varchar(16)" json:"physics"`
	Chemistry string `gorm:"type:varchar(16)" json:"chemistry"`
	Ethics    string `gorm:"type:varchar(16)" json:"ethics"`
	History   string `gorm:"type:varchar(16)" json:"history"`
	Geography string `gorm:"type:varchar(16)" json:"geography"`
	Biology   string `gorm:"type:varchar(16)" json:"biology"`
	PE        string `gorm:"column:pe;type:varchar(16)" json:"pe"`
	Music     string `gorm:"type:varchar(16)" json:"music"`
	Art       string `gorm:"type:varchar(16)" json:"art"`
	IT        string `gorm:"column:it;type:varchar(16)" json:"it"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (Grade) TableName() string { return "grades" }

// fieldRef 按列名返回对应字段的指针，未知列返回 nil
func (g *Grade) fieldRef(column string) *string {
	switch column {
	case "school_year":
		return &g.SchoolYear
	case "exam_type":
		return (*string)(&g.ExamType)
	case "grade_level":
		return &g.GradeLevel
	case "student_id":
		return &g.StudentID
	case "student_name":
		return &g.StudentName
	case "class_name":
		return &g.ClassName
	case "chinese":
		return &g.Chinese
	case "math":
		return &g.Math
	case "english":
		return &g.English
	case "physics":
		return &g.Physics
	case "chemistry":
		return &g.Chemistry
	case "ethics":
		return &g.Ethics
	case "history":
		return &g.History
	case "geography":
		return &g.Geography
	case "biology":
		return &g.Biology
	case "pe":
		return &g.PE
	case "music":
		return &g.Music
	case "art":
		return &g.Art
	case "it":
		return &g.IT
	}
	return nil
}

// Field 读取列值
func (g *Grade) Field(column string) (string, bool) {
	p := g.fieldRef(column)
	if p == nil {
		return "", false
	}
	return *p, true
}

// SetField 写入列值，未知列返回 false
func (g *Grade) SetField(column, value string) bool {
	p := g.fieldRef(column)
	if p == nil {
		return false
	}
	*p = value
	return true
}
