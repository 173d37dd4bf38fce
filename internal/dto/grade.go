package dto

// ── 成绩模块 DTO ──

// GradeSearchRequest 成绩查询参数（均为可选）
type GradeSearchRequest struct {
	StudentID   string `form:"student_id"   binding:"omitempty,max=32"`
	StudentName string `form:"student_name" binding:"omitempty,max=64"`
	StartYear   string `form:"start_year"   binding:"omitempty,max=16"`
	EndYear     string `form:"end_year"     binding:"omitempty,max=16"`
	ExamType    string `form:"exam_type"    binding:"omitempty,exam_type"`
}

// UpdateGradeRequest 单科成绩修改请求
// Field 可为表头（如“语文”）或列名（如 chinese）
type UpdateGradeRequest struct {
	Field string `json:"field" binding:"required,grade_field"`
	Value string `json:"value" binding:"required,score"`
}

// GradeResponse 成绩记录
type GradeResponse struct {
	ID          int64  `json:"id"`
	SchoolYear  string `json:"school_year"`
	ExamType    string `json:"exam_type"`
	GradeLevel  string `json:"grade_level"`
	StudentID   string `json:"student_id"`
	StudentName string `json:"student_name"`
	ClassName   string `json:"class_name"`
	// Scores 表头 → 成绩，按列定义顺序由 Columns 给出
	Scores    map[string]string `json:"scores"`
	UpdatedAt string            `json:"updated_at"`
}

// GradeListResponse 查询结果，Columns 为前端渲染的有序表头
type GradeListResponse struct {
	Columns []string        `json:"columns"`
	List    []GradeResponse `json:"list"`
}

// ImportGradesResponse 导入成功响应
type ImportGradesResponse struct {
	Total    int `json:"total"`
	Imported int `json:"imported"`
}

// YearListResponse 学年列表（供起止学年下拉框）
type YearListResponse struct {
	Years []string `json:"years"`
}
