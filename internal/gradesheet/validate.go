package gradesheet

import (
	"fmt"
	"strings"

	"github.com/Fyongrou/ScoreV1/internal/model"
)

// Verdict 单行校验结果；Diagnostics 为空即通过
type Verdict struct {
	Diagnostics []string
}

// Valid 是否通过校验
func (v Verdict) Valid() bool { return len(v.Diagnostics) == 0 }

// Message 将全部诊断拼接为一条文本
func (v Verdict) Message() string { return strings.Join(v.Diagnostics, "; ") }

// Validate 校验一行数据。所有检查都会执行，诊断按以下顺序累积：
// 缺失列（按列定义顺序）、考试类型、成绩值、超出列宽。
func Validate(row RawRow) Verdict {
	var diags []string

	for _, c := range columns {
		if _, ok := row.Get(c.Header); !ok {
			diags = append(diags, "missing column: "+c.Header)
		}
	}

	if v, ok := row.Get("考试类型"); ok {
		if _, known := model.ParseExamType(strings.TrimSpace(v.Text)); !known {
			diags = append(diags, "invalid exam type: "+v.Text)
		}
	}

	// 空值同样判为无效成绩，不会被静默接受
	for _, c := range columns[identityCount:] {
		v := row[c.Header]
		if !ValidScore(v.Text) {
			diags = append(diags, fmt.Sprintf("invalid score value: %s in %s", v.Text, c.Header))
		}
	}

	for _, c := range columns {
		if v, ok := row.Get(c.Header); ok && !c.Fits(v.Text) {
			diags = append(diags, fmt.Sprintf("value too long: %s in %s (max %d characters)", v.Text, c.Header, c.MaxLen))
		}
	}

	return Verdict{Diagnostics: diags}
}
