package gradesheet

import (
	"math"
	"strconv"
	"strings"

	"github.com/Fyongrou/ScoreV1/internal/model"
)

// Value 单元格原始值。Numeric 表示单元格以数值存储，Text 为其原始文本。
type Value struct {
	Text    string
	Numeric bool
}

// Str 文本单元格
func Str(s string) Value { return Value{Text: s} }

// Num 数值单元格
func Num(f float64) Value {
	return Value{Text: strconv.FormatFloat(f, 'f', -1, 64), Numeric: true}
}

// Empty 空单元格
func (v Value) Empty() bool { return v.Text == "" }

// String 实现 fmt.Stringer
func (v Value) String() string { return v.Text }

// RawRow 解码后尚未校验的一行：表头 → 单元格值。
// 空单元格不会出现在 RawRow 中。
type RawRow map[string]Value

// Get 读取列值；空字符串同样视为缺失
func (r RawRow) Get(header string) (Value, bool) {
	v, ok := r[header]
	if !ok || v.Empty() {
		return Value{}, false
	}
	return v, true
}

// IsNumber 判断文本能否解析为有限数值
func IsNumber(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return false
	}
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

var letterGrades = map[string]bool{"A": true, "B": true, "C": true, "D": true}

// ValidScore 成绩为数值或 A/B/C/D 之一
func ValidScore(s string) bool {
	return IsNumber(s) || letterGrades[s]
}

// toGrade 将已通过校验的行转换为 model.Grade
func toGrade(r RawRow) model.Grade {
	var g model.Grade
	for _, c := range columns {
		v, _ := r.Get(c.Header)
		text := strings.TrimSpace(v.Text)
		if c.Key == "exam_type" {
			if et, ok := model.ParseExamType(text); ok {
				text = string(et)
			}
		}
		g.SetField(c.Key, text)
	}
	return g
}

// FromGrade 将成绩记录转换为可编码的行；数值成绩输出为数值单元格
func FromGrade(g *model.Grade) RawRow {
	row := make(RawRow, len(columns))
	for _, c := range columns {
		text, _ := g.Field(c.Key)
		if text == "" {
			continue
		}
		if c.Score && IsNumber(text) {
			f, _ := strconv.ParseFloat(strings.TrimSpace(text), 64)
			row[c.Header] = Num(f)
			continue
		}
		row[c.Header] = Str(text)
	}
	return row
}
