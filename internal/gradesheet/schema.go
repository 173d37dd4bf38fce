// Package gradesheet 成绩表格的列定义、行校验、批量分拣与 xlsx 编解码。
//
// 上传的表格先解码为 RawRow（表头文本 → 单元格值，未经信任），
// 通过 Validate 校验后才转换为 model.Grade。
package gradesheet

import (
	"strings"
	"unicode/utf8"
)

// Column 成绩表的一列
type Column struct {
	Header string // 表格表头（中文）
	Key    string // grades 表列名
	Score  bool   // 是否为学科成绩列
	MaxLen int    // 列宽（字符数），与 grades 表定义一致
}

// DiagnosticsHeader 错误报告末尾追加的诊断列
const DiagnosticsHeader = "错误信息"

// scoreMaxLen 成绩列宽
const scoreMaxLen = 16

// identityCount 前 6 列为身份字段，其后 13 列为成绩字段
const identityCount = 6

var columns = []Column{
	{Header: "学年", Key: "school_year", MaxLen: 16},
	{Header: "考试类型", Key: "exam_type", MaxLen: 8},
	{Header: "年级", Key: "grade_level", MaxLen: 32},
	{Header: "学号", Key: "student_id", MaxLen: 32},
	{Header: "姓名", Key: "student_name", MaxLen: 64},
	{Header: "班级", Key: "class_name", MaxLen: 32},
	{Header: "语文", Key: "chinese", Score: true, MaxLen: scoreMaxLen},
	{Header: "数学", Key: "math", Score: true, MaxLen: scoreMaxLen},
	{Header: "英语", Key: "english", Score: true, MaxLen: scoreMaxLen},
	{Header: "物理", Key: "physics", Score: true, MaxLen: scoreMaxLen},
	{Header: "化学", Key: "chemistry", Score: true, MaxLen: scoreMaxLen},
	{Header: "道德与法治", Key: "ethics", Score: true, MaxLen: scoreMaxLen},
	{Header: "历史", Key: "history", Score: true, MaxLen: scoreMaxLen},
	{Header: "地理", Key: "geography", Score: true, MaxLen: scoreMaxLen},
	{Header: "生物", Key: "biology", Score: true, MaxLen: scoreMaxLen},
	{Header: "体育", Key: "pe", Score: true, MaxLen: scoreMaxLen},
	{Header: "音乐", Key: "music", Score: true, MaxLen: scoreMaxLen},
	{Header: "美术", Key: "art", Score: true, MaxLen: scoreMaxLen},
	{Header: "信息", Key: "it", Score: true, MaxLen: scoreMaxLen},
}

var (
	byHeader = make(map[string]Column, len(columns))
	byKey    = make(map[string]Column, len(columns))
)

func init() {
	for _, c := range columns {
		byHeader[c.Header] = c
		byKey[c.Key] = c
	}
}

// Columns 返回全部 19 列（有序副本）
func Columns() []Column {
	out := make([]Column, len(columns))
	copy(out, columns)
	return out
}

// Headers 返回有序表头
func Headers() []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = c.Header
	}
	return out
}

// ScoreColumns 返回 13 个成绩列
func ScoreColumns() []Column {
	return Columns()[identityCount:]
}

// IsScoreField 判断表头是否为成绩列
func IsScoreField(header string) bool {
	return byHeader[header].Score
}

// LookupColumn 按表头或列名查找列定义
func LookupColumn(name string) (Column, bool) {
	if c, ok := byHeader[name]; ok {
		return c, true
	}
	c, ok := byKey[name]
	return c, ok
}

// Fits 判断去除首尾空白后的文本是否超出列宽
func (c Column) Fits(s string) bool {
	return c.MaxLen <= 0 || utf8.RuneCountInString(strings.TrimSpace(s)) <= c.MaxLen
}
