package gradesheet

import "github.com/Fyongrou/ScoreV1/internal/model"

// ErrorRecord 未通过校验的行：原始字段 + 该行全部诊断
type ErrorRecord struct {
	Row         int // 数据行序号，从 1 开始
	Fields      RawRow
	Diagnostics []string
}

// Message 诊断文本，写入错误报告的“错误信息”列
func (e ErrorRecord) Message() string {
	return Verdict{Diagnostics: e.Diagnostics}.Message()
}

// Outcome 整批校验结果。
// 全部通过时 Valid 为完整数据集、Errors 为空；
// 任一行失败时 Valid 为 nil，Errors 仅包含失败行。
type Outcome struct {
	Total  int
	Valid  []model.Grade
	Errors []ErrorRecord
}

// OK 整批可提交
func (o *Outcome) OK() bool { return len(o.Errors) == 0 }

// Partition 按原始顺序逐行校验，并执行“全部通过才提交”的策略
func Partition(rows []RawRow) *Outcome {
	out := &Outcome{Total: len(rows)}
	valid := make([]model.Grade, 0, len(rows))

	for i, row := range rows {
		verdict := Validate(row)
		if !verdict.Valid() {
			out.Errors = append(out.Errors, ErrorRecord{
				Row:         i + 1,
				Fields:      row,
				Diagnostics: verdict.Diagnostics,
			})
			continue
		}
		if len(out.Errors) == 0 {
			valid = append(valid, toGrade(row))
		}
	}

	if len(out.Errors) == 0 {
		out.Valid = valid
	}
	return out
}
