package gradesheet

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/unicode/norm"

	"github.com/Fyongrou/ScoreV1/internal/model"
)

// ContentType xlsx 的 MIME 类型
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// 三类下载产物的文件名与工作表名
const (
	TemplateFilename    = "成绩模板.xlsx"
	ErrorReportFilename = "数据导入错误报告.xlsx"
	ResultsFilename     = "查询结果.xlsx"

	defaultSheet     = "Sheet1"
	errorReportSheet = "错误报告"
	resultsSheet     = "查询结果"
)

// DecodeError 上传内容不是可识别的表格文件
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ── 解码 ──

// Decode 解析 xlsx 的第一个工作表。首行为表头，其余每行按表头文本映射为 RawRow；
// 单元格保留原始文本，数值单元格标记 Numeric，不做其他转换。全空行被跳过。
func Decode(r io.Reader) ([]RawRow, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &DecodeError{Reason: "读取上传文件失败", Err: err}
	}
	if !isZipContainer(data) {
		return nil, &DecodeError{Reason: "文件不是有效的 xlsx 表格"}
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Reason: "无法解析Excel文件", Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &DecodeError{Reason: "Excel文件不包含工作表"}
	}
	sheet := sheets[0]

	excelRows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, &DecodeError{Reason: "读取工作表失败", Err: err}
	}
	if len(excelRows) == 0 {
		return nil, nil
	}

	header := make([]string, len(excelRows[0]))
	for i, h := range excelRows[0] {
		header[i] = normalizeHeader(h)
	}

	var rows []RawRow
	for i := 1; i < len(excelRows); i++ {
		row := make(RawRow)
		for j, text := range excelRows[i] {
			if j >= len(header) || header[j] == "" || text == "" {
				continue
			}
			cellName, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				return nil, &DecodeError{Reason: "单元格坐标无效", Err: err}
			}
			typ, err := f.GetCellType(sheet, cellName)
			if err != nil {
				return nil, &DecodeError{Reason: "读取单元格类型失败", Err: err}
			}
			row[header[j]] = Value{Text: text, Numeric: isNumericCell(typ) && IsNumber(text)}
		}
		if len(row) == 0 {
			continue
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func isZipContainer(data []byte) bool {
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		if m.Is("application/zip") {
			return true
		}
	}
	return false
}

func isNumericCell(t excelize.CellType) bool {
	return t == excelize.CellTypeNumber || t == excelize.CellTypeUnset
}

// normalizeHeader 去除首尾空白并做 NFKC 归一（全角空格、全角字母等）
func normalizeHeader(h string) string {
	return strings.TrimSpace(norm.NFKC.String(h))
}

// ── 编码 ──

// Sheet 待编码的单工作表
type Sheet struct {
	Name   string
	Header []string
	Rows   []RawRow
}

// Encode 生成单工作表 xlsx：首行为表头，每个 RawRow 按表头顺序输出一行
func Encode(s Sheet) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	name := s.Name
	if name == "" {
		name = defaultSheet
	}
	if name != defaultSheet {
		idx, err := f.NewSheet(name)
		if err != nil {
			return nil, fmt.Errorf("创建工作表失败: %w", err)
		}
		f.SetActiveSheet(idx)
		if err := f.DeleteSheet(defaultSheet); err != nil {
			return nil, fmt.Errorf("删除默认工作表失败: %w", err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("创建表头样式失败: %w", err)
	}

	for i, h := range s.Header {
		if err := f.SetCellStr(name, cell(i, 1), h); err != nil {
			return nil, err
		}
		col := colName(i)
		width := 10.0
		if h == DiagnosticsHeader {
			width = 60
		}
		if err := f.SetColWidth(name, col, col, width); err != nil {
			return nil, err
		}
	}
	if len(s.Header) > 0 {
		if err := f.SetCellStyle(name, cell(0, 1), cell(len(s.Header)-1, 1), headerStyle); err != nil {
			return nil, err
		}
	}

	for r, row := range s.Rows {
		for i, h := range s.Header {
			v, ok := row[h]
			if !ok || v.Empty() {
				continue
			}
			if err := setValue(f, name, cell(i, r+2), v); err != nil {
				return nil, err
			}
		}
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("写入 Excel 失败: %w", err)
	}
	return buf, nil
}

func setValue(f *excelize.File, sheet, axis string, v Value) error {
	if v.Numeric {
		if n, err := strconv.ParseFloat(strings.TrimSpace(v.Text), 64); err == nil {
			return f.SetCellFloat(sheet, axis, n, -1, 64)
		}
	}
	return f.SetCellStr(sheet, axis, v.Text)
}

// ── 下载产物 ──

// Artifact 可下载的 xlsx 文件
type Artifact struct {
	Filename string
	Data     []byte
}

// Template 空白导入模板：仅含表头
func Template() (*Artifact, error) {
	return encodeArtifact(TemplateFilename, Sheet{Name: defaultSheet, Header: Headers()})
}

// ErrorReport 错误报告：原始字段 + 末尾“错误信息”列。
// 不在列定义中的表头（如拼写有误的列）保留在“错误信息”之前，按表头排序。
func ErrorReport(records []ErrorRecord) (*Artifact, error) {
	header := append(Headers(), unknownHeaders(records)...)
	header = append(header, DiagnosticsHeader)
	rows := make([]RawRow, 0, len(records))
	for _, rec := range records {
		row := make(RawRow, len(rec.Fields)+1)
		for k, v := range rec.Fields {
			row[k] = v
		}
		row[DiagnosticsHeader] = Str(rec.Message())
		rows = append(rows, row)
	}
	return encodeArtifact(ErrorReportFilename, Sheet{Name: errorReportSheet, Header: header, Rows: rows})
}

func unknownHeaders(records []ErrorRecord) []string {
	seen := make(map[string]bool)
	var extra []string
	for _, rec := range records {
		for h := range rec.Fields {
			if _, known := byHeader[h]; known || h == DiagnosticsHeader || seen[h] {
				continue
			}
			seen[h] = true
			extra = append(extra, h)
		}
	}
	sort.Strings(extra)
	return extra
}

// Results 查询结果导出，列顺序与导入模板一致，可直接再次导入
func Results(grades []model.Grade) (*Artifact, error) {
	rows := make([]RawRow, 0, len(grades))
	for i := range grades {
		rows = append(rows, FromGrade(&grades[i]))
	}
	return encodeArtifact(ResultsFilename, Sheet{Name: resultsSheet, Header: Headers(), Rows: rows})
}

func encodeArtifact(filename string, s Sheet) (*Artifact, error) {
	buf, err := Encode(s)
	if err != nil {
		return nil, err
	}
	return &Artifact{Filename: filename, Data: buf.Bytes()}, nil
}

// ── 辅助函数 ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(colIdx, row int) string {
	return fmt.Sprintf("%s%d", colName(colIdx), row)
}
