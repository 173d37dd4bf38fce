package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Fyongrou/ScoreV1/internal/gradesheet"
	"github.com/Fyongrou/ScoreV1/internal/service"
)

func writeWorkbook(t *testing.T, dir string, rows []gradesheet.RawRow) string {
	t.Helper()
	buf, err := gradesheet.Encode(gradesheet.Sheet{Name: "成绩", Header: gradesheet.Headers(), Rows: rows})
	require.NoError(t, err)
	path := filepath.Join(dir, "grades.xlsx")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func sampleRows(n int) []gradesheet.RawRow {
	rows := make([]gradesheet.RawRow, n)
	for i := range rows {
		row := gradesheet.RawRow{
			"学年":   gradesheet.Str("2024"),
			"考试类型": gradesheet.Str("期末"),
			"年级":   gradesheet.Str("初二"),
			"学号":   gradesheet.Str(fmt.Sprintf("C%03d", i+1)),
			"姓名":   gradesheet.Str("学生"),
			"班级":   gradesheet.Str("2"),
		}
		for _, c := range gradesheet.ScoreColumns() {
			row[c.Header] = gradesheet.Num(80)
		}
		rows[i] = row
	}
	return rows
}

func TestRun_RequiresFileOrTemplate(t *testing.T) {
	err := run(context.Background(), nil, new(bytes.Buffer))
	require.Error(t, err)
}

func TestRun_WritesTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tpl.xlsx")
	out := new(bytes.Buffer)

	require.NoError(t, run(context.Background(), []string{"-template", path}, out))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := gradesheet.Decode(f)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestRun_DryRunValid(t *testing.T) {
	dir := t.TempDir()
	path := writeWorkbook(t, dir, sampleRows(3))
	out := new(bytes.Buffer)

	require.NoError(t, run(context.Background(), []string{"-file", path, "-dry-run", "-out", dir}, out))
	require.Contains(t, out.String(), "校验通过：3 行")
	require.NoFileExists(t, filepath.Join(dir, gradesheet.ErrorReportFilename))
}

func TestRun_DryRunInvalidWritesReport(t *testing.T) {
	dir := t.TempDir()
	rows := sampleRows(3)
	rows[1]["数学"] = gradesheet.Str("Z")
	path := writeWorkbook(t, dir, rows)
	out := new(bytes.Buffer)

	err := run(context.Background(), []string{"-file", path, "-dry-run", "-out", dir}, out)
	require.True(t, errors.Is(err, errInvalidRows), "got %v", err)
	require.Contains(t, out.String(), "第 2 行: invalid score value: Z in 数学")
	require.FileExists(t, filepath.Join(dir, gradesheet.ErrorReportFilename))
}

func TestRun_DryRunHeaderOnlyRejected(t *testing.T) {
	dir := t.TempDir()
	path := writeWorkbook(t, dir, nil)
	out := new(bytes.Buffer)

	err := run(context.Background(), []string{"-file", path, "-dry-run", "-out", dir}, out)
	require.ErrorIs(t, err, service.ErrImportNoRows)
	require.NotContains(t, out.String(), "校验通过")
}

func TestRun_DryRunAppliesMaxRows(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("import:\n  max_rows: 2\nlog:\n  level: error\n"), 0o644))
	path := writeWorkbook(t, dir, sampleRows(3))
	out := new(bytes.Buffer)

	err := run(context.Background(), []string{"-config", cfgPath, "-file", path, "-dry-run", "-out", dir}, out)
	require.ErrorIs(t, err, service.ErrImportTooManyRows)
}

func TestRun_ImportIntoSQLite(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	cfg := fmt.Sprintf("db:\n  driver: sqlite\n  path: %s\nlog:\n  level: error\n", filepath.Join(dir, "score.db"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))
	path := writeWorkbook(t, dir, sampleRows(4))
	out := new(bytes.Buffer)

	require.NoError(t, run(context.Background(), []string{"-config", cfgPath, "-file", path}, out))
	require.Contains(t, out.String(), "已导入 4/4 行")

	// 重复导入按自然键覆盖
	out.Reset()
	require.NoError(t, run(context.Background(), []string{"-config", cfgPath, "-file", path}, out))
	require.Contains(t, out.String(), "已导入 4/4 行")
}
