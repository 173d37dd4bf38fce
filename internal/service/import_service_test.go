package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"

	"github.com/Fyongrou/ScoreV1/config"
	"github.com/Fyongrou/ScoreV1/internal/gradesheet"
	"github.com/Fyongrou/ScoreV1/internal/model"
	pkgerrors "github.com/Fyongrou/ScoreV1/pkg/errors"
	"github.com/Fyongrou/ScoreV1/pkg/redis"
)

// ── 测试辅助 ──

type memorySink struct {
	saved []*gradesheet.Artifact
	err   error
}

func (s *memorySink) Save(_ context.Context, a *gradesheet.Artifact) error {
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, a)
	return nil
}

type fakeLocker struct {
	ok       bool
	err      error
	released int
}

func (l *fakeLocker) Acquire(_ context.Context) (func(), bool, error) {
	if l.err != nil || !l.ok {
		return nil, false, l.err
	}
	return func() { l.released++ }, true, nil
}

func setupTestImportService(maxRows int, locker ImportLocker) (*importService, *mockGradeRepo) {
	gradeRepo := newMockGradeRepo()
	cfg := &config.ImportConfig{MaxRows: maxRows, LockTTL: time.Minute}
	svc := NewImportService(newMockRepository(gradeRepo), locker, cfg, zap.NewNop())
	return svc.(*importService), gradeRepo
}

func gradeRow(studentID string) gradesheet.RawRow {
	row := gradesheet.RawRow{
		"学年":   gradesheet.Str("2023"),
		"考试类型": gradesheet.Str("期中"),
		"年级":   gradesheet.Str("初一"),
		"学号":   gradesheet.Str(studentID),
		"姓名":   gradesheet.Str("学生" + studentID),
		"班级":   gradesheet.Str("1"),
	}
	for i, c := range gradesheet.ScoreColumns() {
		row[c.Header] = gradesheet.Num(float64(70 + i))
	}
	return row
}

func gradeRows(n int) []gradesheet.RawRow {
	rows := make([]gradesheet.RawRow, n)
	for i := range rows {
		rows[i] = gradeRow(fmt.Sprintf("S%03d", i+1))
	}
	return rows
}

func workbook(t *testing.T, rows []gradesheet.RawRow) *bytes.Reader {
	t.Helper()
	buf, err := gradesheet.Encode(gradesheet.Sheet{Name: "成绩", Header: gradesheet.Headers(), Rows: rows})
	if err != nil {
		t.Fatalf("构造工作簿失败: %v", err)
	}
	return bytes.NewReader(buf.Bytes())
}

// ── 成功提交 ──

func TestImportService_Import_Success(t *testing.T) {
	svc, gradeRepo := setupTestImportService(100, nil)

	result, err := svc.Import(context.Background(), workbook(t, gradeRows(3)), &memorySink{})
	if err != nil {
		t.Fatalf("Import 应成功: %v", err)
	}
	if result.Total != 3 || result.Imported != 3 {
		t.Errorf("期望 total=3 imported=3，实际 total=%d imported=%d", result.Total, result.Imported)
	}
	if gradeRepo.upsertCalls != 3 {
		t.Errorf("期望 3 次 upsert，实际=%d", gradeRepo.upsertCalls)
	}
	if svc.State() != StateIdle {
		t.Errorf("导入结束后应回到 idle，实际=%s", svc.State())
	}
}

func TestImportService_Import_SingleRowSingleUpsert(t *testing.T) {
	svc, gradeRepo := setupTestImportService(100, nil)
	row := gradeRow("A1001")
	row["考试类型"] = gradesheet.Str("FINAL")
	row["语文"] = gradesheet.Str("A")
	sink := &memorySink{}

	if _, err := svc.Import(context.Background(), workbook(t, []gradesheet.RawRow{row}), sink); err != nil {
		t.Fatalf("Import 应成功: %v", err)
	}
	if gradeRepo.upsertCalls != 1 {
		t.Fatalf("期望恰好 1 次 upsert，实际=%d", gradeRepo.upsertCalls)
	}
	if len(sink.saved) != 0 {
		t.Error("成功导入不应生成错误报告")
	}
	g := gradeRepo.grades[0]
	if g.ExamType != model.ExamFinal || g.Chinese != "A" || g.StudentID != "A1001" {
		t.Errorf("写入记录不符: %+v", g)
	}
}

func TestImportService_Import_ReimportOverwrites(t *testing.T) {
	svc, gradeRepo := setupTestImportService(100, nil)
	ctx := context.Background()

	if _, err := svc.Import(ctx, workbook(t, gradeRows(2)), nil); err != nil {
		t.Fatalf("首次导入失败: %v", err)
	}
	rows := gradeRows(2)
	rows[0]["数学"] = gradesheet.Str("B")
	if _, err := svc.Import(ctx, workbook(t, rows), nil); err != nil {
		t.Fatalf("再次导入失败: %v", err)
	}

	if len(gradeRepo.grades) != 2 {
		t.Fatalf("同一自然键应覆盖而非新增，实际记录数=%d", len(gradeRepo.grades))
	}
	if gradeRepo.grades[0].Math != "B" {
		t.Errorf("期望数学被覆盖为 B，实际=%s", gradeRepo.grades[0].Math)
	}
}

// ── 校验失败 ──

func TestImportService_Import_InvalidRowProducesReport(t *testing.T) {
	svc, gradeRepo := setupTestImportService(100, nil)
	rows := gradeRows(10)
	rows[6]["语文"] = gradesheet.Str("Z")
	sink := &memorySink{}

	result, err := svc.Import(context.Background(), workbook(t, rows), sink)
	if result != nil {
		t.Error("校验失败时不应返回结果")
	}
	if !errors.Is(err, ErrImportInvalidRows) {
		t.Fatalf("期望 ErrImportInvalidRows，实际: %v", err)
	}
	var verr *ImportValidationError
	if !errors.As(err, &verr) || verr.Total != 10 || len(verr.Records) != 1 {
		t.Fatalf("校验错误信息不符: %+v", verr)
	}
	if gradeRepo.upsertCalls != 0 {
		t.Errorf("校验失败不应触及存储，实际 upsert=%d", gradeRepo.upsertCalls)
	}
	if len(sink.saved) != 1 {
		t.Fatalf("期望输出 1 份错误报告，实际=%d", len(sink.saved))
	}
	if sink.saved[0].Filename != gradesheet.ErrorReportFilename {
		t.Errorf("错误报告文件名不符: %s", sink.saved[0].Filename)
	}

	reported, err := gradesheet.Decode(bytes.NewReader(sink.saved[0].Data))
	if err != nil {
		t.Fatalf("错误报告应可解析: %v", err)
	}
	if len(reported) != 1 {
		t.Fatalf("错误报告应只含 1 行，实际=%d", len(reported))
	}
	if got := reported[0][gradesheet.DiagnosticsHeader].Text; got != "invalid score value: Z in 语文" {
		t.Errorf("诊断信息不符: %q", got)
	}
	if svc.State() != StateIdle {
		t.Errorf("错误报告后应回到 idle，实际=%s", svc.State())
	}
}

func TestImportService_Import_SinkFailure(t *testing.T) {
	svc, _ := setupTestImportService(100, nil)
	rows := gradeRows(1)
	rows[0]["考试类型"] = gradesheet.Str("寒假")

	_, err := svc.Import(context.Background(), workbook(t, rows), &memorySink{err: errors.New("disk full")})
	if err == nil || errors.Is(err, ErrImportInvalidRows) {
		t.Fatalf("报告输出失败应返回输出错误，实际: %v", err)
	}
}

// ── 解码失败 ──

func TestImportService_Import_NotSpreadsheet(t *testing.T) {
	svc, gradeRepo := setupTestImportService(100, nil)

	_, err := svc.Import(context.Background(), bytes.NewReader([]byte("not a workbook")), nil)
	var de *gradesheet.DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("期望 DecodeError，实际: %v", err)
	}
	if gradeRepo.upsertCalls != 0 {
		t.Error("解码失败不应触及存储")
	}
	if svc.State() != StateIdle {
		t.Errorf("解码失败后应回到 idle，实际=%s", svc.State())
	}
}

func TestImportService_Import_HeaderOnly(t *testing.T) {
	svc, _ := setupTestImportService(100, nil)

	_, err := svc.Import(context.Background(), workbook(t, nil), nil)
	if !errors.Is(err, ErrImportNoRows) {
		t.Errorf("期望 ErrImportNoRows，实际: %v", err)
	}
}

func TestImportService_Import_TooManyRows(t *testing.T) {
	svc, gradeRepo := setupTestImportService(2, nil)

	_, err := svc.Import(context.Background(), workbook(t, gradeRows(3)), nil)
	if !errors.Is(err, ErrImportTooManyRows) {
		t.Errorf("期望 ErrImportTooManyRows，实际: %v", err)
	}
	if gradeRepo.upsertCalls != 0 {
		t.Error("超出上限不应触及存储")
	}
}

// ── 存储失败 ──

func TestImportService_Import_StorageFailureStops(t *testing.T) {
	svc, gradeRepo := setupTestImportService(100, nil)
	gradeRepo.failUpsertAt = 2

	result, err := svc.Import(context.Background(), workbook(t, gradeRows(5)), nil)
	if result != nil {
		t.Error("存储失败时不应返回结果")
	}
	var se *pkgerrors.StorageError
	if !errors.As(err, &se) {
		t.Fatalf("期望 StorageError，实际: %v", err)
	}
	if !errors.Is(err, errMockStorage) {
		t.Error("应保留底层存储错误")
	}
	if gradeRepo.upsertCalls != 2 {
		t.Errorf("首个失败后应停止，期望 2 次 upsert，实际=%d", gradeRepo.upsertCalls)
	}
	if svc.State() != StateIdle {
		t.Errorf("存储失败后应回到 idle，实际=%s", svc.State())
	}
}

// ── 互斥 ──

func TestImportService_Import_BusyWhileRunning(t *testing.T) {
	svc, gradeRepo := setupTestImportService(100, nil)
	svc.state = StateCommitting

	_, err := svc.Import(context.Background(), workbook(t, gradeRows(1)), nil)
	if !errors.Is(err, ErrImportBusy) {
		t.Fatalf("期望 ErrImportBusy，实际: %v", err)
	}
	if gradeRepo.upsertCalls != 0 {
		t.Error("被拒绝的导入不应触及存储")
	}
	if svc.State() != StateCommitting {
		t.Error("被拒绝的导入不应改变进行中的状态")
	}
}

func TestImportService_Import_ConcurrentCallsSerialized(t *testing.T) {
	svc, _ := setupTestImportService(100, nil)
	payload := workbook(t, gradeRows(20))
	data := make([]byte, payload.Len())
	_, _ = payload.Read(data)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var ok, busy int
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Import(context.Background(), bytes.NewReader(data), nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrImportBusy):
				busy++
			}
		}()
	}
	wg.Wait()

	if ok+busy != 8 || ok == 0 {
		t.Errorf("并发导入应要么成功要么被拒绝: ok=%d busy=%d", ok, busy)
	}
}

func TestImportService_Import_LockerHeldElsewhere(t *testing.T) {
	svc, gradeRepo := setupTestImportService(100, &fakeLocker{ok: false})

	_, err := svc.Import(context.Background(), workbook(t, gradeRows(1)), nil)
	if !errors.Is(err, ErrImportBusy) {
		t.Fatalf("期望 ErrImportBusy，实际: %v", err)
	}
	if gradeRepo.upsertCalls != 0 {
		t.Error("未获得锁不应触及存储")
	}
	if svc.State() != StateIdle {
		t.Errorf("期望回到 idle，实际=%s", svc.State())
	}
}

func TestImportService_Import_LockerReleased(t *testing.T) {
	locker := &fakeLocker{ok: true}
	svc, _ := setupTestImportService(100, locker)

	if _, err := svc.Import(context.Background(), workbook(t, gradeRows(1)), nil); err != nil {
		t.Fatalf("Import 应成功: %v", err)
	}
	if locker.released != 1 {
		t.Errorf("期望释放锁 1 次，实际=%d", locker.released)
	}
}

func TestImportService_Import_LockerErrorDegrades(t *testing.T) {
	svc, gradeRepo := setupTestImportService(100, &fakeLocker{err: errors.New("connection refused")})

	if _, err := svc.Import(context.Background(), workbook(t, gradeRows(2)), nil); err != nil {
		t.Fatalf("锁服务不可用时应降级继续导入: %v", err)
	}
	if gradeRepo.upsertCalls != 2 {
		t.Errorf("期望 2 次 upsert，实际=%d", gradeRepo.upsertCalls)
	}
}

func TestRedisImportLocker(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb, err := redis.NewClient(&config.RedisConfig{Addr: mr.Addr()}, zap.NewNop())
	if err != nil {
		t.Fatalf("连接 miniredis 失败: %v", err)
	}
	defer rdb.Close()

	ctx := context.Background()
	first := NewRedisImportLocker(rdb, time.Minute)
	second := NewRedisImportLocker(rdb, time.Minute)

	release, ok, err := first.Acquire(ctx)
	if err != nil || !ok {
		t.Fatalf("首次获取锁应成功: ok=%v err=%v", ok, err)
	}
	if _, ok, _ := second.Acquire(ctx); ok {
		t.Fatal("锁被占用时不应再次获得")
	}

	release()
	if mr.Exists(importLockKey) {
		t.Error("释放后锁键应被删除")
	}
	if _, ok, _ := second.Acquire(ctx); !ok {
		t.Error("释放后应可再次获得锁")
	}
}

func TestImportState_String(t *testing.T) {
	cases := map[ImportState]string{
		StateIdle:           "idle",
		StateDecoding:       "decoding",
		StateValidating:     "validating",
		StateCommitting:     "committing",
		StateErrorReporting: "error_reporting",
	}
	for s, want := range cases {
		if s.String() != want {
			t.Errorf("期望=%s，实际=%s", want, s.String())
		}
	}
}

// ── 预检 ──

func TestImportService_Check_DoesNotCommit(t *testing.T) {
	svc, gradeRepo := setupTestImportService(100, nil)

	result, err := svc.Check(context.Background(), workbook(t, gradeRows(3)), &memorySink{})
	if err != nil {
		t.Fatalf("Check 应成功: %v", err)
	}
	if result.Total != 3 || result.Imported != 0 {
		t.Errorf("期望 total=3 imported=0，实际 total=%d imported=%d", result.Total, result.Imported)
	}
	if gradeRepo.upsertCalls != 0 {
		t.Errorf("预检不应写入，实际 upsert=%d", gradeRepo.upsertCalls)
	}
	if svc.State() != StateIdle {
		t.Errorf("预检结束后应回到 idle，实际=%s", svc.State())
	}
}

func TestImportService_Check_SharesImportLimits(t *testing.T) {
	svc, _ := setupTestImportService(2, nil)

	if _, err := svc.Check(context.Background(), workbook(t, nil), nil); !errors.Is(err, ErrImportNoRows) {
		t.Errorf("仅表头期望 ErrImportNoRows，实际: %v", err)
	}
	if _, err := svc.Check(context.Background(), workbook(t, gradeRows(3)), nil); !errors.Is(err, ErrImportTooManyRows) {
		t.Errorf("超过上限期望 ErrImportTooManyRows，实际: %v", err)
	}

	rows := gradeRows(2)
	rows[1]["数学"] = gradesheet.Str("Z")
	sink := &memorySink{}
	_, err := svc.Check(context.Background(), workbook(t, rows), sink)
	if !errors.Is(err, ErrImportInvalidRows) {
		t.Errorf("无效行期望 ErrImportInvalidRows，实际: %v", err)
	}
	if len(sink.saved) != 1 {
		t.Errorf("预检失败也应输出错误报告，实际=%d", len(sink.saved))
	}
}
