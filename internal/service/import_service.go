package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Fyongrou/ScoreV1/config"
	"github.com/Fyongrou/ScoreV1/internal/dto"
	"github.com/Fyongrou/ScoreV1/internal/gradesheet"
	"github.com/Fyongrou/ScoreV1/internal/model"
	"github.com/Fyongrou/ScoreV1/internal/repository"
	pkgerrors "github.com/Fyongrou/ScoreV1/pkg/errors"
	"github.com/Fyongrou/ScoreV1/pkg/metrics"
	"github.com/Fyongrou/ScoreV1/pkg/redis"
)

// ── 导入模块业务错误 ──

var (
	ErrImportBusy        = errors.New("已有导入任务正在进行，请稍后再试")
	ErrImportNoRows      = errors.New("Excel文件无数据行（第一行为表头）")
	ErrImportTooManyRows = errors.New("数据行数超过上限")
	ErrImportInvalidRows = errors.New("数据校验未通过")
)

// ImportValidationError 存在校验失败的行，整批未提交；错误报告已交给 ArtifactSink
type ImportValidationError struct {
	Total   int
	Records []gradesheet.ErrorRecord
}

func (e *ImportValidationError) Error() string {
	return fmt.Sprintf("%d/%d 行数据校验未通过，已生成错误报告", len(e.Records), e.Total)
}

// Is 使 errors.Is(err, ErrImportInvalidRows) 成立
func (e *ImportValidationError) Is(target error) bool { return target == ErrImportInvalidRows }

// ImportState 导入流程状态
//
//	Idle → Decoding → Validating → {Committing | ErrorReporting} → Idle
type ImportState int

const (
	StateIdle ImportState = iota
	StateDecoding
	StateValidating
	StateCommitting
	StateErrorReporting
)

func (s ImportState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDecoding:
		return "decoding"
	case StateValidating:
		return "validating"
	case StateCommitting:
		return "committing"
	case StateErrorReporting:
		return "error_reporting"
	}
	return fmt.Sprintf("ImportState(%d)", int(s))
}

// ArtifactSink 接收生成的下载文件（HTTP 附件、本地文件等）
type ArtifactSink interface {
	Save(ctx context.Context, artifact *gradesheet.Artifact) error
}

// ImportLocker 跨实例导入互斥；ok=false 表示锁已被占用
type ImportLocker interface {
	Acquire(ctx context.Context) (release func(), ok bool, err error)
}

// ImportService 成绩导入业务接口
//
// 设计说明：
//   - 同一时刻只允许一个导入流程（进程内状态机 + 可选的 Redis 锁）
//   - 任一行校验失败则整批不提交，只生成错误报告
//   - 提交时逐行 upsert，全部在一个事务内；首个存储错误即中止并回滚
type ImportService interface {
	Import(ctx context.Context, payload io.Reader, sink ArtifactSink) (*dto.ImportGradesResponse, error)
	// Check 与 Import 相同的解码与校验流程，但不提交；全部通过时 Imported 为 0
	Check(ctx context.Context, payload io.Reader, sink ArtifactSink) (*dto.ImportGradesResponse, error)
	State() ImportState
}

type importService struct {
	repo    *repository.Repository
	locker  ImportLocker
	maxRows int
	logger  *zap.Logger

	mu    sync.Mutex
	state ImportState
}

// NewImportService 创建 ImportService 实例；locker 可为 nil
func NewImportService(repo *repository.Repository, locker ImportLocker, cfg *config.ImportConfig, logger *zap.Logger) ImportService {
	return &importService{
		repo:    repo,
		locker:  locker,
		maxRows: cfg.MaxRows,
		logger:  logger,
	}
}

func (s *importService) State() ImportState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// begin Idle → Decoding；非 Idle 时拒绝
func (s *importService) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return false
	}
	s.state = StateDecoding
	return true
}

func (s *importService) transition(to ImportState) {
	s.mu.Lock()
	from := s.state
	s.state = to
	s.mu.Unlock()
	s.logger.Debug("导入状态变更", zap.Stringer("from", from), zap.Stringer("to", to))
}

// ═══════════════════════════════════════════════════════════
// Import 解码 → 校验分拣 → 提交 / 错误报告
// ═══════════════════════════════════════════════════════════

func (s *importService) Import(ctx context.Context, payload io.Reader, sink ArtifactSink) (*dto.ImportGradesResponse, error) {
	return s.run(ctx, payload, sink, true)
}

func (s *importService) Check(ctx context.Context, payload io.Reader, sink ArtifactSink) (*dto.ImportGradesResponse, error) {
	return s.run(ctx, payload, sink, false)
}

func (s *importService) run(ctx context.Context, payload io.Reader, sink ArtifactSink, commit bool) (*dto.ImportGradesResponse, error) {
	if !s.begin() {
		return nil, ErrImportBusy
	}
	defer s.transition(StateIdle)

	if s.locker != nil {
		release, ok, err := s.locker.Acquire(ctx)
		switch {
		case err != nil:
			// Redis 不可用时降级为仅进程内互斥
			s.logger.Warn("获取导入锁失败，降级为进程内互斥", zap.Error(err))
		case !ok:
			return nil, ErrImportBusy
		default:
			defer release()
		}
	}

	// 1. 解码
	rows, err := gradesheet.Decode(payload)
	if err != nil {
		metrics.ImportRuns().WithLabelValues("decode_failed").Inc()
		s.logger.Info("导入文件解析失败", zap.Error(err))
		return nil, err
	}
	if len(rows) == 0 {
		metrics.ImportRuns().WithLabelValues("decode_failed").Inc()
		return nil, ErrImportNoRows
	}
	if len(rows) > s.maxRows {
		metrics.ImportRuns().WithLabelValues("decode_failed").Inc()
		return nil, fmt.Errorf("%w: %d 行（上限 %d 行）", ErrImportTooManyRows, len(rows), s.maxRows)
	}

	// 2. 校验分拣
	s.transition(StateValidating)
	outcome := gradesheet.Partition(rows)

	if !outcome.OK() {
		// 3a. 错误报告：不接触存储
		s.transition(StateErrorReporting)
		return nil, s.reportErrors(ctx, outcome, sink)
	}

	if !commit {
		metrics.ImportRuns().WithLabelValues("checked").Inc()
		s.logger.Info("成绩预检通过", zap.Int("total", outcome.Total))
		return &dto.ImportGradesResponse{Total: outcome.Total}, nil
	}

	// 3b. 提交
	s.transition(StateCommitting)
	imported, err := s.commit(ctx, outcome.Valid)
	if err != nil {
		metrics.ImportRuns().WithLabelValues("storage_failed").Inc()
		return nil, err
	}

	metrics.ImportRuns().WithLabelValues("committed").Inc()
	metrics.ImportRows().WithLabelValues("committed").Add(float64(imported))
	s.logger.Info("成绩导入完成", zap.Int("total", outcome.Total), zap.Int("imported", imported))

	return &dto.ImportGradesResponse{Total: outcome.Total, Imported: imported}, nil
}

func (s *importService) reportErrors(ctx context.Context, outcome *gradesheet.Outcome, sink ArtifactSink) error {
	metrics.ImportRuns().WithLabelValues("rejected").Inc()
	metrics.ImportRows().WithLabelValues("invalid").Add(float64(len(outcome.Errors)))
	s.logger.Info("成绩导入校验未通过",
		zap.Int("total", outcome.Total),
		zap.Int("failed", len(outcome.Errors)),
	)

	report, err := gradesheet.ErrorReport(outcome.Errors)
	if err != nil {
		s.logger.Error("生成错误报告失败", zap.Error(err))
		return fmt.Errorf("生成错误报告失败: %w", err)
	}
	if sink != nil {
		if err := sink.Save(ctx, report); err != nil {
			s.logger.Error("输出错误报告失败", zap.Error(err))
			return fmt.Errorf("输出错误报告失败: %w", err)
		}
	}

	return &ImportValidationError{Total: outcome.Total, Records: outcome.Errors}
}

// commit 在一个事务内逐行 upsert
func (s *importService) commit(ctx context.Context, grades []model.Grade) (int, error) {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		s.logger.Error("开启事务失败", zap.Error(err))
		return 0, pkgerrors.Storage("begin", err)
	}
	defer func() {
		if r := recover(); r != nil {
			if tx != nil {
				tx.Rollback()
			}
			panic(r)
		}
	}()

	txRepo := s.repo.WithTx(tx)

	for i := range grades {
		if err := txRepo.Grade.Upsert(ctx, &grades[i]); err != nil {
			if tx != nil {
				tx.Rollback()
			}
			s.logger.Error("成绩写入失败，事务回滚",
				zap.Int("row", i+1),
				zap.String("student_id", grades[i].StudentID),
				zap.Error(err),
			)
			return 0, pkgerrors.Storage("upsert",
				fmt.Errorf("第 %d 行（学号 %s）: %w", i+1, grades[i].StudentID, err))
		}
	}

	if tx != nil {
		if err := tx.Commit().Error; err != nil {
			s.logger.Error("提交事务失败", zap.Error(err))
			return 0, pkgerrors.Storage("commit", err)
		}
	}

	return len(grades), nil
}

// ── Redis 导入锁 ──

const importLockKey = "grades:import:lock"

type redisImportLocker struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisImportLocker 基于 Redis SETNX 的导入锁
func NewRedisImportLocker(rdb *redis.Client, ttl time.Duration) ImportLocker {
	return &redisImportLocker{rdb: rdb, ttl: ttl}
}

func (l *redisImportLocker) Acquire(ctx context.Context) (func(), bool, error) {
	lock, err := l.rdb.TryLock(ctx, importLockKey, l.ttl)
	if err != nil {
		return nil, false, err
	}
	if lock == nil {
		return nil, false, nil
	}
	// 请求上下文可能已取消，释放使用独立上下文
	return func() { _ = lock.Release(context.Background()) }, true, nil
}
