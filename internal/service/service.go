package service

import (
	"go.uber.org/zap"

	"github.com/Fyongrou/ScoreV1/config"
	"github.com/Fyongrou/ScoreV1/internal/repository"
	"github.com/Fyongrou/ScoreV1/pkg/redis"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Grade  GradeService
	Import ImportService
	Export ExportService
}

// NewService 创建 Service 聚合；rdb 为 nil 时导入仅做进程内互斥
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	rdb *redis.Client,
	logger *zap.Logger,
) *Service {
	var locker ImportLocker
	if rdb != nil {
		locker = NewRedisImportLocker(rdb, cfg.Import.LockTTL)
	}

	return &Service{
		Grade:  NewGradeService(repo, logger),
		Import: NewImportService(repo, locker, &cfg.Import, logger),
		Export: NewExportService(repo, logger),
	}
}
