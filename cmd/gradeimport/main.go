// Package main 命令行成绩导入工具：下载模板、预检或导入 xlsx 文件。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/Fyongrou/ScoreV1/config"
	"github.com/Fyongrou/ScoreV1/internal/gradesheet"
	"github.com/Fyongrou/ScoreV1/internal/repository"
	"github.com/Fyongrou/ScoreV1/internal/service"
	"github.com/Fyongrou/ScoreV1/pkg/database"
	applogger "github.com/Fyongrou/ScoreV1/pkg/logger"
)

// errInvalidRows 存在无效行，已写出错误报告（退出码 2）
var errInvalidRows = errors.New("存在无效数据行")

type options struct {
	configPath string
	file       string
	outDir     string
	template   string
	dryRun     bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx, os.Args[1:], os.Stdout)
	switch {
	case err == nil:
	case errors.Is(err, errInvalidRows):
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	default:
		fmt.Fprintf(os.Stderr, "gradeimport: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("gradeimport", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", "", "配置文件路径（默认 ./config/config.yaml）")
	fs.StringVar(&opts.file, "file", "", "待导入的 xlsx 文件")
	fs.StringVar(&opts.outDir, "out", ".", "错误报告输出目录")
	fs.StringVar(&opts.template, "template", "", "将导入模板写入该路径后退出")
	fs.BoolVar(&opts.dryRun, "dry-run", false, "只解析和校验，不写入数据库")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.template == "" && opts.file == "" {
		return opts, errors.New("需要 -file 或 -template")
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	if opts.template != "" {
		return writeTemplate(opts.template, stdout)
	}

	sink := &fileSink{dir: opts.outDir, stdout: stdout}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if opts.dryRun {
		return dryRun(ctx, opts.file, service.NewImportService(nil, nil, &cfg.Import, logger), sink, stdout)
	}

	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		return err
	}
	if sqlDB, _ := db.DB(); sqlDB != nil {
		defer sqlDB.Close()
	}
	if err := database.RunMigrations(db, cfg.Database.Driver, logger); err != nil {
		return err
	}

	importer := service.NewImportService(repository.NewRepository(db), nil, &cfg.Import, logger)

	f, err := os.Open(opts.file)
	if err != nil {
		return err
	}
	defer f.Close()

	result, err := importer.Import(ctx, f, sink)
	if err != nil {
		return invalidRows(err, stdout)
	}

	logger.Info("导入完成", zap.String("file", opts.file), zap.Int("imported", result.Imported))
	fmt.Fprintf(stdout, "已导入 %d/%d 行\n", result.Imported, result.Total)
	return nil
}

func writeTemplate(path string, stdout io.Writer) error {
	art, err := gradesheet.Template()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, art.Data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "模板已写入 %s\n", path)
	return nil
}

// dryRun 解码并校验，不连接数据库；行数限制与正式导入一致
func dryRun(ctx context.Context, path string, checker service.ImportService, sink service.ArtifactSink, stdout io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	result, err := checker.Check(ctx, f, sink)
	if err != nil {
		return invalidRows(err, stdout)
	}
	fmt.Fprintf(stdout, "校验通过：%d 行\n", result.Total)
	return nil
}

// invalidRows 逐行打印校验诊断并转换为 errInvalidRows；其他错误原样返回
func invalidRows(err error, stdout io.Writer) error {
	var verr *service.ImportValidationError
	if !errors.As(err, &verr) {
		return err
	}
	for _, rec := range verr.Records {
		fmt.Fprintf(stdout, "第 %d 行: %s\n", rec.Row, rec.Message())
	}
	return fmt.Errorf("%w: %d/%d 行", errInvalidRows, len(verr.Records), verr.Total)
}

// fileSink 将错误报告写入本地目录
type fileSink struct {
	dir    string
	stdout io.Writer
}

func (s *fileSink) Save(_ context.Context, a *gradesheet.Artifact) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(s.dir, a.Filename)
	if err := os.WriteFile(path, a.Data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(s.stdout, "错误报告已写入 %s\n", path)
	return nil
}
