package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Fyongrou/ScoreV1/config"
	"github.com/Fyongrou/ScoreV1/internal/api/handler"
	"github.com/Fyongrou/ScoreV1/internal/api/middleware"
	"github.com/Fyongrou/ScoreV1/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎；rdb 可为 nil
func Setup(cfg *config.Config, h *handler.Handler, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	handler.RegisterValidators()

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))

	// ── 健康检查 / 指标 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		grades := v1.Group("/grades")
		{
			grades.GET("", h.Grade.SearchGrades)
			grades.GET("/years", h.Grade.ListYears)
			grades.PATCH("/:id", h.Grade.UpdateGrade)

			grades.GET("/template", h.Export.DownloadTemplate)
			grades.GET("/export", h.Export.ExportResults)

			grades.POST("/import",
				middleware.BodyLimit(cfg.Server.MaxUploadMB<<20),
				middleware.RateLimit(rdb, cfg.Import.RateLimit, cfg.Import.RateWindow),
				h.Import.ImportGrades,
			)
		}
	}

	return r
}
