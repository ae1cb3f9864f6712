package main

import (
	"encoding/json"
	"fmt"
	"io"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"kgv/backend/config"
	"kgv/backend/internal/repository"
	"kgv/backend/internal/service"
	"kgv/backend/pkg/database"
	applogger "kgv/backend/pkg/logger"
	"kgv/backend/pkg/metrics"
	"kgv/backend/pkg/redis"
)

// app 一次命令执行所需的全部依赖
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	db      *gorm.DB
	rdb     *redis.Client
	metrics *metrics.Recorder
	svc     *service.Service
}

// bootstrap 加载配置 → 日志 → 数据库 → Redis（可选）→ Service
func bootstrap(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		return nil, err
	}

	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, db: db, metrics: metrics.New()}
	opts := []service.Option{service.WithMetrics(a.metrics)}

	// Redis 连接失败时降级为无缓存
	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewClient(&cfg.Redis, cfg.Statistics.CacheTTL, logger)
		if err != nil {
			logger.Warn("Redis 不可用，统计缓存已禁用", zap.Error(err))
		} else {
			a.rdb = rdb
			opts = append(opts, service.WithCache(rdb))
		}
	}

	a.svc = service.NewService(repository.NewStore(db), logger, opts...)
	return a, nil
}

// close 写出指标并释放连接
func (a *app) close() {
	if err := a.metrics.WriteToTextfile(a.cfg.Metrics.TextfilePath); err != nil {
		a.logger.Warn("写入指标文件失败", zap.String("path", a.cfg.Metrics.TextfilePath), zap.Error(err))
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = a.logger.Sync()
}

// withApp 包装需要完整依赖的子命令
func withApp(configPath *string, fn func(a *app) error) error {
	a, err := bootstrap(*configPath)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("Ausgabe fehlgeschlagen: %w", err)
	}
	return nil
}
