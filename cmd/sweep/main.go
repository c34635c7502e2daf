package main

import (
	"fmt"

	"go.uber.org/zap"

	"tempbox/backend/internal/chunk"
	"tempbox/backend/internal/config"
	"tempbox/backend/internal/logger"
	"tempbox/backend/internal/service"
	"tempbox/backend/internal/storage"
	"tempbox/backend/internal/storage/postgres"
)

// main 对数据库执行单次完整清理后退出，适合 cron 或容器任务调度。
// 只支持数据库存储：内存存储的数据随进程消失，没有可清理的东西。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	log, err := logger.New(logger.Options{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		File:        cfg.Log.File,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	chunkSize := cfg.Mailbox.ChunkSize
	if chunkSize <= 0 {
		chunkSize = chunk.DefaultChunkSize
	}
	opts := postgres.Options{
		ChunkSize:       chunkSize,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}

	var store storage.Store
	switch cfg.Database.Type {
	case "postgres":
		store, err = postgres.NewStore(cfg.Database.DSN, opts)
	case "mysql":
		store, err = postgres.NewMySQLStore(cfg.Database.DSN, opts)
	default:
		panic(fmt.Sprintf("sweep requires a database storage, got type %q", cfg.Database.Type))
	}
	if err != nil {
		panic(fmt.Sprintf("failed to connect to database: %v", err))
	}
	defer store.Close()

	result := service.NewSweepService(store, cfg, nil, log).Run()
	log.Info("one-shot sweep finished", zap.Int("totalDeleted", result.Total()))
}
