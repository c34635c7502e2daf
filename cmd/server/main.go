package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tempbox/backend/internal/chunk"
	"tempbox/backend/internal/config"
	"tempbox/backend/internal/health"
	"tempbox/backend/internal/logger"
	"tempbox/backend/internal/monitoring"
	"tempbox/backend/internal/service"
	"tempbox/backend/internal/smtp"
	"tempbox/backend/internal/storage"
	"tempbox/backend/internal/storage/memory"
	"tempbox/backend/internal/storage/postgres"
	"tempbox/backend/internal/storage/redis"
	httptransport "tempbox/backend/internal/transport/http"
	"tempbox/backend/internal/websocket"
)

// main 启动同时包含 HTTP API、SMTP 接收和定时清理的综合服务。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
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

	log.Info("starting tempbox server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	// 初始化存储层
	store, err := newStore(cfg, log)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize storage: %v", err))
	}
	defer store.Close()

	// Redis 缓存（可选）
	var cache *redis.Cache
	if cfg.Redis.Address != "" {
		cache, err = redis.NewCache(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			panic(fmt.Sprintf("failed to connect to redis: %v", err))
		}
		defer cache.Close()
		log.Info("redis cache enabled", zap.String("address", cfg.Redis.Address))
	}

	// 监控与健康检查
	metrics := monitoring.NewMetrics()
	healthChecker := health.NewHealthChecker(store, cache, log)

	// 服务层
	mailboxService := service.NewMailboxService(store, cache, cfg, metrics, log)
	sweepService := service.NewSweepService(store, cfg, metrics, log)

	// WebSocket Hub
	wsHub := websocket.NewHub(cfg.CORS.AllowedOrigins, mailboxService, log)

	emailService := service.NewEmailService(store, wsHub, metrics, log)

	// HTTP 服务器
	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:         cfg,
		MailboxService: mailboxService,
		EmailService:   emailService,
		Metrics:        metrics,
		Health:         healthChecker,
		WebSocketHub:   wsHub,
		Logger:         log,
	})

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// SMTP 服务器
	smtpBackend := smtp.NewBackend(mailboxService, emailService, cfg, metrics, log)
	smtpServer := smtp.NewServer(smtpBackend)
	smtpServer.ReadTimeout = 30 * time.Second
	smtpServer.WriteTimeout = 30 * time.Second

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	group.Go(func() error {
		log.Info("starting SMTP server",
			zap.String("address", cfg.SMTP.BindAddr),
			zap.String("domain", cfg.SMTP.Domain),
		)
		return smtpServer.ListenAndServe()
	})

	group.Go(func() error {
		wsHub.Run(groupCtx)
		return nil
	})

	group.Go(func() error {
		log.Info("starting cleanup sweep loop", zap.Duration("interval", cfg.Mailbox.SweepInterval))
		sweepService.RunPeriodic(groupCtx)
		return nil
	})

	// 优雅关闭
	group.Go(func() error {
		<-groupCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("http server shutdown", zap.Error(err))
		}
		if err := smtpServer.Close(); err != nil {
			log.Warn("smtp server shutdown", zap.Error(err))
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		log.Error("server exited with error", zap.Error(err))
	}
	log.Info("server stopped")
}

// newStore 根据配置选择存储实现
func newStore(cfg *config.Config, log *zap.Logger) (storage.Store, error) {
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

	switch cfg.Database.Type {
	case "postgres":
		log.Info("using postgres storage")
		return postgres.NewStore(cfg.Database.DSN, opts)
	case "mysql":
		log.Info("using mysql storage")
		return postgres.NewMySQLStore(cfg.Database.DSN, opts)
	case "":
		log.Info("using memory storage (development mode)")
		return memory.NewStore(chunkSize), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %q", cfg.Database.Type)
	}
}
