package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	handlers "TourGuard/internal/handler"
	"TourGuard/internal/listeners"
	"TourGuard/internal/models"
	"TourGuard/pkg/backup"
	"TourGuard/pkg/cache"
	"TourGuard/pkg/config"
	"TourGuard/pkg/logger"
	"TourGuard/pkg/metrics"
	"TourGuard/pkg/notification"
	"TourGuard/pkg/scheduler"
	"TourGuard/pkg/sse"
	"TourGuard/pkg/util"
	"TourGuard/pkg/websocket"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	if err := config.Load(); err != nil {
		log.Fatalf("load config: %v", err)
	}
	cfg := config.GlobalConfig

	if err := logger.Init(cfg.Log); err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := util.OpenDatabase(cfg.DBDriver, cfg.DSN)
	if err != nil {
		logger.Error("open database", zap.Error(err))
		os.Exit(1)
	}
	if err := models.AutoMigrate(db); err != nil {
		logger.Error("migrate database", zap.Error(err))
		os.Exit(1)
	}

	// 推送通道：WebSocket双向 + SSE只读镜像
	hub := websocket.NewHub(websocket.DefaultConfig())
	defer hub.Close()
	sseHub := sse.NewHub(30 * time.Second)

	fanout := notification.MultiFanout{
		notification.NewHubFanout(hub, cfg.FanoutTimeout),
		notification.NewSSEFanout(sseHub),
	}
	listeners.InitTouristListeners(db)
	listeners.InitAlertListeners(fanout, nil)

	// 定时任务：升级扫描 + 可选的数据库备份
	cron := scheduler.NewCron(nil)
	policy := models.DefaultEscalationPolicy()
	policy.AttentionWindow = cfg.AttentionWindow
	if _, err := cron.AddWithCtx(cfg.EscalationSweepCron, func(ctx context.Context) {
		escalated, errs := models.RunEscalationSweep(db, policy)
		for _, err := range errs {
			logger.Warn("escalation sweep error", zap.Error(err))
		}
		if escalated > 0 {
			logger.Info("escalation sweep", zap.Int("escalated", escalated))
		}
	}); err != nil {
		logger.Error("schedule escalation sweep", zap.Error(err))
		os.Exit(1)
	}
	if cfg.BackupSchedule != "" {
		if _, err := cron.AddWithCtx(cfg.BackupSchedule, func(ctx context.Context) {
			backup.Run()
		}); err != nil {
			logger.Warn("schedule backup", zap.Error(err))
		}
	}
	cron.Start()
	defer cron.Stop()

	// 幂等键存储：默认进程内，配置Redis后多实例共享去重窗口
	idemStore, err := cache.NewCache(cache.Config{
		Type: cfg.CacheType,
		Redis: cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		},
		Local: cache.DefaultLocalConfig(),
	})
	if err != nil {
		logger.Warn("cache init failed, falling back to local", zap.Error(err))
		idemStore = cache.NewLocalCache(cache.DefaultLocalConfig())
	}
	defer idemStore.Close()

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(metrics.Middleware())
	handlers.NewHandlers(db, hub, sseHub, idemStore).Register(engine)

	srv := &http.Server{Addr: cfg.Addr, Handler: engine}
	go func() {
		logger.Info("server listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
}
