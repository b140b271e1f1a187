package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"visitor-gate/config"
	"visitor-gate/internal/api/handler"
	"visitor-gate/internal/api/router"
	"visitor-gate/internal/repository"
	"visitor-gate/internal/service"
	"visitor-gate/pkg/database"
	"visitor-gate/pkg/jwt"
	applogger "visitor-gate/pkg/logger"
	"visitor-gate/pkg/mailer"
	"visitor-gate/pkg/redis"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
		zap.String("visit_timezone", cfg.Visit.Timezone),
	)

	// 3. 连接数据库并执行迁移
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	// 4. 可选依赖：Redis 与 SMTP 不可用时降级运行
	infra := service.Infra{}
	rdb, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，缓存、Token 黑名单与限流将不可用", zap.Error(err))
		rdb = nil
	} else {
		infra.Cache = rdb
		infra.Blacklist = rdb
	}
	if cfg.Mail.Enabled() {
		infra.Mail = mailer.New(&cfg.Mail)
	} else {
		logger.Info("未配置 SMTP，出入通知已关闭")
	}

	// 5. 依赖注入: Repository → Service → Handler
	jwtMgr := jwt.NewManager(&cfg.Auth)
	repo := repository.NewRepository(db)
	svc := service.NewService(cfg, repo, jwtMgr, infra, logger)

	bootCtx, bootCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := svc.Auth.EnsureBootstrapAdmin(bootCtx); err != nil {
		logger.Fatal("创建初始管理员失败", zap.Error(err))
	}
	bootCancel()

	// 6. 过期排期巡检
	sweeper := service.NewExpirySweeper(svc.Schedule, cfg.Visit.SweepInterval, logger)
	if err := sweeper.Start(); err != nil {
		logger.Fatal("启动过期排期巡检失败", zap.Error(err))
	}

	// 7. 初始化路由
	engine, err := router.Setup(cfg, handler.NewHandler(svc), jwtMgr, rdb, logger)
	if err != nil {
		logger.Fatal("初始化路由失败", zap.Error(err))
	}

	// 8. 启动 HTTP 服务器（优雅关闭）
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 9. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}
	if err := sweeper.Stop(); err != nil {
		logger.Error("停止过期排期巡检异常", zap.Error(err))
	}
	if err := database.Close(db); err != nil {
		logger.Error("关闭数据库连接异常", zap.Error(err))
	}
	if rdb != nil {
		_ = rdb.Close()
	}

	logger.Info("服务器已关闭")
}
