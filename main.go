package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bugmarket/config"
	"bugmarket/database"
	"bugmarket/logger"
	"bugmarket/middleware"
	"bugmarket/router"
	"bugmarket/service"

	flag "github.com/spf13/pflag"
)

// @title Bug 市场 API
// @version 1.0
// @description Bug 悬赏订单市场：发布、承接、状态流转、超期监控与后台管理
// @host localhost:3000
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const version = "1.0.0"

var (
	configFile  string
	port        string
	showVersion bool
)

func init() {
	flag.StringVarP(&configFile, "config", "c", "", "外部配置文件路径（可选）")
	flag.StringVarP(&port, "port", "p", "", "监听端口，如: 3000 或 :3000")
	flag.BoolVarP(&showVersion, "version", "v", false, "显示版本信息")
}

func main() {
	flag.Parse()

	if showVersion {
		fmt.Printf("Bug 市场 v%s\n", version)
		return
	}

	// 加载配置（内置配置 + 可选的外部配置覆盖）
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	// 命令行参数覆盖端口配置
	if port != "" {
		// 自动添加冒号前缀
		if !strings.HasPrefix(port, ":") {
			port = ":" + port
		}
		cfg.Server.Port = port
	}

	logg := logger.New(cfg.Server.Mode, cfg.Server.LogLevel)
	slog.SetDefault(logg)

	// 打印配置信息
	config.PrintConfig()

	if err := run(cfg, logg); err != nil {
		logg.Error("服务异常退出", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 初始化数据库
	if err := database.Init(ctx, cfg, logg); err != nil {
		return fmt.Errorf("数据库初始化失败: %w", err)
	}

	rdb, err := database.InitRedis(ctx, &cfg.Redis)
	if err != nil {
		return fmt.Errorf("Redis 初始化失败: %w", err)
	}
	if rdb != nil {
		defer rdb.Close()
	}

	// 初始化 JWT
	middleware.InitJWT(cfg)

	// 超期监控
	var notifier service.ExpiryNotifier
	if cfg.Email.Enabled && len(cfg.Email.AlertTo) > 0 {
		notifier = service.NewEmailService(&cfg.Email)
	}
	monitor := service.NewMonitor(database.DB, rdb, logg, notifier, cfg.Monitor.Interval, cfg.Monitor.LockTTL)
	if cfg.Monitor.Enabled {
		monitor.Start(ctx)
	}

	// 设置路由
	r := router.SetupRouter(cfg, router.Options{
		Logger:  logg,
		Redis:   rdb,
		Monitor: monitor,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info("Bug 市场已启动",
			"addr", cfg.Server.Port,
			"swagger", fmt.Sprintf("http://localhost%s/swagger/index.html", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logg.Info("正在关闭服务")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("关闭服务失败: %w", err)
	}

	if sqlDB, err := database.DB.DB(); err == nil {
		sqlDB.Close()
	}
	return nil
}
