package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"github.com/spf13/pflag"

	"recruit-pipeline/internal/api/middleware"
	"recruit-pipeline/internal/api/router"
	"recruit-pipeline/internal/config"
	appCoreLogger "recruit-pipeline/internal/logger"
	"recruit-pipeline/internal/outbox"
	"recruit-pipeline/internal/pipeline"
	"recruit-pipeline/internal/storage"
	"recruit-pipeline/internal/tracing"
)

func main() {
	var (
		configPath string
		envFile    string
		initConfig string
	)
	pflag.StringVarP(&configPath, "config", "c", "config.yaml", "Path to config file")
	pflag.StringVar(&envFile, "env-file", ".env", "Optional .env file with secrets")
	pflag.StringVar(&initConfig, "init-config", "", "Write a sample config to the given path and exit")
	pflag.Parse()

	if initConfig != "" {
		if err := config.CreateSampleConfig(initConfig); err != nil {
			glog.Fatalf("写入示例配置失败: %v", err)
		}
		glog.Infof("示例配置已写入 %s", initConfig)
		return
	}

	cfg, err := config.LoadConfigFromFileAndEnv(configPath, envFile)
	if err != nil {
		glog.Fatalf("加载配置失败: %v", err)
	}
	initLogger(cfg.Logger)
	glog.Info("配置加载成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.InitProvider(ctx, cfg.Tracing)
	if err != nil {
		glog.Warnf("初始化链路追踪失败，继续运行: %v", err)
		shutdownTracing = func(context.Context) error { return nil }
	}

	storageManager, err := storage.NewStorage(ctx, cfg, appCoreLogger.Logger)
	if err != nil {
		glog.Fatalf("初始化存储失败: %v", err)
	}
	defer storageManager.Close()
	glog.Info("存储服务初始化成功")

	engine := newEngine(cfg, storageManager)
	glog.Info("招聘流程引擎初始化成功")

	var messageRelay *outbox.MessageRelay
	if cfg.Outbox.Enabled && storageManager.RabbitMQ != nil {
		messageRelay = outbox.NewMessageRelay(storageManager.MySQL.DB(), storageManager.RabbitMQ, cfg.Outbox, appCoreLogger.Logger)
		messageRelay.Start()
		glog.Info("消息中继服务已启动")
	} else {
		glog.Warn("RabbitMQ 不可用或发件箱未启用，领域事件只写入 outbox 表")
	}

	serverTracer, tracerCfg := hertztracing.NewServerTracer()
	h := server.New(
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
		server.WithReadTimeout(config.GetDuration(cfg.Server.RequestTimeout, 15*time.Second)),
		serverTracer,
	)
	h.Use(hertztracing.ServerMiddleware(tracerCfg))

	router.RegisterRoutes(h, engine, middleware.Auth(cfg.Auth), storageManager)
	glog.Info("HTTP路由注册成功")

	glog.Infof("HTTP 服务器启动中，监听地址: %s", cfg.Server.Address)
	go func() {
		if err := h.Run(); err != nil {
			glog.Fatalf("启动HTTP服务器失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	glog.Info("接收到终止信号，正在优雅退出...")

	// 先停中继，避免关闭连接时仍在发布
	if messageRelay != nil {
		messageRelay.Stop()
		glog.Info("消息中继服务已停止")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		glog.Errorf("服务器关闭失败: %v", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		glog.Warnf("刷新链路追踪数据失败: %v", err)
	}
	glog.Info("优雅退出完成")
}

// newEngine 组装引擎。Redis、MinIO 不可用时分别退化为无锁与头像原样返回。
func newEngine(cfg *config.Config, s *storage.Storage) *pipeline.Engine {
	settings := pipeline.Settings{
		WeightTolerance: cfg.Scoring.WeightTolerance,
		ScoreMode:       pipeline.WeightedScoreMode(cfg.Scoring.WeightedScoreMode),
		MinVote:         cfg.Delibs.MinVote,
		MaxVote:         cfg.Delibs.MaxVote,
	}
	opts := []pipeline.Option{
		pipeline.WithLogger(appCoreLogger.Logger.With().Str("component", "pipeline").Logger()),
	}
	if s.Redis != nil {
		settings.AcceptLockTTL = s.Redis.LockTTL()
		opts = append(opts, pipeline.WithLocker(s.Redis))
	}
	if s.MinIO != nil {
		opts = append(opts, pipeline.WithHeadshotResolver(s.MinIO))
	}
	opts = append(opts, pipeline.WithSettings(settings))

	exchange := cfg.RabbitMQ.PipelineExchange
	return pipeline.NewEngine(s.Pipeline(exchange), opts...)
}

func initLogger(lc config.LoggerConfig) {
	err := appCoreLogger.Init(appCoreLogger.Config{
		Level:        lc.Level,
		Format:       lc.Format,
		TimeFormat:   lc.TimeFormat,
		ReportCaller: lc.ReportCaller,
		File:         lc.File,
	})

	// 设置 Hertz 的 glog
	glog.SetLogger(hertzadapter.From(appCoreLogger.Logger))
	if lc.Level == "debug" {
		glog.SetLevel(glog.LevelDebug)
	} else {
		glog.SetLevel(glog.LevelInfo)
	}

	if err != nil {
		glog.Warnf("日志文件不可用，仅输出到控制台: %v", err)
	}
}
