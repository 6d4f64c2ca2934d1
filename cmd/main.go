package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"parsely-go/internal/api/handler"
	"parsely-go/internal/api/router"
	"parsely-go/internal/config"
	"parsely-go/internal/constants"
	appCoreLogger "parsely-go/internal/logger"
	"parsely-go/internal/outbox"
	"parsely-go/internal/processor"
	"parsely-go/internal/storage"
	"parsely-go/internal/tracing"
	"parsely-go/internal/types"

	"github.com/cloudwego/hertz/pkg/app/server"
	hertzconfig "github.com/cloudwego/hertz/pkg/common/config"
	"github.com/spf13/pflag"

	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
)

func main() {
	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "config.yaml", "配置文件路径")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		appCoreLogger.Fatal().Err(err).Msg("加载配置失败")
	}
	initLogger(cfg.Logger)
	glog.Info("配置加载成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing := tracing.ShutdownFunc(func(context.Context) error { return nil })
	if cfg.Tracing.Enabled {
		shutdownTracing, err = tracing.InitProvider(ctx, tracing.ProviderConfig{
			Endpoint:    cfg.Tracing.Endpoint,
			ServiceName: cfg.Tracing.ServiceName,
			Version:     constants.AppVersion,
			SampleRatio: cfg.Tracing.SampleRatio,
		})
		if err != nil {
			glog.Fatalf("初始化链路追踪失败: %v", err)
		}
	}

	storageManager, err := storage.NewStorage(ctx, cfg, appCoreLogger.Component("storage"))
	if err != nil {
		glog.Fatalf("初始化存储失败: %v", err)
	}
	defer storageManager.Close()
	glog.Info("存储服务初始化成功")

	service, err := processor.NewServiceFromConfig(ctx, cfg, storageManager, appCoreLogger.Logger)
	if err != nil {
		glog.Fatalf("初始化解析服务失败: %v", err)
	}
	glog.Info("解析流水线初始化成功")

	// outbox 中继：记录库与消息代理都可用时启动
	var relay *outbox.MessageRelay
	if records := storageManager.Records(); records != nil && storageManager.RabbitMQ != nil {
		relay = outbox.NewMessageRelay(records, storageManager.RabbitMQ, appCoreLogger.Component("outbox"),
			outbox.WithPollingInterval(config.GetDuration(cfg.RabbitMQ.RetryInterval, 5*time.Second)))
		relay.Start()
		glog.Info("消息中继服务已启动")
	}

	if storageManager.RabbitMQ != nil && service.HasStore() && storageManager.MinIO != nil {
		done, err := storageManager.RabbitMQ.StartConsumer(ctx, cfg.RabbitMQ.JobsQueue,
			cfg.RabbitMQ.PrefetchCount, cfg.RabbitMQ.ConsumerWorkers, service.HandleParseJob)
		if err != nil {
			glog.Fatalf("启动解析任务消费者失败: %v", err)
		}
		go func() {
			<-done
			glog.Info("解析任务消费者已退出")
		}()
		glog.Infof("解析任务消费者已启动，队列: %s, 工作线程数: %d", cfg.RabbitMQ.JobsQueue, cfg.RabbitMQ.ConsumerWorkers)
	}

	defaultModel, ok := types.ParseNLPModel(cfg.Pipeline.DefaultNLPModel)
	if !ok {
		glog.Fatalf("未知的默认 NLP 模型: %s", cfg.Pipeline.DefaultNLPModel)
	}
	resumeHandler := handler.NewResumeHandler(service,
		handler.WithVersion(constants.AppVersion),
		handler.WithMaxUploadBytes(int64(cfg.Server.MaxUploadMB)<<20),
		handler.WithMaxBatchFiles(cfg.Server.MaxBatchFiles),
		handler.WithDefaultModel(defaultModel),
		handler.WithLogger(appCoreLogger.Component("handler")),
	)

	opts := []hertzconfig.Option{
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
		server.WithMaxRequestBodySize(cfg.Server.MaxBatchFiles * cfg.Server.MaxUploadMB << 20),
	}
	var tracerCfg *hertztracing.Config
	if cfg.Tracing.Enabled {
		var tracer hertzconfig.Option
		tracer, tracerCfg = hertztracing.NewServerTracer()
		opts = append(opts, tracer)
	}
	h := server.New(opts...)
	if tracerCfg != nil {
		h.Use(hertztracing.ServerMiddleware(tracerCfg))
	}

	router.RegisterRoutes(h, resumeHandler, cfg.Server.APIKeys)
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

	cancel()
	if relay != nil {
		relay.Stop()
		glog.Info("消息中继服务已停止")
	}

	wait := time.Duration(cfg.Server.ShutdownSecond) * time.Second
	if wait <= 0 {
		wait = 5 * time.Second
	}
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), wait)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		glog.Errorf("服务器关闭失败: %v", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		glog.Errorf("关闭链路追踪失败: %v", err)
	}
	glog.Info("优雅退出完成")
}

// initLogger 初始化 zerolog，并通过适配器接管 Hertz 日志
func initLogger(cfg config.LoggerConfig) {
	appCoreLogger.Init(appCoreLogger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		TimeFormat:   cfg.TimeFormat,
		ReportCaller: cfg.ReportCaller,
	})

	glog.SetLogger(hertzadapter.From(appCoreLogger.Logger))
	switch cfg.Level {
	case "debug", "trace":
		glog.SetLevel(glog.LevelDebug)
	case "warn":
		glog.SetLevel(glog.LevelWarn)
	case "error", "fatal":
		glog.SetLevel(glog.LevelError)
	default:
		glog.SetLevel(glog.LevelInfo)
	}
}
