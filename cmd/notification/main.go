package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/errgroup"

	"github.com/fundflow/backoffice/internal/notification/application"
	"github.com/fundflow/backoffice/internal/notification/domain"
	"github.com/fundflow/backoffice/internal/notification/infrastructure/messaging"
	"github.com/fundflow/backoffice/internal/notification/infrastructure/persistence/mysql"
	"github.com/fundflow/backoffice/internal/notification/infrastructure/sender"
	httpserver "github.com/fundflow/backoffice/internal/notification/interfaces/http"
	"github.com/fundflow/backoffice/pkg/authn"
	"github.com/fundflow/backoffice/pkg/cache"
	"github.com/fundflow/backoffice/pkg/config"
	"github.com/fundflow/backoffice/pkg/db"
	"github.com/fundflow/backoffice/pkg/logger"
	"github.com/fundflow/backoffice/pkg/metrics"
	"github.com/fundflow/backoffice/pkg/middleware"
	"github.com/fundflow/backoffice/pkg/mq"
	"github.com/fundflow/backoffice/pkg/ratelimit"
	"github.com/fundflow/backoffice/pkg/trace"
)

var configPath = flag.String("config", "configs/notification/config.toml", "config file path")

func main() {
	flag.Parse()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. 初始化配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 2. 初始化日志
	if err := logger.Init(logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		Output:     cfg.Logger.Output,
		FilePath:   cfg.Logger.FilePath,
		MaxSize:    cfg.Logger.MaxSize,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAge:     cfg.Logger.MaxAge,
		Compress:   cfg.Logger.Compress,
		WithCaller: cfg.Logger.WithCaller,
	}); err != nil {
		panic(fmt.Sprintf("failed to init logger: %v", err))
	}

	// 3. 初始化追踪
	if cfg.Tracing.Enabled {
		shutdown, err := trace.InitTracer(cfg.ServiceName, cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Warn(ctx, "Failed to init tracer, continuing without tracing", "error", err)
		} else {
			defer shutdown(ctx) //nolint:errcheck
		}
	}

	// 4. 初始化指标
	metricsImpl := metrics.New(cfg.ServiceName)
	if err := metricsImpl.Register(); err != nil {
		logger.Warn(ctx, "Failed to register metrics", "error", err)
	}

	// 5. 初始化基础设施
	database, err := db.Init(db.Config{
		Driver:             cfg.Database.Driver,
		DSN:                cfg.Database.DSN,
		MaxOpenConns:       cfg.Database.MaxOpenConns,
		MaxIdleConns:       cfg.Database.MaxIdleConns,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
		LogEnabled:         cfg.Database.LogEnabled,
		SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
	})
	if err != nil {
		logger.Fatal(ctx, "Failed to connect database", "error", err)
	}
	defer database.Close()

	if cfg.Environment == "dev" {
		if err := database.AutoMigrate(&mysql.NotificationModel{}); err != nil {
			logger.Error(ctx, "Failed to migrate database", "error", err)
		}
	}

	redisCache, err := cache.New(cache.Config{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		MaxPoolSize:  cfg.Redis.MaxPoolSize,
		ConnTimeout:  cfg.Redis.ConnTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		logger.Fatal(ctx, "Failed to init redis", "error", err)
	}
	defer redisCache.Close()

	kafkaCfg := mq.KafkaConfig{
		Brokers:        cfg.Kafka.Brokers,
		GroupID:        cfg.Kafka.GroupID,
		SessionTimeout: cfg.Kafka.SessionTimeout,
		MaxRetries:     cfg.Kafka.MaxRetries,
		RetryBackoff:   cfg.Kafka.RetryBackoff,
	}
	producer, err := mq.NewProducer(kafkaCfg)
	if err != nil {
		logger.Fatal(ctx, "Failed to init kafka producer", "error", err)
	}
	defer producer.Close()

	stageConsumer, err := mq.NewConsumer(kafkaCfg, cfg.Kafka.StageChangedTopic)
	if err != nil {
		logger.Fatal(ctx, "Failed to init kafka consumer", "error", err)
	}
	defer stageConsumer.Close()

	// 6. 初始化仓储与应用服务
	siloPolicy := authn.SiloPolicy{AdminBypass: cfg.Pipeline.AdminSiloBypass}
	repo := mysql.NewNotificationRepository(database.DB)
	senders := map[domain.Channel]domain.Sender{
		domain.ChannelEmail: sender.NewKafkaNotificationSender(producer, cfg.Kafka.NotificationTopic),
		domain.ChannelSMS:   sender.NewMockSMSSender(),
	}

	manager := application.NewNotificationManager(repo, senders, siloPolicy, metricsImpl)
	querySvc := application.NewNotificationQueryService(repo, siloPolicy)
	stageHandler := application.NewStageEventHandler(manager)

	dlq := mq.NewDeadLetterQueue(producer, cfg.Kafka.DeadLetterTopic)
	consumer := messaging.NewStageChangedConsumer(stageConsumer, stageHandler, dlq)

	// 7. 初始化接口层
	tokens := authn.NewTokenManager(authn.TokenConfig{
		Secret:   cfg.JWT.Secret,
		Issuer:   cfg.JWT.Issuer,
		TTLHours: cfg.JWT.TTLHours,
	})

	gin.SetMode(gin.ReleaseMode)
	if cfg.Environment == "dev" {
		gin.SetMode(gin.DebugMode)
	}
	r := gin.New()
	r.Use(middleware.GinRecoveryMiddleware())
	r.Use(middleware.GinLoggingMiddleware())
	r.Use(middleware.GinCORSMiddleware())
	if cfg.Tracing.Enabled {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	if cfg.RateLimit.Enabled {
		limiter := ratelimit.NewRedisRateLimiter(redisCache.GetClient())
		r.Use(middleware.RateLimitMiddleware(limiter, cfg.RateLimit))
	}

	handler := httpserver.NewNotificationHandler(manager, querySvc)
	protected := r.Group("")
	protected.Use(authn.Middleware(tokens))
	handler.RegisterRoutes(protected)

	// 8. 启动服务
	g, gctx := errgroup.WithContext(ctx)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}

	g.Go(func() error {
		logger.Info(gctx, "HTTP server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		logger.Info(gctx, "Stage change consumer starting", "topic", cfg.Kafka.StageChangedTopic)
		return consumer.Run(gctx)
	})

	if cfg.Metrics.Enabled {
		g.Go(func() error {
			logger.Info(gctx, "Metrics server starting", "port", cfg.Metrics.Port)
			return metrics.StartHTTPServer(cfg.Metrics.Port, cfg.Metrics.Path)
		})
	}

	// 9. 优雅关闭：信号触发 ctx 取消，消费者与 HTTP 服务各自退出
	g.Go(func() error {
		<-gctx.Done()
		logger.Info(context.Background(), "Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error(ctx, "Server exited with error", "error", err)
	}
}
