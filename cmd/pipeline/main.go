package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/errgroup"

	"github.com/fundflow/backoffice/internal/pipeline/application"
	"github.com/fundflow/backoffice/internal/pipeline/domain"
	"github.com/fundflow/backoffice/internal/pipeline/infrastructure/audit"
	"github.com/fundflow/backoffice/internal/pipeline/infrastructure/messaging"
	"github.com/fundflow/backoffice/internal/pipeline/infrastructure/persistence/mysql"
	pipelineredis "github.com/fundflow/backoffice/internal/pipeline/infrastructure/persistence/redis"
	httpserver "github.com/fundflow/backoffice/internal/pipeline/interfaces/http"
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

var configPath = flag.String("config", "configs/pipeline/config.toml", "config file path")

func main() {
	flag.Parse()
	ctx := context.Background()

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

	// 仅开发环境自动建表
	if cfg.Environment == "dev" {
		if err := database.AutoMigrate(&mysql.ApplicationModel{}, &mysql.TransitionRecordModel{}); err != nil {
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

	producer, err := mq.NewProducer(mq.KafkaConfig{
		Brokers:      cfg.Kafka.Brokers,
		MaxRetries:   cfg.Kafka.MaxRetries,
		RetryBackoff: cfg.Kafka.RetryBackoff,
	})
	if err != nil {
		logger.Fatal(ctx, "Failed to init kafka producer", "error", err)
	}
	defer producer.Close()

	// 6. 初始化仓储与应用服务
	appRepo := mysql.NewApplicationRepository(database.DB)
	transitionRepo := mysql.NewTransitionRepository(database.DB)
	recorder := audit.NewRetryingRecorder(
		transitionRepo,
		cfg.Pipeline.AuditMaxAttempts,
		time.Duration(cfg.Pipeline.AuditRetryBackoff)*time.Millisecond,
	)
	publisher := messaging.NewKafkaEventPublisher(producer, cfg.Kafka.ApplicationCreatedTopic, cfg.Kafka.StageChangedTopic)
	boardCache := pipelineredis.NewBoardCache(redisCache)

	stagePolicy := domain.NewDefaultStagePolicy(domain.ProductCategory(cfg.Pipeline.DefaultProductCategory))
	siloPolicy := authn.SiloPolicy{AdminBypass: cfg.Pipeline.AdminSiloBypass}

	commandSvc := application.NewPipelineCommandService(
		appRepo,
		recorder,
		publisher,
		stagePolicy,
		boardCache,
		application.Config{
			CASMaxRetries: cfg.Pipeline.CASMaxRetries,
			SiloPolicy:    siloPolicy,
			StoreTimeout:  time.Duration(cfg.Pipeline.StoreTimeout) * time.Second,
		},
		metricsImpl,
	)
	querySvc := application.NewPipelineQueryService(appRepo, transitionRepo, boardCache, siloPolicy)

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

	handler := httpserver.NewPipelineHandler(commandSvc, querySvc)
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

	if cfg.Metrics.Enabled {
		g.Go(func() error {
			logger.Info(gctx, "Metrics server starting", "port", cfg.Metrics.Port)
			return metrics.StartHTTPServer(cfg.Metrics.Port, cfg.Metrics.Path)
		})
	}

	// 9. 优雅关闭
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
			logger.Info(gctx, "Shutting down server...")
		case <-gctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error(ctx, "Server exited with error", "error", err)
	}
}
