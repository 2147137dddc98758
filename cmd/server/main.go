package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/petermyo/DecentralizeFileShare/config"
	appmodel "github.com/petermyo/DecentralizeFileShare/internal/app/model"
	apprepository "github.com/petermyo/DecentralizeFileShare/internal/app/repository"
	appserver "github.com/petermyo/DecentralizeFileShare/internal/app/server"
	appservice "github.com/petermyo/DecentralizeFileShare/internal/app/service"
	infraGoogle "github.com/petermyo/DecentralizeFileShare/internal/infra/google"
	"github.com/petermyo/DecentralizeFileShare/internal/infra/logger"
	infraNATS "github.com/petermyo/DecentralizeFileShare/internal/infra/nats"
	infraPostgres "github.com/petermyo/DecentralizeFileShare/internal/infra/postgres"
	infraPrometheus "github.com/petermyo/DecentralizeFileShare/internal/infra/prometheus"
	infraRedis "github.com/petermyo/DecentralizeFileShare/internal/infra/redis"
	"github.com/petermyo/DecentralizeFileShare/internal/infra/tracing"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		logger.MustInit(config.LogConfig{Development: true}).Fatal("Failed to load config", zap.Error(err))
	}
	if os.Getenv("APP_ENV") != "production" {
		cfg.Log.Development = true
	}

	log := logger.MustInit(cfg.Log)
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration", zap.Error(err))
	}

	log.Info("Configuration loaded successfully",
		zap.String("addr", cfg.Server.Addr),
		zap.String("base_url", cfg.Server.BaseURL),
		zap.String("redis_host", cfg.Redis.Host),
		zap.Int("redis_port", cfg.Redis.Port),
		zap.Bool("postgres_enabled", cfg.Postgres.Enabled),
		zap.Bool("nats_enabled", cfg.NATS.Enabled),
		zap.Bool("tracing_enabled", cfg.Tracing.Enabled),
	)

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, log)
	if err != nil {
		log.Fatal("Failed to initialise tracing", zap.Error(err))
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("Failed to flush traces", zap.Error(err))
		}
	}()

	redisClient, err := infraRedis.NewClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	log.Info("Connected to Redis successfully")

	var metrics *infraPrometheus.Metrics
	if cfg.Prometheus.Enabled {
		metrics = infraPrometheus.NewMetrics()
		promServer := infraPrometheus.NewServer(cfg.Prometheus, metrics)
		go func() {
			log.Info("Starting Prometheus metrics server",
				zap.Int("port", cfg.Prometheus.Port))
			if err := promServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Prometheus metrics server stopped unexpectedly", zap.Error(err))
			}
		}()
		defer func() {
			if err := promServer.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("Failed to close Prometheus server", zap.Error(err))
			}
		}()
	} else {
		log.Info("Prometheus metrics server disabled")
	}

	deps := appserver.Dependencies{
		Logger:  log,
		Config:  cfg,
		Redis:   redisClient,
		Metrics: metrics,
	}

	// Access history is optional: Postgres stores it, NATS carries it there.
	var eventRepo apprepository.AccessEventRepository
	if cfg.Postgres.Enabled {
		gormDB, err := infraPostgres.NewGorm(cfg.Postgres, log)
		if err != nil {
			log.Fatal("Failed to open GORM connection", zap.Error(err))
		}
		sqlDB, err := gormDB.DB()
		if err != nil {
			log.Fatal("Failed to access underlying SQL DB", zap.Error(err))
		}
		defer sqlDB.Close()

		if err := infraPostgres.AutoMigrate(ctx, gormDB, &appmodel.AccessEvent{}); err != nil {
			log.Fatal("Failed to run database migrations", zap.Error(err))
		}

		pool, err := infraPostgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			log.Fatal("Failed to connect to Postgres", zap.Error(err))
		}
		defer pool.Close()
		deps.Postgres = pool
		log.Info("Connected to Postgres successfully")

		eventRepo = apprepository.NewAccessEventRepository(gormDB)
		pruner := appservice.NewAccessEventPruner(log, eventRepo, cfg.Events.Retention, cfg.Events.PruneInterval)
		pruner.Start()
		defer pruner.Stop()
	}

	if cfg.NATS.Enabled {
		natsConn, js, err := infraNATS.Connect(cfg.NATS, log)
		if err != nil {
			log.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		defer natsConn.Drain()
		log.Info("Connected to NATS successfully", zap.Bool("jetstream_ready", js != nil))

		if err := appservice.EnsureAccessStream(js); err != nil {
			log.Fatal("Failed to provision access event stream", zap.Error(err))
		}
		deps.Events = appservice.NewAccessPublisher(js, metrics, log)

		if eventRepo != nil {
			consumer := appservice.NewAccessConsumer(js, log, eventRepo)
			if err := consumer.Start(); err != nil {
				log.Fatal("Failed to start access event consumer", zap.Error(err))
			}
			defer consumer.Stop()
		}
	}

	httpClient := infraGoogle.NewHTTPClient()
	oauth := infraGoogle.NewOAuth(cfg.Google, httpClient)
	drive := infraGoogle.NewDrive(cfg.Google.DriveAPI, httpClient)

	vault := apprepository.NewCredentialVault(redisClient)
	broker := appservice.NewCredentialBroker(vault, oauth, cfg.Links.TokenSafetyMargin, metrics, log)

	deps.OAuth = oauth
	deps.Broker = broker
	proxy := appservice.NewContentProxy(broker, drive, metrics, log)
	deps.Proxy = proxy
	deps.Links = appservice.NewLinkService(
		apprepository.NewLinkRegistry(redisClient),
		vault,
		proxy,
		appservice.NewCodeGenerator(cfg.Links.CodeLength),
		appservice.LinkServiceConfig{
			FileRetention: cfg.Links.FileRetention,
			ListRetention: cfg.Links.ListRetention,
		},
		log,
	)

	server := appserver.New(deps)

	go func() {
		log.Info("HTTP server listening", zap.String("addr", cfg.Server.Addr))
		if err := server.Listen(cfg.Server.Addr); err != nil {
			log.Error("Fiber server exited", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("Graceful shutdown failed", zap.Error(err))
	}
}
