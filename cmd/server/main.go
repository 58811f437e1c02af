package main

import (
	"context"
	"log"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/taskflow/backend/api/handler"
	"github.com/taskflow/backend/internal/config"
	"github.com/taskflow/backend/internal/infrastructure/buffer"
	"github.com/taskflow/backend/internal/infrastructure/monitor"
	pgInfra "github.com/taskflow/backend/internal/infrastructure/postgres"
	redisInfra "github.com/taskflow/backend/internal/infrastructure/redis"
	"github.com/taskflow/backend/internal/middleware"
	"github.com/taskflow/backend/internal/realtime"
	"github.com/taskflow/backend/internal/router"
	"github.com/taskflow/backend/internal/services"
	"github.com/taskflow/backend/internal/services/lifecycle"
	"github.com/taskflow/backend/pkg/httpcontext"
	"github.com/taskflow/backend/pkg/jwtauth"
	"github.com/taskflow/backend/pkg/logger"
	"github.com/taskflow/backend/repository/postgres"
	redisRepo "github.com/taskflow/backend/repository/redis"
	"github.com/taskflow/backend/usecase"
	authUC "github.com/taskflow/backend/usecase/auth"
	commentUC "github.com/taskflow/backend/usecase/comment"
	notifyUC "github.com/taskflow/backend/usecase/notify"
	projectUC "github.com/taskflow/backend/usecase/project"
	taskUC "github.com/taskflow/backend/usecase/task"
	teamUC "github.com/taskflow/backend/usecase/team"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	if cfg.Migrations.Enabled {
		if err := pgInfra.RunMigrations(appCtx, cfg, zapLogger); err != nil {
			zapLogger.Fatal("migrations failed", zap.Error(err))
		}
	}

	pool, err := pgInfra.NewPool(appCtx, cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("postgres connection failed", zap.Error(err))
	}
	manager.Register("postgres", func(ctx context.Context) error {
		pool.Close()
		return nil
	})

	redisClient, err := redisInfra.NewClient(appCtx, cfg.Redis, cfg.AppName, zapLogger)
	if err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	manager.Register("redis", func(ctx context.Context) error {
		return redisClient.Close()
	})

	// Realtime: local hub fed by the shared Redis channel.
	hub := realtime.NewHub(cfg.Realtime.SubscriberBuffer, zapLogger.Named("realtime"))
	bridge := realtime.NewRedisBridge(redisClient, cfg.Realtime.Channel, hub, zapLogger.Named("realtime"))
	manager.Register("realtime_hub", func(ctx context.Context) error {
		hub.Close()
		return nil
	})
	manager.Go(appCtx, "realtime_bridge", bridge.Run)

	dispatcher := notifyUC.New(bridge, zapLogger.Named("notify"))
	var publisher usecase.EventPublisher = bridge
	if cfg.Realtime.Notifications {
		publisher = services.NewEventRelay(bridge, dispatcher, zapLogger)
	}

	userRepo := postgres.NewUserRepository(pool)
	teamRepo := postgres.NewTeamRepository(pool)
	projectRepo := postgres.NewProjectRepository(pool)
	taskRepo := postgres.NewTaskRepository(pool)
	commentRepo := postgres.NewCommentRepository(pool)
	sessionRepo := redisRepo.NewSessionRepository(redisClient, cfg.Auth.SessionTTL)

	bufferStore, err := buffer.Open(cfg.Buffer.Path, "")
	if err != nil {
		zapLogger.Fatal("failed to open buffer store", zap.Error(err))
	}
	manager.Register("buffer", func(ctx context.Context) error {
		return bufferStore.Close()
	})

	// The processor asks the monitor whether Postgres is up; the monitor
	// reports the processor's backlog.
	var mon *monitor.Monitor
	processor := services.NewBufferProcessor(
		bufferStore,
		services.HealthFunc(func() bool { return mon.IsOnline() }),
		services.ReplayTargets{
			Projects: projectRepo,
			Tasks:    taskRepo,
			Comments: commentRepo,
		},
		zapLogger,
		services.ProcessorConfig{
			Interval:   cfg.Buffer.SyncInterval,
			BatchSize:  50,
			MaxRetries: cfg.Buffer.MaxRetry,
			MaxAge:     time.Duration(cfg.Buffer.RetentionHours) * time.Hour,
		},
	)
	mon = monitor.New(monitor.Dependencies{
		Postgres: pool,
		Redis:    monitor.RedisPinger{Client: redisClient},
		Buffer:   processor,
		Realtime: hub,
	}, 10*time.Second, zapLogger)
	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	processor.Start()
	manager.Register("buffer_processor", func(ctx context.Context) error {
		processor.Stop(ctx)
		return nil
	})

	bufferBridge := services.NewBufferBridge(processor)
	signer := jwtauth.NewSigner(cfg.JWT.Secret, cfg.JWT.Issuer)

	authUseCase := authUC.New(userRepo, sessionRepo, signer, authUC.Config{
		SessionTTL: cfg.Auth.SessionTTL,
		BcryptCost: cfg.Auth.BcryptCost,
	}, zapLogger)
	teamUseCase := teamUC.New(teamRepo, userRepo, publisher, zapLogger)
	projectUseCase := projectUC.New(projectRepo, teamRepo, bufferBridge, publisher, zapLogger)
	taskUseCase := taskUC.New(taskRepo, projectUseCase, bufferBridge, publisher, zapLogger)
	commentUseCase := commentUC.New(commentRepo, taskRepo, projectUseCase, bufferBridge, publisher, zapLogger)

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Auth:     apiHandler.NewAuthHandler(authUseCase, signer, ctxAdapter, zapLogger),
		Project:  apiHandler.NewProjectHandler(projectUseCase, ctxAdapter, zapLogger),
		Task:     apiHandler.NewTaskHandler(taskUseCase, ctxAdapter, zapLogger),
		Comment:  apiHandler.NewCommentHandler(commentUseCase, ctxAdapter, zapLogger),
		Team:     apiHandler.NewTeamHandler(teamUseCase, ctxAdapter, zapLogger),
		Realtime: apiHandler.NewRealtimeHandler(hub, teamUseCase, cfg.Realtime.HeartbeatInterval, ctxAdapter, zapLogger),
		Function: apiHandler.NewFunctionHandler(dispatcher, cfg.Functions.Secret, ctxAdapter, zapLogger),
		Health:   apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
	}

	authMiddleware := middleware.JWTAuth(signer, authUseCase, zapLogger)
	r := router.New(handlers, authMiddleware, zapLogger)

	server := &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Concurrency:  cfg.HTTP.MaxConn,
		Name:         cfg.AppName,
	}

	manager.Go(appCtx, "http_server", func(ctx context.Context) error {
		zapLogger.Info("server started", zap.String("address", cfg.Address()))
		return server.ListenAndServe(cfg.Address())
	})
	manager.Register("http_server", func(ctx context.Context) error {
		return server.ShutdownWithContext(ctx)
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
