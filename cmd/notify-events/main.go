// Command notify-events serves the notification webhook on its own port.
// Notifications are published to the shared Redis realtime channel, so
// connected API instances deliver them to subscribers.
package main

import (
	"context"
	"log"
	"net/http"

	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/taskflow/backend/api/handler"
	"github.com/taskflow/backend/internal/config"
	redisInfra "github.com/taskflow/backend/internal/infrastructure/redis"
	"github.com/taskflow/backend/internal/realtime"
	"github.com/taskflow/backend/internal/services/lifecycle"
	"github.com/taskflow/backend/pkg/httpcontext"
	"github.com/taskflow/backend/pkg/logger"
	notifyUC "github.com/taskflow/backend/usecase/notify"
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

	redisClient, err := redisInfra.NewClient(appCtx, cfg.Redis, cfg.AppName+"-functions", zapLogger)
	if err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	manager.Register("redis", func(ctx context.Context) error {
		return redisClient.Close()
	})

	hub := realtime.NewHub(cfg.Realtime.SubscriberBuffer, zapLogger)
	bridge := realtime.NewRedisBridge(redisClient, cfg.Realtime.Channel, hub, zapLogger)
	dispatcher := notifyUC.New(bridge, zapLogger.Named("notify"))

	functions := apiHandler.NewFunctionHandler(dispatcher, cfg.Functions.Secret, httpcontext.NewAdapter(cfg.Context.RequestTimeout), zapLogger)

	r := router.New()
	r.GET("/health", func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(http.StatusOK)
		ctx.SetBodyString("ok")
	})
	r.POST("/", functions.NotifyEvents)
	r.POST("/api/v1/functions/notify-events", functions.NotifyEvents)

	server := &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Name:         cfg.AppName + "-notify-events",
	}

	manager.Go(appCtx, "http_server", func(ctx context.Context) error {
		zapLogger.Info("notify-events started", zap.String("address", cfg.FunctionsAddress()))
		return server.ListenAndServe(cfg.FunctionsAddress())
	})

	manager.Register("http_server", func(ctx context.Context) error {
		return server.ShutdownWithContext(ctx)
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
