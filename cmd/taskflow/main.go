package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/taskflow/backend/internal/cli"
	"github.com/taskflow/backend/pkg/logger"
)

func main() {
	level := os.Getenv("TASKFLOW_LOG_LEVEL")
	if level == "" {
		level = "warn"
	}
	zapLogger, err := logger.New(logger.Config{
		Level:    level,
		Encoding: "console",
		Output:   os.Stderr,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := cli.Run(ctx, cli.NewApp(zapLogger), os.Args[1:])
	stop()
	_ = zapLogger.Sync()
	os.Exit(code)
}
