package redis

import (
	"context"
	"time"

	goRedis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/taskflow/backend/internal/config"
)

// NewClient connects to Redis and pings it once. The client backs both the
// session store and the realtime pub/sub bridge, so its name shows up in
// CLIENT LIST as the service name.
func NewClient(ctx context.Context, cfg config.RedisConfig, name string, logger *zap.Logger) (*goRedis.Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts, err := options(cfg, name)
	if err != nil {
		return nil, err
	}

	client := goRedis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	logger.Info("connected to redis", zap.String("addr", opts.Addr), zap.Int("db", opts.DB))
	return client, nil
}

func options(cfg config.RedisConfig, name string) (*goRedis.Options, error) {
	opts, err := goRedis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}
	if opts.ClientName == "" {
		opts.ClientName = name
	}
	opts.ConnMaxIdleTime = 5 * time.Minute
	return opts, nil
}
