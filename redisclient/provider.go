// Package redisclient opens the shared go-redis client used by the Redis
// refresh token store.
package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tech-arch1tect/tokenguard/config"
	"github.com/tech-arch1tect/tokenguard/services/logging"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const pingTimeout = 5 * time.Second

func ProvideClient(cfg *config.Config, logger *logging.Service) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		if logger != nil {
			logger.Error("failed to connect to redis",
				zap.String("addr", cfg.Redis.Addr),
				zap.Error(err))
		}
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if logger != nil {
		logger.Info("redis connected",
			zap.String("addr", cfg.Redis.Addr),
			zap.Int("db", cfg.Redis.DB))
	}

	return client, nil
}

func registerClose(lc fx.Lifecycle, client *redis.Client) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
}

var Module = fx.Options(
	fx.Provide(ProvideClient),
	fx.Invoke(registerClose),
)
