package ratelimit

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/tech-arch1tect/backyard/config"
	"github.com/tech-arch1tect/backyard/services/logging"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Options(
	fx.Provide(ProvideRateLimitStore),
)

// NewStore selects the store named by RATE_LIMIT_STORE.
func NewStore(cfg *config.RateLimitConfig) (Store, error) {
	switch strings.ToLower(cfg.Store) {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		return NewRedisStore(redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
			DB:   cfg.RedisDB,
		})), nil
	default:
		return nil, fmt.Errorf("unknown rate limit store %q", cfg.Store)
	}
}

func ProvideRateLimitStore(lc fx.Lifecycle, cfg *config.Config, logger *logging.Service) (Store, error) {
	store, err := NewStore(&cfg.RateLimit)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if rs, ok := store.(*RedisStore); ok {
				if err := rs.client.Ping(ctx).Err(); err != nil {
					logger.Warn("rate limit redis unreachable, requests will not be limited", zap.Error(err))
				}
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if closer, ok := store.(io.Closer); ok {
				return closer.Close()
			}
			return nil
		},
	})

	return store, nil
}
