package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	appstock "github.com/reseller/backend/internal/application/stock"
	"github.com/reseller/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// NewProductLocker returns a Redis-backed locker when Redis is enabled and
// reachable, and a process-local one otherwise. The returned close
// function releases the Redis client.
func NewProductLocker(redisCfg config.RedisConfig, ledgerCfg config.LedgerConfig, log *zap.Logger) (appstock.ProductLocker, func() error, error) {
	if log == nil {
		log = zap.NewNop()
	}
	noop := func() error { return nil }
	if !redisCfg.Enabled {
		log.Info("redis disabled, using in-process product locks")
		return NewLocalProductLocker(), noop, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     redisCfg.Addr(),
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, noop, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("using redis product locks", zap.String("addr", redisCfg.Addr()))
	opts := Options{
		TTL:        ledgerCfg.LockTTL,
		Retry:      ledgerCfg.LockRetry,
		RetryCount: ledgerCfg.LockRetryCount,
	}
	return NewRedisProductLocker(client, opts, log), client.Close, nil
}

var (
	_ appstock.ProductLocker = (*RedisProductLocker)(nil)
	_ appstock.ProductLocker = (*LocalProductLocker)(nil)
)
