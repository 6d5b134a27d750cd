// Package lock serialises stock mutations per product across requests.
package lock

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/reseller/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// Options configures lease and retry behaviour
type Options struct {
	TTL        time.Duration
	Retry      time.Duration
	RetryCount int
}

// DefaultOptions matches the default ledger configuration
func DefaultOptions() Options {
	return Options{TTL: 30 * time.Second, Retry: 100 * time.Millisecond, RetryCount: 50}
}

// RedisProductLocker takes one redislock lease per key, so every replica
// sharing the Redis instance sees the same locks.
type RedisProductLocker struct {
	client *redislock.Client
	opts   Options
	logger *zap.Logger
}

// NewRedisProductLocker creates a locker on top of an existing client
func NewRedisProductLocker(client redis.UniversalClient, opts Options, log *zap.Logger) *RedisProductLocker {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisProductLocker{
		client: redislock.New(client),
		opts:   opts,
		logger: log,
	}
}

// Lock obtains every key in sorted order. If any key cannot be obtained
// within the retry budget the keys already held are released and
// shared.ErrConcurrencyConflict is returned.
func (l *RedisProductLocker) Lock(ctx context.Context, keys ...string) (func(), error) {
	keys = sortedKeys(keys)
	if len(keys) == 0 {
		return func() {}, nil
	}

	held := make([]*redislock.Lock, 0, len(keys))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			// The request context may already be done when unlocking.
			if err := held[i].Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				l.logger.Warn("failed to release product lock",
					zap.String("key", held[i].Key()),
					zap.Error(err),
				)
			}
		}
	}

	for _, key := range keys {
		lk, err := l.client.Obtain(ctx, key, l.opts.TTL, &redislock.Options{
			RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(l.opts.Retry), l.opts.RetryCount),
		})
		if err != nil {
			release()
			if errors.Is(err, redislock.ErrNotObtained) {
				l.logger.Warn("product lock not obtained", zap.String("key", key))
				return nil, shared.ErrConcurrencyConflict.WithDetails(map[string]any{"lock": key})
			}
			return nil, fmt.Errorf("obtain lock %s: %w", key, err)
		}
		held = append(held, lk)
	}
	return release, nil
}

func sortedKeys(keys []string) []string {
	out := slices.Clone(keys)
	slices.Sort(out)
	return slices.Compact(out)
}
