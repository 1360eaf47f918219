package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/diewo77/go-garage/internal/logger"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "garage:lock:"

// RedisLocker holds locks in Redis so several server instances share them.
type RedisLocker struct {
	client  *redislock.Client
	ttl     time.Duration
	backoff time.Duration
}

// NewRedisLocker wraps an existing client. ttl bounds how long a crashed holder
// can block others.
func NewRedisLocker(rdb redis.UniversalClient, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisLocker{client: redislock.New(rdb), ttl: ttl, backoff: 50 * time.Millisecond}
}

// Lock retries with linear backoff until obtained or ctx is done. Without a
// deadline on ctx the wait is bounded by the lock TTL.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.ttl)
		defer cancel()
	}
	lk, err := l.client.Obtain(ctx, redisKeyPrefix+key, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(l.backoff),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", ErrNotObtained, key)
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}
	return func() {
		// release on a fresh context: the request context may already be cancelled
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := lk.Release(rctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			logger.Warn(rctx).Err(err).Str("key", key).Msg("release lock")
		}
	}, nil
}

// Connect returns a RedisLocker when addr is set, otherwise a LocalLocker.
// The returned close func releases the Redis connection.
func Connect(ctx context.Context, addr string, ttl time.Duration) (Locker, func() error, error) {
	if addr == "" {
		return NewLocalLocker(), func() error { return nil }, nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	var err error
	for attempt := 1; attempt <= 5; attempt++ {
		if err = rdb.Ping(ctx).Err(); err == nil {
			logger.Info(ctx).Str("addr", addr).Int("attempt", attempt).Msg("connected to redis")
			return NewRedisLocker(rdb, ttl), rdb.Close, nil
		}
		logger.Warn(ctx).Err(err).Int("attempt", attempt).Msg("redis ping failed; retrying")
		select {
		case <-ctx.Done():
			_ = rdb.Close()
			return nil, nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * time.Second):
		}
	}
	_ = rdb.Close()
	return nil, nil, fmt.Errorf("connect redis %s: %w", addr, err)
}
