package store

import (
	"context"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// Locker serializes writers for one member across processes.
type Locker interface {
	Lock(ctx context.Context, userID string) (unlock func(), err error)
}

// NopLocker relies on the database alone.
type NopLocker struct{}

func (NopLocker) Lock(context.Context, string) (func(), error) { return func() {}, nil }

// RedisLocker holds a short-lived redis lock per member while a transaction runs.
type RedisLocker struct {
	client *redislock.Client
	ttl    time.Duration
	retry  redislock.RetryStrategy
}

func NewRedisLocker(rdb redis.UniversalClient, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		client: redislock.New(rdb),
		ttl:    ttl,
		retry:  redislock.LimitRetry(redislock.LinearBackoff(25*time.Millisecond), 40),
	}
}

func (l *RedisLocker) Lock(ctx context.Context, userID string) (func(), error) {
	lock, err := l.client.Obtain(ctx, lockKey(userID), l.ttl, &redislock.Options{RetryStrategy: l.retry})
	if err != nil {
		return nil, err
	}
	return func() {
		// release with a fresh context: the request context may already be done
		rctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = lock.Release(rctx)
	}, nil
}

func lockKey(userID string) string { return "guardian:lock:user:" + userID }
