package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const redisKeyPrefix = "blog:ratelimit:"

// RedisLimiter is a fixed window counter shared by every instance using the
// same Redis. Redis errors let the request through.
type RedisLimiter struct {
	client  *redis.Client
	log     logrus.FieldLogger
	timeout time.Duration
}

// DialRedis connects and pings Redis before returning a limiter.
func DialRedis(ctx context.Context, addr, password string, db int, log logrus.FieldLogger) (*RedisLimiter, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisLimiter(client, log), nil
}

func NewRedisLimiter(client *redis.Client, log logrus.FieldLogger) *RedisLimiter {
	return &RedisLimiter{client: client, log: log, timeout: 250 * time.Millisecond}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) Decision {
	if limit <= 0 {
		return Decision{Allowed: true}
	}
	if window <= 0 {
		window = time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	redisKey := redisKeyPrefix + key
	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		l.log.WithError(err).WithField("key", key).Error("redis rate limiter error")
		return Decision{Allowed: true}
	}
	if count == 1 {
		if err := l.client.Expire(ctx, redisKey, window).Err(); err != nil {
			l.log.WithError(err).WithField("key", key).Error("redis rate limiter error")
		}
	}
	retry, err := l.client.PTTL(ctx, redisKey).Result()
	if err != nil || retry <= 0 {
		retry = window
	}

	if int(count) > limit {
		return Decision{Allowed: false, RetryAfter: retry}
	}
	return Decision{Allowed: true, Remaining: limit - int(count)}
}

func (l *RedisLimiter) Close() error {
	return l.client.Close()
}

var _ Limiter = (*RedisLimiter)(nil)
