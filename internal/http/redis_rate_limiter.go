package httpx

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix   = "dashboard:ratelimit:"
	redisCallTimeout = 250 * time.Millisecond
)

// redisRateLimiter counts hits in fixed windows aligned to the epoch, so
// every API replica agrees on when a window starts and ends.
type redisRateLimiter struct {
	client  *redis.Client
	logger  *slog.Logger
	prefix  string
	timeout time.Duration
	now     func() time.Time
}

// NewRedisRateLimiter connects to Redis and returns a limiter shared by every
// API replica. Once running, Redis errors fail open.
func NewRedisRateLimiter(addr, password string, db int, logger *slog.Logger) (RateLimiter, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping rate limit redis %s: %w", addr, err)
	}
	return newRedisRateLimiter(client, logger), nil
}

func newRedisRateLimiter(client *redis.Client, logger *slog.Logger) *redisRateLimiter {
	return &redisRateLimiter{
		client:  client,
		logger:  logger,
		prefix:  redisKeyPrefix,
		timeout: redisCallTimeout,
		now:     time.Now,
	}
}

// windowFor returns the index of the window containing at and its end.
func windowFor(at time.Time, window time.Duration) (int64, time.Time) {
	idx := at.UnixNano() / int64(window)
	return idx, time.Unix(0, (idx+1)*int64(window))
}

func (rl *redisRateLimiter) Allow(key string, limit int, window time.Duration) rateDecision {
	if limit <= 0 {
		return rateDecision{allowed: true}
	}
	if window <= 0 {
		window = rateWindowDefault
	}
	idx, end := windowFor(rl.now(), window)
	redisKey := fmt.Sprintf("%s%s:%d", rl.prefix, key, idx)

	ctx, cancel := context.WithTimeout(context.Background(), rl.timeout)
	defer cancel()
	var hits *redis.IntCmd
	_, err := rl.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		hits = pipe.Incr(ctx, redisKey)
		pipe.ExpireNX(ctx, redisKey, window)
		return nil
	})
	if err != nil {
		rl.logger.Error("rate limit redis unavailable, allowing request", "key", key, "error", err)
		return rateDecision{allowed: true, windowEnd: end}
	}
	count := int(hits.Val())
	return rateDecision{allowed: count <= limit, count: count, windowEnd: end}
}

func (rl *redisRateLimiter) Close() {
	if rl.client != nil {
		_ = rl.client.Close()
	}
}
