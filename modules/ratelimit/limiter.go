// Package ratelimit throttles abusive clients with a Redis sliding window.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds the limit applied to each client.
type Config struct {
	RequestsPerWindow int
	Window            time.Duration
}

// DefaultConfig allows 20 requests per minute.
func DefaultConfig() Config {
	return Config{RequestsPerWindow: 20, Window: time.Minute}
}

// Result is the outcome of one rate limit check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Limiter decides whether a request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (*Result, error)
}

// slidingWindow trims entries older than the window, then admits the request
// if fewer than limit remain. Returns {allowed, remaining, retry_after_ms}.
var slidingWindow = redis.NewScript(`
	local key = KEYS[1]
	local counter_key = KEYS[2]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local window_ms = tonumber(ARGV[4])

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)
	local count = redis.call('ZCARD', key)

	if count < limit then
		local counter = redis.call('INCR', counter_key)
		redis.call('ZADD', key, now, now .. ':' .. counter)
		redis.call('PEXPIRE', key, window_ms)
		redis.call('PEXPIRE', counter_key, window_ms)
		return {1, limit - count - 1, 0}
	end

	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	local retry_after = 0
	if #oldest >= 2 then
		retry_after = oldest[2] + window_ms - now
	end
	return {0, 0, retry_after}
`)

// SlidingWindowLimiter implements Limiter over a Redis sorted set per key.
type SlidingWindowLimiter struct {
	client *redis.Client
	config Config
	prefix string
	now    func() time.Time
}

// NewSlidingWindowLimiter creates a limiter storing keys under prefix.
func NewSlidingWindowLimiter(client *redis.Client, config Config, prefix string) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{client: client, config: config, prefix: prefix, now: time.Now}
}

// Allow records the request if it fits in the window.
func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	now := l.now()
	redisKey := l.prefix + key

	out, err := slidingWindow.Run(ctx, l.client, []string{redisKey, redisKey + ":counter"},
		now.UnixMilli(),
		now.Add(-l.config.Window).UnixMilli(),
		l.config.RequestsPerWindow,
		l.config.Window.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("failed to run rate limit script: %w", err)
	}
	if len(out) < 3 {
		return nil, fmt.Errorf("unexpected rate limit result length: %d", len(out))
	}

	res := &Result{
		Allowed:   out[0] == 1,
		Limit:     l.config.RequestsPerWindow,
		Remaining: int(out[1]),
		ResetAt:   now.Add(l.config.Window),
	}
	if !res.Allowed && out[2] > 0 {
		res.RetryAfter = time.Duration(out[2]) * time.Millisecond
		res.ResetAt = now.Add(res.RetryAfter)
	}
	return res, nil
}

// Count returns how many requests key made in the current window.
func (l *SlidingWindowLimiter) Count(ctx context.Context, key string) (int64, error) {
	start := l.now().Add(-l.config.Window).UnixMilli()
	n, err := l.client.ZCount(ctx, l.prefix+key, fmt.Sprint(start), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count requests: %w", err)
	}
	return n, nil
}
