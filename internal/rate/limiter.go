package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds fixed-window tuning parameters for one key namespace.
type Config struct {
	Limit  int
	Window time.Duration
}

// Result reports the outcome of a CheckAndIncrement call.
type Result struct {
	Allowed    bool
	Count      int64
	RetryAfter time.Duration
}

// Limiter enforces fixed-window counters in Redis. A single Limiter may be
// shared by any number of goroutines.
type Limiter struct {
	redis redis.UniversalClient
}

// checkAndIncrementLua performs INCR + first-hit EXPIRE + limit comparison in
// one atomic round-trip.
// KEYS[1] = counter key
// ARGV[1] = limit
// ARGV[2] = window in milliseconds
//
// Returns {count, pttlMs}; pttlMs is only meaningful when count > limit.
var checkAndIncrementLua = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('PEXPIRE', KEYS[1], tonumber(ARGV[2]))
end
local pttl = 0
if count > tonumber(ARGV[1]) then
  pttl = redis.call('PTTL', KEYS[1])
  if pttl < 0 then
    redis.call('PEXPIRE', KEYS[1], tonumber(ARGV[2]))
    pttl = tonumber(ARGV[2])
  end
end
return {count, pttl}
`)

// New creates a Limiter backed by the given Redis client.
func New(redisClient redis.UniversalClient) *Limiter {
	return &Limiter{redis: redisClient}
}

// CheckAndIncrement consumes one slot for key within the fixed window defined
// by cfg. When the window budget is exhausted the result carries the remaining
// cooldown until the window resets.
func (l *Limiter) CheckAndIncrement(ctx context.Context, key string, cfg Config) (Result, error) {
	raw, err := checkAndIncrementLua.Run(ctx, l.redis,
		[]string{key},
		cfg.Limit,
		cfg.Window.Milliseconds(),
	).Result()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) != 2 {
		return Result{}, fmt.Errorf("%w: unexpected lua result shape", ErrRedisUnavailable)
	}
	count, ok := values[0].(int64)
	if !ok {
		return Result{}, fmt.Errorf("%w: unexpected lua count type", ErrRedisUnavailable)
	}
	pttlMs, ok := values[1].(int64)
	if !ok {
		return Result{}, fmt.Errorf("%w: unexpected lua pttl type", ErrRedisUnavailable)
	}

	if count > int64(cfg.Limit) {
		return Result{
			Allowed:    false,
			Count:      count,
			RetryAfter: time.Duration(pttlMs) * time.Millisecond,
		}, nil
	}

	return Result{Allowed: true, Count: count}, nil
}

// Peek reports the current counter without consuming a slot. Missing keys
// return zero and do not reveal whether the key was ever used.
func (l *Limiter) Peek(ctx context.Context, key string) (int64, error) {
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return count, nil
}

// Reset clears the counters for the given keys. Called after a terminal
// success so the next flow starts with a fresh budget.
func (l *Limiter) Reset(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := l.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
