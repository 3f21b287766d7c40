package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/guardian/gateway-sub002/internal/rate"
	"github.com/redis/go-redis/v9"
)

var errResetLimiterUnavailable = errors.New("reset limiter unavailable")

type passwordResetLimiter struct {
	limiter *rate.Limiter
	config  RateLimitConfig
}

func newPasswordResetLimiter(redisClient redis.UniversalClient, cfg RateLimitConfig) *passwordResetLimiter {
	return &passwordResetLimiter{
		limiter: rate.New(redisClient),
		config:  cfg,
	}
}

// CheckRequest consumes one reset-request slot for the identifier and,
// optionally, the client IP.
func (l *passwordResetLimiter) CheckRequest(ctx context.Context, identifier, ip string) error {
	cfg := rate.Config{Limit: l.config.ResetMaxAttempts, Window: l.config.ResetWindow}

	if err := l.enforce(ctx, resetIdentifierKey(identifier), cfg); err != nil {
		return err
	}
	if l.config.EnableIPThrottle && ip != "" {
		if err := l.enforce(ctx, resetIPKey(ip), cfg); err != nil {
			return err
		}
	}
	return nil
}

func (l *passwordResetLimiter) enforce(ctx context.Context, key string, cfg rate.Config) error {
	res, err := l.limiter.CheckAndIncrement(ctx, key, cfg)
	if err != nil {
		return fmt.Errorf("%w: %v", errResetLimiterUnavailable, err)
	}
	if !res.Allowed {
		return &RateLimitedError{RetryAfter: res.RetryAfter}
	}
	return nil
}

func resetIdentifierKey(identifier string) string {
	return "grr:" + identifier
}

func resetIPKey(ip string) string {
	return "grrip:" + ip
}
