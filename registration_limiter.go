package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/guardian/gateway-sub002/internal/rate"
	"github.com/redis/go-redis/v9"
)

var errRegistrationLimiterUnavailable = errors.New("registration limiter unavailable")

type registrationLimiter struct {
	limiter *rate.Limiter
	config  RateLimitConfig
}

func newRegistrationLimiter(redisClient redis.UniversalClient, cfg RateLimitConfig) *registrationLimiter {
	return &registrationLimiter{
		limiter: rate.New(redisClient),
		config:  cfg,
	}
}

// Enforce consumes one registration slot for the identifier and, optionally,
// the client IP.
func (l *registrationLimiter) Enforce(ctx context.Context, identifier, ip string) error {
	cfg := rate.Config{Limit: l.config.RegisterMaxAttempts, Window: l.config.RegisterWindow}

	if err := l.enforce(ctx, registrationIdentifierKey(identifier), cfg); err != nil {
		return err
	}
	if l.config.EnableIPThrottle && ip != "" {
		if err := l.enforce(ctx, registrationIPKey(ip), cfg); err != nil {
			return err
		}
	}
	return nil
}

func (l *registrationLimiter) enforce(ctx context.Context, key string, cfg rate.Config) error {
	res, err := l.limiter.CheckAndIncrement(ctx, key, cfg)
	if err != nil {
		return fmt.Errorf("%w: %v", errRegistrationLimiterUnavailable, err)
	}
	if !res.Allowed {
		return &RateLimitedError{RetryAfter: res.RetryAfter}
	}
	return nil
}

func registrationIdentifierKey(identifier string) string {
	return "gre:" + identifier
}

func registrationIPKey(ip string) string {
	return "greip:" + ip
}
