package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/guardian/gateway-sub002/internal/rate"
	"github.com/redis/go-redis/v9"
)

var (
	ErrSignInRateLimited        = errors.New("sign-in rate limited")
	ErrSignInLimiterUnavailable = errors.New("sign-in limiter unavailable")
)

// SignInConfig holds the credential-check attempt budget.
type SignInConfig struct {
	EnableIPThrottle bool
	MaxAttempts      int
	Window           time.Duration
}

// SignInLimiter throttles credential-check attempts per identifier and,
// optionally, per client IP.
type SignInLimiter struct {
	limiter *rate.Limiter
	config  SignInConfig
}

// NewSignInLimiter creates a sign-in limiter backed by the given Redis client.
func NewSignInLimiter(redisClient redis.UniversalClient, cfg SignInConfig) *SignInLimiter {
	return &SignInLimiter{
		limiter: rate.New(redisClient),
		config:  cfg,
	}
}

// CheckAndIncrement consumes one attempt slot for the identifier+IP pair.
// Returns the remaining cooldown when the budget is exhausted.
func (l *SignInLimiter) CheckAndIncrement(ctx context.Context, identifier, ip string) (time.Duration, error) {
	if l == nil {
		return 0, nil
	}

	cfg := rate.Config{Limit: l.config.MaxAttempts, Window: l.config.Window}

	res, err := l.limiter.CheckAndIncrement(ctx, signInIdentifierKey(identifier), cfg)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSignInLimiterUnavailable, err)
	}
	if !res.Allowed {
		return res.RetryAfter, ErrSignInRateLimited
	}

	if l.config.EnableIPThrottle && ip != "" {
		res, err = l.limiter.CheckAndIncrement(ctx, signInIPKey(ip), cfg)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrSignInLimiterUnavailable, err)
		}
		if !res.Allowed {
			return res.RetryAfter, ErrSignInRateLimited
		}
	}

	return 0, nil
}

// Reset clears the attempt counters for the identifier+IP pair. Called after
// a terminal flow success.
func (l *SignInLimiter) Reset(ctx context.Context, identifier, ip string) error {
	if l == nil {
		return nil
	}

	keys := []string{signInIdentifierKey(identifier)}
	if l.config.EnableIPThrottle && ip != "" {
		keys = append(keys, signInIPKey(ip))
	}

	if err := l.limiter.Reset(ctx, keys...); err != nil {
		return fmt.Errorf("%w: %v", ErrSignInLimiterUnavailable, err)
	}
	return nil
}

func signInIdentifierKey(identifier string) string {
	return "gsi:" + identifier
}

func signInIPKey(ip string) string {
	return "gsip:" + ip
}
