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
	ErrResendRateLimited        = errors.New("resend rate limited")
	ErrResendLimiterUnavailable = errors.New("resend limiter unavailable")
)

// ResendConfig holds the code-resend budget: how many sends an identifier may
// trigger inside one cooldown window.
type ResendConfig struct {
	MaxSends int
	Cooldown time.Duration
}

// ResendLimiter throttles passcode and recovery-email resends per identifier.
type ResendLimiter struct {
	limiter *rate.Limiter
	config  ResendConfig
}

// NewResendLimiter creates a resend limiter backed by the given Redis client.
func NewResendLimiter(redisClient redis.UniversalClient, cfg ResendConfig) *ResendLimiter {
	return &ResendLimiter{
		limiter: rate.New(redisClient),
		config:  cfg,
	}
}

// CheckAndIncrement consumes one send slot for the identifier. Returns the
// remaining cooldown when the budget is exhausted.
func (l *ResendLimiter) CheckAndIncrement(ctx context.Context, identifier string) (time.Duration, error) {
	if l == nil {
		return 0, nil
	}

	res, err := l.limiter.CheckAndIncrement(ctx, resendKey(identifier), rate.Config{
		Limit:  l.config.MaxSends,
		Window: l.config.Cooldown,
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrResendLimiterUnavailable, err)
	}
	if !res.Allowed {
		return res.RetryAfter, ErrResendRateLimited
	}
	return 0, nil
}

// Reset clears the resend counter for the identifier.
func (l *ResendLimiter) Reset(ctx context.Context, identifier string) error {
	if l == nil {
		return nil
	}
	if err := l.limiter.Reset(ctx, resendKey(identifier)); err != nil {
		return fmt.Errorf("%w: %v", ErrResendLimiterUnavailable, err)
	}
	return nil
}

func resendKey(identifier string) string {
	return "grs:" + identifier
}
