package gateway

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestAsRateLimited(t *testing.T) {
	rl := &RateLimitedError{RetryAfter: 42 * time.Second}

	if !errors.Is(rl, ErrRateLimited) {
		t.Error("RateLimitedError does not unwrap to ErrRateLimited")
	}

	retry, ok := AsRateLimited(rl)
	if !ok || retry != 42*time.Second {
		t.Errorf("AsRateLimited = (%v, %v)", retry, ok)
	}

	retry, ok = AsRateLimited(fmt.Errorf("sign-in: %w", rl))
	if !ok || retry != 42*time.Second {
		t.Errorf("wrapped AsRateLimited = (%v, %v)", retry, ok)
	}

	retry, ok = AsRateLimited(ErrRateLimited)
	if !ok || retry != 0 {
		t.Errorf("bare sentinel AsRateLimited = (%v, %v)", retry, ok)
	}

	if _, ok := AsRateLimited(ErrInvalidCredential); ok {
		t.Error("unrelated error reported as rate limited")
	}
	if _, ok := AsRateLimited(nil); ok {
		t.Error("nil error reported as rate limited")
	}
}
