package gateway

import (
	"errors"
	"time"
)

// Config carries every policy knob the engine honors. Values not set by the
// caller fall back to the defaults in defaultConfig. Attempt counts and
// cooldowns are policy, not invariants; deployments tune them per product
// decision.
type Config struct {
	Passcode  PasscodeConfig
	RateLimit RateLimitConfig
	FlowState FlowStateConfig
	Session   SessionConfig
	Links     LinkConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
PASSCODE CONFIG
====================================
*/

// PasscodeConfig bounds email passcode challenges.
type PasscodeConfig struct {
	// MaxAttempts is the number of wrong submissions before a challenge
	// expires and the flow must restart.
	MaxAttempts int

	// ResendCooldown is the minimum gap between resends for one
	// identifier.
	ResendCooldown time.Duration

	// MaxResends caps resends within one cooldown window.
	MaxResends int

	// DecoyChallengeTTL bounds challenges fabricated for identifiers
	// with no account.
	DecoyChallengeTTL time.Duration

	// RedisPrefix namespaces challenge view keys.
	RedisPrefix string
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig configures the fixed-window attempt counters.
type RateLimitConfig struct {
	EnableIPThrottle bool

	SignInMaxAttempts int
	SignInWindow      time.Duration

	RegisterMaxAttempts int
	RegisterWindow      time.Duration

	ResetMaxAttempts int
	ResetWindow      time.Duration
}

// FlowStateConfig configures the encrypted client-held flow token.
type FlowStateConfig struct {
	// EncryptionKey must be 32 bytes.
	EncryptionKey []byte

	// Lifetime bounds how long a flow token stays decodable.
	Lifetime time.Duration
}

// SessionConfig configures the cookie bundle issued on completion.
type SessionConfig struct {
	// LegacySigningKey signs the legacy compatibility JWT.
	LegacySigningKey []byte

	TTL time.Duration

	PrimaryCookieName    string
	LegacyCookieName     string
	LastAccessCookieName string

	CookieDomain  string
	SecureCookies bool
}

// LinkConfig builds the token links embedded in outbound emails.
type LinkConfig struct {
	// BaseURL is the public origin of the gateway, without a trailing
	// slash.
	BaseURL string

	ActivationPath   string
	ResetPath        string
	VerificationPath string

	// ValidatedGroupName is the provider group whose membership stands
	// in for the email-validated flag on legacy records.
	ValidatedGroupName string
}

// AuditConfig configures async audit dispatch.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig configures the in-process counter registry.
type MetricsConfig struct {
	Enabled bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

func defaultConfig() Config {
	return Config{
		Passcode: PasscodeConfig{
			MaxAttempts:       5,
			ResendCooldown:    30 * time.Second,
			MaxResends:        5,
			DecoyChallengeTTL: 10 * time.Minute,
			RedisPrefix:       "gpc",
		},
		RateLimit: RateLimitConfig{
			EnableIPThrottle:    true,
			SignInMaxAttempts:   8,
			SignInWindow:        5 * time.Minute,
			RegisterMaxAttempts: 8,
			RegisterWindow:      5 * time.Minute,
			ResetMaxAttempts:    8,
			ResetWindow:         5 * time.Minute,
		},
		FlowState: FlowStateConfig{
			Lifetime: 30 * time.Minute,
		},
		Session: SessionConfig{
			TTL: 21 * 24 * time.Hour,
		},
		Links: LinkConfig{
			ActivationPath:     "/welcome",
			ResetPath:          "/reset-password",
			VerificationPath:   "/verify-email",
			ValidatedGroupName: "GuardianUser-EmailValidated",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.FlowState.EncryptionKey = cloneBytes(cfg.FlowState.EncryptionKey)
	out.Session.LegacySigningKey = cloneBytes(cfg.Session.LegacySigningKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	if c.Passcode.MaxAttempts <= 0 {
		return errors.New("Passcode MaxAttempts must be > 0")
	}
	if c.Passcode.ResendCooldown <= 0 {
		return errors.New("Passcode ResendCooldown must be > 0")
	}
	if c.Passcode.MaxResends <= 0 {
		return errors.New("Passcode MaxResends must be > 0")
	}
	if c.Passcode.DecoyChallengeTTL <= 0 {
		return errors.New("Passcode DecoyChallengeTTL must be > 0")
	}

	if c.RateLimit.SignInMaxAttempts <= 0 {
		return errors.New("RateLimit SignInMaxAttempts must be > 0")
	}
	if c.RateLimit.SignInWindow <= 0 {
		return errors.New("RateLimit SignInWindow must be > 0")
	}
	if c.RateLimit.RegisterMaxAttempts <= 0 {
		return errors.New("RateLimit RegisterMaxAttempts must be > 0")
	}
	if c.RateLimit.RegisterWindow <= 0 {
		return errors.New("RateLimit RegisterWindow must be > 0")
	}
	if c.RateLimit.ResetMaxAttempts <= 0 {
		return errors.New("RateLimit ResetMaxAttempts must be > 0")
	}
	if c.RateLimit.ResetWindow <= 0 {
		return errors.New("RateLimit ResetWindow must be > 0")
	}

	if len(c.FlowState.EncryptionKey) != 32 {
		return errors.New("FlowState EncryptionKey must be 32 bytes")
	}
	if c.FlowState.Lifetime <= 0 {
		return errors.New("FlowState Lifetime must be > 0")
	}

	if len(c.Session.LegacySigningKey) == 0 {
		return errors.New("Session LegacySigningKey is required")
	}
	if c.Session.TTL <= 0 {
		return errors.New("Session TTL must be > 0")
	}

	if c.Links.BaseURL == "" {
		return errors.New("Links BaseURL is required")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}
