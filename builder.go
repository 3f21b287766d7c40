package gateway

import (
	"errors"
	"time"

	"github.com/guardian/gateway-sub002/flowstate"
	"github.com/guardian/gateway-sub002/internal/flows"
	"github.com/guardian/gateway-sub002/internal/limiters"
	"github.com/guardian/gateway-sub002/internal/stores"
	"github.com/guardian/gateway-sub002/mailer"
	"github.com/guardian/gateway-sub002/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. Configure it, then call Build exactly once;
// Build validates the configuration and fails fast on anything the engine
// cannot run with.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	identity IdentityClient
	accounts AccountClient

	csrf      CSRFVerifier
	sender    mailer.Sender
	auditSink AuditSink

	clock func() time.Time

	built bool
}

// New returns a Builder preloaded with defaults.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client backing rate limiters and challenge views.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithIdentityClient sets the identity-provider protocol client.
func (b *Builder) WithIdentityClient(c IdentityClient) *Builder {
	b.identity = c
	return b
}

// WithAccountClient sets the legacy account API client.
func (b *Builder) WithAccountClient(c AccountClient) *Builder {
	b.accounts = c
	return b
}

// WithCSRFVerifier sets the per-form token verifier. Without one, CSRF checks
// are skipped; production deployments always set it.
func (b *Builder) WithCSRFVerifier(v CSRFVerifier) *Builder {
	b.csrf = v
	return b
}

// WithMailSender sets the outbound email transport.
func (b *Builder) WithMailSender(s mailer.Sender) *Builder {
	b.sender = s
	return b
}

// WithAuditSink sets the destination for audit events and enables dispatch.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = sink != nil
	return b
}

// WithMetricsEnabled toggles the counter registry.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithClock overrides time.Now for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.identity == nil {
		return nil, errors.New("identity client required")
	}
	if b.accounts == nil {
		return nil, errors.New("account client required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	codec, err := flowstate.New(cfg.FlowState.EncryptionKey, cfg.FlowState.Lifetime, flowstate.WithClock(clock))
	if err != nil {
		return nil, err
	}

	issuer, err := session.NewIssuer(session.IssuerConfig{
		LegacySigningKey:     cfg.Session.LegacySigningKey,
		TTL:                  cfg.Session.TTL,
		PrimaryCookieName:    cfg.Session.PrimaryCookieName,
		LegacyCookieName:     cfg.Session.LegacyCookieName,
		LastAccessCookieName: cfg.Session.LastAccessCookieName,
		Clock:                clock,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:   cfg,
		identity: b.identity,
		accounts: b.accounts,
		codec:    codec,
		issuer:   issuer,
		csrf:     b.csrf,
		clock:    clock,
	}

	engine.signInLimiter = limiters.NewSignInLimiter(b.redis, limiters.SignInConfig{
		EnableIPThrottle: cfg.RateLimit.EnableIPThrottle,
		MaxAttempts:      cfg.RateLimit.SignInMaxAttempts,
		Window:           cfg.RateLimit.SignInWindow,
	})
	engine.resendLimiter = limiters.NewResendLimiter(b.redis, limiters.ResendConfig{
		MaxSends: cfg.Passcode.MaxResends,
		Cooldown: cfg.Passcode.ResendCooldown,
	})
	engine.registerLimiter = newRegistrationLimiter(b.redis, cfg.RateLimit)
	engine.resetLimiter = newPasswordResetLimiter(b.redis, cfg.RateLimit)
	engine.passcodeStore = stores.NewPasscodeStore(b.redis, cfg.Passcode.RedisPrefix)

	if b.sender != nil {
		engine.mail = mailer.New(b.sender)
	}

	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)

	engine.flows = flows.New(engine.buildFlowDeps())

	b.built = true
	return engine, nil
}
