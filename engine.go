package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/guardian/gateway-sub002/flowstate"
	"github.com/guardian/gateway-sub002/idapi"
	"github.com/guardian/gateway-sub002/idx"
	"github.com/guardian/gateway-sub002/internal/flows"
	"github.com/guardian/gateway-sub002/internal/limiters"
	"github.com/guardian/gateway-sub002/internal/stores"
	"github.com/guardian/gateway-sub002/mailer"
	"github.com/guardian/gateway-sub002/session"
)

// Engine drives the identity flows. Build one with [Builder.Build] at
// startup; a built Engine is immutable and safe for concurrent use.
type Engine struct {
	config Config

	identity IdentityClient
	accounts AccountClient

	flows  flows.Service
	codec  *flowstate.Codec
	issuer *session.Issuer

	signInLimiter   *limiters.SignInLimiter
	resendLimiter   *limiters.ResendLimiter
	registerLimiter *registrationLimiter
	resetLimiter    *passwordResetLimiter

	passcodeStore *stores.PasscodeStore

	csrf CSRFVerifier
	mail *mailer.Mailer

	audit   *auditDispatcher
	metrics *Metrics

	clock func() time.Time
}

// Close releases background resources, draining any buffered audit events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded because the
// dispatch buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot copies the current counter values.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) now() time.Time {
	if e != nil && e.clock != nil {
		return e.clock()
	}
	return time.Now()
}

// verifyCSRF rejects the request before any flow logic when a verifier is
// configured and the form token does not check out.
func (e *Engine) verifyCSRF(ctx context.Context, formToken string) error {
	if e.csrf == nil {
		return nil
	}
	if err := e.csrf.Verify(ctx, formToken); err != nil {
		return fmt.Errorf("%w: %v", ErrCSRFRejected, err)
	}
	return nil
}

// decodeFlowState opens the client-held flow token. Any decode failure is a
// client integrity problem: the caller clears the cookie and restarts.
func (e *Engine) decodeFlowState(ctx context.Context, value string) (*flowstate.Token, error) {
	if e.codec == nil {
		return nil, ErrEngineNotReady
	}
	token, err := e.codec.Decode(value)
	if err != nil {
		e.metricInc(MetricFlowStateRejected)
		e.emitAudit(ctx, auditEventFlowStateRejected, false, "", err, nil)
		return nil, ErrClientIntegrity
	}
	return token, nil
}

// encodeFlowState seals the next flow token and reports its client-side
// expiry.
func (e *Engine) encodeFlowState(stateHandle, email string, step Step, handleExpiry int64) (string, time.Time, error) {
	if e.codec == nil {
		return "", time.Time{}, ErrEngineNotReady
	}
	value, err := e.codec.Encode(flowstate.Token{
		StateHandle:  stateHandle,
		HandleExpiry: handleExpiry,
		Email:        email,
		Step:         uint8(step),
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return value, e.now().Add(e.config.FlowState.Lifetime), nil
}

// mapFlowError collapses backend error details into the public taxonomy.
// Provider specifics never cross this boundary.
func (e *Engine) mapFlowError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrInvalidCredential),
		errors.Is(err, ErrExpiredChallenge),
		errors.Is(err, ErrRateLimited),
		errors.Is(err, ErrReconciliationFailed),
		errors.Is(err, ErrClientIntegrity),
		errors.Is(err, ErrCSRFRejected),
		errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrEngineNotReady):
		return err
	case errors.Is(err, idx.ErrInvalidCredential):
		return ErrInvalidCredential
	case errors.Is(err, idx.ErrInvalidHandle), errors.Is(err, idapi.ErrInvalidToken):
		return ErrExpiredChallenge
	default:
		e.metricInc(MetricProviderUnavailable)
		log.Print("gateway: backend failure: ", err)
		return ErrProviderUnavailable
	}
}
