package gateway

import (
	"context"
	"log"

	"github.com/guardian/gateway-sub002/session"
)

// completeSession turns a provider session token into the cookie bundle a
// finished flow hands back to the client.
func (e *Engine) completeSession(ctx context.Context, sessionToken, userID, email string) (*StepResult, error) {
	set, err := e.issuer.Issue(sessionToken, userID, email)
	if err != nil {
		return nil, e.mapFlowError(err)
	}
	e.metricInc(MetricSessionIssued)
	e.emitAudit(ctx, auditEventSessionIssued, true, userID, nil, nil)
	return &StepResult{
		Step:    StepComplete,
		Cookies: &set,
		Email:   email,
	}, nil
}

// RefreshSession extends an existing session. The primary cookie is reissued
// with the refreshed provider token and a strictly later expiry, the legacy
// cookie is re-signed later-dated, and the last-access cookie comes back
// byte-identical.
func (e *Engine) RefreshSession(ctx context.Context, prev session.CookieSet) (*session.CookieSet, error) {
	if e == nil || e.identity == nil || e.issuer == nil {
		return nil, ErrEngineNotReady
	}

	resp, err := e.identity.RefreshSession(ctx, prev.Primary.Value)
	if err != nil {
		return nil, e.mapFlowError(err)
	}

	// Identity claims for the legacy cookie come from the previous legacy
	// cookie itself; an unreadable one falls back to anonymous claims.
	userID, email, err := e.issuer.ParseLegacy(prev.Legacy.Value)
	if err != nil {
		log.Print("gateway: refresh: unreadable legacy cookie: ", err)
	}

	set, err := e.issuer.Refresh(prev, resp.Token, userID, email)
	if err != nil {
		return nil, e.mapFlowError(err)
	}

	e.metricInc(MetricSessionRefreshed)
	e.emitAudit(ctx, auditEventSessionRefreshed, true, userID, nil, nil)
	return &set, nil
}

// SignOut clears the session cookie set on this client. The provider session
// itself stays alive for other clients; use SignOutGlobal to revoke it.
func (e *Engine) SignOut(ctx context.Context) []session.Cookie {
	if e == nil || e.issuer == nil {
		return nil
	}
	e.metricInc(MetricSignOut)
	e.emitAudit(ctx, auditEventSignOut, true, "", nil, nil)
	return e.issuer.SignOutSet()
}

// SignOutGlobal revokes the provider session and clears the cookie set. A
// session the provider no longer knows about is not an error; the cookies are
// cleared regardless.
func (e *Engine) SignOutGlobal(ctx context.Context, sessionToken string) ([]session.Cookie, error) {
	if e == nil || e.identity == nil || e.issuer == nil {
		return nil, ErrEngineNotReady
	}

	if sessionToken != "" {
		if err := e.identity.CloseSession(ctx, sessionToken); err != nil {
			e.metricInc(MetricProviderUnavailable)
			e.emitAudit(ctx, auditEventSignOut, false, "", err, nil)
			return e.issuer.SignOutSet(), e.mapFlowError(err)
		}
	}

	e.metricInc(MetricSignOut)
	e.emitAudit(ctx, auditEventSignOut, true, "", nil, func() map[string]string {
		return map[string]string{"global": "true"}
	})
	return e.issuer.SignOutSet(), nil
}
