package middleware

import (
	"context"
	"net/http"

	"github.com/guardian/gateway-sub002/session"
)

// Identity is the authenticated subject extracted from the session cookies.
type Identity struct {
	UserID string
	Email  string
}

type identityContextKey struct{}

// IdentityFromContext returns the identity attached by RequireSession.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok
}

// RequireSession rejects requests without a valid legacy session cookie and
// attaches the authenticated identity to the request context. Signature or
// expiry failures get a plain 401; the response never says which check
// failed.
func RequireSession(issuer *session.Issuer, cookieName string) func(http.Handler) http.Handler {
	if cookieName == "" {
		cookieName = session.DefaultLegacyCookieName
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if issuer == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			cookie, err := r.Cookie(cookieName)
			if err != nil || cookie.Value == "" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			userID, email, err := issuer.ParseLegacy(cookie.Value)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), identityContextKey{}, Identity{
				UserID: userID,
				Email:  email,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
