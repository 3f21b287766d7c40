package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
	gateway "github.com/guardian/gateway-sub002"
)

// RequestMeta attaches the client IP and a correlation ID to the request
// context so engine operations can rate limit per IP and join audit events
// with upstream request logs. An inbound X-Correlation-Id is honored;
// otherwise one is minted.
func RequestMeta(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := gateway.WithClientIP(r.Context(), clientIP(r))

		correlationID := r.Header.Get("X-Correlation-Id")
		if correlationID == "" {
			correlationID = uuid.NewString()
		}
		ctx = gateway.WithCorrelationID(ctx, correlationID)
		w.Header().Set("X-Correlation-Id", correlationID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// clientIP prefers the first hop of X-Forwarded-For, falling back to the
// socket address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first := fwd
		if idx := strings.IndexByte(fwd, ','); idx >= 0 {
			first = fwd[:idx]
		}
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
