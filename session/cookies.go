package session

import (
	"net/http"
	"time"
)

// Default cookie names. They can be overridden per deployment via
// [IssuerConfig].
const (
	DefaultPrimaryCookieName    = "GW_SESSION"
	DefaultLegacyCookieName     = "GW_U"
	DefaultLastAccessCookieName = "gw.access"
)

// Cookie is a single cookie to be written by the presentation layer. The
// value and expiry are fixed at issue time so two Cookie values can be
// compared field by field.
type Cookie struct {
	Name     string
	Value    string
	Expires  time.Time
	HTTPOnly bool
}

// Equal reports whether c and other would serialize to the same Set-Cookie
// header.
func (c Cookie) Equal(other Cookie) bool {
	return c.Name == other.Name &&
		c.Value == other.Value &&
		c.Expires.Equal(other.Expires) &&
		c.HTTPOnly == other.HTTPOnly
}

// CookieSet is the bundle issued on flow completion or session refresh.
type CookieSet struct {
	// Primary carries the provider session token. Reissued with a new
	// value and a strictly later expiry on every refresh.
	Primary Cookie

	// Legacy is the signed compatibility token older consumers still
	// read. Reissued later-dated on refresh.
	Legacy Cookie

	// LastAccess records when the session was first established. A
	// refresh never changes its value or expiry.
	LastAccess Cookie
}

// Cookies returns the set in write order.
func (s CookieSet) Cookies() []Cookie {
	return []Cookie{s.Primary, s.Legacy, s.LastAccess}
}

// HTTPCookie converts c for use with net/http. Domain, path and security
// attributes are applied uniformly by the caller's deployment config.
func (c Cookie) HTTPCookie(domain string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Expires:  c.Expires,
		Path:     "/",
		Domain:   domain,
		Secure:   secure,
		HttpOnly: c.HTTPOnly,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearCookie returns an expired cookie that removes name on the client.
func ClearCookie(name string) Cookie {
	return Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Unix(0, 0).UTC(),
		HTTPOnly: true,
	}
}
