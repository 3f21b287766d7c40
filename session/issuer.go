package session

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultTTL = 21 * 24 * time.Hour

var (
	// ErrInvalidLegacyToken is returned when a legacy compatibility
	// cookie fails signature or claim validation.
	ErrInvalidLegacyToken = errors.New("session: invalid legacy token")

	errMissingSigningKey = errors.New("session: legacy signing key is required")
)

// IssuerConfig configures an [Issuer]. LegacySigningKey is required.
type IssuerConfig struct {
	// LegacySigningKey signs the legacy compatibility JWT (HS256).
	LegacySigningKey []byte

	// TTL bounds cookie lifetime. Defaults to 21 days when zero.
	TTL time.Duration

	PrimaryCookieName    string
	LegacyCookieName     string
	LastAccessCookieName string

	// Clock overrides time.Now in tests.
	Clock func() time.Time
}

// Issuer mints and refreshes the session cookie set.
type Issuer struct {
	signingKey     []byte
	ttl            time.Duration
	primaryName    string
	legacyName     string
	lastAccessName string
	now            func() time.Time
}

// NewIssuer builds an Issuer from cfg.
func NewIssuer(cfg IssuerConfig) (*Issuer, error) {
	if len(cfg.LegacySigningKey) == 0 {
		return nil, errMissingSigningKey
	}
	iss := &Issuer{
		signingKey:     cfg.LegacySigningKey,
		ttl:            cfg.TTL,
		primaryName:    cfg.PrimaryCookieName,
		legacyName:     cfg.LegacyCookieName,
		lastAccessName: cfg.LastAccessCookieName,
		now:            cfg.Clock,
	}
	if iss.ttl <= 0 {
		iss.ttl = defaultTTL
	}
	if iss.primaryName == "" {
		iss.primaryName = DefaultPrimaryCookieName
	}
	if iss.legacyName == "" {
		iss.legacyName = DefaultLegacyCookieName
	}
	if iss.lastAccessName == "" {
		iss.lastAccessName = DefaultLastAccessCookieName
	}
	if iss.now == nil {
		iss.now = time.Now
	}
	return iss, nil
}

// Issue builds a fresh cookie set for a newly completed flow.
func (i *Issuer) Issue(providerToken, userID, email string) (CookieSet, error) {
	now := i.now()
	expiry := i.primaryExpiry(providerToken, now)

	legacy, err := i.mintLegacy(userID, email, now, expiry)
	if err != nil {
		return CookieSet{}, err
	}

	return CookieSet{
		Primary: Cookie{
			Name:     i.primaryName,
			Value:    providerToken,
			Expires:  expiry,
			HTTPOnly: true,
		},
		Legacy: legacy,
		LastAccess: Cookie{
			Name:    i.lastAccessName,
			Value:   strconv.FormatInt(now.Unix(), 10),
			Expires: now.Add(i.ttl),
		},
	}, nil
}

// Refresh reissues the primary and legacy cookies for an existing session.
// The primary cookie always gets a strictly later expiry than prev, and the
// last-access cookie is carried over unchanged.
func (i *Issuer) Refresh(prev CookieSet, providerToken, userID, email string) (CookieSet, error) {
	now := i.now()
	expiry := i.primaryExpiry(providerToken, now)
	if !expiry.After(prev.Primary.Expires) {
		expiry = prev.Primary.Expires.Add(time.Second)
	}

	legacy, err := i.mintLegacy(userID, email, now, expiry)
	if err != nil {
		return CookieSet{}, err
	}

	return CookieSet{
		Primary: Cookie{
			Name:     i.primaryName,
			Value:    providerToken,
			Expires:  expiry,
			HTTPOnly: true,
		},
		Legacy:     legacy,
		LastAccess: prev.LastAccess,
	}, nil
}

// SignOutSet returns clearing cookies for every name the issuer manages.
func (i *Issuer) SignOutSet() []Cookie {
	return []Cookie{
		ClearCookie(i.primaryName),
		ClearCookie(i.legacyName),
		ClearCookie(i.lastAccessName),
	}
}

type legacyClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

func (i *Issuer) mintLegacy(userID, email string, now, expiry time.Time) (Cookie, error) {
	claims := legacyClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiry),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.signingKey)
	if err != nil {
		return Cookie{}, fmt.Errorf("session: signing legacy token: %w", err)
	}
	return Cookie{
		Name:     i.legacyName,
		Value:    signed,
		Expires:  expiry,
		HTTPOnly: true,
	}, nil
}

// ParseLegacy validates a legacy compatibility token and returns its subject
// and email claims.
func (i *Issuer) ParseLegacy(value string) (userID, email string, err error) {
	var claims legacyClaims
	token, err := jwt.ParseWithClaims(value, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.signingKey, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil || !token.Valid {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidLegacyToken, err)
	}
	return claims.Subject, claims.Email, nil
}

// primaryExpiry derives the primary cookie expiry. When the provider token
// is itself a JWT carrying an exp claim, that expiry wins if it falls inside
// the configured TTL; otherwise the TTL applies.
func (i *Issuer) primaryExpiry(providerToken string, now time.Time) time.Time {
	limit := now.Add(i.ttl)
	parser := jwt.NewParser()
	token, _, err := parser.ParseUnverified(providerToken, jwt.MapClaims{})
	if err != nil {
		return limit
	}
	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return limit
	}
	if exp.Time.After(now) && exp.Time.Before(limit) {
		return exp.Time
	}
	return limit
}
