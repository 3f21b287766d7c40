package session

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func newTestIssuer(t *testing.T, clock func() time.Time) *Issuer {
	t.Helper()
	iss, err := NewIssuer(IssuerConfig{
		LegacySigningKey: testKey,
		Clock:            clock,
	})
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	return iss
}

func TestIssueCookieSet(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	iss := newTestIssuer(t, func() time.Time { return now })

	set, err := iss.Issue("provider-token", "u-1", "user@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if set.Primary.Value != "provider-token" {
		t.Fatalf("primary value = %q", set.Primary.Value)
	}
	if !set.Primary.HTTPOnly {
		t.Fatal("primary cookie must be http-only")
	}
	if got, want := set.Primary.Expires, now.Add(21*24*time.Hour); !got.Equal(want) {
		t.Fatalf("primary expiry = %v, want %v", got, want)
	}
	if set.LastAccess.Value != "1772366400" {
		t.Fatalf("last-access value = %q", set.LastAccess.Value)
	}
	if set.LastAccess.HTTPOnly {
		t.Fatal("last-access cookie must be readable by the client")
	}

	userID, email, err := iss.ParseLegacy(set.Legacy.Value)
	if err != nil {
		t.Fatalf("ParseLegacy: %v", err)
	}
	if userID != "u-1" || email != "user@example.com" {
		t.Fatalf("legacy claims = %q %q", userID, email)
	}
}

func TestRefreshPreservesLastAccess(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	iss := newTestIssuer(t, func() time.Time { return now })

	initial, err := iss.Issue("token-1", "u-1", "user@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	now = now.Add(48 * time.Hour)
	refreshed, err := iss.Refresh(initial, "token-2", "u-1", "user@example.com")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	if !refreshed.LastAccess.Equal(initial.LastAccess) {
		t.Fatalf("last-access changed across refresh: %+v vs %+v", refreshed.LastAccess, initial.LastAccess)
	}
	if refreshed.Primary.Value == initial.Primary.Value {
		t.Fatal("primary value not reissued")
	}
	if !refreshed.Primary.Expires.After(initial.Primary.Expires) {
		t.Fatalf("primary expiry %v not after %v", refreshed.Primary.Expires, initial.Primary.Expires)
	}
	if !refreshed.Legacy.Expires.After(initial.Legacy.Expires) {
		t.Fatalf("legacy expiry %v not after %v", refreshed.Legacy.Expires, initial.Legacy.Expires)
	}
}

func TestRefreshWithFrozenClockStillAdvancesExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	iss := newTestIssuer(t, func() time.Time { return now })

	initial, err := iss.Issue("token-1", "u-1", "user@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	refreshed, err := iss.Refresh(initial, "token-2", "u-1", "user@example.com")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if !refreshed.Primary.Expires.After(initial.Primary.Expires) {
		t.Fatalf("primary expiry %v not strictly after %v", refreshed.Primary.Expires, initial.Primary.Expires)
	}
}

func TestPrimaryExpiryFromProviderJWT(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	iss := newTestIssuer(t, func() time.Time { return now })

	exp := now.Add(7 * 24 * time.Hour)
	providerToken := mintProviderJWT(t, exp)

	set, err := iss.Issue(providerToken, "u-1", "user@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !set.Primary.Expires.Equal(exp) {
		t.Fatalf("primary expiry = %v, want provider exp %v", set.Primary.Expires, exp)
	}
}

func TestPrimaryExpiryCappedByTTL(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	iss := newTestIssuer(t, func() time.Time { return now })

	providerToken := mintProviderJWT(t, now.Add(365*24*time.Hour))

	set, err := iss.Issue(providerToken, "u-1", "user@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if got, want := set.Primary.Expires, now.Add(21*24*time.Hour); !got.Equal(want) {
		t.Fatalf("primary expiry = %v, want TTL cap %v", got, want)
	}
}

func TestParseLegacyRejectsTampered(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	iss := newTestIssuer(t, func() time.Time { return now })

	set, err := iss.Issue("token-1", "u-1", "user@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	other, err := NewIssuer(IssuerConfig{
		LegacySigningKey: []byte("another-key-another-key-another!"),
		Clock:            func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	if _, _, err := other.ParseLegacy(set.Legacy.Value); !errors.Is(err, ErrInvalidLegacyToken) {
		t.Fatalf("err = %v, want ErrInvalidLegacyToken", err)
	}
	if _, _, err := iss.ParseLegacy(set.Legacy.Value + "x"); !errors.Is(err, ErrInvalidLegacyToken) {
		t.Fatalf("err = %v, want ErrInvalidLegacyToken", err)
	}
}

func TestParseLegacyRejectsExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	iss := newTestIssuer(t, func() time.Time { return now })

	set, err := iss.Issue("token-1", "u-1", "user@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	now = now.Add(22 * 24 * time.Hour)
	if _, _, err := iss.ParseLegacy(set.Legacy.Value); !errors.Is(err, ErrInvalidLegacyToken) {
		t.Fatalf("err = %v, want ErrInvalidLegacyToken", err)
	}
}

func TestSignOutSetClearsAllCookies(t *testing.T) {
	iss := newTestIssuer(t, time.Now)
	cleared := iss.SignOutSet()
	if len(cleared) != 3 {
		t.Fatalf("cleared %d cookies, want 3", len(cleared))
	}
	for _, c := range cleared {
		if c.Value != "" || !c.Expires.Equal(time.Unix(0, 0).UTC()) {
			t.Fatalf("cookie %q not cleared: %+v", c.Name, c)
		}
	}
}

func TestNewIssuerRequiresKey(t *testing.T) {
	if _, err := NewIssuer(IssuerConfig{}); err == nil {
		t.Fatal("expected error for missing signing key")
	}
}

func mintProviderJWT(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "provider-session",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	signed, err := token.SignedString([]byte("provider-side-key"))
	if err != nil {
		t.Fatalf("signing provider token: %v", err)
	}
	return signed
}
