package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// NormalizeIdentifier canonicalizes an email identifier before hashing or
// comparison. The backing systems are case-insensitive on email.
func NormalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

// HashIdentifier derives an opaque Redis key component from an identifier so
// raw email addresses never appear in Redis.
func HashIdentifier(identifier string) string {
	sum := sha256.Sum256([]byte(NormalizeIdentifier(identifier)))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// NewPlaceholderSecret returns a random throwaway credential. It satisfies
// provider password policy by construction and is never shown to anyone.
func NewPlaceholderSecret() (string, error) {
	var raw [24]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return "Aa1!" + base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// NewCorrelationID returns a random 16-byte request correlation token in
// compact base64url form.
func NewCorrelationID() (string, error) {
	var raw [16]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}
