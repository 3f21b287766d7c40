package flowstate

import (
	"bytes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"io"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
)

const tokenFormatVersionV1 = 1

var (
	// ErrInvalidToken is returned for any malformed, truncated, or tampered
	// token. Callers must treat it as "start the flow over".
	ErrInvalidToken = errors.New("invalid flow state token")
	// ErrExpiredToken is returned for a well-formed token past its expiry.
	// Callers must treat it the same way as ErrInvalidToken.
	ErrExpiredToken = errors.New("expired flow state token")
	// ErrInvalidKey is returned by New for keys of the wrong size.
	ErrInvalidKey = errors.New("flow state key must be 32 bytes")
)

// Token is the ephemeral flow context round-tripped through the client.
type Token struct {
	StateHandle  string
	HandleExpiry int64
	Email        string
	Step         uint8
	IssuedAt     int64
	ExpiresAt    int64
}

// Codec seals and opens flow-state tokens.
type Codec struct {
	aead     cipher.AEAD
	lifetime time.Duration
	now      func() time.Time
}

// Option customizes codec construction.
type Option func(*Codec)

// WithClock injects a custom clock (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a Codec from a 32-byte symmetric key. lifetime bounds how long
// an encoded token stays decodable.
func New(key []byte, lifetime time.Duration, opts ...Option) (*Codec, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, ErrInvalidKey
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}

	c := &Codec{
		aead:     aead,
		lifetime: lifetime,
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Encode stamps the token's issue/expiry times and returns the sealed,
// base64url cookie value.
func (c *Codec) Encode(t Token) (string, error) {
	now := c.now()
	t.IssuedAt = now.Unix()
	t.ExpiresAt = now.Add(c.lifetime).Unix()

	plaintext, err := encodeToken(&t)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, chacha20poly1305.NonceSizeX, chacha20poly1305.NonceSizeX+len(plaintext)+chacha20poly1305.Overhead)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	sealed := c.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decode opens a cookie value produced by Encode. It fails closed: any
// corruption, tampering, or truncation returns ErrInvalidToken, and a valid
// but stale token returns ErrExpiredToken.
func (c *Codec) Decode(value string) (*Token, error) {
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if len(raw) < chacha20poly1305.NonceSizeX+chacha20poly1305.Overhead {
		return nil, ErrInvalidToken
	}

	nonce := raw[:chacha20poly1305.NonceSizeX]
	ciphertext := raw[chacha20poly1305.NonceSizeX:]

	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrInvalidToken
	}

	token, err := decodeToken(plaintext)
	if err != nil {
		return nil, ErrInvalidToken
	}

	if c.now().Unix() > token.ExpiresAt {
		return nil, ErrExpiredToken
	}

	return token, nil
}

func encodeToken(t *Token) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(tokenFormatVersionV1)

	if len(t.StateHandle) > 65535 {
		return nil, errors.New("state handle too long")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(t.StateHandle))); err != nil {
		return nil, err
	}
	buf.WriteString(t.StateHandle)

	if len(t.Email) > 65535 {
		return nil, errors.New("email too long")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(t.Email))); err != nil {
		return nil, err
	}
	buf.WriteString(t.Email)

	buf.WriteByte(t.Step)

	if err := binary.Write(&buf, binary.BigEndian, t.HandleExpiry); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, t.IssuedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, t.ExpiresAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func decodeToken(data []byte) (*Token, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != tokenFormatVersionV1 {
		return nil, errors.New("invalid token version")
	}

	t := &Token{}

	var handleLen uint16
	if err := binary.Read(reader, binary.BigEndian, &handleLen); err != nil {
		return nil, err
	}
	handle := make([]byte, handleLen)
	if _, err := io.ReadFull(reader, handle); err != nil {
		return nil, err
	}
	t.StateHandle = string(handle)

	var emailLen uint16
	if err := binary.Read(reader, binary.BigEndian, &emailLen); err != nil {
		return nil, err
	}
	email := make([]byte, emailLen)
	if _, err := io.ReadFull(reader, email); err != nil {
		return nil, err
	}
	t.Email = string(email)

	step, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	t.Step = step

	if err := binary.Read(reader, binary.BigEndian, &t.HandleExpiry); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &t.IssuedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &t.ExpiresAt); err != nil {
		return nil, err
	}

	if reader.Len() != 0 {
		return nil, errors.New("trailing token bytes")
	}

	return t, nil
}
