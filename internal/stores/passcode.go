package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const passcodeRecordVersionV1 = 1

var (
	ErrChallengeNotFound         = errors.New("passcode challenge not found")
	ErrChallengeAttemptsExceeded = errors.New("passcode challenge attempts exceeded")
	ErrChallengeRedisUnavailable = errors.New("passcode challenge redis unavailable")
)

// registerFailureLua atomically advances the attempt counter of a challenge
// record, deleting the record when the budget is spent.
// KEYS[1] = record key
// ARGV[1] = max attempts (int string)
// ARGV[2] = current unix timestamp (int string)
//
// Returns remaining attempts on success, or an error string:
// "not_found", "expired", "attempts_exceeded".
var registerFailureLua = redis.NewScript(`
local data = redis.call('GET', KEYS[1])
if not data then
  return {err='not_found'}
end

local maxAttempts = tonumber(ARGV[1])
local nowUnix = tonumber(ARGV[2])

-- Layout: version(1) attempts(2 big-endian) expiresAt(8 big-endian) ...
local version = string.byte(data, 1)
if version ~= 1 then
  redis.call('DEL', KEYS[1])
  return {err='not_found'}
end

local attempts = string.byte(data, 2) * 256 + string.byte(data, 3)

local e0,e1,e2,e3,e4,e5,e6,e7 = string.byte(data, 4, 11)
local expiresAt = e0
for _, b in ipairs({e1,e2,e3,e4,e5,e6,e7}) do
  expiresAt = expiresAt * 256 + b
end

if nowUnix > expiresAt then
  redis.call('DEL', KEYS[1])
  return {err='expired'}
end

attempts = attempts + 1
if attempts >= maxAttempts then
  redis.call('DEL', KEYS[1])
  return {err='attempts_exceeded'}
end

local ttlMs = redis.call('PTTL', KEYS[1])
if ttlMs <= 0 then
  redis.call('DEL', KEYS[1])
  return {err='expired'}
end

local newData = string.sub(data, 1, 1) ..
  string.char(math.floor(attempts / 256), attempts % 256) ..
  string.sub(data, 4)
redis.call('SET', KEYS[1], newData, 'PX', ttlMs)

return maxAttempts - attempts
`)

// PasscodeRecord is the orchestrator's local view of a provider-owned
// one-time passcode challenge.
type PasscodeRecord struct {
	StateHandle string
	Attempts    uint16
	IssuedAt    int64
	ExpiresAt   int64
}

// PasscodeStore persists challenge views in Redis, keyed by identifier.
type PasscodeStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewPasscodeStore creates a store with the given key prefix.
// An empty prefix defaults to "gpc".
func NewPasscodeStore(redisClient redis.UniversalClient, prefix string) *PasscodeStore {
	if prefix == "" {
		prefix = "gpc"
	}
	return &PasscodeStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *PasscodeStore) key(identifier string) string {
	return s.prefix + ":" + identifier
}

// Save writes the challenge view, replacing any previous challenge for the
// identifier. A resend always goes through Save so the stale code's attempt
// history cannot carry over.
func (s *PasscodeStore) Save(ctx context.Context, identifier string, record *PasscodeRecord, ttl time.Duration) error {
	encoded, err := encodePasscodeRecord(record)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(identifier), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrChallengeRedisUnavailable, err)
	}
	return nil
}

// Get returns the current challenge view for the identifier.
func (s *PasscodeStore) Get(ctx context.Context, identifier string) (*PasscodeRecord, error) {
	data, err := s.redis.Get(ctx, s.key(identifier)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrChallengeNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrChallengeRedisUnavailable, err)
	}

	record, err := decodePasscodeRecord(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChallengeRedisUnavailable, err)
	}
	return record, nil
}

// RegisterFailure records one incorrect submission and returns the remaining
// attempt budget. Once the budget is spent the record is deleted and
// ErrChallengeAttemptsExceeded is returned; the expired challenge can only be
// replaced by a fresh Save.
func (s *PasscodeStore) RegisterFailure(ctx context.Context, identifier string, maxAttempts int) (int, error) {
	result, err := registerFailureLua.Run(ctx, s.redis,
		[]string{s.key(identifier)},
		maxAttempts,
		time.Now().Unix(),
	).Result()
	if err != nil {
		switch err.Error() {
		case "not_found", "expired":
			return 0, ErrChallengeNotFound
		case "attempts_exceeded":
			return 0, ErrChallengeAttemptsExceeded
		default:
			return 0, fmt.Errorf("%w: %v", ErrChallengeRedisUnavailable, err)
		}
	}

	remaining, ok := result.(int64)
	if !ok {
		return 0, fmt.Errorf("%w: unexpected lua result type", ErrChallengeRedisUnavailable)
	}
	return int(remaining), nil
}

// Delete removes the challenge view, for example after a successful
// verification. Deleting a missing record is not an error.
func (s *PasscodeStore) Delete(ctx context.Context, identifier string) error {
	if err := s.redis.Del(ctx, s.key(identifier)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrChallengeRedisUnavailable, err)
	}
	return nil
}

func encodePasscodeRecord(record *PasscodeRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(passcodeRecordVersionV1)

	if err := binary.Write(&buf, binary.BigEndian, record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.IssuedAt); err != nil {
		return nil, err
	}

	if len(record.StateHandle) > 65535 {
		return nil, errors.New("passcode record state handle too long")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.StateHandle))); err != nil {
		return nil, err
	}
	buf.WriteString(record.StateHandle)

	return buf.Bytes(), nil
}

func decodePasscodeRecord(data []byte) (*PasscodeRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != passcodeRecordVersionV1 {
		return nil, errors.New("invalid passcode record version")
	}

	record := &PasscodeRecord{}

	if err := binary.Read(reader, binary.BigEndian, &record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.IssuedAt); err != nil {
		return nil, err
	}

	var handleLen uint16
	if err := binary.Read(reader, binary.BigEndian, &handleLen); err != nil {
		return nil, err
	}
	handle := make([]byte, handleLen)
	if _, err := io.ReadFull(reader, handle); err != nil {
		return nil, err
	}
	record.StateHandle = string(handle)

	return record, nil
}
