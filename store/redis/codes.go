package redis

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goIdentity/code"
)

// KEYS[1]: code record
const incrementAttemptsScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
return redis.call("HINCRBY", KEYS[1], "failed_attempts", 1)
`

var incrementAttemptsLua = redis.NewScript(incrementAttemptsScript)

// CodeStore is a code.Store. Each scope points at its single pending code;
// the code record itself is keyed by id.
type CodeStore struct {
	redis     redis.UniversalClient
	prefix    string
	retention time.Duration
	now       func() time.Time
}

// NewCodeStore returns a store that keeps codes for retention past their
// expiry, so a late correct guess reports expiry rather than a mismatch.
func NewCodeStore(client redis.UniversalClient, prefix string, retention time.Duration) *CodeStore {
	return &CodeStore{redis: client, prefix: normalizePrefix(prefix), retention: retention, now: time.Now}
}

func (s *CodeStore) key(id string) string { return s.prefix + ":code:" + id }

func (s *CodeStore) scopeKey(ch code.Channel, p code.Purpose, identifierValue string) string {
	return s.prefix + ":codescope:" + ch.String() + ":" + p.String() + ":" + identifierValue
}

func (s *CodeStore) CreateCode(ctx context.Context, rec code.Record) error {
	ttl := keyTTL(rec.ExpiresAt, s.now(), s.retention)
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.key(rec.ID), encodeCode(rec)...)
		pipe.PExpire(ctx, s.key(rec.ID), ttl)
		pipe.Set(ctx, s.scopeKey(rec.Channel, rec.Purpose, rec.IdentifierValue), rec.ID, ttl)
		return nil
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *CodeStore) FindCode(ctx context.Context, ch code.Channel, p code.Purpose, identifierValue, codeHash string) (code.Record, error) {
	rec, err := s.FindPendingCode(ctx, ch, p, identifierValue)
	if err != nil {
		return code.Record{}, err
	}
	if subtle.ConstantTimeCompare([]byte(rec.CodeHash), []byte(codeHash)) != 1 {
		return code.Record{}, code.ErrNotFound
	}
	return rec, nil
}

func (s *CodeStore) FindPendingCode(ctx context.Context, ch code.Channel, p code.Purpose, identifierValue string) (code.Record, error) {
	id, err := s.redis.Get(ctx, s.scopeKey(ch, p, identifierValue)).Result()
	if isNil(err) {
		return code.Record{}, code.ErrNotFound
	}
	if err != nil {
		return code.Record{}, unavailable(err)
	}
	fields, err := s.redis.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return code.Record{}, unavailable(err)
	}
	if len(fields) == 0 {
		// consumed; the scope pointer expires on its own
		return code.Record{}, code.ErrNotFound
	}
	return decodeCode(fields)
}

func (s *CodeStore) InvalidateCodes(ctx context.Context, ch code.Channel, p code.Purpose, identifierValue string) error {
	scope := s.scopeKey(ch, p, identifierValue)
	id, err := s.redis.Get(ctx, scope).Result()
	if isNil(err) {
		return nil
	}
	if err != nil {
		return unavailable(err)
	}
	if err := s.redis.Del(ctx, s.key(id), scope).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *CodeStore) IncrementFailedAttempts(ctx context.Context, id string) error {
	n, err := incrementAttemptsLua.Run(ctx, s.redis, []string{s.key(id)}).Int64()
	if err != nil {
		return unavailable(err)
	}
	if n < 0 {
		return code.ErrNotFound
	}
	return nil
}

// ConsumeCode deletes the record. Only the caller whose DEL removed the key
// observes true.
func (s *CodeStore) ConsumeCode(ctx context.Context, id string) (bool, error) {
	n, err := s.redis.Del(ctx, s.key(id)).Result()
	if err != nil {
		return false, unavailable(err)
	}
	return n == 1, nil
}

func encodeCode(rec code.Record) []interface{} {
	return []interface{}{
		"id", rec.ID,
		"user_id", rec.UserID,
		"channel", int(rec.Channel),
		"purpose", int(rec.Purpose),
		"identifier_value", rec.IdentifierValue,
		"code_hash", rec.CodeHash,
		"created_at", millis(rec.CreatedAt),
		"expires_at", millis(rec.ExpiresAt),
		"failed_attempts", rec.FailedAttempts,
	}
}

func decodeCode(f map[string]string) (code.Record, error) {
	rec := code.Record{
		ID:              f["id"],
		UserID:          f["user_id"],
		IdentifierValue: f["identifier_value"],
		CodeHash:        f["code_hash"],
	}
	ch, err := strconv.Atoi(f["channel"])
	if err != nil {
		return code.Record{}, fmt.Errorf("decode code record: %w", err)
	}
	p, err := strconv.Atoi(f["purpose"])
	if err != nil {
		return code.Record{}, fmt.Errorf("decode code record: %w", err)
	}
	rec.Channel, rec.Purpose = code.Channel(ch), code.Purpose(p)
	if rec.FailedAttempts, err = strconv.Atoi(f["failed_attempts"]); err != nil {
		return code.Record{}, fmt.Errorf("decode code record: %w", err)
	}
	if rec.CreatedAt, err = fromMillis(f["created_at"]); err != nil {
		return code.Record{}, fmt.Errorf("decode code record: %w", err)
	}
	if rec.ExpiresAt, err = fromMillis(f["expires_at"]); err != nil {
		return code.Record{}, fmt.Errorf("decode code record: %w", err)
	}
	return rec, nil
}
