package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goIdentity/refresh"
)

const (
	rotateStatusNotFound int64 = 0
	rotateStatusConflict int64 = 1
	rotateStatusRotated  int64 = 2
)

// KEYS: old record, next record, next hash index, user set, family set
// ARGV: now ms, ttl ms, then the next record's field/value pairs
const rotateRefreshScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
local f = redis.call("HMGET", KEYS[1], "revoked_at", "replaced_by", "expires_at")
if (f[1] and f[1] ~= "0") or (f[2] and f[2] ~= "") then
  return 1
end
if tonumber(f[3]) <= tonumber(ARGV[1]) then
  return 1
end
redis.call("HSET", KEYS[1], "replaced_by", ARGV[4])
local fields = {}
for i = 3, #ARGV do
  fields[#fields + 1] = ARGV[i]
end
redis.call("HSET", KEYS[2], unpack(fields))
redis.call("PEXPIRE", KEYS[2], ARGV[2])
redis.call("SET", KEYS[3], ARGV[4], "PX", ARGV[2])
redis.call("SADD", KEYS[4], ARGV[4])
redis.call("PEXPIRE", KEYS[4], ARGV[2])
redis.call("SADD", KEYS[5], ARGV[4])
redis.call("PEXPIRE", KEYS[5], ARGV[2])
return 2
`

// KEYS: records to revoke; ARGV[1]: revoked_at ms
const revokeRefreshScript = `
local n = 0
for i = 1, #KEYS do
  local r = redis.call("HGET", KEYS[i], "revoked_at")
  if r == "0" then
    redis.call("HSET", KEYS[i], "revoked_at", ARGV[1])
    n = n + 1
  end
end
return n
`

var (
	rotateRefreshLua = redis.NewScript(rotateRefreshScript)
	revokeRefreshLua = redis.NewScript(revokeRefreshScript)
)

// RefreshStore is a refresh.Store over Redis hashes.
type RefreshStore struct {
	redis     redis.UniversalClient
	prefix    string
	retention time.Duration
	now       func() time.Time
}

// NewRefreshStore returns a store whose records outlive their expiry by
// retention so that replays of expired tokens still find them.
func NewRefreshStore(client redis.UniversalClient, prefix string, retention time.Duration) *RefreshStore {
	return &RefreshStore{redis: client, prefix: normalizePrefix(prefix), retention: retention, now: time.Now}
}

func (s *RefreshStore) key(id string) string        { return s.prefix + ":rt:" + id }
func (s *RefreshStore) hashKey(hash string) string  { return s.prefix + ":rth:" + hash }
func (s *RefreshStore) userKey(uid string) string   { return s.prefix + ":rtu:" + uid }
func (s *RefreshStore) familyKey(fid string) string { return s.prefix + ":rtf:" + fid }

func (s *RefreshStore) CreateRefreshToken(ctx context.Context, rec refresh.Record) error {
	ttl := keyTTL(rec.ExpiresAt, s.now(), s.retention)
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.key(rec.ID), encodeRefresh(rec)...)
		pipe.PExpire(ctx, s.key(rec.ID), ttl)
		pipe.Set(ctx, s.hashKey(rec.TokenHash), rec.ID, ttl)
		pipe.SAdd(ctx, s.userKey(rec.UserID), rec.ID)
		pipe.PExpire(ctx, s.userKey(rec.UserID), ttl)
		if rec.FamilyID != "" {
			pipe.SAdd(ctx, s.familyKey(rec.FamilyID), rec.ID)
			pipe.PExpire(ctx, s.familyKey(rec.FamilyID), ttl)
		}
		return nil
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *RefreshStore) FindByHash(ctx context.Context, tokenHash string) (refresh.Record, error) {
	id, err := s.redis.Get(ctx, s.hashKey(tokenHash)).Result()
	if isNil(err) {
		return refresh.Record{}, refresh.ErrNotFound
	}
	if err != nil {
		return refresh.Record{}, unavailable(err)
	}
	return s.FindByID(ctx, id)
}

func (s *RefreshStore) FindByID(ctx context.Context, id string) (refresh.Record, error) {
	fields, err := s.redis.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return refresh.Record{}, unavailable(err)
	}
	if len(fields) == 0 {
		return refresh.Record{}, refresh.ErrNotFound
	}
	return decodeRefresh(fields)
}

func (s *RefreshStore) Rotate(ctx context.Context, oldID string, next refresh.Record, now time.Time) error {
	ttl := keyTTL(next.ExpiresAt, now, s.retention)
	args := []interface{}{millis(now), ttl.Milliseconds()}
	args = append(args, encodeRefresh(next)...)

	status, err := rotateRefreshLua.Run(ctx, s.redis,
		[]string{s.key(oldID), s.key(next.ID), s.hashKey(next.TokenHash), s.userKey(next.UserID), s.familyKey(next.Family())},
		args...,
	).Int64()
	if err != nil {
		return unavailable(err)
	}
	switch status {
	case rotateStatusRotated:
		return nil
	case rotateStatusNotFound:
		return refresh.ErrNotFound
	default:
		return refresh.ErrRotateConflict
	}
}

func (s *RefreshStore) RevokeTokens(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}
	if err := revokeRefreshLua.Run(ctx, s.redis, keys, millis(at)).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *RefreshStore) RevokeAllForUser(ctx context.Context, userID string, at time.Time) error {
	ids, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return unavailable(err)
	}
	return s.RevokeTokens(ctx, ids, at)
}

func (s *RefreshStore) RevokeFamily(ctx context.Context, familyID string, at time.Time) error {
	ids, err := s.redis.SMembers(ctx, s.familyKey(familyID)).Result()
	if err != nil {
		return unavailable(err)
	}
	return s.RevokeTokens(ctx, ids, at)
}

// encodeRefresh flattens rec into HSET field/value pairs. The record id must
// stay the second value: the rotate script reads it from ARGV[4].
func encodeRefresh(rec refresh.Record) []interface{} {
	var revoked int64
	if rec.RevokedAt != nil {
		revoked = millis(*rec.RevokedAt)
	}
	return []interface{}{
		"id", rec.ID,
		"user_id", rec.UserID,
		"token_hash", rec.TokenHash,
		"issued_at", millis(rec.IssuedAt),
		"expires_at", millis(rec.ExpiresAt),
		"revoked_at", revoked,
		"replaced_by", rec.ReplacedBy,
		"replaces", rec.Replaces,
		"family_id", rec.FamilyID,
	}
}

func decodeRefresh(f map[string]string) (refresh.Record, error) {
	rec := refresh.Record{
		ID:         f["id"],
		UserID:     f["user_id"],
		TokenHash:  f["token_hash"],
		ReplacedBy: f["replaced_by"],
		Replaces:   f["replaces"],
		FamilyID:   f["family_id"],
	}
	var err error
	if rec.IssuedAt, err = fromMillis(f["issued_at"]); err != nil {
		return refresh.Record{}, fmt.Errorf("decode refresh record: %w", err)
	}
	if rec.ExpiresAt, err = fromMillis(f["expires_at"]); err != nil {
		return refresh.Record{}, fmt.Errorf("decode refresh record: %w", err)
	}
	revoked, err := fromMillis(f["revoked_at"])
	if err != nil {
		return refresh.Record{}, fmt.Errorf("decode refresh record: %w", err)
	}
	if !revoked.IsZero() {
		rec.RevokedAt = &revoked
	}
	return rec, nil
}
