package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goIdentity/linking"
)

// ErrUpdateContended is returned when an optimistic update kept losing to
// concurrent writers.
var ErrUpdateContended = errors.New("linking state update contended")

const maxUpdateRetries = 8

// LinkingStateStore is a linking.StateStore holding one JSON value per
// session.
type LinkingStateStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewLinkingStateStore returns a store under prefix.
func NewLinkingStateStore(client redis.UniversalClient, prefix string) *LinkingStateStore {
	return &LinkingStateStore{redis: client, prefix: normalizePrefix(prefix)}
}

func (s *LinkingStateStore) key(sessionID string) string { return s.prefix + ":link:" + sessionID }

func (s *LinkingStateStore) Save(ctx context.Context, state linking.State, ttl time.Duration) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode linking state: %w", err)
	}
	if err := s.redis.Set(ctx, s.key(state.SessionID), data, ttl).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *LinkingStateStore) Load(ctx context.Context, sessionID string) (linking.State, error) {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if isNil(err) {
		return linking.State{}, linking.ErrStateNotFound
	}
	if err != nil {
		return linking.State{}, unavailable(err)
	}
	var state linking.State
	if err := json.Unmarshal(data, &state); err != nil {
		return linking.State{}, fmt.Errorf("decode linking state: %w", err)
	}
	return state, nil
}

// Update runs fn inside WATCH/MULTI and retries when another writer touched
// the key in between. The key keeps its remaining TTL.
func (s *LinkingStateStore) Update(ctx context.Context, sessionID string, fn func(*linking.State) error) error {
	key := s.key(sessionID)
	var localErr error
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if isNil(err) {
			localErr = linking.ErrStateNotFound
			return localErr
		}
		if err != nil {
			return err
		}
		ttl, err := tx.PTTL(ctx, key).Result()
		if err != nil {
			return err
		}
		switch {
		case ttl == -2:
			localErr = linking.ErrStateNotFound
			return localErr
		case ttl == -1:
			ttl = 0
		case ttl <= 0:
			localErr = linking.ErrStateNotFound
			return localErr
		}

		var state linking.State
		if err := json.Unmarshal(data, &state); err != nil {
			localErr = fmt.Errorf("decode linking state: %w", err)
			return localErr
		}
		if err := fn(&state); err != nil {
			localErr = err
			return err
		}
		out, err := json.Marshal(state)
		if err != nil {
			localErr = fmt.Errorf("encode linking state: %w", err)
			return localErr
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, ttl)
			return nil
		})
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		localErr = nil
		err := s.redis.Watch(ctx, txf, key)
		switch {
		case err == nil:
			return nil
		case localErr != nil:
			return localErr
		case errors.Is(err, redis.TxFailedErr):
			continue
		default:
			return unavailable(err)
		}
	}
	return ErrUpdateContended
}

func (s *LinkingStateStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.redis.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}
