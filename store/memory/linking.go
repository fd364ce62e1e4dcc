package memory

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/goIdentity/linking"
	gocache "github.com/patrickmn/go-cache"
)

// LinkingStateStore keeps linking states in a go-cache with per-entry TTL.
// Updates of one session are serialized by a per-session mutex.
type LinkingStateStore struct {
	cache *gocache.Cache
	locks sync.Map // session id -> *sync.Mutex
}

// NewLinkingStateStore returns a store whose expired entries are swept every
// cleanupInterval. A session's mutex is dropped when its entry is evicted.
func NewLinkingStateStore(defaultTTL, cleanupInterval time.Duration) *LinkingStateStore {
	s := &LinkingStateStore{cache: gocache.New(defaultTTL, cleanupInterval)}
	s.cache.OnEvicted(func(sessionID string, _ interface{}) {
		s.locks.Delete(sessionID)
	})
	return s
}

func (s *LinkingStateStore) Save(_ context.Context, state linking.State, ttl time.Duration) error {
	mu := s.lock(state.SessionID)
	mu.Lock()
	defer mu.Unlock()
	s.cache.Set(state.SessionID, cloneState(state), ttl)
	return nil
}

func (s *LinkingStateStore) Load(_ context.Context, sessionID string) (linking.State, error) {
	v, ok := s.cache.Get(sessionID)
	if !ok {
		return linking.State{}, linking.ErrStateNotFound
	}
	return cloneState(v.(linking.State)), nil
}

func (s *LinkingStateStore) Update(_ context.Context, sessionID string, fn func(*linking.State) error) error {
	mu := s.lock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	v, expiresAt, ok := s.cache.GetWithExpiration(sessionID)
	if !ok {
		return linking.ErrStateNotFound
	}
	state := cloneState(v.(linking.State))
	if err := fn(&state); err != nil {
		return err
	}
	ttl := gocache.NoExpiration
	if !expiresAt.IsZero() {
		ttl = time.Until(expiresAt)
		if ttl <= 0 {
			return linking.ErrStateNotFound
		}
	}
	s.cache.Set(sessionID, state, ttl)
	return nil
}

func (s *LinkingStateStore) Delete(_ context.Context, sessionID string) error {
	mu := s.lock(sessionID)
	mu.Lock()
	s.cache.Delete(sessionID)
	mu.Unlock()
	s.locks.Delete(sessionID)
	return nil
}

func (s *LinkingStateStore) lock(sessionID string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(sessionID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func cloneState(s linking.State) linking.State {
	out := s
	out.Candidates = append([]linking.Candidate(nil), s.Candidates...)
	out.Identity.Claims = append([]linking.Claim(nil), s.Identity.Claims...)
	return out
}
