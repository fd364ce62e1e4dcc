package memory

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/goIdentity/refresh"
)

// RefreshStore is an in-memory refresh.Store. Rotation holds the store lock
// for the whole read-validate-write.
type RefreshStore struct {
	mu       sync.Mutex
	byID     map[string]*refresh.Record
	byHash   map[string]string
	byUser   map[string]map[string]struct{}
	byFamily map[string]map[string]struct{}
}

// NewRefreshStore returns an empty store.
func NewRefreshStore() *RefreshStore {
	return &RefreshStore{
		byID:     make(map[string]*refresh.Record),
		byHash:   make(map[string]string),
		byUser:   make(map[string]map[string]struct{}),
		byFamily: make(map[string]map[string]struct{}),
	}
}

func (s *RefreshStore) CreateRefreshToken(_ context.Context, rec refresh.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertLocked(rec)
	return nil
}

func (s *RefreshStore) FindByHash(_ context.Context, tokenHash string) (refresh.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byHash[tokenHash]
	if !ok {
		return refresh.Record{}, refresh.ErrNotFound
	}
	return copyRecord(s.byID[id]), nil
}

func (s *RefreshStore) FindByID(_ context.Context, id string) (refresh.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[id]
	if !ok {
		return refresh.Record{}, refresh.ErrNotFound
	}
	return copyRecord(rec), nil
}

func (s *RefreshStore) Rotate(_ context.Context, oldID string, next refresh.Record, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.byID[oldID]
	if !ok {
		return refresh.ErrNotFound
	}
	if !old.Usable(now) {
		return refresh.ErrRotateConflict
	}
	old.ReplacedBy = next.ID
	s.insertLocked(next)
	return nil
}

func (s *RefreshStore) RevokeTokens(_ context.Context, ids []string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if rec, ok := s.byID[id]; ok && rec.RevokedAt == nil {
			t := at
			rec.RevokedAt = &t
		}
	}
	return nil
}

func (s *RefreshStore) RevokeAllForUser(_ context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.byUser[userID] {
		if rec := s.byID[id]; rec.RevokedAt == nil {
			t := at
			rec.RevokedAt = &t
		}
	}
	return nil
}

func (s *RefreshStore) RevokeFamily(_ context.Context, familyID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.byFamily[familyID] {
		if rec := s.byID[id]; rec.RevokedAt == nil {
			t := at
			rec.RevokedAt = &t
		}
	}
	return nil
}

// ActiveForUser counts the user's tokens that are still usable at now.
func (s *RefreshStore) ActiveForUser(userID string, now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id := range s.byUser[userID] {
		if s.byID[id].Usable(now) {
			n++
		}
	}
	return n
}

func (s *RefreshStore) insertLocked(rec refresh.Record) {
	r := copyRecord(&rec)
	s.byID[rec.ID] = &r
	s.byHash[rec.TokenHash] = rec.ID
	if s.byUser[rec.UserID] == nil {
		s.byUser[rec.UserID] = make(map[string]struct{})
	}
	s.byUser[rec.UserID][rec.ID] = struct{}{}
	if rec.FamilyID != "" {
		if s.byFamily[rec.FamilyID] == nil {
			s.byFamily[rec.FamilyID] = make(map[string]struct{})
		}
		s.byFamily[rec.FamilyID][rec.ID] = struct{}{}
	}
}

func copyRecord(rec *refresh.Record) refresh.Record {
	out := *rec
	if rec.RevokedAt != nil {
		t := *rec.RevokedAt
		out.RevokedAt = &t
	}
	return out
}
