package memory

import (
	"context"
	"sync"

	"github.com/MrEthical07/goIdentity/code"
)

type codeScope struct {
	channel    code.Channel
	purpose    code.Purpose
	identifier string
}

// CodeStore is an in-memory code.Store. It keeps at most one record per
// scope, which is what InvalidateCodes followed by CreateCode produces.
type CodeStore struct {
	mu      sync.Mutex
	byID    map[string]*code.Record
	byScope map[codeScope]string
}

// NewCodeStore returns an empty store.
func NewCodeStore() *CodeStore {
	return &CodeStore{
		byID:    make(map[string]*code.Record),
		byScope: make(map[codeScope]string),
	}
}

func (s *CodeStore) CreateCode(_ context.Context, rec code.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	scope := codeScope{rec.Channel, rec.Purpose, rec.IdentifierValue}
	if prev, ok := s.byScope[scope]; ok {
		delete(s.byID, prev)
	}
	r := rec
	s.byID[rec.ID] = &r
	s.byScope[scope] = rec.ID
	return nil
}

func (s *CodeStore) FindCode(_ context.Context, ch code.Channel, p code.Purpose, identifierValue, codeHash string) (code.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.pendingLocked(codeScope{ch, p, identifierValue})
	if !ok || rec.CodeHash != codeHash {
		return code.Record{}, code.ErrNotFound
	}
	return *rec, nil
}

func (s *CodeStore) FindPendingCode(_ context.Context, ch code.Channel, p code.Purpose, identifierValue string) (code.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.pendingLocked(codeScope{ch, p, identifierValue})
	if !ok {
		return code.Record{}, code.ErrNotFound
	}
	return *rec, nil
}

func (s *CodeStore) InvalidateCodes(_ context.Context, ch code.Channel, p code.Purpose, identifierValue string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	scope := codeScope{ch, p, identifierValue}
	if id, ok := s.byScope[scope]; ok {
		delete(s.byID, id)
		delete(s.byScope, scope)
	}
	return nil
}

func (s *CodeStore) IncrementFailedAttempts(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[id]
	if !ok {
		return code.ErrNotFound
	}
	rec.FailedAttempts++
	return nil
}

func (s *CodeStore) ConsumeCode(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[id]
	if !ok {
		return false, nil
	}
	delete(s.byID, id)
	delete(s.byScope, codeScope{rec.Channel, rec.Purpose, rec.IdentifierValue})
	return true, nil
}

func (s *CodeStore) pendingLocked(scope codeScope) (*code.Record, bool) {
	id, ok := s.byScope[scope]
	if !ok {
		return nil, false
	}
	rec, ok := s.byID[id]
	return rec, ok
}
