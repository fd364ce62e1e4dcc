package memory

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/goIdentity/credential"
	"github.com/MrEthical07/goIdentity/user"
	"github.com/google/uuid"
)

type federatedKey struct {
	provider string
	subject  string
}

// UserStore is an in-memory user.Store.
type UserStore struct {
	mu          sync.RWMutex
	byID        map[string]*user.Record
	byIdent     map[credential.Identifier]string
	byFederated map[federatedKey]string
	now         func() time.Time
}

// NewUserStore returns an empty store.
func NewUserStore() *UserStore {
	return &UserStore{
		byID:        make(map[string]*user.Record),
		byIdent:     make(map[credential.Identifier]string),
		byFederated: make(map[federatedKey]string),
		now:         time.Now,
	}
}

func (s *UserStore) Create(_ context.Context, cred credential.Credential) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byIdent[cred.Identifier()]; taken {
		return nil, user.ErrConflict
	}
	rec := user.NewRecord(uuid.NewString(), cred, s.now())
	s.byID[rec.UserID] = rec
	s.byIdent[cred.Identifier()] = rec.UserID
	return rec.Clone(), nil
}

func (s *UserStore) FindByID(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *UserStore) FindByIdentifier(ctx context.Context, id credential.Identifier) (user.User, error) {
	s.mu.RLock()
	uid, ok := s.byIdent[id]
	s.mu.RUnlock()
	if !ok {
		return nil, user.ErrNotFound
	}
	return s.FindByID(ctx, uid)
}

func (s *UserStore) FindByFederatedIdentity(ctx context.Context, provider, subject string) (user.User, error) {
	s.mu.RLock()
	uid, ok := s.byFederated[federatedKey{provider, subject}]
	s.mu.RUnlock()
	if !ok {
		return nil, user.ErrNotFound
	}
	return s.FindByID(ctx, uid)
}

func (s *UserStore) MarkEmailVerified(_ context.Context, userID string) error {
	return s.mutate(userID, func(r *user.Record) { r.EmailVerified = true })
}

func (s *UserStore) MarkPhoneVerified(_ context.Context, userID string) error {
	return s.mutate(userID, func(r *user.Record) { r.PhoneVerified = true })
}

func (s *UserStore) UpdatePasswordHash(_ context.Context, userID, passwordHash string) error {
	return s.mutate(userID, func(r *user.Record) { r.Hash = passwordHash })
}

func (s *UserStore) AttachFederatedIdentity(_ context.Context, userID, provider, subject string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[userID]; !ok {
		return user.ErrNotFound
	}
	key := federatedKey{provider, subject}
	if owner, ok := s.byFederated[key]; ok && owner != userID {
		return user.ErrConflict
	}
	s.byFederated[key] = userID
	return nil
}

// FederatedLinks counts the links held by userID.
func (s *UserStore) FederatedLinks(userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, owner := range s.byFederated {
		if owner == userID {
			n++
		}
	}
	return n
}

// AddIdentifier attaches an extra identifier to an existing account. Accounts
// created through Create only carry the identifier they registered with.
func (s *UserStore) AddIdentifier(userID string, id credential.Identifier, verified bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[userID]
	if !ok {
		return user.ErrNotFound
	}
	if owner, taken := s.byIdent[id]; taken && owner != userID {
		return user.ErrConflict
	}
	switch id.Kind {
	case credential.KindEmail:
		rec.EmailAddr, rec.EmailVerified = id.Value, verified
	case credential.KindPhone:
		rec.PhoneNumber, rec.PhoneVerified = id.Value, verified
	case credential.KindUsername:
		rec.Handle = id.Value
	}
	s.byIdent[id] = userID
	return nil
}

func (s *UserStore) mutate(userID string, fn func(*user.Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[userID]
	if !ok {
		return user.ErrNotFound
	}
	fn(rec)
	return nil
}
