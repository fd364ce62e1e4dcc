// Package user declares the account capability the identity core reads and
// the store it asks to create and mutate accounts.
package user

import (
	"context"
	"errors"

	"github.com/MrEthical07/goIdentity/credential"
)

var (
	// ErrNotFound is returned by a Store when no account matches.
	ErrNotFound = errors.New("user: not found")
	// ErrConflict is returned by Create when the identifier is already taken.
	ErrConflict = errors.New("user: identifier already registered")
)

// User is the read-only view of an account. Absent identifiers and a missing
// password hash are reported as empty strings.
type User interface {
	ID() string
	Email() string
	Phone() string
	Username() string
	PasswordHash() string
	IsEmailVerified() bool
	IsPhoneVerified() bool
}

// HasPassword reports whether u can sign in with a password.
func HasPassword(u User) bool {
	return u != nil && u.PasswordHash() != ""
}

// IdentifierValue returns the value u holds for kind, or "".
func IdentifierValue(u User, kind credential.Kind) string {
	switch kind {
	case credential.KindEmail:
		return u.Email()
	case credential.KindPhone:
		return u.Phone()
	case credential.KindUsername:
		return u.Username()
	}
	return ""
}

// IsVerified reports whether u has proven ownership of its identifier of the
// given kind. Usernames are always considered verified.
func IsVerified(u User, kind credential.Kind) bool {
	switch kind {
	case credential.KindEmail:
		return u.IsEmailVerified()
	case credential.KindPhone:
		return u.IsPhoneVerified()
	}
	return true
}

// Store persists accounts. Implementations must return ErrNotFound and
// ErrConflict (possibly wrapped) for the conditions they name; any other
// error is treated as an infrastructure failure and propagated unchanged.
type Store interface {
	Create(ctx context.Context, cred credential.Credential) (User, error)
	FindByID(ctx context.Context, id string) (User, error)
	FindByIdentifier(ctx context.Context, id credential.Identifier) (User, error)
	FindByFederatedIdentity(ctx context.Context, provider, subject string) (User, error)
	MarkEmailVerified(ctx context.Context, userID string) error
	MarkPhoneVerified(ctx context.Context, userID string) error
	UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error
	// AttachFederatedIdentity links (provider, subject) to userID. Attaching a
	// link that already exists for the same user is a no-op.
	AttachFederatedIdentity(ctx context.Context, userID, provider, subject string) error
}
