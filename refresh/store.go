package refresh

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by a Store when no record matches.
	ErrNotFound = errors.New("refresh: record not found")
	// ErrRotateConflict is returned by Store.Rotate when the old token is no
	// longer Active at the time of the write.
	ErrRotateConflict = errors.New("refresh: token is no longer active")
)

// Store persists refresh token records.
type Store interface {
	CreateRefreshToken(ctx context.Context, rec Record) error
	FindByHash(ctx context.Context, tokenHash string) (Record, error)
	FindByID(ctx context.Context, id string) (Record, error)
	// Rotate atomically checks that oldID is neither revoked, replaced nor
	// expired at now, sets its ReplacedBy to next.ID and inserts next.
	Rotate(ctx context.Context, oldID string, next Record, now time.Time) error
	// RevokeTokens marks every listed token revoked. Already revoked or
	// unknown ids are ignored.
	RevokeTokens(ctx context.Context, ids []string, at time.Time) error
	RevokeAllForUser(ctx context.Context, userID string, at time.Time) error
	// RevokeFamily revokes every token whose FamilyID is familyID.
	RevokeFamily(ctx context.Context, familyID string, at time.Time) error
}
