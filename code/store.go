package code

import (
	"context"
	"errors"
)

// ErrNotFound is returned by a Store when no code matches.
var ErrNotFound = errors.New("code: not found")

// Store persists codes.
type Store interface {
	CreateCode(ctx context.Context, rec Record) error
	// FindCode returns the code of the given scope whose hash matches.
	FindCode(ctx context.Context, ch Channel, p Purpose, identifierValue, codeHash string) (Record, error)
	// FindPendingCode returns the current code of the given scope, if any.
	FindPendingCode(ctx context.Context, ch Channel, p Purpose, identifierValue string) (Record, error)
	InvalidateCodes(ctx context.Context, ch Channel, p Purpose, identifierValue string) error
	IncrementFailedAttempts(ctx context.Context, id string) error
	// ConsumeCode deletes the code and reports whether this call removed it.
	// Exactly one of several concurrent callers may observe true.
	ConsumeCode(ctx context.Context, id string) (bool, error)
}
