package code

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrInvalidCode is returned when the submitted code does not match a
	// pending code for the scope.
	ErrInvalidCode = errors.New("invalid code")
	// ErrCodeExpiredOrMaxAttempts is returned when the matching code expired
	// or its attempt budget is spent. The two causes are not told apart.
	ErrCodeExpiredOrMaxAttempts = errors.New("code expired or max attempts reached")
)

// Reason is the internal cause behind ErrCodeExpiredOrMaxAttempts.
type Reason uint8

const (
	ReasonExpired Reason = iota + 1
	ReasonAttemptsExhausted
)

func (r Reason) String() string {
	switch r {
	case ReasonExpired:
		return "expired"
	case ReasonAttemptsExhausted:
		return "attempts_exhausted"
	}
	return "unknown"
}

// RejectedError carries the internal Reason while presenting itself to
// callers as ErrCodeExpiredOrMaxAttempts.
type RejectedError struct {
	Reason Reason
}

func (e *RejectedError) Error() string { return ErrCodeExpiredOrMaxAttempts.Error() }

// Is matches ErrCodeExpiredOrMaxAttempts.
func (e *RejectedError) Is(target error) bool { return target == ErrCodeExpiredOrMaxAttempts }

// RejectionReason extracts the internal cause from an error returned by Verify.
func RejectionReason(err error) (Reason, bool) {
	var rej *RejectedError
	if errors.As(err, &rej) {
		return rej.Reason, true
	}
	return 0, false
}

// Engine issues and verifies codes.
type Engine struct {
	store  Store
	now    func() time.Time
	newID  func() string
	logger *zap.Logger
}

// Option customises an Engine.
type Option func(*Engine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the logger used for rejected verifications.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine returns an Engine over store.
func NewEngine(store Store, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, errors.New("code: store is required")
	}
	e := &Engine{store: store, now: time.Now, newID: uuid.NewString, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Issue invalidates every pending code for t's scope, stores the hash of a
// new code and returns the plaintext for delivery.
func (e *Engine) Issue(ctx context.Context, t Target, length int, ttl time.Duration) (string, Record, error) {
	if t.IdentifierValue == "" {
		return "", Record{}, errors.New("code: empty identifier value")
	}
	if ttl <= 0 {
		return "", Record{}, errors.New("code: ttl must be > 0")
	}
	plain, err := Generate(length)
	if err != nil {
		return "", Record{}, err
	}

	if err := e.store.InvalidateCodes(ctx, t.Channel, t.Purpose, t.IdentifierValue); err != nil {
		return "", Record{}, fmt.Errorf("code: invalidate pending: %w", err)
	}

	now := e.now()
	rec := Record{
		ID:              e.newID(),
		UserID:          t.UserID,
		Channel:         t.Channel,
		Purpose:         t.Purpose,
		IdentifierValue: t.IdentifierValue,
		CodeHash:        Hash(t.Channel, t.Purpose, t.IdentifierValue, plain),
		CreatedAt:       now,
		ExpiresAt:       now.Add(ttl),
	}
	if err := e.store.CreateCode(ctx, rec); err != nil {
		return "", Record{}, fmt.Errorf("code: create: %w", err)
	}
	return plain, rec, nil
}

// Verify checks submitted against the pending code for t's scope and
// consumes it on success. A wrong guess against a live code costs one
// attempt.
func (e *Engine) Verify(ctx context.Context, t Target, submitted string, maxAttempts int) (Record, error) {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	if Canonical(submitted) == "" {
		return Record{}, ErrInvalidCode
	}
	hash := Hash(t.Channel, t.Purpose, t.IdentifierValue, submitted)

	rec, err := e.store.FindCode(ctx, t.Channel, t.Purpose, t.IdentifierValue, hash)
	if errors.Is(err, ErrNotFound) {
		return Record{}, e.miss(ctx, t, maxAttempts)
	}
	if err != nil {
		return Record{}, fmt.Errorf("code: find: %w", err)
	}

	now := e.now()
	if !rec.IsValid(now, maxAttempts) {
		reason := ReasonAttemptsExhausted
		if rec.IsExpired(now) {
			reason = ReasonExpired
		}
		e.logger.Info("code rejected",
			zap.Stringer("channel", t.Channel),
			zap.Stringer("purpose", t.Purpose),
			zap.Stringer("reason", reason),
		)
		return Record{}, &RejectedError{Reason: reason}
	}

	consumed, err := e.store.ConsumeCode(ctx, rec.ID)
	if err != nil {
		return Record{}, fmt.Errorf("code: consume: %w", err)
	}
	if !consumed {
		return Record{}, ErrInvalidCode
	}
	return rec, nil
}

func (e *Engine) miss(ctx context.Context, t Target, maxAttempts int) error {
	pending, err := e.store.FindPendingCode(ctx, t.Channel, t.Purpose, t.IdentifierValue)
	if errors.Is(err, ErrNotFound) {
		return ErrInvalidCode
	}
	if err != nil {
		return fmt.Errorf("code: find pending: %w", err)
	}
	if pending.IsValid(e.now(), maxAttempts) {
		if err := e.store.IncrementFailedAttempts(ctx, pending.ID); err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("code: count attempt: %w", err)
		}
	}
	return ErrInvalidCode
}
