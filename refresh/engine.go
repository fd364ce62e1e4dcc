package refresh

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrTokenNotFound is returned when a presented token hashes to nothing
	// the store knows about.
	ErrTokenNotFound = errors.New("refresh token not found")
	// ErrTokenInvalid is returned when a presented token is known but expired,
	// revoked or already rotated.
	ErrTokenInvalid = errors.New("invalid refresh token")
	// ErrReuseDetected refines ErrTokenInvalid for tokens that had already
	// been rotated. errors.Is(ErrReuseDetected, ErrTokenInvalid) holds.
	ErrReuseDetected = fmt.Errorf("%w: reuse detected", ErrTokenInvalid)
)

// Config tunes an Engine.
type Config struct {
	TTL            time.Duration `yaml:"ttl" env:"TTL"`
	TokenBytes     int           `yaml:"token_bytes" env:"TOKEN_BYTES"`
	MaxChainLength int           `yaml:"max_chain_length" env:"MAX_CHAIN_LENGTH"`
}

// DefaultConfig returns a 30 day, 256 bit configuration.
func DefaultConfig() Config {
	return Config{TTL: 30 * 24 * time.Hour, TokenBytes: MinTokenBytes, MaxChainLength: 1024}
}

// Issued pairs the plaintext handed to the client with its stored record.
type Issued struct {
	Token  string
	Record Record
}

// Engine issues, rotates and revokes refresh tokens.
type Engine struct {
	store  Store
	cfg    Config
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

// WithLogger sets the logger used for reuse and revocation events.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine returns an Engine over store.
func NewEngine(store Store, cfg Config, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, errors.New("refresh: store is required")
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("refresh: TTL must be > 0")
	}
	if cfg.TokenBytes == 0 {
		cfg.TokenBytes = MinTokenBytes
	}
	if cfg.TokenBytes < MinTokenBytes {
		return nil, errors.New("refresh: TokenBytes must be >= 32")
	}
	if cfg.MaxChainLength <= 0 {
		cfg.MaxChainLength = DefaultConfig().MaxChainLength
	}
	e := &Engine{
		store:  store,
		cfg:    cfg,
		now:    time.Now,
		newID:  uuid.NewString,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// TTL reports the lifetime given to new tokens.
func (e *Engine) TTL() time.Duration { return e.cfg.TTL }

// Issue creates a new Active token for userID.
func (e *Engine) Issue(ctx context.Context, userID string) (Issued, error) {
	if strings.TrimSpace(userID) == "" {
		return Issued{}, errors.New("refresh: empty user id")
	}
	issued, err := e.mint(userID, "", "")
	if err != nil {
		return Issued{}, err
	}
	if err := e.store.CreateRefreshToken(ctx, issued.Record); err != nil {
		return Issued{}, fmt.Errorf("refresh: create token: %w", err)
	}
	return issued, nil
}

// Rotate exchanges a live token for its successor. Any token that is not the
// live tip of its chain causes the chain to be revoked before the error is
// returned.
func (e *Engine) Rotate(ctx context.Context, token string) (Issued, error) {
	old, err := e.lookup(ctx, token)
	if err != nil {
		return Issued{}, err
	}

	now := e.now()
	if !old.Usable(now) {
		return Issued{}, e.reject(ctx, old, now)
	}

	next, err := e.mint(old.UserID, old.ID, old.Family())
	if err != nil {
		return Issued{}, err
	}
	if err := e.store.Rotate(ctx, old.ID, next.Record, now); err != nil {
		if errors.Is(err, ErrRotateConflict) {
			// Lost a race with another rotation of the same token.
			latest, ferr := e.store.FindByID(ctx, old.ID)
			if ferr != nil {
				return Issued{}, fmt.Errorf("refresh: reload token: %w", ferr)
			}
			return Issued{}, e.reject(ctx, latest, now)
		}
		return Issued{}, fmt.Errorf("refresh: rotate token: %w", err)
	}
	return next, nil
}

// Lookup returns the record behind a presented token without changing it.
func (e *Engine) Lookup(ctx context.Context, token string) (Record, error) {
	return e.lookup(ctx, token)
}

// Revoke revokes the presented token. Revoking twice is not an error.
func (e *Engine) Revoke(ctx context.Context, token string) (Record, error) {
	rec, err := e.lookup(ctx, token)
	if err != nil {
		return Record{}, err
	}
	if rec.IsRevoked() {
		return rec, nil
	}
	if err := e.store.RevokeTokens(ctx, []string{rec.ID}, e.now()); err != nil {
		return Record{}, fmt.Errorf("refresh: revoke token: %w", err)
	}
	return rec, nil
}

// RevokeAll revokes every token belonging to userID.
func (e *Engine) RevokeAll(ctx context.Context, userID string) error {
	if err := e.store.RevokeAllForUser(ctx, userID, e.now()); err != nil {
		return fmt.Errorf("refresh: revoke all: %w", err)
	}
	return nil
}

// RevokeChain revokes every token in the rotation chain containing rec and
// returns the ids it walked. Records stamped with a family are also revoked
// in one store call, which covers tokens beyond MaxChainLength.
func (e *Engine) RevokeChain(ctx context.Context, rec Record) ([]string, error) {
	ids, err := e.Chain(ctx, rec)
	if err != nil {
		return nil, err
	}
	now := e.now()
	if err := e.store.RevokeTokens(ctx, ids, now); err != nil {
		return nil, fmt.Errorf("refresh: revoke chain: %w", err)
	}
	if rec.FamilyID != "" {
		if err := e.store.RevokeFamily(ctx, rec.FamilyID, now); err != nil {
			return nil, fmt.Errorf("refresh: revoke family: %w", err)
		}
	}
	return ids, nil
}

// Chain returns the ids of the rotation chain containing rec, oldest first.
// The forward walk through ReplacedBy starts at rec so the live tip is
// always reached before the backward walk through Replaces. Each direction
// visits at most MaxChainLength records.
func (e *Engine) Chain(ctx context.Context, rec Record) ([]string, error) {
	limit := e.cfg.MaxChainLength
	seen := map[string]struct{}{rec.ID: {}}

	var forward []string
	cur := rec
	for len(forward) < limit && cur.ReplacedBy != "" {
		if _, dup := seen[cur.ReplacedBy]; dup {
			break
		}
		next, err := e.store.FindByID(ctx, cur.ReplacedBy)
		if errors.Is(err, ErrNotFound) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("refresh: walk chain: %w", err)
		}
		seen[next.ID] = struct{}{}
		forward = append(forward, next.ID)
		cur = next
	}

	var backward []string
	cur = rec
	for len(backward) < limit && cur.Replaces != "" {
		if _, dup := seen[cur.Replaces]; dup {
			break
		}
		prev, err := e.store.FindByID(ctx, cur.Replaces)
		if errors.Is(err, ErrNotFound) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("refresh: walk chain: %w", err)
		}
		seen[prev.ID] = struct{}{}
		backward = append(backward, prev.ID)
		cur = prev
	}

	ids := make([]string, 0, len(backward)+1+len(forward))
	for i := len(backward) - 1; i >= 0; i-- {
		ids = append(ids, backward[i])
	}
	ids = append(ids, rec.ID)
	return append(ids, forward...), nil
}

func (e *Engine) lookup(ctx context.Context, token string) (Record, error) {
	if token == "" {
		return Record{}, ErrTokenNotFound
	}
	rec, err := e.store.FindByHash(ctx, HashToken(token))
	if errors.Is(err, ErrNotFound) {
		return Record{}, ErrTokenNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("refresh: find token: %w", err)
	}
	return rec, nil
}

func (e *Engine) reject(ctx context.Context, rec Record, now time.Time) error {
	state := rec.State(now)
	ids, err := e.RevokeChain(ctx, rec)
	if err != nil {
		return err
	}
	e.logger.Warn("refresh chain revoked",
		zap.String("user_id", rec.UserID),
		zap.String("token_id", rec.ID),
		zap.Stringer("state", state),
		zap.Int("chain_length", len(ids)),
	)
	if state == StateReplaced {
		return ErrReuseDetected
	}
	return ErrTokenInvalid
}

// mint builds an unsaved record. An empty family starts a new chain rooted
// at the minted token.
func (e *Engine) mint(userID, replaces, family string) (Issued, error) {
	token, err := NewToken(e.cfg.TokenBytes)
	if err != nil {
		return Issued{}, fmt.Errorf("refresh: generate token: %w", err)
	}
	now := e.now()
	id := e.newID()
	if family == "" {
		family = id
	}
	return Issued{
		Token: token,
		Record: Record{
			ID:        id,
			UserID:    userID,
			TokenHash: HashToken(token),
			IssuedAt:  now,
			ExpiresAt: now.Add(e.cfg.TTL),
			Replaces:  replaces,
			FamilyID:  family,
		},
	}, nil
}
