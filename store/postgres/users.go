package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"

	"github.com/MrEthical07/goIdentity/credential"
	"github.com/MrEthical07/goIdentity/user"
)

const userColumns = `u.id, COALESCE(u.email, ''), COALESCE(u.phone, ''), COALESCE(u.username, ''),
	u.password_hash, u.email_verified, u.phone_verified, u.created_at`

// UserStore implements user.Store.
type UserStore struct {
	db    DBTX
	now   func() time.Time
	newID func() string
}

// NewUserStore creates a user store over db. New accounts get ULID ids.
func NewUserStore(db DBTX) *UserStore {
	return &UserStore{db: db, now: time.Now, newID: func() string { return ulid.Make().String() }}
}

// Create inserts an account for cred.
func (s *UserStore) Create(ctx context.Context, cred credential.Credential) (user.User, error) {
	rec := user.NewRecord(s.newID(), cred, s.now().UTC())
	query := `
		INSERT INTO identity_users (id, email, phone, username, password_hash, email_verified, phone_verified, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.db.Exec(ctx, query,
		rec.UserID,
		nullIfEmpty(rec.EmailAddr),
		nullIfEmpty(rec.PhoneNumber),
		nullIfEmpty(rec.Handle),
		rec.Hash,
		rec.EmailVerified,
		rec.PhoneVerified,
		rec.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, user.ErrConflict
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return rec, nil
}

func (s *UserStore) FindByID(ctx context.Context, id string) (user.User, error) {
	return s.scanUser(ctx, `SELECT `+userColumns+` FROM identity_users u WHERE u.id = $1`, id)
}

func (s *UserStore) FindByIdentifier(ctx context.Context, id credential.Identifier) (user.User, error) {
	var column string
	switch id.Kind {
	case credential.KindEmail:
		column = "email"
	case credential.KindPhone:
		column = "phone"
	case credential.KindUsername:
		column = "username"
	default:
		return nil, user.ErrNotFound
	}
	return s.scanUser(ctx, `SELECT `+userColumns+` FROM identity_users u WHERE u.`+column+` = $1`, id.Value)
}

func (s *UserStore) FindByFederatedIdentity(ctx context.Context, provider, subject string) (user.User, error) {
	query := `SELECT ` + userColumns + ` FROM identity_users u
		JOIN identity_federated_identities f ON f.user_id = u.id
		WHERE f.provider = $1 AND f.subject = $2`
	return s.scanUser(ctx, query, provider, subject)
}

func (s *UserStore) MarkEmailVerified(ctx context.Context, userID string) error {
	return s.update(ctx, `UPDATE identity_users SET email_verified = TRUE WHERE id = $1`, userID)
}

func (s *UserStore) MarkPhoneVerified(ctx context.Context, userID string) error {
	return s.update(ctx, `UPDATE identity_users SET phone_verified = TRUE WHERE id = $1`, userID)
}

func (s *UserStore) UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error {
	return s.update(ctx, `UPDATE identity_users SET password_hash = $2 WHERE id = $1`, userID, passwordHash)
}

// AttachFederatedIdentity links (provider, subject) to userID. The upsert
// returns the owning user, so re-attaching to the same user is a no-op and
// attaching to another user is a conflict.
func (s *UserStore) AttachFederatedIdentity(ctx context.Context, userID, provider, subject string) error {
	query := `
		INSERT INTO identity_federated_identities (provider, subject, user_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (provider, subject) DO UPDATE SET provider = EXCLUDED.provider
		RETURNING user_id`

	var owner string
	err := s.db.QueryRow(ctx, query, provider, subject, userID, s.now().UTC()).Scan(&owner)
	if err != nil {
		if isForeignKeyViolation(err) {
			return user.ErrNotFound
		}
		return fmt.Errorf("attach federated identity: %w", err)
	}
	if owner != userID {
		return user.ErrConflict
	}
	return nil
}

func (s *UserStore) update(ctx context.Context, query string, args ...any) error {
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (s *UserStore) scanUser(ctx context.Context, query string, args ...any) (user.User, error) {
	var r user.Record
	err := s.db.QueryRow(ctx, query, args...).Scan(
		&r.UserID,
		&r.EmailAddr,
		&r.PhoneNumber,
		&r.Handle,
		&r.Hash,
		&r.EmailVerified,
		&r.PhoneVerified,
		&r.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &r, nil
}
