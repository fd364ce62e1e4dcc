package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/MrEthical07/goIdentity/refresh"
)

const refreshColumns = `id, user_id, token_hash, issued_at, expires_at, revoked_at, replaced_by, replaces, family_id`

// RefreshStore implements refresh.Store.
type RefreshStore struct {
	db DBTX
}

// NewRefreshStore creates a refresh token store over db.
func NewRefreshStore(db DBTX) *RefreshStore {
	return &RefreshStore{db: db}
}

func (s *RefreshStore) CreateRefreshToken(ctx context.Context, rec refresh.Record) error {
	return insertRefresh(ctx, s.db, rec)
}

func (s *RefreshStore) FindByHash(ctx context.Context, tokenHash string) (refresh.Record, error) {
	return scanRefresh(s.db.QueryRow(ctx, `SELECT `+refreshColumns+` FROM identity_refresh_tokens WHERE token_hash = $1`, tokenHash))
}

func (s *RefreshStore) FindByID(ctx context.Context, id string) (refresh.Record, error) {
	return scanRefresh(s.db.QueryRow(ctx, `SELECT `+refreshColumns+` FROM identity_refresh_tokens WHERE id = $1`, id))
}

// Rotate locks the old row, checks it is still the live tip and writes the
// successor in the same transaction.
func (s *RefreshStore) Rotate(ctx context.Context, oldID string, next refresh.Record, now time.Time) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin rotate: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	old, err := scanRefresh(tx.QueryRow(ctx,
		`SELECT `+refreshColumns+` FROM identity_refresh_tokens WHERE id = $1 FOR UPDATE`, oldID))
	if err != nil {
		return err
	}
	if !old.Usable(now) {
		return refresh.ErrRotateConflict
	}

	if _, err := tx.Exec(ctx,
		`UPDATE identity_refresh_tokens SET replaced_by = $2 WHERE id = $1`, oldID, next.ID); err != nil {
		return fmt.Errorf("mark token replaced: %w", err)
	}
	if err := insertRefresh(ctx, tx, next); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit rotate: %w", err)
	}
	return nil
}

func (s *RefreshStore) RevokeTokens(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.Exec(ctx,
		`UPDATE identity_refresh_tokens SET revoked_at = $2 WHERE id = ANY($1) AND revoked_at IS NULL`, ids, at.UTC())
	if err != nil {
		return fmt.Errorf("revoke tokens: %w", err)
	}
	return nil
}

func (s *RefreshStore) RevokeAllForUser(ctx context.Context, userID string, at time.Time) error {
	_, err := s.db.Exec(ctx,
		`UPDATE identity_refresh_tokens SET revoked_at = $2 WHERE user_id = $1 AND revoked_at IS NULL`, userID, at.UTC())
	if err != nil {
		return fmt.Errorf("revoke user tokens: %w", err)
	}
	return nil
}

func (s *RefreshStore) RevokeFamily(ctx context.Context, familyID string, at time.Time) error {
	_, err := s.db.Exec(ctx,
		`UPDATE identity_refresh_tokens SET revoked_at = $2 WHERE family_id = $1 AND revoked_at IS NULL`, familyID, at.UTC())
	if err != nil {
		return fmt.Errorf("revoke token family: %w", err)
	}
	return nil
}

func insertRefresh(ctx context.Context, db execer, rec refresh.Record) error {
	query := `
		INSERT INTO identity_refresh_tokens (id, user_id, token_hash, issued_at, expires_at, revoked_at, replaced_by, replaces, family_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := db.Exec(ctx, query,
		rec.ID,
		rec.UserID,
		rec.TokenHash,
		rec.IssuedAt.UTC(),
		rec.ExpiresAt.UTC(),
		rec.RevokedAt,
		rec.ReplacedBy,
		rec.Replaces,
		rec.FamilyID,
	)
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

func scanRefresh(row pgx.Row) (refresh.Record, error) {
	var r refresh.Record
	err := row.Scan(
		&r.ID,
		&r.UserID,
		&r.TokenHash,
		&r.IssuedAt,
		&r.ExpiresAt,
		&r.RevokedAt,
		&r.ReplacedBy,
		&r.Replaces,
		&r.FamilyID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return refresh.Record{}, refresh.ErrNotFound
		}
		return refresh.Record{}, fmt.Errorf("scan refresh token: %w", err)
	}
	return r, nil
}
