package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/MrEthical07/goIdentity/code"
)

const codeColumns = `id, user_id, channel, purpose, identifier_value, code_hash, created_at, expires_at, failed_attempts`

// CodeStore implements code.Store.
type CodeStore struct {
	db DBTX
}

// NewCodeStore creates a code store over db.
func NewCodeStore(db DBTX) *CodeStore {
	return &CodeStore{db: db}
}

// CreateCode stores rec, replacing any code already held for the same
// channel, purpose and identifier in the same statement.
func (s *CodeStore) CreateCode(ctx context.Context, rec code.Record) error {
	query := `
		INSERT INTO identity_codes (id, user_id, channel, purpose, identifier_value, code_hash, created_at, expires_at, failed_attempts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (channel, purpose, identifier_value) DO UPDATE SET
			id = EXCLUDED.id,
			user_id = EXCLUDED.user_id,
			code_hash = EXCLUDED.code_hash,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at,
			failed_attempts = EXCLUDED.failed_attempts`

	_, err := s.db.Exec(ctx, query,
		rec.ID,
		rec.UserID,
		int16(rec.Channel),
		int16(rec.Purpose),
		rec.IdentifierValue,
		rec.CodeHash,
		rec.CreatedAt.UTC(),
		rec.ExpiresAt.UTC(),
		rec.FailedAttempts,
	)
	if err != nil {
		return fmt.Errorf("insert code: %w", err)
	}
	return nil
}

func (s *CodeStore) FindCode(ctx context.Context, ch code.Channel, p code.Purpose, identifierValue, codeHash string) (code.Record, error) {
	query := `SELECT ` + codeColumns + ` FROM identity_codes
		WHERE channel = $1 AND purpose = $2 AND identifier_value = $3 AND code_hash = $4`
	return scanCode(s.db.QueryRow(ctx, query, int16(ch), int16(p), identifierValue, codeHash))
}

func (s *CodeStore) FindPendingCode(ctx context.Context, ch code.Channel, p code.Purpose, identifierValue string) (code.Record, error) {
	query := `SELECT ` + codeColumns + ` FROM identity_codes
		WHERE channel = $1 AND purpose = $2 AND identifier_value = $3
		ORDER BY created_at DESC LIMIT 1`
	return scanCode(s.db.QueryRow(ctx, query, int16(ch), int16(p), identifierValue))
}

func (s *CodeStore) InvalidateCodes(ctx context.Context, ch code.Channel, p code.Purpose, identifierValue string) error {
	_, err := s.db.Exec(ctx,
		`DELETE FROM identity_codes WHERE channel = $1 AND purpose = $2 AND identifier_value = $3`,
		int16(ch), int16(p), identifierValue)
	if err != nil {
		return fmt.Errorf("invalidate codes: %w", err)
	}
	return nil
}

func (s *CodeStore) IncrementFailedAttempts(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `UPDATE identity_codes SET failed_attempts = failed_attempts + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("increment code attempts: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return code.ErrNotFound
	}
	return nil
}

// ConsumeCode deletes the row and reports whether this call got it back.
func (s *CodeStore) ConsumeCode(ctx context.Context, id string) (bool, error) {
	var deleted string
	err := s.db.QueryRow(ctx, `DELETE FROM identity_codes WHERE id = $1 RETURNING id`, id).Scan(&deleted)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("consume code: %w", err)
	}
	return true, nil
}

func scanCode(row pgx.Row) (code.Record, error) {
	var (
		r       code.Record
		ch, pur int16
	)
	err := row.Scan(
		&r.ID,
		&r.UserID,
		&ch,
		&pur,
		&r.IdentifierValue,
		&r.CodeHash,
		&r.CreatedAt,
		&r.ExpiresAt,
		&r.FailedAttempts,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return code.Record{}, code.ErrNotFound
		}
		return code.Record{}, fmt.Errorf("scan code: %w", err)
	}
	r.Channel, r.Purpose = code.Channel(ch), code.Purpose(pur)
	return r, nil
}
