// Package postgres implements the user, refresh token and code stores on
// PostgreSQL through pgx.
//
// The tables these stores expect are in Schema. Rotation locks the old token
// row with SELECT ... FOR UPDATE; code consumption is a DELETE ... RETURNING,
// so only one caller gets the row back.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

//go:embed schema.sql
var schema string

// DBTX is the subset of *pgxpool.Pool the stores use.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Schema returns the DDL for every table the stores use.
func Schema() string { return schema }

// Migrate applies Schema.
func Migrate(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply identity schema: %w", err)
	}
	return nil
}

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

func hasSQLState(err error, code string) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return strings.Contains(err.Error(), code)
}

func isUniqueViolation(err error) bool     { return hasSQLState(err, codeUniqueViolation) }
func isForeignKeyViolation(err error) bool { return hasSQLState(err, codeForeignKeyViolation) }

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
