package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/MrEthical07/goIdentity/store/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newSchemaCmd(g *globals) *cobra.Command {
	var (
		apply bool
		dsn   string
	)
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print or apply the Postgres schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !apply {
				_, err := fmt.Fprint(g.out, postgres.Schema())
				return err
			}
			if dsn == "" {
				dsn = os.Getenv("DATABASE_URL")
			}
			if dsn == "" {
				return errors.New("--dsn or DATABASE_URL is required with --apply")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			pool, err := pgxpool.New(ctx, dsn)
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer pool.Close()

			if err := postgres.Migrate(ctx, pool); err != nil {
				return err
			}
			g.logger.Info("schema applied", zap.String("host", pool.Config().ConnConfig.Host))
			return g.emit(map[string]bool{"applied": true}, "schema applied")
		},
	}
	cmd.Flags().BoolVar(&apply, "apply", false, "apply the schema instead of printing it")
	cmd.Flags().StringVar(&dsn, "dsn", "", "Postgres connection string (default $DATABASE_URL)")
	return cmd
}
