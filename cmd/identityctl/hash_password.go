package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/goIdentity/password"
	"github.com/spf13/cobra"
)

func newHashPasswordCmd(g *globals) *cobra.Command {
	var algorithm string
	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Hash a password read from stdin",
		Long: `Hash the first line of stdin with the configured password algorithm.

The output can be stored directly as a user's password hash, for example when
seeding an administrator account.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.config()
			if err != nil {
				return err
			}
			if algorithm != "" {
				cfg.Password.Algorithm = algorithm
			}

			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return errors.New("no password on stdin")
			}
			plaintext := strings.TrimRight(line, "\r\n")
			if n := len([]rune(plaintext)); n < cfg.Password.MinLength || n > cfg.Password.MaxLength {
				return fmt.Errorf("password must be %d to %d characters", cfg.Password.MinLength, cfg.Password.MaxLength)
			}

			var h password.Hasher
			switch cfg.Password.Algorithm {
			case "argon2id":
				h, err = password.NewArgon2(cfg.Password.Argon2)
			case "bcrypt":
				h, err = password.NewBcrypt(cfg.Password.BcryptCost)
			default:
				err = fmt.Errorf("unsupported algorithm %q", cfg.Password.Algorithm)
			}
			if err != nil {
				return err
			}

			encoded, err := h.Hash(plaintext)
			if err != nil {
				return fmt.Errorf("hash: %w", err)
			}
			return g.emit(map[string]string{"algorithm": cfg.Password.Algorithm, "hash": encoded}, encoded)
		},
	}
	cmd.Flags().StringVar(&algorithm, "alg", "", "override the configured algorithm (argon2id or bcrypt)")
	return cmd
}
