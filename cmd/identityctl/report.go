package main

import (
	"fmt"
	"strings"

	"github.com/MrEthical07/goIdentity/internal/security"
	"github.com/spf13/cobra"
)

func newReportCmd(g *globals) *cobra.Command {
	var redisBacked bool
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize the security posture of the effective configuration",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := g.config()
			if err != nil {
				return err
			}
			r := security.BuildReport(security.ReportInput{
				SigningAlgorithm: cfg.JWT.SigningMethod,
				AccessTTL:        cfg.JWT.AccessTTL,
				RefreshTTL:       cfg.Refresh.TTL,
				Password: security.PasswordReport{
					Algorithm:   cfg.Password.Algorithm,
					BcryptCost:  cfg.Password.BcryptCost,
					MemoryKB:    cfg.Password.Argon2.Memory,
					Time:        cfg.Password.Argon2.Time,
					Parallelism: cfg.Password.Argon2.Parallelism,
					MinLength:   cfg.Password.MinLength,
				},
				VerifiedLoginRequired:  cfg.Verification.RequireVerifiedLogin,
				RevokeOnLogin:          cfg.Session.RevokeOnLogin,
				RateLimitEnabled:       cfg.RateLimit.Enabled,
				MaxLoginFailures:       cfg.RateLimit.MaxLoginFailures,
				LoginWindow:            cfg.RateLimit.LoginWindow,
				RedisBacked:            redisBacked,
				AuditEnabled:           cfg.Audit.Enabled,
				AuditDropIfFull:        cfg.Audit.DropIfFull,
				VerificationCodeDigits: cfg.Verification.CodeLength,
				ResetCodeDigits:        cfg.PasswordReset.CodeLength,
			})

			var b strings.Builder
			fmt.Fprintf(&b, "signing:        %s, access %s, refresh %s\n", r.SigningAlgorithm, r.AccessTTL, r.RefreshTTL)
			fmt.Fprintf(&b, "passwords:      %s, min length %d\n", r.Password.Algorithm, r.Password.MinLength)
			fmt.Fprintf(&b, "verified login: %t\n", r.VerifiedLoginRequired)
			fmt.Fprintf(&b, "rate limiting:  %t\n", r.RateLimitingActive)
			fmt.Fprintf(&b, "audit:          %t (may drop: %t)\n", r.AuditEnabled, r.AuditMayDrop)
			for _, w := range r.Warnings {
				fmt.Fprintf(&b, "WARN %s\n", w)
			}
			return g.emit(r, strings.TrimRight(b.String(), "\n"))
		},
	}
	cmd.Flags().BoolVar(&redisBacked, "redis", true, "the deployment passes a Redis client to the builder")
	return cmd
}
