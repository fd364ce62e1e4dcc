package main

import (
	"context"
	"fmt"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/delivery"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type demoStep struct {
	Step   string `json:"step"`
	Detail string `json:"detail,omitempty"`
}

func newDemoCmd(g *globals) *cobra.Command {
	var (
		email     string
		useRedis  bool
		redisAddr string
	)
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run register, verify, login, refresh, reset and logout end to end",
		Long: `Run every account operation against an in-process engine.

Codes are captured from the outbox instead of being delivered. With --redis the
engine uses the Redis stores and rate limits, backed by miniredis unless
--redis-addr or REDIS_ADDR points at a real server.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.config()
			if err != nil {
				return err
			}
			if err := withEphemeralKeys(&cfg, g.logger); err != nil {
				return err
			}

			outbox := delivery.NewRecorder()
			logSender := delivery.NewLogSender(g.logger)
			b := goIdentity.New().
				WithConfig(cfg).
				WithLogger(g.logger).
				WithDelivery(delivery.SenderFunc(func(ctx context.Context, msg delivery.Message) error {
					_ = logSender.Send(ctx, msg)
					return outbox.Send(ctx, msg)
				})).
				WithAuditSink(goIdentity.NewZapSink(g.logger))

			if useRedis || redisAddr != "" {
				client, closeRedis, err := openRedis(redisAddr, func(s string) { g.logger.Info(s) })
				if err != nil {
					return err
				}
				defer closeRedis()
				b = b.WithRedis(client)
			}

			engine, err := b.Build()
			if err != nil {
				return err
			}
			defer engine.Close()

			steps, err := runDemo(cmd.Context(), engine, outbox, email)
			for _, s := range steps {
				g.logger.Debug("demo step", zap.String("step", s.Step))
			}
			if err != nil {
				return fmt.Errorf("demo failed after %d steps: %w", len(steps), err)
			}

			text := ""
			for i, s := range steps {
				text += fmt.Sprintf("%2d. %-22s %s\n", i+1, s.Step, s.Detail)
			}
			return g.emit(steps, text)
		},
	}
	cmd.Flags().StringVar(&email, "email", "demo@example.com", "address to register")
	cmd.Flags().BoolVar(&useRedis, "redis", false, "use Redis stores (miniredis unless an address is given)")
	cmd.Flags().StringVar(&redisAddr, "redis-addr", "", "Redis address; implies --redis")
	return cmd
}

func runDemo(ctx context.Context, e *goIdentity.Engine, outbox *delivery.Recorder, email string) ([]demoStep, error) {
	const (
		firstPassword  = "demo-password-1"
		secondPassword = "demo-password-2"
	)
	var steps []demoStep
	step := func(name, detail string) { steps = append(steps, demoStep{Step: name, Detail: detail}) }

	u, err := e.Register(ctx, goIdentity.RegisterRequest{
		Kind:            goIdentity.KindEmail,
		Identifier:      email,
		Password:        firstPassword,
		ConfirmPassword: firstPassword,
	})
	if err != nil {
		return steps, err
	}
	step("register", "user "+u.ID())

	msg, ok := outbox.Last(u.Email(), delivery.KindVerificationCode)
	if !ok {
		if err := e.SendEmailVerification(ctx, u.ID()); err != nil {
			return steps, err
		}
		msg, _ = outbox.Last(u.Email(), delivery.KindVerificationCode)
	}
	if err := e.VerifyEmail(ctx, u.Email(), msg.Code); err != nil {
		return steps, err
	}
	step("verify-email", u.Email())

	pair, err := e.Login(ctx, goIdentity.KindEmail, email, firstPassword)
	if err != nil {
		return steps, err
	}
	step("login", fmt.Sprintf("access token expires in %ds", pair.ExpiresIn))

	res, err := e.ValidateAccessToken(ctx, pair.AccessToken)
	if err != nil {
		return steps, err
	}
	step("validate", "subject "+res.UserID)

	rotated, err := e.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		return steps, err
	}
	step("refresh", "rotated refresh token")

	if _, err := e.Refresh(ctx, pair.RefreshToken); err == nil {
		return steps, fmt.Errorf("replayed refresh token was accepted")
	}
	step("refresh-replay", "rejected; token family revoked")

	if err := e.RequestPasswordReset(ctx, goIdentity.KindEmail, email); err != nil {
		return steps, err
	}
	reset, _ := outbox.Last(u.Email(), delivery.KindPasswordResetCode)
	if err := e.ResetPassword(ctx, goIdentity.KindEmail, email, reset.Code, secondPassword, secondPassword); err != nil {
		return steps, err
	}
	step("reset-password", "new password set")

	if _, err := e.Login(ctx, goIdentity.KindEmail, email, firstPassword); err == nil {
		return steps, fmt.Errorf("old password still accepted")
	}
	pair, err = e.Login(ctx, goIdentity.KindEmail, email, secondPassword)
	if err != nil {
		return steps, err
	}
	step("login", "with new password")

	if err := e.Logout(ctx, pair.RefreshToken); err != nil {
		return steps, err
	}
	if _, err := e.Refresh(ctx, rotated.RefreshToken); err == nil {
		return steps, fmt.Errorf("refresh token survived the reset")
	}
	step("logout", "refresh tokens revoked")
	return steps, nil
}
