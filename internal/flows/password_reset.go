package flows

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goIdentity/code"
	"github.com/MrEthical07/goIdentity/credential"
	"github.com/MrEthical07/goIdentity/delivery"
	"github.com/MrEthical07/goIdentity/user"
	"go.uber.org/zap"
)

type PasswordResetMetrics struct {
	CodeMetrics
	Requested      int
	ConfirmSuccess int
	ConfirmFailure int
}

type PasswordResetEvents struct {
	Requested string
	Completed string
	Failure   string
}

type PasswordResetErrors struct {
	EngineNotReady           error
	IdentifierNotSpecified   error
	UserNotFound             error
	PasswordsDoNotMatch      error
	PasswordPolicy           error
	InvalidCode              error
	CodeExpiredOrMaxAttempts error
	CodeRateLimited          error
}

// PasswordResetDeps captures request/confirm dependencies for password reset.
type PasswordResetDeps struct {
	Codes  CodeDeps
	Policy PasswordPolicy

	FindUser           func(ctx context.Context, id credential.Identifier) (user.User, error)
	HashPassword       func(string) (string, error)
	UpdatePasswordHash func(ctx context.Context, userID, hash string) error
	RevokeAll          func(ctx context.Context, userID string) error
	ResetLoginRate     func(ctx context.Context, id credential.Identifier)

	MetricInc func(int)
	EmitAudit AuditFunc
	Logger    *zap.Logger

	Metrics PasswordResetMetrics
	Events  PasswordResetEvents
	Errors  PasswordResetErrors
}

func (d *PasswordResetDeps) ready() bool {
	if d.MetricInc == nil {
		d.MetricInc = nopMetric
	}
	if d.EmitAudit == nil {
		d.EmitAudit = nopAudit
	}
	d.Logger = orNop(d.Logger)
	return d.FindUser != nil && d.HashPassword != nil && d.UpdatePasswordHash != nil &&
		d.RevokeAll != nil && d.Codes.Issue != nil && d.Codes.Verify != nil
}

// RunRequestPasswordReset issues a reset code to an email or phone and
// delivers it. Usernames cannot receive codes.
func RunRequestPasswordReset(ctx context.Context, kind credential.Kind, raw string, deps PasswordResetDeps) error {
	if !deps.ready() {
		return deps.Errors.EngineNotReady
	}
	id, ch, err := resetIdentifier(kind, raw, deps.Errors)
	if err != nil {
		return err
	}
	u, err := deps.FindUser(ctx, id)
	if errors.Is(err, user.ErrNotFound) {
		deps.EmitAudit(ctx, deps.Events.Requested, false, "", deps.Errors.UserNotFound, func() map[string]string {
			return map[string]string{"channel": ch.String()}
		})
		return deps.Errors.UserNotFound
	}
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}

	deps.MetricInc(deps.Metrics.Requested)
	target := code.Target{UserID: u.ID(), Channel: ch, Purpose: code.PurposeReset, IdentifierValue: id.Value}
	if err := issueAndDeliver(ctx, target, delivery.KindPasswordResetCode, deps.Codes, deps.Metrics.CodeMetrics, deps.Errors.CodeRateLimited, deps.MetricInc, deps.Logger); err != nil {
		return err
	}
	deps.EmitAudit(ctx, deps.Events.Requested, true, u.ID(), nil, func() map[string]string {
		return map[string]string{"channel": ch.String()}
	})
	return nil
}

// RunResetPassword proves the reset code and replaces the password. Every
// refresh token of the user is revoked afterwards.
func RunResetPassword(ctx context.Context, kind credential.Kind, raw, submitted, newPassword, confirmPassword string, deps PasswordResetDeps) error {
	if !deps.ready() {
		return deps.Errors.EngineNotReady
	}
	id, ch, err := resetIdentifier(kind, raw, deps.Errors)
	if err != nil {
		return err
	}
	if newPassword != confirmPassword {
		return deps.Errors.PasswordsDoNotMatch
	}
	if !deps.Policy.allows(newPassword) {
		return deps.Errors.PasswordPolicy
	}

	u, err := deps.FindUser(ctx, id)
	if errors.Is(err, user.ErrNotFound) {
		return deps.Errors.UserNotFound
	}
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}

	target := code.Target{UserID: u.ID(), Channel: ch, Purpose: code.PurposeReset, IdentifierValue: id.Value}
	if _, err := deps.Codes.Verify(ctx, target, submitted, deps.Codes.MaxAttempts); err != nil {
		mapped := mapCodeError(err, deps.Errors.InvalidCode, deps.Errors.CodeExpiredOrMaxAttempts)
		deps.MetricInc(deps.Metrics.ConfirmFailure)
		if errors.Is(err, code.ErrCodeExpiredOrMaxAttempts) {
			deps.MetricInc(deps.Metrics.CodeRejected)
		}
		deps.EmitAudit(ctx, deps.Events.Failure, false, u.ID(), mapped, func() map[string]string {
			return codeFailureMetadata(ch, err)
		})
		return mapped
	}

	hash, err := deps.HashPassword(newPassword)
	newPassword = ""
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := deps.UpdatePasswordHash(ctx, u.ID(), hash); err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	if err := deps.RevokeAll(ctx, u.ID()); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}
	if deps.ResetLoginRate != nil {
		deps.ResetLoginRate(ctx, id)
	}

	deps.MetricInc(deps.Metrics.ConfirmSuccess)
	deps.EmitAudit(ctx, deps.Events.Completed, true, u.ID(), nil, func() map[string]string {
		return map[string]string{"channel": ch.String()}
	})
	confirm(ctx, deps.Codes, delivery.Message{
		Kind:    delivery.KindConfirmation,
		Channel: deliveryChannel(ch),
		To:      id.Value,
		UserID:  u.ID(),
		Event:   "password_reset",
	}, deps.Metrics.DeliveryFailure, deps.MetricInc, deps.Logger)
	return nil
}

func resetIdentifier(kind credential.Kind, raw string, errs PasswordResetErrors) (credential.Identifier, code.Channel, error) {
	ch, ok := channelFor(kind)
	if !ok {
		return credential.Identifier{}, 0, errs.IdentifierNotSpecified
	}
	id, err := credential.Parse(kind, raw)
	if errors.Is(err, credential.ErrIdentifierNotSpecified) {
		return credential.Identifier{}, 0, errs.IdentifierNotSpecified
	}
	if err != nil {
		return credential.Identifier{}, 0, errs.UserNotFound
	}
	return id, ch, nil
}
