package goIdentity

import "context"

// RequestPasswordReset issues a reset code to an email or phone and
// delivers it. Usernames cannot receive codes and fail with
// ErrIdentifierNotSpecified; unknown identifiers fail with ErrUserNotFound.
func (e *Engine) RequestPasswordReset(ctx context.Context, kind Kind, identifier string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "RequestPasswordReset", kindAttr(kind))
	err := e.flows.RequestPasswordReset(ctx, kind, identifier)
	endSpan(span, err)
	return err
}

// ResetPassword sets a new password when submitted matches the pending reset
// code, then revokes every refresh token of the account.
//
// Checks run in order: the passwords must match, the new password must pass
// the length policy, then the code is verified.
func (e *Engine) ResetPassword(ctx context.Context, kind Kind, identifier, submitted, newPassword, confirmPassword string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "ResetPassword", kindAttr(kind))
	err := e.flows.ResetPassword(ctx, kind, identifier, submitted, newPassword, confirmPassword)
	endSpan(span, err)
	return err
}
